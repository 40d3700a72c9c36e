package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeConfig indicates the service configuration could not be loaded.
	ExitCodeConfig = 2
)

// configError marks failures to load or validate configuration so Execute can
// exit with ExitCodeConfig.
type configError struct {
	err error
}

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "auth-service",
	Short: "PetClinic authentication and authorization service",
	Long: `auth-service issues and validates PetClinic session tokens, verifies
accounts, runs password resets and enforces per-route access rules.

Run "auth-service serve" to start the HTTP API. The other commands are
operator tools that share the service configuration.`,
	SilenceUsage: true,
}

// SetVersion sets the version for the root command. It is called from main
// with the value injected at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute runs the root command and exits with a code derived from the error.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "auth-service version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

func getExitCode(err error) int {
	var cfgErr *configError
	if errors.As(err, &cfgErr) {
		return ExitCodeConfig
	}
	return ExitCodeError
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newHashPasswordCmd())
	rootCmd.AddCommand(newTokenCmd())
	rootCmd.AddCommand(newPolicyCmd())
}
