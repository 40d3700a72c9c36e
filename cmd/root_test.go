package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func execute(t *testing.T, cmd *cobra.Command, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSetVersion(t *testing.T) {
	SetVersion("1.2.3-test")
	assert.Equal(t, "1.2.3-test", GetVersion())
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "auth-service", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.True(t, rootCmd.SilenceUsage)
}

func TestSubcommands(t *testing.T) {
	found := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		found[c.Name()] = true
	}
	for _, name := range []string{"version", "serve", "hash-password", "token", "policy"} {
		assert.True(t, found[name], "missing subcommand %q", name)
	}
}

func TestVersionCommand(t *testing.T) {
	SetVersion("9.9.9")
	out, err := execute(t, newVersionCmd(), "")
	require.NoError(t, err)
	assert.Equal(t, "auth-service version 9.9.9\n", out)
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCodeError, getExitCode(errors.New("boom")))
	assert.Equal(t, ExitCodeConfig, getExitCode(&configError{err: errors.New("JWT_SECRET missing")}))
	assert.Equal(t, ExitCodeConfig, getExitCode(fmt.Errorf("serve: %w", &configError{err: errors.New("x")})))
}

func TestHashPassword(t *testing.T) {
	out, err := execute(t, newHashPasswordCmd(), "", "--cost", "4", "hunter2")
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("hunter2")))

	out, err = execute(t, newHashPasswordCmd(), "from-stdin\n", "--cost", "4")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(strings.TrimSpace(out)), []byte("from-stdin")))

	_, err = execute(t, newHashPasswordCmd(), "\n")
	assert.Error(t, err)
}

func TestTokenIssueInspect(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	out, err := execute(t, newTokenCmd(), "", "issue", "--user-id", "u-1", "--email", "alice@example.com", "--roles", "OWNER,VET")
	require.NoError(t, err)
	token := strings.TrimSpace(out)
	require.Equal(t, 2, strings.Count(token, "."))

	out, err = execute(t, newTokenCmd(), "", "inspect", token)
	require.NoError(t, err)
	assert.Contains(t, out, `"userId": "u-1"`)
	assert.Contains(t, out, `"email": "alice@example.com"`)
	assert.Contains(t, out, `"VET"`)
}

func TestTokenInspect_WrongSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	out, err := execute(t, newTokenCmd(), "", "issue", "--user-id", "u-1")
	require.NoError(t, err)

	t.Setenv("JWT_SECRET", strings.Repeat("z", 32))
	_, err = execute(t, newTokenCmd(), "", "inspect", strings.TrimSpace(out))
	assert.ErrorContains(t, err, "token rejected")
}

func TestTokenIssue_MissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := execute(t, newTokenCmd(), "", "issue", "--user-id", "u-1")

	var cfgErr *configError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestPolicyCheck(t *testing.T) {
	out, err := execute(t, newPolicyCmd(), "", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "ADMIN")
	assert.Contains(t, out, "GET /api/auth/users/:userId")
	assert.Contains(t, out, "policy ok")

	bad := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(bad, []byte(`
roles:
  - name: ADMIN
rules:
  - method: GET
    path: /api/things
    roles: [WIZARD]
`), 0o600))
	_, err = execute(t, newPolicyCmd(), "", "check", bad)
	assert.ErrorContains(t, err, "WIZARD")
}
