package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/petclinic/auth-service/internal/core/domain"
	"github.com/petclinic/auth-service/internal/core/service"
	"github.com/petclinic/auth-service/internal/pkg/config"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue or inspect session tokens",
		Long: `Operator helpers for session tokens. Both subcommands sign and verify
with JWT_SECRET and AUTH_ISSUER from the service configuration.`,
	}
	cmd.AddCommand(newTokenIssueCmd())
	cmd.AddCommand(newTokenInspectCmd())
	return cmd
}

func loadTokenManager(ctx context.Context, ttl time.Duration) (*service.TokenManager, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, &configError{err: err}
	}
	if ttl <= 0 {
		ttl = cfg.Auth.TokenTTL()
	}
	return service.NewTokenManager(service.TokenConfig{
		Secret:          []byte(cfg.Auth.JWTSecret),
		Issuer:          cfg.Auth.Issuer,
		SessionTTL:      ttl,
		VerificationTTL: cfg.Auth.VerificationTTL,
	}, nil), nil
}

func newTokenIssueCmd() *cobra.Command {
	var (
		userID string
		email  string
		roles  []string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Sign a session token for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(userID) == "" {
				return errors.New("--user-id is required")
			}
			tokens, err := loadTokenManager(cmd.Context(), ttl)
			if err != nil {
				return err
			}
			token, _, err := tokens.Issue(&domain.User{ID: userID, Email: email, Roles: roles})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "Subject user id")
	cmd.Flags().StringVar(&email, "email", "", "Subject email")
	cmd.Flags().StringSliceVar(&roles, "roles", []string{domain.DefaultRole}, "Roles to embed")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Lifetime (defaults to AUTH_TOKEN_TTL_MINUTES)")
	return cmd
}

type inspectOutput struct {
	TokenID   string    `json:"tokenId"`
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Roles     []string  `json:"roles"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func newTokenInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <token>",
		Short: "Validate a session token and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens, err := loadTokenManager(cmd.Context(), 0)
			if err != nil {
				return err
			}
			claims, err := tokens.Validate(strings.TrimSpace(args[0]), domain.PurposeSession)
			if err != nil {
				return fmt.Errorf("token rejected: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(inspectOutput{
				TokenID:   claims.TokenID,
				UserID:    claims.UserID,
				Email:     claims.Subject,
				Roles:     claims.Roles,
				IssuedAt:  claims.IssuedAt,
				ExpiresAt: claims.ExpiresAt,
			})
		},
	}
}
