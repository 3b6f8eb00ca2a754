package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"food-admin/internal/bootstrap"
	"food-admin/internal/config"
	"food-admin/internal/repository"
	"food-admin/internal/service"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage the admin account",
		Long:  "Create, inspect and reset the password of the single admin account.",
	}

	cmd.AddCommand(newAdminCreateCmd())
	cmd.AddCommand(newAdminShowCmd())
	cmd.AddCommand(newAdminPasswdCmd())

	return cmd
}

// ---------- admin create ----------

func newAdminCreateCmd() *cobra.Command {
	var (
		email    string
		password string
		name     string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create the admin account",
		Example: `  adminctl admin create --email admin@example.com --name Admin --password secret
  adminctl admin create --email admin@example.com --name Admin  # prompts for password`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				pw, err := promptPassword(cmd.OutOrStdout())
				if err != nil {
					return err
				}
				password = pw
			}
			return withAuth(cmd.Context(), func(ctx context.Context, auth *service.AuthService) error {
				account, err := auth.Register(ctx, service.RegisterInput{Name: name, Email: email, Password: password})
				switch {
				case errors.Is(err, repository.ErrAdminExists):
					return fmt.Errorf("an admin account already exists")
				case errors.Is(err, repository.ErrEmailInUse):
					return fmt.Errorf("email %q is already in use", email)
				case err != nil:
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created admin %q (%s)\n", account.Email, account.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Admin email address (required)")
	cmd.Flags().StringVar(&name, "name", "", "Admin display name (required)")
	cmd.Flags().StringVar(&password, "password", "", "Admin password (prompted if omitted)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

// ---------- admin show ----------

func newAdminShowCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the admin account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withAuth(cmd.Context(), func(ctx context.Context, auth *service.AuthService) error {
				account, err := auth.GetAccountByEmail(ctx, email)
				if errors.Is(err, repository.ErrNotFound) {
					return fmt.Errorf("no account with email %q", email)
				}
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					ID          string `json:"id"`
					Email       string `json:"email"`
					Name        string `json:"name"`
					Role        string `json:"role"`
					ResetActive bool   `json:"reset_active"`
				}{account.ID, account.Email, account.Name, account.Role, account.HasActiveReset()})
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Admin email address (required)")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

// ---------- admin passwd ----------

func newAdminPasswdCmd() *cobra.Command {
	var (
		email    string
		password string
	)

	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Set a new admin password and cancel any pending reset",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				pw, err := promptPassword(cmd.OutOrStdout())
				if err != nil {
					return err
				}
				password = pw
			}
			return withAuth(cmd.Context(), func(ctx context.Context, auth *service.AuthService) error {
				err := auth.SetPassword(ctx, email, password)
				if errors.Is(err, repository.ErrNotFound) {
					return fmt.Errorf("no account with email %q", email)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Password updated for %q\n", email)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Admin email address (required)")
	cmd.Flags().StringVar(&password, "password", "", "New password (prompted if omitted)")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func withAuth(ctx context.Context, fn func(ctx context.Context, auth *service.AuthService) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.LoadStoreConfig()
	if err != nil {
		return err
	}
	logger := zap.NewNop()

	store, err := bootstrap.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	auth, err := bootstrap.NewOperatorAuth(cfg, logger, store.Admins)
	if err != nil {
		return err
	}
	return fn(ctx, auth)
}

func promptPassword(out io.Writer) (string, error) {
	fmt.Fprint(out, "Password: ")
	pwBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Fprintln(out)

	fmt.Fprint(out, "Confirm password: ")
	confirmBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", fmt.Errorf("failed to read confirmation: %w", err)
	}
	fmt.Fprintln(out)

	if string(pwBytes) != string(confirmBytes) {
		return "", fmt.Errorf("passwords do not match")
	}
	if strings.TrimSpace(string(pwBytes)) == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	return string(pwBytes), nil
}
