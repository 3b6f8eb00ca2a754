package cli

import (
	"github.com/spf13/cobra"
)

// Execute arma el arbol de comandos y lo ejecuta.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adminctl",
		Short: "Operator tooling for the food admin backend",
		Long: `adminctl manages the admin account store: schema migrations, bootstrapping the single
admin account and resetting its password without the email flow.

Configuration is read from the environment (STORE_DRIVER, DATABASE_URL, SQLITE_PATH,
PASSWORD_HASHER, BCRYPT_COST) and from a .env file in the working directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newAdminCmd())

	return cmd
}
