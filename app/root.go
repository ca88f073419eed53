// Package app implements the main application commands.
package app

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "insite",
	Short: "insite is a multi-tenant geospatial application server",
	Long: `insite serves geospatial applications to authenticated users.
Requests are authenticated against a configurable chain of credential
engines (local, LDAP, SAML, OIDC, gateway headers, anonymous) and every
operation is authorized against the rights the user's roles confer.`,
	Args: cobra.OnlyValidArgs,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
