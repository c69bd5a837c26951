package main

import (
	"github.com/smallbiznis/entitlement/internal/catalog"
	"github.com/smallbiznis/entitlement/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the entitlement HTTP service",
	Long: `Run the entitlement HTTP service.

On start the schema is migrated, the catalog file named by CATALOG_PATH is
imported when set, and startup fails unless every module has exactly one
default tier.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := fx.New(
			coreModules(),
			resolverModules(),
			catalog.Module,
			server.Module,
		)
		if err := app.Err(); err != nil {
			return err
		}
		app.Run()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
