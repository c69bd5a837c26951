package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/smallbiznis/entitlement/internal/catalog"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var catalogFile string

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Validate or import the module catalog",
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a catalog file without touching the database",
	Long: `Check a catalog file without touching the database.

Example:
  entitlementd catalog validate --file catalog.yml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if catalogFile == "" {
			return errors.New("--file is required")
		}
		doc, err := catalog.Load(catalogFile)
		if err != nil {
			return err
		}
		if err := doc.Validate(); err != nil {
			return err
		}

		tiers := 0
		for _, m := range doc.Modules {
			tiers += len(m.Tiers)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "catalog %s is valid: %d modules, %d tiers\n", doc.Version, len(doc.Modules), tiers)
		return nil
	},
}

var catalogImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a catalog file into the database",
	Long: `Import a catalog file into the database.

Modules and tiers are upserted and every tier's feature set is replaced.
Re-running an import with the same file is a no-op.

Example:
  entitlementd catalog import --file catalog.yml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if catalogFile == "" {
			return errors.New("--file is required")
		}

		var importer *catalog.Importer
		app := fx.New(
			coreModules(),
			fx.Provide(catalog.NewImporter),
			fx.Populate(&importer),
		)
		if err := app.Err(); err != nil {
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if err := app.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = app.Stop(context.Background()) }()

		summary, err := importer.ImportFile(ctx, catalogFile)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported catalog %s: %d modules, %d tiers, %d features\n",
			summary.Version, summary.Modules, summary.Tiers, summary.Features)
		return nil
	},
}

func init() {
	catalogCmd.PersistentFlags().StringVarP(&catalogFile, "file", "f", "", "path to the catalog YAML file")
	catalogCmd.AddCommand(catalogValidateCmd)
	catalogCmd.AddCommand(catalogImportCmd)
	rootCmd.AddCommand(catalogCmd)
}
