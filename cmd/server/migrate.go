package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dogovor/internal/catalog"
	"dogovor/internal/config"
	"dogovor/internal/store"
)

func newMigrateCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create tables for every catalog entity",
		Long: `Creates tables, foreign keys and unique indexes derived from the entity catalog.
Existing objects are left untouched. With --dry-run the DDL is printed instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dryRun {
				cfg, err := config.FromFlags(cmd.Flags())
				if err != nil {
					return err
				}
				cat, err := catalog.Load(cfg.CatalogPath)
				if err != nil {
					return err
				}
				flavor, err := store.FlavorOf(cfg.DBDriver)
				if err != nil {
					return err
				}
				stmts, err := store.GenerateDDL(cat, flavor)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(stmts, ";\n\n")+";")
				return nil
			}

			a, err := bootstrap(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.cfg.AutoMigrate {
				// bootstrap уже применил схему
				return nil
			}
			return a.db.Migrate(cmd.Context(), a.svc.Catalog())
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print DDL without touching the database")
	return cmd
}
