package main

import (
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	var (
		search  string
		filter  string
		toggles []string
	)
	cmd := &cobra.Command{
		Use:   "list <entity>",
		Short: "Show rows of an entity with reference labels",
		Long: `Loads all rows of an entity, applies the search text and the field filter
("label|op|value"), then clicks the given column headers in order. The first
click on a column sorts it descending, the next one ascending.`,
		Example: `  $ dogovor list contracts --search поставка --sort total_amount`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			view, err := a.svc.Open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			rows := view.Search(search)
			if filter != "" {
				spec, err := parseFilter(filter)
				if err != nil {
					return err
				}
				rows = view.Filter(spec)
			}
			for _, f := range toggles {
				if rows, _, err = view.ToggleSort(f); err != nil {
					return err
				}
			}

			e := view.Entity()
			display, err := a.svc.DisplayRows(cmd.Context(), e.Name, rows)
			if err != nil {
				return err
			}
			printTable(cmd.OutOrStdout(), e.Label, e.Labels(), e.Columns(), display)
			return nil
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "Free-text search over all columns")
	cmd.Flags().StringVar(&filter, "filter", "", `Field filter "label|op|value"`)
	cmd.Flags().StringArrayVar(&toggles, "sort", nil, "Click a column header (repeatable)")
	return cmd
}
