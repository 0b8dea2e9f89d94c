package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dogovor/internal/catalog"
	"dogovor/internal/report"
)

func newReportCmd() *cobra.Command {
	var (
		filters []string
		sortBy  string
		dir     string
		showSQL bool
	)
	cmd := &cobra.Command{
		Use:   "report <key>",
		Short: "Run one of the registered reports",
		Long: `Runs a report by key (contract_details, planned, actual).
Up to two filters can be given as "label|op|value"; op is one of =, >=, <=, contains, starts.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			specs := make([]catalog.FilterSpec, 0, len(filters))
			for _, f := range filters {
				fs, err := parseFilter(f)
				if err != nil {
					return err
				}
				specs = append(specs, fs)
			}

			a, err := bootstrap(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if showSQL {
				def, err := a.svc.Reports().Get(args[0])
				if err != nil {
					return err
				}
				fr, err := report.NewBuilder(a.db.Flavor()).Build(def, specs, sortBy, dir)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), report.SQL(def, fr))
				fmt.Fprintf(cmd.OutOrStdout(), "-- args: %v\n", fr.Args)
				return nil
			}

			res, err := a.svc.RunReport(cmd.Context(), args[0], specs, sortBy, dir)
			if err != nil {
				return err
			}
			printTable(cmd.OutOrStdout(), res.Title, res.Columns, res.Columns, renderRows(res.Columns, res.Rows))
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&filters, "filter", "f", nil, `Filter "label|op|value" (repeatable, max 2)`)
	cmd.Flags().StringVar(&sortBy, "sort", "", "Sort by field label")
	cmd.Flags().StringVar(&dir, "dir", "asc", "Sort direction (asc/desc)")
	cmd.Flags().BoolVar(&showSQL, "sql", false, "Print the query and its arguments instead of running it")
	return cmd
}
