package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	statusDomain  string
	statusVerbose bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-domain applied/pending migration counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.close()

		domains := a.reg.Enabled()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "DOMAIN\tAPPLIED\tPENDING\tNEXT")
		fmt.Fprintln(w, "------\t-------\t-------\t----")
		for _, d := range domains {
			if statusDomain != "" && d.Name != statusDomain {
				continue
			}
			all, err := a.prov.ListAllMigrations(cmd.Context(), d.Name)
			if err != nil {
				return fmt.Errorf("status for %s: %w", d.Name, err)
			}
			applied, err := a.prov.ListAppliedMigrations(cmd.Context(), d.Name)
			if err != nil {
				return fmt.Errorf("status for %s: %w", d.Name, err)
			}
			appliedSet := make(map[string]bool, len(applied))
			for _, m := range applied {
				appliedSet[m] = true
			}
			var pending []string
			for _, m := range all {
				if !appliedSet[m] {
					pending = append(pending, m)
				}
			}
			next := "-"
			if len(pending) > 0 {
				if statusVerbose {
					next = strings.Join(pending, ",")
				} else {
					next = pending[0]
				}
			}
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", d.Name, len(applied), len(pending), next)
		}
		return w.Flush()
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusDomain, "domain", "", "show a single domain only")
	statusCmd.Flags().BoolVar(&statusVerbose, "verbose", false, "list every pending migration")
	rootCmd.AddCommand(statusCmd)
}
