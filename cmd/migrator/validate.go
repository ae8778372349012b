package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/axiom-software-co/international-center-aspire-sub004/internal/planner"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate domain registry and dependency graph",
	Long: "Loads the domain registry, checks dependency references, and runs " +
		"cycle detection over the enabled domains. Exits 0 when valid.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.close()

		if err := planner.ValidateGraph(a.reg); err != nil {
			return err
		}
		fmt.Printf("%d domain(s) valid, %d enabled\n", len(a.reg.Names()), len(a.reg.Enabled()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
