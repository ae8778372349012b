package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	scriptDomain string
	scriptTarget string
)

var scriptCmd = &cobra.Command{
	Use:   "script",
	Short: "Print the reversal DDL for a domain without executing it",
	Long: "Generates the reversal script undoing every applied migration after " +
		"--target (or all of them when --target is omitted) and prints it to stdout.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if scriptDomain == "" {
			return fmt.Errorf("--domain is required")
		}
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.close()

		if _, err := a.reg.Get(scriptDomain); err != nil {
			return err
		}
		applied, err := a.prov.ListAppliedMigrations(cmd.Context(), scriptDomain)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Printf("-- domain %s has no applied migrations\n", scriptDomain)
			return nil
		}
		script, err := a.prov.GenerateReversalScript(cmd.Context(), scriptDomain, applied[len(applied)-1], scriptTarget)
		if err != nil {
			return err
		}
		fmt.Println(script)
		return nil
	},
}

func init() {
	scriptCmd.Flags().StringVar(&scriptDomain, "domain", "", "domain to generate the script for")
	scriptCmd.Flags().StringVar(&scriptTarget, "target", "", "roll back to this migration (default: everything)")
	rootCmd.AddCommand(scriptCmd)
}
