package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/axiom-software-co/international-center-aspire-sub004/internal/health"
	"github.com/axiom-software-co/international-center-aspire-sub004/internal/locks"
	"github.com/axiom-software-co/international-center-aspire-sub004/internal/rollback"
)

var rollbackYes bool

var rollbackCmd = &cobra.Command{
	Use:   "rollback DOMAIN TARGET_MIGRATION",
	Short: "Roll a domain back to a target migration",
	Long: "Plans a rollback of DOMAIN to TARGET_MIGRATION, prints the plan with " +
		"its risk level, and executes it when --yes is given. Without --yes only " +
		"the plan is printed.",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		domain, target := args[0], args[1]

		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.close()

		pl := rollback.NewPlanner(a.reg, nil)
		plan, err := pl.CreateRollbackPlan(cmd.Context(), domain, target, a.prov)
		if err != nil {
			return err
		}

		fmt.Printf("rollback plan for %s -> %s\n", plan.Domain, plan.TargetMigration)
		fmt.Printf("  migrations to undo: %s\n", strings.Join(plan.MigrationsToRollback, ", "))
		fmt.Printf("  affected tables:    %s\n", strings.Join(plan.AffectedTables, ", "))
		fmt.Printf("  dependent domains:  %s\n", orDash(strings.Join(plan.DependentDomains, ", ")))
		fmt.Printf("  estimated duration: %s\n", plan.EstimatedDuration)
		fmt.Printf("  risk level:         %s\n", plan.Risk)

		if !rollbackYes {
			fmt.Println("\nre-run with --yes to execute")
			return nil
		}

		cp, err := a.checkpointer(cmd)
		if err != nil {
			return err
		}
		exec := rollback.NewExecutor(rollback.ExecutorConfig{
			Environment: a.cfg.Environment,
			AppliedBy:   a.cfg.AppliedBy,
		}, a.sink, locks.NewGuard(), cp, health.NewPGInspector(a.db))

		if err := exec.ExecuteRollback(cmd.Context(), plan, a.prov); err != nil {
			return err
		}
		fmt.Printf("rolled back %s to %s\n", plan.Domain, plan.TargetMigration)
		return nil
	},
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	rollbackCmd.Flags().BoolVar(&rollbackYes, "yes", false, "execute the rollback (default: plan only)")
	rootCmd.AddCommand(rollbackCmd)
}
