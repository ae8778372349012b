package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/axiom-software-co/international-center-aspire-sub004/internal/executor"
	"github.com/axiom-software-co/international-center-aspire-sub004/internal/locks"
	"github.com/axiom-software-co/international-center-aspire-sub004/internal/planner"
)

var (
	applyDomain  string
	applyDryRun  bool
	applyVerbose bool
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Plan and apply pending migrations across domains",
	Long: "Builds a dependency-ordered migration plan over all enabled domains " +
		"and applies it. Exits 0 on full success, 1 if any domain fails.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.close()

		reg := a.reg
		if applyDomain != "" {
			reg, err = reg.Restrict([]string{applyDomain})
			if err != nil {
				return err
			}
		}

		var logger *log.Logger
		if applyVerbose {
			logger = log.New(os.Stdout, "[migrator] ", log.LstdFlags)
		} else {
			logger = log.New(os.Stderr, "[migrator] ", log.LstdFlags)
		}

		pl := planner.New(planner.Config{
			MaxParallelDomains: a.cfg.MaxParallelDomains,
			Environment:        a.cfg.Environment,
			Logger:             logger,
		})
		plan, err := pl.CreatePlan(cmd.Context(), reg, a.prov)
		if err != nil {
			return err
		}

		if applyVerbose || applyDryRun {
			for i, group := range plan.Groups {
				for _, dm := range group {
					fmt.Printf("group %d: %s (%d pending, ~%s)\n", i, dm.Domain, len(dm.Pending), dm.EstimatedDuration)
				}
			}
		}

		exec := executor.New(executor.Config{
			MaxRetryAttempts: a.cfg.MaxRetryAttempts,
			DomainTimeout:    a.cfg.DomainTimeout,
			Parallel:         a.cfg.ParallelExecution,
			DryRun:           applyDryRun,
			Environment:      a.cfg.Environment,
			AppliedBy:        a.cfg.AppliedBy,
			Logger:           logger,
		}, a.sink, locks.NewGuard())

		res, err := exec.Execute(cmd.Context(), plan, a.prov)
		if err != nil {
			fmt.Fprintf(os.Stderr, "completed: %v\nfailed: %s\nskipped: %v\n", res.Completed, res.FailedDomain, res.Skipped)
			return err
		}
		fmt.Printf("applied %d domain(s) in %s\n", len(res.Completed), res.Duration)
		return nil
	},
}

func init() {
	applyCmd.Flags().StringVar(&applyDomain, "domain", "", "apply a single domain only")
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "print the plan without applying")
	applyCmd.Flags().BoolVar(&applyVerbose, "verbose", false, "verbose execution logging")
	rootCmd.AddCommand(applyCmd)
}
