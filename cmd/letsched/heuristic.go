package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"letsched"
)

var (
	heuristicPolicies []string
	heuristicSolve    bool
)

var heuristicCmd = &cobra.Command{
	Use:   "heuristic <system.json>...",
	Short: "Assign cores with a bin-packing heuristic",
	Long: `Assigns every task to a core with the lowest-utilisation or
lowest-core-index policy, records the outcome and saves the pinned system.
With --solve the pinned system is then solved for end-to-end delay.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runHeuristic,
}

func init() {
	rootCmd.AddCommand(heuristicCmd)
	heuristicCmd.Flags().StringSliceVarP(&heuristicPolicies, "policy", "p", nil, "policies to run (lu, lci)")
	heuristicCmd.Flags().BoolVar(&heuristicSolve, "solve", false, "solve each pinned system for end-to-end delay")
}

func runHeuristic(cmd *cobra.Command, args []string) error {
	names := heuristicPolicies
	if len(names) == 0 {
		names = cfg.Heuristic.Policies
	}
	policies := make([]letsched.Heuristic, 0, len(names))
	for _, n := range names {
		h, err := letsched.ParseHeuristic(n)
		if err != nil {
			return err
		}
		policies = append(policies, h)
	}

	for _, path := range args {
		sys, err := letsched.LoadSystem(path)
		if err != nil {
			return err
		}
		for _, h := range policies {
			if err := applyHeuristic(path, sys, h); err != nil {
				return err
			}
		}
	}
	return nil
}

func applyHeuristic(path string, sys *letsched.System, h letsched.Heuristic) error {
	row := letsched.HeuristicRow{OriginalFile: filepath.Base(path), Policy: h}
	table := filepath.Join(cfg.Output.ResultDir, h.Describe()+"_results.csv")

	tasks, err := h.Apply(sys.CoreStore, sys.EntityStore, cfg.Heuristic.MaxUtilisation)
	if err != nil {
		log.Warn("heuristic failed", zap.String("file", row.OriginalFile), zap.String("policy", h.Describe()), zap.Error(err))
		return letsched.AppendHeuristicResult(table, row)
	}
	row.Result = 1
	row.CoreCount = letsched.CountUsedCores(tasks)
	if err := letsched.AppendHeuristicResult(table, row); err != nil {
		return err
	}
	fmt.Printf("%s %s: %d cores\n", row.OriginalFile, h.Describe(), row.CoreCount)

	pinned := sys.WithTasks(tasks)
	base := strings.TrimSuffix(row.OriginalFile, filepath.Ext(row.OriginalFile))
	out, counter, err := letsched.NextSystemPath(cfg.Output.SystemDir, base, string(h))
	if err != nil {
		return err
	}
	if err := letsched.SaveSystem(out, pinned); err != nil {
		return err
	}
	if !heuristicSolve {
		return nil
	}
	_, err = solveAndRecord(pinned, string(letsched.GoalEndToEnd), fmt.Sprintf("%s-%s-%d", base, h, counter))
	return err
}
