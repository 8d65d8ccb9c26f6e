package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"letsched"
)

var (
	solveGoal  string
	solveIndex string
	solveSave  bool
)

var solveCmd = &cobra.Command{
	Use:   "solve <system.json>",
	Short: "Solve a system for one goal",
	Example: `  letsched solve system_config/system001.json
  letsched solve --goal e2e --save system_config/system001.json`,
	Args: cobra.ExactArgs(1),
	RunE: runSolve,
}

func init() {
	rootCmd.AddCommand(solveCmd)
	solveCmd.Flags().StringVarP(&solveGoal, "goal", "g", "", "objective: c (cores) or e2e (end-to-end delay)")
	solveCmd.Flags().StringVar(&solveIndex, "index", "", "row index for the result table (defaults to the file name)")
	solveCmd.Flags().BoolVar(&solveSave, "save", false, "save the scheduled system next to the input")
}

// signalContext is cancelled on SIGINT/SIGTERM; the solver then returns
// its best incumbent as a time-limited result.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runSolve(cmd *cobra.Command, args []string) error {
	sys, err := letsched.LoadSystem(args[0])
	if err != nil {
		return err
	}
	goal := solveGoal
	if goal == "" {
		goal = cfg.Solver.Goal
	}
	index := solveIndex
	if index == "" {
		index = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
	}
	res, err := solveAndRecord(sys, goal, index)
	if err != nil {
		return err
	}
	if solveSave && res.HasSchedule() {
		path, _, err := letsched.NextSystemPath(filepath.Dir(args[0]), index, string(res.Goal))
		if err != nil {
			return err
		}
		if err := letsched.SaveSystem(path, sys.WithSchedule(res.Schedule)); err != nil {
			return err
		}
		log.Info("saved schedule", zap.String("path", path))
	}
	return nil
}

// solveAndRecord schedules sys, prints the result and appends it to the
// goal's result table.
func solveAndRecord(sys *letsched.System, goal, index string) (*letsched.Result, error) {
	opts, err := options(goal)
	if err != nil {
		return nil, err
	}
	ctx, cancel := signalContext()
	defer cancel()

	log.Info("solving", zap.String("index", index), zap.String("goal", opts.Goal.Describe()), zap.Stringer("system", sys))
	res, err := letsched.Schedule(ctx, sys, opts)
	if err != nil {
		return nil, err
	}
	fmt.Print(res)

	table := filepath.Join(cfg.Output.ResultDir, fmt.Sprintf("min_%s_results.csv", res.Goal))
	if err := letsched.AppendResult(table, letsched.NewResultRow(index, sys, res)); err != nil {
		return nil, err
	}
	return res, nil
}
