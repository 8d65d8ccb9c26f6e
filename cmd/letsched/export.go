package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"letsched"
	"letsched/milp"
)

var (
	exportGoal string
	exportOut  string
)

var exportCmd = &cobra.Command{
	Use:   "export-lp <system.json>",
	Short: "Write the model in CPLEX LP format",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportGoal, "goal", "g", "", "objective: c or e2e")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (stdout when empty)")
}

func runExport(cmd *cobra.Command, args []string) error {
	sys, err := letsched.LoadSystem(args[0])
	if err != nil {
		return err
	}
	goal := exportGoal
	if goal == "" {
		goal = cfg.Solver.Goal
	}
	opts, err := options(goal)
	if err != nil {
		return err
	}
	m, err := letsched.BuildModel(sys, opts)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if exportOut != "" {
		f, err := os.Create(exportOut)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return milp.WriteLP(w, m.Problem())
}
