package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"letsched"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <system.json>",
	Short: "Print horizon, instance counts and core layout of a system",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	sys, err := letsched.LoadSystem(args[0])
	if err != nil {
		return err
	}
	if err := sys.Validate(); err != nil {
		return err
	}
	h, err := letsched.ComputeHorizon(sys.EntityStore)
	if err != nil {
		return err
	}
	fmt.Println(sys)
	fmt.Println(h)

	for _, ti := range letsched.ExpandInstances(sys.EntityStore, h) {
		fmt.Printf("  %s: %d instances\n", ti.Name, len(ti.Value))
	}

	byDevice := map[string][]string{}
	for _, c := range sys.CoreStore {
		byDevice[c.Device] = append(byDevice[c.Device], c.Name)
	}
	devices := maps.Keys(byDevice)
	slices.Sort(devices)
	for _, d := range devices {
		fmt.Printf("  %s: %v\n", d, byDevice[d])
	}
	return nil
}
