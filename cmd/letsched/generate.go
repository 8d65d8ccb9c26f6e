package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"letsched"
)

var (
	generateCount int
	generateBase  string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate random systems",
	Example: `  letsched generate -n 10
  LETSCHED_GEN_UTILISATION=0.6 letsched generate --base util60`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().IntVarP(&generateCount, "count", "n", 1, "number of systems to generate")
	generateCmd.Flags().StringVar(&generateBase, "base", "system", "file name prefix")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	gcfg := generatorConfig(cfg.Generator)
	for i := 0; i < generateCount; i++ {
		g := letsched.NewGenerator(gcfg)
		gcfg.Seed++
		sys, err := g.GenerateSystem()
		if err != nil {
			return err
		}
		if err := sys.Validate(); err != nil {
			return fmt.Errorf("generated system is invalid: %w", err)
		}
		path, _, err := letsched.NextSystemPath(cfg.Output.SystemDir, generateBase, "gen")
		if err != nil {
			return err
		}
		if err := letsched.SaveSystem(path, sys); err != nil {
			return err
		}
		log.Info("generated system", zap.String("path", path), zap.Stringer("system", sys))
		fmt.Println(path)
	}
	return nil
}
