package letsched

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	SANITY_TIME_LIMIT = 10 * time.Second
	SANITY_MAX_NODES  = 200
)

// TestSanityCheck runs a generated system through heuristics, both goals,
// persistence and the result tables.
func TestSanityCheck(t *testing.T) {
	cfg := DefaultGeneratorConfig()
	cfg.NumTasks = 2
	cfg.NumDependencies = 1
	cfg.NumCores = 2
	cfg.NumDevices = 2
	cfg.MaxDuration = 1 * MS
	cfg.Seed = 3
	sys, err := NewGenerator(cfg).GenerateSystem()
	require.NoError(t, err)

	tasks, err := LowestUtilisation(sys.CoreStore, SortByUtilisation(sys.EntityStore), 1)
	require.NoError(t, err)
	fmt.Printf("lowest utilisation uses %d cores\n", CountUsedCores(tasks))

	dir := t.TempDir()
	for i, goal := range []Goal{GoalCores, GoalEndToEnd} {
		opts := DefaultOptions()
		opts.Goal = goal
		opts.TimeLimit = SANITY_TIME_LIMIT
		opts.MaxNodes = SANITY_MAX_NODES
		res, err := Schedule(context.Background(), sys, opts)
		require.NoError(t, err)
		require.True(t, res.HasSchedule(), "%s: %v", goal, res.Status)
		assertValidSchedule(t, sys.EntityStore, res.Schedule)

		path, counter, err := NextSystemPath(dir, "system", string(goal))
		require.NoError(t, err)
		require.NoError(t, SaveSystem(path, sys.WithSchedule(res.Schedule)))
		require.NoError(t, AppendResult(filepath.Join(dir, "results.csv"), NewResultRow(fmt.Sprintf("%d-%d", counter, i), sys, res)))

		fmt.Println("---------------")
		fmt.Print(res)
	}
	require.Len(t, readCSV(t, filepath.Join(dir, "results.csv")), 3)
}
