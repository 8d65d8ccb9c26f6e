package letsched

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// ResultRow is one line of a solver result table.
type ResultRow struct {
	Index                   string
	Goal                    Goal
	SolutionTime            float64 // seconds
	Status                  string
	NumVariables            int
	NumConstraints          int
	NumDevices              int
	NumCores                int
	NumTasks                int
	NumDependencies         int
	NumInstances            int
	NumInstanceDependencies int
	Hyperperiod             int64
	Hyperoffset             int64
	Makespan                int64
	LargeN                  int64
	Utilisation             float64
	NumCoresUsed            int
	TotalDelay              int64
	AverageDelay            float64
	DelayStdDev             float64
	BottomDependencies      int
}

var resultHeader = []string{
	"index", "goal", "solution_time", "sol_status", "num_variables", "num_constraints",
	"num_devices", "num_cores", "num_tasks", "num_dependencies", "num_instances",
	"num_instance_dependencies", "hyperperiod", "hyperoffset", "makespan", "largeN",
	"utilisation", "num_cores_used", "total_delay", "average_delay", "delay_stddev",
	"bottom_dependencies",
}

func NewResultRow(index string, sys *System, res *Result) ResultRow {
	return ResultRow{
		Index:                   index,
		Goal:                    res.Goal,
		SolutionTime:            res.WallTime.Seconds(),
		Status:                  res.StatusName,
		NumVariables:            res.Diagnostics.Variables,
		NumConstraints:          res.Diagnostics.Constraints,
		NumDevices:              len(sys.DeviceStore),
		NumCores:                len(sys.CoreStore),
		NumTasks:                len(sys.EntityStore),
		NumDependencies:         len(sys.DependencyStore),
		NumInstances:            res.NumInstances,
		NumInstanceDependencies: res.NumInstanceDependencies,
		Hyperperiod:             res.Horizon.Hyperperiod,
		Hyperoffset:             res.Horizon.Hyperoffset,
		Makespan:                res.Horizon.Makespan,
		LargeN:                  res.Horizon.LargeN,
		Utilisation:             sys.Utilisation(),
		NumCoresUsed:            res.CoresUsed,
		TotalDelay:              res.Delays.Total,
		AverageDelay:            res.Delays.Average,
		DelayStdDev:             res.Delays.StdDev,
		BottomDependencies:      res.Delays.Bottom,
	}
}

func (r ResultRow) record() []string {
	return []string{
		r.Index,
		string(r.Goal),
		formatFloat(r.SolutionTime),
		r.Status,
		strconv.Itoa(r.NumVariables),
		strconv.Itoa(r.NumConstraints),
		strconv.Itoa(r.NumDevices),
		strconv.Itoa(r.NumCores),
		strconv.Itoa(r.NumTasks),
		strconv.Itoa(r.NumDependencies),
		strconv.Itoa(r.NumInstances),
		strconv.Itoa(r.NumInstanceDependencies),
		strconv.FormatInt(r.Hyperperiod, 10),
		strconv.FormatInt(r.Hyperoffset, 10),
		strconv.FormatInt(r.Makespan, 10),
		strconv.FormatInt(r.LargeN, 10),
		formatFloat(r.Utilisation),
		strconv.Itoa(r.NumCoresUsed),
		strconv.FormatInt(r.TotalDelay, 10),
		formatFloat(r.AverageDelay),
		formatFloat(r.DelayStdDev),
		strconv.Itoa(r.BottomDependencies),
	}
}

// HeuristicRow is one line of a heuristic result table. Result is 1 when the
// heuristic placed every task and 0 otherwise.
type HeuristicRow struct {
	OriginalFile string
	Policy       Heuristic
	Result       int
	CoreCount    int
}

var heuristicHeader = []string{"og_file_name", "policy", "result", "core_count"}

func (r HeuristicRow) record() []string {
	return []string{r.OriginalFile, r.Policy.Describe(), strconv.Itoa(r.Result), strconv.Itoa(r.CoreCount)}
}

// Describe names the policy the way result tables do.
func (h Heuristic) Describe() string {
	switch h {
	case LOWEST_UTILISATION:
		return "lowest_utilisation"
	case LOWEST_CORE_INDEX:
		return "lowest_core_index"
	}
	return string(h)
}

func AppendResult(path string, row ResultRow) error {
	return appendRecord(path, resultHeader, row.record())
}

func AppendHeuristicResult(path string, row HeuristicRow) error {
	return appendRecord(path, heuristicHeader, row.record())
}

// appendRecord appends one CSV record to path, writing header first when the
// file does not exist yet.
func appendRecord(path string, header, record []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("append %s: %w", path, err)
	}
	_, err := os.Stat(path)
	writeHeader := os.IsNotExist(err)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("append %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("append %s: %w", path, err)
		}
	}
	if err := w.Write(record); err != nil {
		return fmt.Errorf("append %s: %w", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("append %s: %w", path, err)
	}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
