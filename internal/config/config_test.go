package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deserialize(serialize(config)) == config
func TestConfigRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("config round-trip preserves data", prop.ForAll(
		func(cfg *Config) bool {
			data, err := cfg.Serialize()
			if err != nil {
				return false
			}
			parsed, err := ParseConfig(data)
			if err != nil {
				return false
			}
			return assert.ObjectsAreEqual(cfg, parsed)
		},
		genConfig(),
	))

	properties.TestingRun(t)
}

func genConfig() gopter.Gen {
	return gopter.CombineGens(
		gen.OneConstOf("c", "e2e"),
		gen.IntRange(1, 3600),
		gen.IntRange(0, 100000),
		gen.Bool(),
		gen.OneConstOf("tcp", "udp"),
		gen.OneConstOf([]string{"lu"}, []string{"lci"}, []string{"lu", "lci"}),
		gen.Float64Range(0.1, 1),
		gen.IntRange(1, 50),
		gen.Float64Range(0, 4),
		gen.IntRange(-1, 100),
		gen.UInt64(),
		gen.OneConstOf("debug", "info", "warn", "error"),
		gen.OneConstOf("console", "json"),
	).Map(func(values []interface{}) *Config {
		cfg := DefaultConfig()
		cfg.Solver.Goal = values[0].(string)
		cfg.Solver.TimeLimit = time.Duration(values[1].(int)) * time.Second
		cfg.Solver.MaxNodes = values[2].(int)
		cfg.Solver.FixedTimings = values[3].(bool)
		cfg.Solver.Protocol = values[4].(string)
		cfg.Heuristic.Policies = values[5].([]string)
		cfg.Heuristic.MaxUtilisation = values[6].(float64)
		cfg.Generator.Tasks = values[7].(int)
		cfg.Generator.Utilisation = values[8].(float64)
		cfg.Generator.Dependencies = values[9].(int)
		cfg.Generator.Seed = values[10].(uint64)
		cfg.Logging.Level = values[11].(string)
		cfg.Logging.Format = values[12].(string)
		return cfg
	})
}

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "letsched.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
solver:
  goal: c
  time_limit: 30s
  max_nodes: 10
heuristic:
  max_utilisation: 0.9
logging:
  level: debug
`), 0o644))

	t.Setenv("LETSCHED_SOLVER_GOAL", "e2e")
	t.Setenv("LETSCHED_HEURISTIC_POLICIES", "lci, lu")
	t.Setenv("LETSCHED_GEN_SEED", "42")

	cfg, err := NewLoader().
		WithConfigPath(path).
		WithCmdArgs(map[string]string{"solver.max_nodes": "500", "output.result_dir": "out"}).
		Load()
	require.NoError(t, err)

	assert.Equal(t, "e2e", cfg.Solver.Goal)
	assert.Equal(t, 30*time.Second, cfg.Solver.TimeLimit)
	assert.Equal(t, 500, cfg.Solver.MaxNodes)
	assert.Equal(t, 0.9, cfg.Heuristic.MaxUtilisation)
	assert.Equal(t, []string{"lci", "lu"}, cfg.Heuristic.Policies)
	assert.Equal(t, uint64(42), cfg.Generator.Seed)
	assert.Equal(t, "out", cfg.Output.ResultDir)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "tcp", cfg.Solver.Protocol)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath(filepath.Join(t.TempDir(), "absent.yaml")).Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadRejects(t *testing.T) {
	_, err := NewLoader().WithCmdArgs(map[string]string{"solver.nope": "1"}).Load()
	assert.ErrorContains(t, err, "unknown config path")

	_, err = NewLoader().WithCmdArgs(map[string]string{"solver.time_limit": "soon"}).Load()
	assert.ErrorContains(t, err, "invalid duration")

	t.Setenv("LETSCHED_SOLVER_MAX_NODES", "many")
	_, err = NewLoader().Load()
	assert.ErrorContains(t, err, "LETSCHED_SOLVER_MAX_NODES")
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Solver.Goal = "fastest"
	cfg.Solver.TimeLimit = 0
	cfg.Heuristic.Policies = []string{"random"}
	cfg.Logging.Output = "file"

	err := cfg.Validate()
	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	fields := make([]string, len(verrs))
	for i, e := range verrs {
		fields[i] = e.Field
	}
	assert.Equal(t, []string{"solver.goal", "solver.time_limit", "heuristic.policies", "logging.file_path"}, fields)
	assert.Contains(t, err.Error(), `unknown goal "fastest"`)
}

func TestClone(t *testing.T) {
	cfg := DefaultConfig()
	clone := cfg.Clone()
	clone.Heuristic.Policies[0] = "lci"
	clone.Solver.Goal = "e2e"
	assert.Equal(t, "lu", cfg.Heuristic.Policies[0])
	assert.Equal(t, "c", cfg.Solver.Goal)
}
