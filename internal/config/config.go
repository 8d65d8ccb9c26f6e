// Package config loads letsched settings from defaults, a YAML file,
// LETSCHED_* environment variables and command-line overrides, in that
// order of precedence.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Solver    SolverConfig    `yaml:"solver"`
	Heuristic HeuristicConfig `yaml:"heuristic"`
	Generator GeneratorConfig `yaml:"generator"`
	Output    OutputConfig    `yaml:"output"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type SolverConfig struct {
	Goal         string        `yaml:"goal" env:"LETSCHED_SOLVER_GOAL"`
	TimeLimit    time.Duration `yaml:"time_limit" env:"LETSCHED_SOLVER_TIME_LIMIT"`
	MaxNodes     int           `yaml:"max_nodes" env:"LETSCHED_SOLVER_MAX_NODES"`
	FixedTimings bool          `yaml:"fixed_timings" env:"LETSCHED_SOLVER_FIXED_TIMINGS"`
	Protocol     string        `yaml:"protocol" env:"LETSCHED_SOLVER_PROTOCOL"`
}

type HeuristicConfig struct {
	Policies       []string `yaml:"policies" env:"LETSCHED_HEURISTIC_POLICIES"`
	MaxUtilisation float64  `yaml:"max_utilisation" env:"LETSCHED_HEURISTIC_MAX_UTILISATION"`
}

// GeneratorConfig bounds random systems. Times are in ns.
type GeneratorConfig struct {
	Tasks            int     `yaml:"tasks" env:"LETSCHED_GEN_TASKS"`
	Utilisation      float64 `yaml:"utilisation" env:"LETSCHED_GEN_UTILISATION"`
	Dependencies     int     `yaml:"dependencies" env:"LETSCHED_GEN_DEPENDENCIES"`
	MaxInitialOffset int64   `yaml:"max_initial_offset" env:"LETSCHED_GEN_MAX_INITIAL_OFFSET"`
	MaxWcet          int64   `yaml:"max_wcet" env:"LETSCHED_GEN_MAX_WCET"`
	MaxDuration      int64   `yaml:"max_duration" env:"LETSCHED_GEN_MAX_DURATION"`
	Cores            int     `yaml:"cores" env:"LETSCHED_GEN_CORES"`
	Devices          int     `yaml:"devices" env:"LETSCHED_GEN_DEVICES"`
	MaxProtocolDelay int64   `yaml:"max_protocol_delay" env:"LETSCHED_GEN_MAX_PROTOCOL_DELAY"`
	MaxNetworkDelay  int64   `yaml:"max_network_delay" env:"LETSCHED_GEN_MAX_NETWORK_DELAY"`
	Seed             uint64  `yaml:"seed" env:"LETSCHED_GEN_SEED"`
}

type OutputConfig struct {
	SystemDir string `yaml:"system_dir" env:"LETSCHED_OUTPUT_SYSTEM_DIR"`
	ResultDir string `yaml:"result_dir" env:"LETSCHED_OUTPUT_RESULT_DIR"`
}

type LoggingConfig struct {
	Level      string `yaml:"level" env:"LETSCHED_LOG_LEVEL"`
	Format     string `yaml:"format" env:"LETSCHED_LOG_FORMAT"`
	Output     string `yaml:"output" env:"LETSCHED_LOG_OUTPUT"`
	FilePath   string `yaml:"file_path" env:"LETSCHED_LOG_FILE"`
	MaxSize    int    `yaml:"max_size" env:"LETSCHED_LOG_MAX_SIZE"` // MB
	MaxBackups int    `yaml:"max_backups" env:"LETSCHED_LOG_MAX_BACKUPS"`
	MaxAge     int    `yaml:"max_age" env:"LETSCHED_LOG_MAX_AGE"` // days
}

func DefaultConfig() *Config {
	return &Config{
		Solver: SolverConfig{
			Goal:      "c",
			TimeLimit: 5 * time.Minute,
			Protocol:  "tcp",
		},
		Heuristic: HeuristicConfig{
			Policies:       []string{"lu", "lci"},
			MaxUtilisation: 1,
		},
		Generator: GeneratorConfig{
			Tasks:            5,
			Dependencies:     -1,
			MaxInitialOffset: 2_000_000,
			MaxWcet:          1_000_000,
			MaxDuration:      8_000_000,
			Cores:            3,
			Devices:          2,
			MaxProtocolDelay: 600_000,
			MaxNetworkDelay:  1_000_000,
			Seed:             1,
		},
		Output: OutputConfig{
			SystemDir: "system_config",
			ResultDir: "results",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			Output:     "stdout",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
		},
	}
}

// Loader handles configuration loading from multiple sources.
type Loader struct {
	configPath string
	cmdArgs    map[string]string
}

func NewLoader() *Loader {
	return &Loader{cmdArgs: make(map[string]string)}
}

func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithCmdArgs sets dot-path overrides such as "solver.goal" -> "e2e".
func (l *Loader) WithCmdArgs(args map[string]string) *Loader {
	l.cmdArgs = args
	return l
}

// Load applies defaults < YAML file < environment < command-line overrides
// and validates the result.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}
	if err := applyEnvToStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("apply environment: %w", err)
	}
	for key, value := range l.cmdArgs {
		if err := setConfigValue(cfg, key, value); err != nil {
			return nil, fmt.Errorf("apply %s: %w", key, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnvToStruct(v reflect.Value) error {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)
		if field.Kind() == reflect.Struct {
			if err := applyEnvToStruct(field); err != nil {
				return err
			}
			continue
		}
		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}
		envValue := os.Getenv(envTag)
		if envValue == "" {
			continue
		}
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("%s -> %s: %w", envTag, fieldType.Name, err)
		}
	}
	return nil
}

// setConfigValue sets a field by its dot-separated yaml path.
func setConfigValue(cfg *Config, path, value string) error {
	v := reflect.ValueOf(cfg).Elem()
	parts := strings.Split(path, ".")
	for i, part := range parts {
		field, ok := fieldByYAMLName(v, part)
		if !ok {
			return fmt.Errorf("unknown config path %q", path)
		}
		if i == len(parts)-1 {
			return setFieldValue(field, value)
		}
		if field.Kind() != reflect.Struct {
			return fmt.Errorf("%s is a %s, not a section", part, field.Kind())
		}
		v = field
	}
	return nil
}

func fieldByYAMLName(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("yaml"), ",")[0]
		if tag == name || strings.EqualFold(t.Field(i).Name, name) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return fmt.Errorf("field cannot be set")
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.SetInt(int64(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(i)
	case reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid unsigned integer: %w", err)
		}
		field.SetUint(u)
	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid float: %w", err)
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid bool: %w", err)
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice of %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		field.Set(reflect.ValueOf(parts))
	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}
	return nil
}

func (c *Config) Serialize() ([]byte, error) {
	return yaml.Marshal(c)
}

// ParseConfig parses YAML on top of the defaults.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Clone() *Config {
	clone := *c
	clone.Heuristic.Policies = append([]string(nil), c.Heuristic.Policies...)
	return &clone
}
