package config

import (
	"fmt"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return "configuration validation failed:\n  - " + strings.Join(msgs, "\n  - ")
}

var (
	validGoals      = []string{"c", "cores", "core", "e2e", "delay", "end-to-end"}
	validPolicies   = []string{"lu", "lci", "lc", "lowest-utilisation", "lowest_utilisation", "lowest-core-index", "lowest_core_index"}
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"console", "json"}
	validLogOutputs = []string{"stdout", "file", "both"}
)

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if !oneOf(c.Solver.Goal, validGoals) {
		add("solver.goal", "unknown goal %q", c.Solver.Goal)
	}
	if c.Solver.TimeLimit <= 0 {
		add("solver.time_limit", "must be positive")
	}
	if c.Solver.MaxNodes < 0 {
		add("solver.max_nodes", "must not be negative")
	}
	if c.Solver.Protocol == "" {
		add("solver.protocol", "must not be empty")
	}

	for _, p := range c.Heuristic.Policies {
		if !oneOf(p, validPolicies) {
			add("heuristic.policies", "unknown policy %q", p)
		}
	}
	if c.Heuristic.MaxUtilisation <= 0 {
		add("heuristic.max_utilisation", "must be positive")
	}

	g := c.Generator
	if g.Tasks < 0 || g.Utilisation < 0 {
		add("generator", "tasks and utilisation must not be negative")
	}
	if g.Tasks == 0 && g.Utilisation == 0 {
		add("generator", "either tasks or utilisation must be set")
	}
	if g.MaxDuration < 1 || g.MaxWcet < 0 || g.MaxInitialOffset < 0 {
		add("generator", "task bounds must be non-negative with max_duration >= 1")
	}
	if g.Cores < 1 || g.Devices < 1 {
		add("generator", "cores and devices must be positive")
	}
	if g.MaxProtocolDelay < 0 || g.MaxNetworkDelay < 0 {
		add("generator", "delays must not be negative")
	}

	if c.Output.SystemDir == "" || c.Output.ResultDir == "" {
		add("output", "directories must not be empty")
	}

	if !oneOf(c.Logging.Level, validLogLevels) {
		add("logging.level", "unknown level %q", c.Logging.Level)
	}
	if !oneOf(c.Logging.Format, validLogFormats) {
		add("logging.format", "unknown format %q", c.Logging.Format)
	}
	if !oneOf(c.Logging.Output, validLogOutputs) {
		add("logging.output", "unknown output %q", c.Logging.Output)
	}
	if c.Logging.Output != "stdout" && c.Logging.FilePath == "" {
		add("logging.file_path", "required when logging to a file")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func oneOf(s string, valid []string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, v := range valid {
		if s == v {
			return true
		}
	}
	return false
}
