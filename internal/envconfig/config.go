// Package envconfig reads process configuration from LOWER_* environment
// variables. Values are read on every call so tests can override them with
// t.Setenv.
package envconfig

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/born-ml/lower/internal/hlo"
)

// Var returns an environment variable stripped of leading and trailing
// quotes or spaces.
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}

// LogLevel returns the log level from LOWER_DEBUG. "1" or "true" selects
// debug; other integers n select level -4n, so 2 enables trace records.
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("LOWER_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}
	return level
}

// Precision returns the default precision for matrix products and
// convolutions from LOWER_PRECISION.
func Precision() hlo.Precision {
	if s := Var("LOWER_PRECISION"); s != "" {
		p, err := hlo.ParsePrecision(s)
		if err != nil {
			slog.Warn("invalid environment variable, using default", "key", "LOWER_PRECISION", "value", s, "default", hlo.PrecisionDefault)
			return hlo.PrecisionDefault
		}
		return p
	}
	return hlo.PrecisionDefault
}

var (
	// DumpGraph includes the graph text in translation errors.
	DumpGraph = BoolWithDefault("LOWER_DUMP_GRAPH")
	// Parallel bounds how many graphs the CLI translates at once.
	Parallel = Uint("LOWER_PARALLEL", uint(runtime.NumCPU()))
	// OutputDir is where the CLI writes computation dumps when set.
	OutputDir = String("LOWER_OUTPUT_DIR")
)

// BoolWithDefault returns a reader for a boolean variable. Unparsable
// non-empty values count as true.
func BoolWithDefault(k string) func(defaultValue bool) bool {
	return func(defaultValue bool) bool {
		if s := Var(k); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return true
			}
			return b
		}
		return defaultValue
	}
}

// Bool returns a reader for a boolean variable that defaults to false.
func Bool(k string) func() bool {
	withDefault := BoolWithDefault(k)
	return func() bool {
		return withDefault(false)
	}
}

// String returns a reader for a string variable.
func String(s string) func() string {
	return func() string {
		return Var(s)
	}
}

// Uint returns a reader for an unsigned integer variable. Invalid values
// are logged and replaced by defaultValue.
func Uint(key string, defaultValue uint) func() uint {
	return func() uint {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return uint(n)
			}
		}
		return defaultValue
	}
}

// EnvVar describes one configuration variable and its effective value.
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap returns every variable with its effective value.
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"LOWER_DEBUG":      {"LOWER_DEBUG", LogLevel(), "Show additional debug information (e.g. LOWER_DEBUG=1)"},
		"LOWER_PRECISION":  {"LOWER_PRECISION", Precision(), "Precision of matrix products and convolutions: default, high, highest"},
		"LOWER_PARALLEL":   {"LOWER_PARALLEL", Parallel(), "Maximum number of graphs translated concurrently"},
		"LOWER_DUMP_GRAPH": {"LOWER_DUMP_GRAPH", DumpGraph(true), "Include the graph text in translation errors (default true)"},
		"LOWER_OUTPUT_DIR": {"LOWER_OUTPUT_DIR", OutputDir(), "Directory for computation dumps written by the CLI"},
	}
}

// Values returns the effective values rendered as strings.
func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}
