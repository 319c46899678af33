package envconfig

import (
	"log/slog"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/born-ml/lower/internal/hlo"
)

func TestLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"false": slog.LevelInfo,
		"t":     slog.LevelDebug,
		"1":     slog.LevelDebug,
		"2":     slog.Level(-8),
		"-1":    slog.LevelWarn,
		"bogus": slog.LevelInfo,
	}
	for v, want := range cases {
		t.Run(v, func(t *testing.T) {
			t.Setenv("LOWER_DEBUG", v)
			assert.Equal(t, want, LogLevel())
		})
	}
}

func TestPrecision(t *testing.T) {
	cases := map[string]hlo.Precision{
		"":          hlo.PrecisionDefault,
		"high":      hlo.PrecisionHigh,
		"'HIGHEST'": hlo.PrecisionHighest,
		"fastest":   hlo.PrecisionDefault,
	}
	for v, want := range cases {
		t.Run(v, func(t *testing.T) {
			t.Setenv("LOWER_PRECISION", v)
			assert.Equal(t, want, Precision())
		})
	}
}

func TestBool(t *testing.T) {
	cases := map[string]bool{
		"":      false,
		"true":  true,
		"false": false,
		"1":     true,
		"0":     false,
		"yes":   true, // unparsable values count as set
	}
	for v, want := range cases {
		t.Run(v, func(t *testing.T) {
			t.Setenv("LOWER_TEST_BOOL", v)
			assert.Equal(t, want, Bool("LOWER_TEST_BOOL")())
		})
	}

	t.Setenv("LOWER_DUMP_GRAPH", "")
	assert.True(t, DumpGraph(true))
	t.Setenv("LOWER_DUMP_GRAPH", "false")
	assert.False(t, DumpGraph(true))
}

func TestUint(t *testing.T) {
	cases := map[string]uint{
		"":     uint(runtime.NumCPU()),
		"4":    4,
		"-1":   uint(runtime.NumCPU()),
		"many": uint(runtime.NumCPU()),
	}
	for v, want := range cases {
		t.Run(v, func(t *testing.T) {
			t.Setenv("LOWER_PARALLEL", v)
			assert.Equal(t, want, Parallel())
		})
	}
}

func TestVarTrimsQuotes(t *testing.T) {
	t.Setenv("LOWER_OUTPUT_DIR", ` "/tmp/out" `)
	assert.Equal(t, "/tmp/out", OutputDir())
}

func TestAsMap(t *testing.T) {
	t.Setenv("LOWER_PRECISION", "high")
	t.Setenv("LOWER_PARALLEL", "3")
	m := AsMap()
	assert.Len(t, m, 5)
	assert.Equal(t, hlo.PrecisionHigh, m["LOWER_PRECISION"].Value)
	assert.Equal(t, uint(3), m["LOWER_PARALLEL"].Value)
	assert.Equal(t, "HIGH", Values()["LOWER_PRECISION"])
}
