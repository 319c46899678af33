package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testdata = "../../internal/graphfile/testdata"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "lower "+version+"\n", out)
}

func TestOps(t *testing.T) {
	out, err := execute(t, "ops")
	require.NoError(t, err)
	assert.Contains(t, out, "OPERATOR")
	assert.Contains(t, out, "aten::convolution")
	assert.Contains(t, out, "prim::Constant")
}

func TestEnv(t *testing.T) {
	t.Setenv("LOWER_PARALLEL", "3")
	out, err := execute(t, "env")
	require.NoError(t, err)
	assert.Contains(t, out, "LOWER_PARALLEL")
	assert.Contains(t, out, "LOWER_OUTPUT_DIR")
}

func TestCompileToStdout(t *testing.T) {
	t.Setenv("LOWER_OUTPUT_DIR", "")
	out, err := execute(t, "compile", filepath.Join(testdata, "mlp.yaml"), filepath.Join(testdata, "conv.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "mlp")
	assert.Contains(t, out, "conv_block")
	assert.Less(t, bytes.Index([]byte(out), []byte("mlp")), bytes.Index([]byte(out), []byte("conv_block")))
}

func TestCompileToDir(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "compile", "--out", dir, "--run", filepath.Join(testdata, "mlp.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "wrote")
	assert.Contains(t, out, "mlp result 0:")
	assert.Contains(t, out, "mlp result 1:")

	data, err := os.ReadFile(filepath.Join(dir, "mlp.hlo"))
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestCompileErrors(t *testing.T) {
	_, err := execute(t, "compile")
	require.Error(t, err)

	_, err = execute(t, "compile", filepath.Join(testdata, "missing.yaml"))
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("name: g\ninputs: [{name: x, dtype: f32, shape: [1]}]\nnodes:\n  - {op: aten::relu, inputs: [y], outputs: [z]}\nreturn: [z]\n"), 0o644))
	_, err = execute(t, "compile", bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `undefined value "y"`)
}
