package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortressi/saga"
)

func writeSaga(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "saga.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func runCLI(t *testing.T, args ...string) (int, map[string]any, string) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)

	var out map[string]any
	if stdout.Len() > 0 && stdout.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &out), stdout.String())
	}
	return code, out, stdout.String() + stderr.String()
}

func TestRunOrchestrateSample(t *testing.T) {
	code, out, logs := runCLI(t, "-file", "order.toml", "-log-level", "disabled")
	require.Equal(t, exitOK, code, logs)

	assert.Equal(t, "order", out["saga"])
	assert.Equal(t, "orchestration", out["mode"])
	assert.Equal(t, "succeeded", out["state"])
	assert.Nil(t, out["failure"])

	results, ok := out["results"].([]any)
	require.True(t, ok)
	require.Len(t, results, 3)
	assert.Equal(t, "reserved sku-1", results[0])
	assert.Equal(t, "ok after 2", results[1])
	assert.Equal(t, []any{"reserved sku-1", "ok after 2"}, results[2])
}

func TestRunReportsSagaFailure(t *testing.T) {
	path := writeSaga(t, `
name = "broken"

[[operation]]
action = "echo"
args = ["a"]
compensation = "undo"

[[operation]]
action = "echo"
args = ["b"]

[[operation]]
action = "fail"
args = ["card", "declined"]
compensation = "undo"
`)

	for _, mode := range []string{"orchestrate", "choreograph"} {
		t.Run(mode, func(t *testing.T) {
			code, out, logs := runCLI(t, "-file", path, "-mode", mode, "-log-level", "disabled")
			require.Equal(t, exitFailed, code, logs)
			assert.Equal(t, "failed", out["state"])

			failure, ok := out["failure"].(map[string]any)
			require.True(t, ok)
			assert.EqualValues(t, 2, failure["operation_index"])
			assert.Equal(t, "fail", failure["operation_name"])
			assert.Contains(t, failure["operation_error"], "card declined")
			assert.Equal(t, []any{"undone a"}, failure["compensation_success_result"])
			assert.Equal(t, []any{}, failure["compensation_errors"])
		})
	}
}

func TestRunPrintsPlan(t *testing.T) {
	code, _, out := runCLI(t, "-file", "order.toml", "-dot", "-mode", "choreograph", "-log-level", "disabled")
	require.Equal(t, exitOK, code, out)

	assert.Contains(t, out, "digraph order")
	assert.Contains(t, out, "start -> op0")
	assert.Contains(t, out, "op2 -> end")
	assert.Contains(t, out, `undo: undo`)
}

func TestRunUsageErrors(t *testing.T) {
	unknown := writeSaga(t, `
name = "x"

[[operation]]
action = "no_such_action"
`)

	cases := []struct {
		name string
		args []string
	}{
		{"no file", nil},
		{"bad mode", []string{"-file", "order.toml", "-mode", "sideways"}},
		{"bad log level", []string{"-file", "order.toml", "-log-level", "loud"}},
		{"missing file", []string{"-file", filepath.Join(t.TempDir(), "missing.toml")}},
		{"unknown action", []string{"-file", unknown}},
		{"unknown flag", []string{"-nope"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, _, _ := runCLI(t, tc.args...)
			assert.Equal(t, exitUsage, code)
		})
	}
}

func TestFlakyAction(t *testing.T) {
	reg := demoRegistry()
	fn, err := reg.Get("flaky")
	require.NoError(t, err)

	assert.Contains(t, actionNames(), "flaky")
	_, err = fn(context.Background(), ctxAttempt(1), int64(1))
	assert.Error(t, err)
	out, err := fn(context.Background(), ctxAttempt(2), int64(1))
	require.NoError(t, err)
	assert.Equal(t, "ok after 2", out)
}

func ctxAttempt(n int) saga.ActionContext {
	return saga.ActionContext{Name: "flaky", Attempt: n}
}
