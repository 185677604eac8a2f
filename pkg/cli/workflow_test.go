package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascadehq/cascade/pkg/config"
)

func makeTestRoot(t *testing.T) (*RootCommand, *bytes.Buffer) {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	root := &RootCommand{
		cfg:  cfg,
		opts: &OutputOptions{Format: OutputTable, Writer: buf},
	}
	return root, buf
}

func writeTempYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validWorkflowYAML = `
name: test-pipeline
steps:
  - id: fetch
    action:
      type: wait
      wait_seconds: 0
  - id: process
    depends_on: [fetch]
    action:
      type: wait
      wait_seconds: 0
`

func TestNewWorkflowCommand(t *testing.T) {
	root, _ := makeTestRoot(t)
	cmd := NewWorkflowCommand(root)
	assert.Equal(t, "workflow", cmd.Use)
	assert.Contains(t, cmd.Aliases, "wf")

	names := []string{}
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "validate")
	assert.Contains(t, names, "describe")
	assert.Contains(t, names, "run")
}

func TestWorkflowValidate(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		root, buf := makeTestRoot(t)
		path := writeTempYAML(t, validWorkflowYAML)

		err := runWorkflowValidate(root, path)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "test-pipeline")
	})

	t.Run("cyclic dependencies", func(t *testing.T) {
		root, _ := makeTestRoot(t)
		path := writeTempYAML(t, `
name: cyclic
steps:
  - id: a
    depends_on: [b]
    action: {type: wait}
  - id: b
    depends_on: [a]
    action: {type: wait}
`)

		err := runWorkflowValidate(root, path)
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		root, _ := makeTestRoot(t)
		err := runWorkflowValidate(root, "/nonexistent/workflow.yaml")
		require.Error(t, err)
	})
}

func TestWorkflowDescribe(t *testing.T) {
	root, buf := makeTestRoot(t)
	path := writeTempYAML(t, validWorkflowYAML)

	err := runWorkflowDescribe(root, path)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "test-pipeline")
	assert.Contains(t, out, "fetch")
	assert.Contains(t, out, "process")
	assert.Contains(t, out, "fetch, process")
}

func TestOverlaySetFlags(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.StringArray("set", nil, "")
	require.NoError(t, flags.Parse([]string{"--set", "env=prod", "--set", "region=eu"}))

	input, err := overlaySetFlags(flags, map[string]any{"env": "dev", "keep": true})
	require.NoError(t, err)
	assert.Equal(t, "prod", input["env"])
	assert.Equal(t, "eu", input["region"])
	assert.Equal(t, true, input["keep"])

	t.Run("rejects malformed pair", func(t *testing.T) {
		bad := pflag.NewFlagSet("test", pflag.ContinueOnError)
		bad.StringArray("set", nil, "")
		require.NoError(t, bad.Parse([]string{"--set", "no-equals"}))

		_, err := overlaySetFlags(bad, nil)
		require.Error(t, err)
	})
}

func TestWorkflowRun(t *testing.T) {
	t.Run("completes", func(t *testing.T) {
		root, buf := makeTestRoot(t)
		path := writeTempYAML(t, validWorkflowYAML)

		err := runWorkflowRun(context.Background(), root, path, `{"env":"test"}`, nil, 0)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "completed")
	})

	t.Run("bad input JSON", func(t *testing.T) {
		root, _ := makeTestRoot(t)
		path := writeTempYAML(t, validWorkflowYAML)

		err := runWorkflowRun(context.Background(), root, path, `not-json`, nil, 0)
		require.Error(t, err)
	})
}
