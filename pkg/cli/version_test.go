package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	t.Run("table output", func(t *testing.T) {
		buf := &bytes.Buffer{}
		root := &RootCommand{opts: &OutputOptions{Format: OutputTable, Writer: buf}}

		cmd := NewVersionCommand(root)
		cmd.Run(cmd, nil)

		assert.Contains(t, buf.String(), "cascade version")
	})

	t.Run("json output", func(t *testing.T) {
		buf := &bytes.Buffer{}
		root := &RootCommand{opts: &OutputOptions{Format: OutputJSON, Writer: buf}}

		cmd := NewVersionCommand(root)
		cmd.Run(cmd, nil)

		assert.Contains(t, buf.String(), `"version"`)
	})
}

func TestSetVersion(t *testing.T) {
	SetVersion("1.2.3", "2026-01-01", "abc123")
	defer SetVersion("dev", "unknown", "unknown")

	buf := &bytes.Buffer{}
	root := &RootCommand{opts: &OutputOptions{Format: OutputTable, Writer: buf}}
	cmd := NewVersionCommand(root)
	cmd.Run(cmd, nil)

	out := buf.String()
	require.Contains(t, out, "1.2.3")
	assert.Contains(t, out, "abc123")
}
