package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseYAML(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid workflow",
			input: `
name: deploy
description: Deploy with a wait
steps:
  - id: build
    kind: action
    action:
      type: wait
      wait_seconds: 1
  - id: release
    depends_on: [build]
    action:
      type: handler
      handler: release
`,
			wantErr: false,
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: true,
			errMsg:  "empty input",
		},
		{
			name:    "missing name",
			input:   "steps:\n  - id: s1",
			wantErr: true,
			errMsg:  "name is empty",
		},
		{
			name:    "missing steps",
			input:   "name: nothing",
			wantErr: true,
			errMsg:  "no steps defined",
		},
		{
			name:    "invalid yaml",
			input:   "name: [invalid",
			wantErr: true,
			errMsg:  "invalid format",
		},
		{
			name: "cycle rejected",
			input: `
name: loop
steps:
  - id: a
    depends_on: [b]
    action: {type: wait}
  - id: b
    depends_on: [a]
    action: {type: wait}
`,
			wantErr: true,
			errMsg:  "dependency cycle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := ParseYAML([]byte(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.Nil(t, def)
			} else {
				require.NoError(t, err)
				require.NotNil(t, def)
				assert.NotEmpty(t, def.ID)
				assert.NotEmpty(t, def.Steps)
			}
		})
	}
}

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid workflow",
			input: `{
				"name": "deploy",
				"steps": [
					{"id": "build", "action": {"type": "wait", "wait_seconds": 1}}
				]
			}`,
			wantErr: false,
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: true,
			errMsg:  "empty input",
		},
		{
			name:    "invalid json",
			input:   `{invalid`,
			wantErr: true,
			errMsg:  "invalid format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := ParseJSON([]byte(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, def)
			}
		})
	}
}

func TestParseDefaults(t *testing.T) {
	def, err := ParseYAML([]byte(`
name: defaults
steps:
  - id: only
    action: {type: wait}
    retry:
      max_attempts: 0
      initial_delay_ms: -5
`))
	require.NoError(t, err)

	st := def.GetStepByID("only")
	require.NotNil(t, st)
	assert.Equal(t, StepKindAction, st.Kind)
	assert.Equal(t, "only", st.Name)
	assert.NotNil(t, st.DependsOn)
	assert.Equal(t, 1, st.Retry.MaxAttempts)
	assert.Equal(t, 0, st.Retry.InitialDelayMS)
}

func TestParseDispatch(t *testing.T) {
	yamlDoc := []byte("name: w\nsteps:\n  - id: s\n    action: {type: wait}\n")
	jsonDoc := []byte(`{"name": "w", "steps": [{"id": "s", "action": {"type": "wait"}}]}`)

	for _, format := range []string{"yaml", "yml", "YAML"} {
		_, err := Parse(yamlDoc, format)
		assert.NoError(t, err, format)
	}
	_, err := Parse(jsonDoc, "json")
	assert.NoError(t, err)

	_, err = Parse(yamlDoc, "toml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "wf.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("name: w\nsteps:\n  - id: s\n    action: {type: wait}\n"), 0o644))

	def, err := ParseFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "w", def.Name)

	jsonPath := filepath.Join(dir, "wf.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"name": "w", "steps": [{"id": "s", "action": {"type": "wait"}}]}`), 0o644))

	def, err = ParseFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "w", def.Name)

	_, err = ParseFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	def, err := ParseYAML([]byte("name: w\nsteps:\n  - id: s\n    action: {type: wait}\n"))
	require.NoError(t, err)

	out, err := def.ToJSON()
	require.NoError(t, err)

	back, err := ParseJSON(out)
	require.NoError(t, err)
	assert.Equal(t, def.ID, back.ID)
	assert.Equal(t, def.StepIDs(), back.StepIDs())
}
