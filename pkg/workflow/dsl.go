package workflow

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

func ParseYAML(data []byte) (*WorkflowDefinition, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}

	var def WorkflowDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	if err := normalizeDefinition(&def); err != nil {
		return nil, err
	}

	return &def, nil
}

func ParseJSON(data []byte) (*WorkflowDefinition, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}

	var def WorkflowDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	if err := normalizeDefinition(&def); err != nil {
		return nil, err
	}

	return &def, nil
}

func Parse(data []byte, format string) (*WorkflowDefinition, error) {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		return ParseYAML(data)
	case "json":
		return ParseJSON(data)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func ParseFile(path string) (*WorkflowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	format := "yaml"
	if ext == ".json" {
		format = "json"
	}

	return Parse(data, format)
}

func ParseReader(r io.Reader, format string) (*WorkflowDefinition, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read: %w", err)
	}

	return Parse(data, format)
}

// normalizeDefinition fills defaults and runs structural validation.
func normalizeDefinition(def *WorkflowDefinition) error {
	if def.Name == "" {
		return &InvalidDefinitionError{Reason: "workflow name is empty"}
	}
	if def.ID == "" {
		def.ID = uuid.NewString()
	}
	if def.Metadata == nil {
		def.Metadata = make(map[string]any)
	}

	for i := range def.Steps {
		step := &def.Steps[i]

		if step.Kind == "" {
			step.Kind = StepKindAction
		}
		if step.Name == "" {
			step.Name = step.ID
		}
		if step.DependsOn == nil {
			step.DependsOn = []string{}
		}
		if step.Retry != nil {
			if step.Retry.MaxAttempts < 1 {
				step.Retry.MaxAttempts = 1
			}
			if step.Retry.InitialDelayMS < 0 {
				step.Retry.InitialDelayMS = 0
			}
		}
	}

	return def.Validate()
}

func (d *WorkflowDefinition) ToYAML() ([]byte, error) {
	return yaml.Marshal(d)
}

func (d *WorkflowDefinition) ToJSON() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

func (d *WorkflowDefinition) GetStepByID(id string) *WorkflowStep {
	for i := range d.Steps {
		if d.Steps[i].ID == id {
			return &d.Steps[i]
		}
	}
	return nil
}

func (d *WorkflowDefinition) StepIDs() []string {
	ids := make([]string, len(d.Steps))
	for i, step := range d.Steps {
		ids[i] = step.ID
	}
	return ids
}
