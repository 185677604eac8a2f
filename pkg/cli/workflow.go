package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/cascadehq/cascade/pkg/workflow"
)

func NewWorkflowCommand(root *RootCommand) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workflow",
		Aliases: []string{"wf"},
		Short:   "Work with workflow definitions",
		Long: `Validate, inspect, and run workflow definition files.

Definitions are YAML or JSON documents describing steps and the
dependencies between them.`,
		Example: `  # Validate a definition
  cascade workflow validate deploy.yaml

  # Show steps and execution order
  cascade workflow describe deploy.yaml

  # Run a definition locally and wait for it to finish
  cascade workflow run deploy.yaml --input '{"env":"prod"}'`,
	}

	cmd.AddCommand(newWorkflowValidateCommand(root))
	cmd.AddCommand(newWorkflowDescribeCommand(root))
	cmd.AddCommand(newWorkflowRunCommand(root))

	return cmd
}

func newWorkflowValidateCommand(root *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a workflow definition file",
		Long: `Validate a workflow definition file.

Checks step IDs, dependency references, and that the dependency
graph is acyclic.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflowValidate(root, args[0])
		},
	}
}

func newWorkflowDescribeCommand(root *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <file>",
		Short: "Show the steps and execution order of a definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflowDescribe(root, args[0])
		},
	}
}

func newWorkflowRunCommand(root *RootCommand) *cobra.Command {
	var (
		inputJSON string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Run a workflow definition locally",
		Long: `Run a workflow definition file in an in-process engine and
wait for it to reach a terminal status.

Approval steps will block until they time out; definitions with
approval steps are better run against a serve instance.`,
		Example: `  # Run with input parameters
  cascade workflow run deploy.yaml --input '{"env":"prod"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflowRun(cmd.Context(), root, args[0], inputJSON, cmd.Flags(), timeout)
		},
	}

	cmd.Flags().StringVarP(&inputJSON, "input", "i", "", "JSON input for the workflow")
	cmd.Flags().StringArray("set", nil, "Set an input value (key=value, repeatable)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "Maximum time to wait for completion")

	return cmd
}

// overlaySetFlags applies --set key=value pairs on top of input.
func overlaySetFlags(flags *pflag.FlagSet, input map[string]any) (map[string]any, error) {
	pairs, err := flags.GetStringArray("set")
	if err != nil || len(pairs) == 0 {
		return input, nil
	}

	if input == nil {
		input = make(map[string]any)
	}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set value %q, want key=value", pair)
		}
		input[key] = value
	}
	return input, nil
}

func runWorkflowValidate(root *RootCommand, path string) error {
	opts := root.OutputOptions()

	def, err := workflow.ParseFile(path)
	if err != nil {
		PrintError(err, opts)
		return err
	}

	PrintSuccess(fmt.Sprintf("workflow %q is valid (%d steps)", def.Name, len(def.Steps)), opts)
	return nil
}

func runWorkflowDescribe(root *RootCommand, path string) error {
	opts := root.OutputOptions()

	def, err := workflow.ParseFile(path)
	if err != nil {
		PrintError(err, opts)
		return err
	}

	if opts.Format == OutputJSON || opts.Format == OutputYAML {
		return PrintOutput(def, opts)
	}

	dag, err := workflow.NewDAG(def.Steps)
	if err != nil {
		return err
	}

	fmt.Fprintf(opts.Writer, "Workflow: %s\n", def.Name)
	if def.Description != "" {
		fmt.Fprintf(opts.Writer, "%s\n", def.Description)
	}
	fmt.Fprintf(opts.Writer, "Execution order: %s\n\n", strings.Join(dag.TopologicalSort(), ", "))

	rows := make([][]string, 0, len(def.Steps))
	for _, step := range def.Steps {
		rows = append(rows, []string{
			step.ID,
			string(step.Kind),
			strings.Join(step.DependsOn, ","),
			strconv.FormatBool(step.FailOnError),
		})
	}
	PrintTable(opts, []string{"STEP", "KIND", "DEPENDS ON", "FAIL ON ERROR"}, rows)
	return nil
}

func runWorkflowRun(ctx context.Context, root *RootCommand, path, inputJSON string, flags *pflag.FlagSet, timeout time.Duration) error {
	opts := root.OutputOptions()
	cfg := root.Config()

	def, err := workflow.ParseFile(path)
	if err != nil {
		PrintError(err, opts)
		return err
	}

	var input map[string]any
	if inputJSON != "" {
		if err := json.Unmarshal([]byte(inputJSON), &input); err != nil {
			return fmt.Errorf("parse --input: %w", err)
		}
	}
	if flags != nil {
		if input, err = overlaySetFlags(flags, input); err != nil {
			return err
		}
	}

	engine := workflow.NewEngine(workflow.WithPollInterval(cfg.Engine.PollIntervalD))

	execID, err := engine.ExecuteWorkflow(ctx, def, input)
	if err != nil {
		PrintError(err, opts)
		return err
	}

	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	state, err := engine.WaitForTerminal(waitCtx, execID, cfg.Engine.PollIntervalD)
	if err != nil {
		PrintError(err, opts)
		return err
	}

	if opts.Format == OutputJSON || opts.Format == OutputYAML {
		return PrintOutput(state, opts)
	}

	fmt.Fprintf(opts.Writer, "Execution %s finished with status %s\n", state.ExecutionID, state.Status)
	if state.Error != "" {
		fmt.Fprintf(opts.Writer, "Error: %s\n", state.Error)
	}

	rows := make([][]string, 0, len(def.Steps))
	for _, step := range def.Steps {
		result, ok := state.StepResults[step.ID]
		if !ok {
			rows = append(rows, []string{step.ID, "not run", ""})
			continue
		}
		rows = append(rows, []string{step.ID, string(result.State), result.Error})
	}
	PrintTable(opts, []string{"STEP", "STATE", "ERROR"}, rows)

	if state.Status != workflow.StatusCompleted {
		return fmt.Errorf("workflow finished with status %s", state.Status)
	}
	return nil
}
