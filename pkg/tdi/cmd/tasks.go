package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/telekom/tdi/pkg/tdi/client"
	"github.com/telekom/tdi/pkg/tdi/output"
)

// newTaskID is the id given to every added task until tasks are stored.
const newTaskID = 99

func NewShowCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			format, err := rt.formatWithJSONFlag(asJSON)
			if err != nil {
				return err
			}
			tasks := []client.Task{}
			if format == output.FormatTable {
				output.WriteTaskTable(rt.Writer(), tasks)
				return nil
			}
			return output.WriteObject(rt.Writer(), format, tasks)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON (same as -o json)")
	return cmd
}

func NewAddCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add <task>",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			format, err := rt.OutputFormat()
			if err != nil {
				return err
			}
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return fmt.Errorf("task text is empty")
			}
			task := client.NewTask(newTaskID, text)
			if format != output.FormatTable {
				return output.WriteObject(rt.Writer(), format, task)
			}
			rt.printf("Adding new task:\n")
			output.WriteTaskTable(rt.Writer(), []client.Task{task})
			return nil
		},
	}
}

func NewCompleteCommand() *cobra.Command {
	return newTaskIDCommand("complete", "Mark a task as done", "Completing")
}

func NewReopenCommand() *cobra.Command {
	return newTaskIDCommand("reopen", "Mark a done task as todo again", "Reopening")
}

func NewDeleteCommand() *cobra.Command {
	return newTaskIDCommand("delete", "Delete a task", "Deleting")
}

func newTaskIDCommand(use, short, verb string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			rt.printf("%s task: %d\n", verb, id)
			return nil
		},
	}
}

func parseTaskID(raw string) (uint32, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid task id %q: must be a non-negative integer", raw)
	}
	return uint32(id), nil
}
