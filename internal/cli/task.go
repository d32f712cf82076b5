package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ovenledger/ovenledger/internal/production"
	"github.com/ovenledger/ovenledger/internal/recipe"
)

const dateLayout = "2006-01-02"

// NewTaskCommand creates the task command group.
func NewTaskCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage production tasks",
	}
	cmd.AddCommand(newTaskCreateCommand(rootOpts))
	cmd.AddCommand(newTaskShowCommand(rootOpts))
	cmd.AddCommand(newTaskUpdateCommand(rootOpts))
	cmd.AddCommand(newTaskStartCommand(rootOpts))
	cmd.AddCommand(newTaskCompleteCommand(rootOpts))
	cmd.AddCommand(newTaskCancelCommand(rootOpts))
	cmd.AddCommand(newTaskDeleteCommand(rootOpts))
	return cmd
}

func newTaskCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		startStr string
		endStr   string
		items    []string
	)
	cmd := &cobra.Command{
		Use:           "create",
		Short:         "Create a production task (freezes a recipe snapshot)",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			in, err := parseTaskInput(startStr, endStr, items)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: err.Error()}
			}
			svc, closeSvc, err := rootOpts.openService()
			if err != nil {
				return err
			}
			defer closeSvc()

			t, err := svc.CreateTask(cmd.Context(), rootOpts.cfg.Tenant, *in)
			if err != nil {
				return formatter.Fail(err)
			}
			return formatter.JSON(t, func(w io.Writer) { writeTask(w, t) })
		},
	}
	cmd.Flags().StringVar(&startStr, "start", "", "window start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endStr, "end", "", "window end date (YYYY-MM-DD)")
	cmd.Flags().StringArrayVar(&items, "item", nil, "task item as product=quantity (repeatable)")
	return cmd
}

func newTaskShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <task-id>",
		Short:         "Show a task with its items",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			svc, closeSvc, err := rootOpts.openService()
			if err != nil {
				return err
			}
			defer closeSvc()

			t, err := svc.GetTask(cmd.Context(), rootOpts.cfg.Tenant, recipe.TaskID(args[0]))
			if err != nil {
				return formatter.Fail(err)
			}
			return formatter.JSON(t, func(w io.Writer) { writeTask(w, t) })
		},
	}
}

func newTaskUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		startStr string
		endStr   string
		items    []string
	)
	cmd := &cobra.Command{
		Use:           "update <task-id>",
		Short:         "Replace a PENDING task's window and items",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			in, err := parseTaskInput(startStr, endStr, items)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: err.Error()}
			}
			svc, closeSvc, err := rootOpts.openService()
			if err != nil {
				return err
			}
			defer closeSvc()

			t, err := svc.UpdateTask(cmd.Context(), rootOpts.cfg.Tenant, recipe.TaskID(args[0]), *in)
			if err != nil {
				return formatter.Fail(err)
			}
			return formatter.JSON(t, func(w io.Writer) { writeTask(w, t) })
		},
	}
	cmd.Flags().StringVar(&startStr, "start", "", "window start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endStr, "end", "", "window end date (YYYY-MM-DD)")
	cmd.Flags().StringArrayVar(&items, "item", nil, "task item as product=quantity (repeatable)")
	return cmd
}

func newTaskStartCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "start <task-id>",
		Short:         "Move a PENDING task to IN_PROGRESS",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			svc, closeSvc, err := rootOpts.openService()
			if err != nil {
				return err
			}
			defer closeSvc()

			t, err := svc.StartTask(cmd.Context(), rootOpts.cfg.Tenant, recipe.TaskID(args[0]))
			if err != nil {
				return formatter.Fail(err)
			}
			return formatter.JSON(t, func(w io.Writer) { writeTask(w, t) })
		},
	}
}

func newTaskCompleteCommand(rootOpts *RootOptions) *cobra.Command {
	var outcomes []string
	cmd := &cobra.Command{
		Use:   "complete <task-id>",
		Short: "Complete a task and post all stock movements",
		Long: `Complete reports the outcome of an IN_PROGRESS task and atomically posts
consumption for successful units, spoilage, the remaining process loss and
any self-made output. Insufficient tracked stock rejects the completion.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			parsed, err := parseOutcomes(outcomes)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: err.Error()}
			}
			svc, closeSvc, err := rootOpts.openService()
			if err != nil {
				return err
			}
			defer closeSvc()

			t, err := svc.CompleteTask(cmd.Context(), rootOpts.cfg.Tenant, recipe.TaskID(args[0]), parsed)
			if err != nil {
				return formatter.Fail(err)
			}
			return formatter.JSON(t, func(w io.Writer) { writeTask(w, t) })
		},
	}
	cmd.Flags().StringArrayVar(&outcomes, "outcome", nil, "item outcome as product=completed[:spoiled] (repeatable)")
	return cmd
}

func newTaskCancelCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "cancel <task-id>",
		Short:         "Cancel a PENDING or IN_PROGRESS task",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			svc, closeSvc, err := rootOpts.openService()
			if err != nil {
				return err
			}
			defer closeSvc()

			t, err := svc.CancelTask(cmd.Context(), rootOpts.cfg.Tenant, recipe.TaskID(args[0]))
			if err != nil {
				return formatter.Fail(err)
			}
			return formatter.JSON(t, func(w io.Writer) { writeTask(w, t) })
		},
	}
}

func newTaskDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <task-id>",
		Short:         "Delete a PENDING task",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			svc, closeSvc, err := rootOpts.openService()
			if err != nil {
				return err
			}
			defer closeSvc()

			if err := svc.DeleteTask(cmd.Context(), rootOpts.cfg.Tenant, recipe.TaskID(args[0])); err != nil {
				return formatter.Fail(err)
			}
			return formatter.JSON(map[string]any{"deleted": args[0]}, func(w io.Writer) {
				fmt.Fprintf(w, "deleted task %s\n", args[0])
			})
		},
	}
}

// parseTaskInput turns the --start/--end/--item flags into a TaskInput.
func parseTaskInput(startStr, endStr string, items []string) (*production.TaskInput, error) {
	start, err := time.Parse(dateLayout, startStr)
	if err != nil {
		return nil, fmt.Errorf("invalid --start %q: want YYYY-MM-DD", startStr)
	}
	end, err := time.Parse(dateLayout, endStr)
	if err != nil {
		return nil, fmt.Errorf("invalid --end %q: want YYYY-MM-DD", endStr)
	}
	in := &production.TaskInput{StartDate: start, EndDate: end}
	for _, item := range items {
		product, qtyStr, ok := strings.Cut(item, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --item %q: want product=quantity", item)
		}
		qty, err := strconv.Atoi(qtyStr)
		if err != nil {
			return nil, fmt.Errorf("invalid quantity in --item %q", item)
		}
		in.Items = append(in.Items, production.TaskItemInput{
			ProductID: recipe.ProductID(product),
			Quantity:  qty,
		})
	}
	return in, nil
}

// parseOutcomes turns --outcome flags into item outcomes.
func parseOutcomes(outcomes []string) ([]production.ItemOutcome, error) {
	parsed := make([]production.ItemOutcome, 0, len(outcomes))
	for _, o := range outcomes {
		product, counts, ok := strings.Cut(o, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --outcome %q: want product=completed[:spoiled]", o)
		}
		completedStr, spoiledStr, hasSpoiled := strings.Cut(counts, ":")
		completed, err := strconv.Atoi(completedStr)
		if err != nil {
			return nil, fmt.Errorf("invalid completed count in --outcome %q", o)
		}
		spoiled := 0
		if hasSpoiled {
			if spoiled, err = strconv.Atoi(spoiledStr); err != nil {
				return nil, fmt.Errorf("invalid spoiled count in --outcome %q", o)
			}
		}
		parsed = append(parsed, production.ItemOutcome{
			ProductID: recipe.ProductID(product),
			Completed: completed,
			Spoiled:   spoiled,
		})
	}
	return parsed, nil
}

func writeTask(w io.Writer, t *recipe.ProductionTask) {
	fmt.Fprintf(w, "task %s  [%s]  %s .. %s\n",
		t.ID, t.Status, t.StartDate.Format(dateLayout), t.EndDate.Format(dateLayout))
	if t.SnapshotID != "" {
		fmt.Fprintf(w, "  snapshot: %s\n", t.SnapshotID)
	}
	for _, item := range t.Items {
		line := fmt.Sprintf("  %-28s x%d", item.ProductName, item.Quantity)
		if item.Completed > 0 || item.Spoiled > 0 {
			line += fmt.Sprintf("  (completed %d, spoiled %d)", item.Completed, item.Spoiled)
		}
		fmt.Fprintln(w, line)
	}
}
