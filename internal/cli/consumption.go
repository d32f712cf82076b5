package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ovenledger/ovenledger/internal/production"
	"github.com/ovenledger/ovenledger/internal/recipe"
)

// NewConsumptionCommand creates the consumption command.
func NewConsumptionCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		taskID   string
		product  string
		quantity int
	)
	cmd := &cobra.Command{
		Use:   "consumption",
		Short: "Derive per-ingredient consumption for a task or a product",
		Long: `Consumption shows what a batch needs per ingredient, in two views:
theoretical (no-loss) and total input (inflated by division loss and the
recipe's loss ratio). A task is computed from its frozen snapshot; a
product is computed against current recipe state.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			if (taskID == "") == (product == "") {
				return &ExitError{Code: ExitCommandError, Message: "exactly one of --task and --product is required"}
			}
			svc, closeSvc, err := rootOpts.openService()
			if err != nil {
				return err
			}
			defer closeSvc()

			var views []production.ItemConsumption
			if taskID != "" {
				views, err = svc.CalculateTaskConsumptions(cmd.Context(), rootOpts.cfg.Tenant, recipe.TaskID(taskID))
			} else {
				var one *production.ItemConsumption
				one, err = svc.CalculateProductConsumption(cmd.Context(), rootOpts.cfg.Tenant, recipe.ProductID(product), quantity)
				if one != nil {
					views = []production.ItemConsumption{*one}
				}
			}
			if err != nil {
				return formatter.Fail(err)
			}
			return formatter.JSON(views, func(w io.Writer) {
				for _, v := range views {
					fmt.Fprintf(w, "%s x%d\n", v.ProductName, v.Quantity)
					fmt.Fprintf(w, "  %-24s %12s %12s\n", "ingredient", "theoretical", "total input")
					for _, row := range v.Rows {
						fmt.Fprintf(w, "  %-24s %10.1f g %10.1f g\n", row.Name, row.TheoreticalGrams, row.TotalInputGrams)
					}
				}
			})
		},
	}
	cmd.Flags().StringVar(&taskID, "task", "", "task id")
	cmd.Flags().StringVar(&product, "product", "", "product id")
	cmd.Flags().IntVar(&quantity, "quantity", 1, "units (with --product)")
	return cmd
}

// NewBOMCommand creates the bom command.
func NewBOMCommand(rootOpts *RootOptions) *cobra.Command {
	var dateStr string
	cmd := &cobra.Command{
		Use:           "bom",
		Short:         "Aggregate a bill of materials for one production date",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			date := time.Now()
			if dateStr != "" {
				var err error
				if date, err = time.Parse(dateLayout, dateStr); err != nil {
					return &ExitError{Code: ExitCommandError, Message: fmt.Sprintf("invalid --date %q: want YYYY-MM-DD", dateStr)}
				}
			}
			svc, closeSvc, err := rootOpts.openService()
			if err != nil {
				return err
			}
			defer closeSvc()

			bom, err := svc.GetBillOfMaterials(cmd.Context(), rootOpts.cfg.Tenant, date)
			if err != nil {
				return formatter.Fail(err)
			}
			return formatter.JSON(bom, func(w io.Writer) {
				fmt.Fprintf(w, "bill of materials for %s\n", date.Format(dateLayout))
				if len(bom.Standard) > 0 {
					fmt.Fprintln(w, "stocked:")
					for _, row := range bom.Standard {
						fmt.Fprintf(w, "  %-24s %10.1f g  (stock %.1f g)\n", row.Name, row.RequiredGrams, row.StockGrams)
					}
				}
				if len(bom.NonInventoried) > 0 {
					fmt.Fprintln(w, "non-inventoried:")
					for _, row := range bom.NonInventoried {
						fmt.Fprintf(w, "  %-24s %10.1f g\n", row.Name, row.RequiredGrams)
					}
				}
			})
		},
	}
	cmd.Flags().StringVar(&dateStr, "date", "", "production date (YYYY-MM-DD, default today)")
	return cmd
}
