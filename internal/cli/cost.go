package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ovenledger/ovenledger/internal/engine"
	"github.com/ovenledger/ovenledger/internal/production"
	"github.com/ovenledger/ovenledger/internal/recipe"
)

// NewCostCommand creates the cost command.
func NewCostCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "cost <product-id>",
		Short:         "Price one unit of a product at current ingredient costs",
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

			cost, err := svc.CalculateProductCost(cmd.Context(), rootOpts.cfg.Tenant, recipe.ProductID(args[0]))
			if err != nil {
				return formatter.Fail(err)
			}
			payload := map[string]any{"product_id": args[0], "cost": cost, "currency": rootOpts.cfg.Currency}
			return formatter.JSON(payload, func(w io.Writer) {
				fmt.Fprintf(w, "%s: %s %s\n", args[0], cost.StringFixed(2), rootOpts.cfg.Currency)
			})
		},
	}
}

// NewBreakdownCommand creates the breakdown command.
func NewBreakdownCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "breakdown <product-id>",
		Short:         "Show the per-ingredient cost shares of one unit",
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

			shares, err := svc.GetCostBreakdown(cmd.Context(), rootOpts.cfg.Tenant, recipe.ProductID(args[0]))
			if err != nil {
				return formatter.Fail(err)
			}
			return formatter.JSON(shares, func(w io.Writer) {
				for _, s := range shares {
					fmt.Fprintf(w, "%-24s %10s %s\n", s.Name, s.Value.StringFixed(2), rootOpts.cfg.Currency)
				}
			})
		},
	}
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	var points int
	cmd := &cobra.Command{
		Use:           "history <product-id>",
		Short:         "Show unit cost at recent purchase dates",
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

			series, err := svc.GetCostHistory(cmd.Context(), rootOpts.cfg.Tenant, recipe.ProductID(args[0]), points)
			if err != nil {
				return formatter.Fail(err)
			}
			return formatter.JSON(series, func(w io.Writer) {
				for _, p := range series {
					fmt.Fprintf(w, "%s  %s %s\n", p.Date.Format("2006-01-02"), p.Cost.StringFixed(2), rootOpts.cfg.Currency)
				}
			})
		},
	}
	cmd.Flags().IntVar(&points, "points", 10, "number of historical purchase dates")
	return cmd
}

// NewDetailsCommand creates the details command.
func NewDetailsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "details <product-id>",
		Short:         "Show the fully priced recipe tree of one unit",
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

			details, err := svc.GetCalculatedProductDetails(cmd.Context(), rootOpts.cfg.Tenant, recipe.ProductID(args[0]))
			if err != nil {
				return formatter.Fail(err)
			}
			return formatter.JSON(details, func(w io.Writer) {
				writeDetails(w, details, rootOpts.cfg.Currency)
			})
		},
	}
}

func writeDetails(w io.Writer, d *production.ProductDetails, currency string) {
	fmt.Fprintf(w, "%s (%s)\n", d.Name, d.ProductID)
	fmt.Fprintf(w, "  base dough: %.0f g   hydration: %.1f%%   total: %s %s\n",
		d.BaseDoughWeight, d.Hydration*100, d.TotalCost.StringFixed(2), currency)
	if d.Dough != nil {
		writeDetailNode(w, d.Dough, 1, currency)
	}
	for _, m := range d.MixIns {
		fmt.Fprintf(w, "  + %-22s %8.1f g %10s %s\n", m.Name, m.Grams, m.Cost.StringFixed(2), currency)
		if m.Sub != nil {
			writeDetailNode(w, m.Sub, 2, currency)
		}
	}
}

func writeDetailNode(w io.Writer, n *engine.DetailNode, depth int, currency string) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(w, "%s%s: input %.1f g, output %.1f g, flour %.1f g, cost %s %s\n",
		indent, n.FamilyName, n.TotalInput, n.TargetOutput, n.FlourWeight, n.Cost.StringFixed(2), currency)
	for _, line := range n.Lines {
		fmt.Fprintf(w, "%s  %-22s %8.1f g %10s %s\n", indent, line.Name, line.Grams, line.Cost.StringFixed(2), currency)
		if line.Sub != nil {
			writeDetailNode(w, line.Sub, depth+2, currency)
		}
	}
}
