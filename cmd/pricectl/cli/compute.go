package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/pricedesk/internal/pricing"
)

type computeFlags struct {
	excl       string
	incl       string
	changeType string
	amount     string
	jsonOutput bool
}

func newComputeCommand() *cobra.Command {
	var flags computeFlags
	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Compute one sell price",
		Example: `  pricectl compute --excl 100 --incl 110 --type discount_percentage --amount 10
  pricectl compute --excl 100 --incl 110 --type fixed_price --amount 80 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			base, err := parseMoney(flags.excl, flags.incl)
			if err != nil {
				return err
			}
			desc, err := parseDescriptor(flags.changeType, flags.amount)
			if err != nil {
				return err
			}
			res, err := desc.Apply(base)
			if err != nil {
				return err
			}
			res = res.Rounded(2)
			if flags.jsonOutput {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(res)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "excl_tax=%s incl_tax=%s\n", res.ExclTax.StringFixed(2), res.InclTax.StringFixed(2))
			return err
		},
	}
	cmd.Flags().StringVar(&flags.excl, "excl", "", "base price excluding tax")
	cmd.Flags().StringVar(&flags.incl, "incl", "", "base price including tax")
	cmd.Flags().StringVar(&flags.changeType, "type", "", "change type, one of "+changeTypeNames())
	cmd.Flags().StringVar(&flags.amount, "amount", "0", "change amount")
	cmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "print the result as JSON")
	_ = cmd.MarkFlagRequired("excl")
	_ = cmd.MarkFlagRequired("incl")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func parseMoney(excl, incl string) (pricing.Money, error) {
	e, err := decimal.NewFromString(excl)
	if err != nil {
		return pricing.Money{}, fmt.Errorf("invalid excl %q: %w", excl, err)
	}
	i, err := decimal.NewFromString(incl)
	if err != nil {
		return pricing.Money{}, fmt.Errorf("invalid incl %q: %w", incl, err)
	}
	return pricing.Money{ExclTax: e, InclTax: i}, nil
}

func parseDescriptor(changeType, amount string) (pricing.ChangeDescriptor, error) {
	ct, err := pricing.ParseChangeType(changeType)
	if err != nil {
		return pricing.ChangeDescriptor{}, err
	}
	a, err := decimal.NewFromString(amount)
	if err != nil {
		return pricing.ChangeDescriptor{}, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	desc := pricing.ChangeDescriptor{Type: ct, Amount: a}
	if err := pricing.ValidateDescriptor(desc); err != nil {
		return pricing.ChangeDescriptor{}, err
	}
	return desc, nil
}

func changeTypeNames() string {
	names := make([]string, len(pricing.ChangeTypes))
	for i, ct := range pricing.ChangeTypes {
		names[i] = string(ct)
	}
	return strings.Join(names, ", ")
}
