package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/odyssey-erp/pricedesk/internal/pricing"
)

// BatchFile is the YAML document read by `pricectl batch`.
type BatchFile struct {
	Cases []BatchCase `yaml:"cases"`
}

// BatchCase is one price computation. Amounts are decimal strings.
type BatchCase struct {
	Name         string `yaml:"name"`
	BaseExcl     string `yaml:"base_excl"`
	BaseIncl     string `yaml:"base_incl"`
	ChangeType   string `yaml:"change_type"`
	ChangeAmount string `yaml:"change_amount"`
}

// BatchResult is the outcome of one case. Display is "-" when the engine
// refused the input.
type BatchResult struct {
	Name    string `json:"name"`
	ExclTax string `json:"excl_tax,omitempty"`
	InclTax string `json:"incl_tax,omitempty"`
	Display string `json:"display"`
	Error   string `json:"error,omitempty"`
}

func newBatchCommand() *cobra.Command {
	var (
		file       string
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:     "batch",
		Short:   "Compute every case of a YAML file",
		Example: "  pricectl batch -f cases.yaml",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var in io.Reader = cmd.InOrStdin()
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			batch, err := ReadBatch(in)
			if err != nil {
				return err
			}
			results := RunBatch(batch)
			if jsonOutput {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(results)
			}
			return renderBatch(cmd.OutOrStdout(), results)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with cases, - for stdin")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print results as JSON")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// ReadBatch decodes a batch document.
func ReadBatch(r io.Reader) (BatchFile, error) {
	var batch BatchFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&batch); err != nil {
		if err == io.EOF {
			return BatchFile{}, nil
		}
		return BatchFile{}, fmt.Errorf("decode batch: %w", err)
	}
	return batch, nil
}

// RunBatch computes every case. A bad case never stops the others.
func RunBatch(batch BatchFile) []BatchResult {
	results := make([]BatchResult, 0, len(batch.Cases))
	for _, c := range batch.Cases {
		results = append(results, runCase(c))
	}
	return results
}

func runCase(c BatchCase) BatchResult {
	out := BatchResult{Name: c.Name, Display: pricing.Placeholder}
	if c.ChangeAmount == "" {
		c.ChangeAmount = "0"
	}
	base, err := parseMoney(c.BaseExcl, c.BaseIncl)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	desc, err := parseDescriptor(c.ChangeType, c.ChangeAmount)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	res, err := desc.Apply(base)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	res = res.Rounded(2)
	out.ExclTax = res.ExclTax.StringFixed(2)
	out.InclTax = res.InclTax.StringFixed(2)
	out.Display = out.InclTax
	return out
}

func renderBatch(w io.Writer, results []BatchResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tEXCL\tINCL\tNOTE")
	for _, r := range results {
		excl, incl := r.ExclTax, r.Display
		if excl == "" {
			excl = pricing.Placeholder
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Name, excl, incl, r.Error)
	}
	return tw.Flush()
}
