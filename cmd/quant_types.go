package cmd

import (
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ThatCatDev/llamatools/internal/builder"
)

var quantTypesCmd = &cobra.Command{
	Use:   "quant-types",
	Short: "List the quant types offered for llama-quantize",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		var data [][]string
		for _, q := range builder.QuantTypes {
			name := q.Name
			if name == cfg.Quantize.DefaultType {
				name += " *"
			}
			data = append(data, []string{name, q.Description})
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"TYPE", "DESCRIPTION"})
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		table.SetHeaderLine(false)
		table.SetBorder(false)
		table.SetNoWhiteSpace(true)
		table.SetTablePadding("    ")
		table.AppendBulk(data)
		table.Render()
	},
}

func init() {
	rootCmd.AddCommand(quantTypesCmd)
}
