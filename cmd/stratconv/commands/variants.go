package commands

import (
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/quant-king299/stratconv/internal/converter/registry"
)

func newVariantsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "variants",
		Short: "List the target platform variants",
		Args:  cobra.NoArgs,

		PersistentPreRunE:  noSetup,
		PersistentPostRunE: noSetup,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := registry.Default()
			if err != nil {
				return err
			}
			table := newTable(cmd.OutOrStdout())
			table.SetHeader([]string{"Variant", "Description", "Snapshot", "Schedule", "Mapped", "Removed"})
			table.SetColumnAlignment([]int{
				tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT,
				tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT,
			})
			for _, info := range reg.Describe() {
				table.Append([]string{
					info.Name,
					info.Description,
					info.Snapshot,
					info.Schedule,
					strconv.Itoa(info.Mapped),
					strconv.Itoa(info.Removed),
				})
			}
			table.Render()
			return nil
		},
	}
}
