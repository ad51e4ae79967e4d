package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Eissayou/k4pcap/internal/scenario"
)

func newScenariosCommand(a *app) *cobra.Command {
	var dump bool
	cmd := &cobra.Command{
		Use:   "scenarios",
		Short: "List the available scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			all := a.catalog.All()
			if dump {
				out, err := scenario.Marshal(all)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSTEPS\tFILE\tDESCRIPTION")
			for _, sc := range all {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", sc.Name, len(sc.Steps), sc.FileName(), sc.Description)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&dump, "yaml", false, "print the scenarios as a YAML scenario file")
	return cmd
}
