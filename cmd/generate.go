package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Eissayou/k4pcap/internal/generator"
)

func newGenerateCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate [scenario...]",
		Short: "Write capture files for the named scenarios (all by default)",
		Example: `  k4pcap generate
  k4pcap generate basic_commands if_status --out ./fixtures
  k4pcap generate --scenario-file extra.yaml --start 2024-01-01T00:00:00Z`,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := args
			if len(names) == 0 {
				names = a.cfg.Scenarios.Only
			}
			scs, err := a.catalog.Select(names...)
			if err != nil {
				return err
			}

			opts, err := a.generatorOptions(time.Now())
			if err != nil {
				return err
			}
			results, err := generator.New(opts, a.logger).Generate(cmd.Context(), scs)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SCENARIO\tRECORDS\tSIZE\tPATH")
			var total int64
			for _, r := range results {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", r.Scenario, r.Records, humanize.Bytes(uint64(r.Bytes)), r.Path)
				total += r.Bytes
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d files, %s\n", len(results), humanize.Bytes(uint64(total)))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringP("out", "o", "", "output directory (default from config, \"samples\")")
	flags.Int("concurrency", 0, "files written in parallel (default from config)")
	flags.String("start", "", "RFC 3339 timestamp of the first record (default now)")
	_ = a.v.BindPFlag("output.dir", flags.Lookup("out"))
	_ = a.v.BindPFlag("output.concurrency", flags.Lookup("concurrency"))
	_ = a.v.BindPFlag("session.start", flags.Lookup("start"))
	return cmd
}
