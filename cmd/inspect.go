package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Eissayou/k4pcap/internal/analyzer"
)

func newInspectCommand(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Decode a capture file and print its TCP records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			summary, err := analyzer.Inspect(content)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			a.logger.Debug("capture inspected", "path", args[0], "records", len(summary.Records), "skipped", summary.Skipped)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tTIME\tSOURCE\tDESTINATION\tFLAGS\tSEQ\tACK\tIPSUM\tPAYLOAD")
			for _, r := range summary.Records {
				ipsum := "ok"
				if !r.IPChecksumValid {
					ipsum = "bad"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s:%d\t%s:%d\t%s\t%d\t%d\t%s\t%s\n",
					r.Index, r.Timestamp.UTC().Format(time.RFC3339Nano),
					r.SrcIP, r.SrcPort, r.DstIP, r.DstPort,
					r.Flags, r.Seq, r.Ack, ipsum, strconv.Quote(r.Payload))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "%s: %d records, %d skipped, %d conversations, %s payload over %s\n",
				summary.LinkType, len(summary.Records), summary.Skipped,
				len(summary.Conversations), humanize.Bytes(uint64(summary.PayloadBytes)), summary.Duration)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON")
	return cmd
}
