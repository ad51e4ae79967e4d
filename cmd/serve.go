package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/Eissayou/k4pcap/internal/generator"
	"github.com/Eissayou/k4pcap/internal/geoip"
	"github.com/Eissayou/k4pcap/internal/server"
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve scenario captures and capture analysis over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := a.generatorOptions(time.Now())
			if err != nil {
				return err
			}

			// GeoIP database is optional. Without it, the server still works
			// but returns no location data.
			var geo server.Locator
			if path := a.cfg.Server.GeoIPDatabase; path != "" {
				reader, err := geoip.NewReader(path)
				if err != nil {
					a.logger.Warn("GeoIP database not loaded", "path", path, "error", err)
				} else {
					defer reader.Close()
					geo = reader
				}
			}

			srv := server.New(a.catalog, generator.New(opts, a.logger), geo, a.logger)
			return srv.Run(cmd.Context(), a.cfg.Server.Listen)
		},
	}
	cmd.Flags().String("listen", "", "listen address (default from config, \":5432\")")
	cmd.Flags().String("geoip-db", "", "path to a GeoLite2-City database")
	_ = a.v.BindPFlag("server.listen", cmd.Flags().Lookup("listen"))
	_ = a.v.BindPFlag("server.geoip_database", cmd.Flags().Lookup("geoip-db"))
	return cmd
}
