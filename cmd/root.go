// Package cmd implements the k4pcap command line using cobra.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Eissayou/k4pcap/internal/config"
	"github.com/Eissayou/k4pcap/internal/generator"
	applog "github.com/Eissayou/k4pcap/internal/log"
	"github.com/Eissayou/k4pcap/internal/scenario"
)

// app is the state shared by subcommands once the root pre-run finished.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	logger  *slog.Logger
	catalog *scenario.Catalog
}

// NewRootCommand builds the command tree. Output goes to out, logs to errOut.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:   "k4pcap",
		Short: "Generate synthetic K4 Direct protocol capture files",
		Long: `k4pcap writes pcap files carrying Ethernet/IPv4/TCP frames with
Elecraft K4 direct-control commands, for use as test fixtures.

Built-in scenarios reproduce the reference sample captures; more can be
loaded from YAML files. Captures can be inspected from the command line or
served over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(errOut)
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file path (YAML)")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().StringSlice("scenario-file", nil, "extra scenario YAML file (repeatable)")
	_ = a.v.BindPFlag("log.level", root.PersistentFlags().Lookup("log-level"))
	_ = a.v.BindPFlag("scenarios.files", root.PersistentFlags().Lookup("scenario-file"))

	root.AddCommand(
		newGenerateCommand(a),
		newScenariosCommand(a),
		newInspectCommand(a),
		newServeCommand(a),
	)
	return root
}

// load reads configuration, sets up logging and fills the scenario catalog.
func (a *app) load(errOut io.Writer) error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	logger, err := applog.New(errOut, cfg.Log)
	if err != nil {
		return err
	}

	catalog := scenario.NewCatalog()
	for _, path := range cfg.Scenarios.Files {
		scs, err := scenario.LoadFile(path)
		if err != nil {
			return err
		}
		if err := catalog.Add(scs...); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		logger.Debug("scenarios loaded", "path", path, "count", len(scs))
	}

	a.cfg, a.logger, a.catalog = cfg, logger, catalog
	return nil
}

// generatorOptions derives generator options from the loaded configuration.
func (a *app) generatorOptions(now time.Time) (generator.Options, error) {
	ep, err := a.cfg.Endpoints()
	if err != nil {
		return generator.Options{}, err
	}
	asm, err := a.cfg.Assembler()
	if err != nil {
		return generator.Options{}, err
	}
	start, err := a.cfg.StartTime(now)
	if err != nil {
		return generator.Options{}, err
	}
	opts := generator.Options{
		Dir:         a.cfg.Output.Dir,
		Concurrency: a.cfg.Output.Concurrency,
		Start:       start,
		Endpoints:   ep,
		Assembler:   asm,
	}
	if a.cfg.Session.Start == "" {
		opts.Now = time.Now
	}
	return opts, nil
}
