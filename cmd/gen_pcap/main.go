// Package main regenerates the bundled sample captures.
//
// It writes every built-in scenario to ./samples using the default session
// addressing and the current time as the first timestamp. For anything more
// configurable use "k4pcap generate".
//
// Usage:
//
//	go run ./cmd/gen_pcap
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Eissayou/k4pcap/internal/config"
	"github.com/Eissayou/k4pcap/internal/generator"
	applog "github.com/Eissayou/k4pcap/internal/log"
	"github.com/Eissayou/k4pcap/internal/scenario"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config.Default()); err != nil {
		slog.Error("generation failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger, err := applog.Init(cfg.Log)
	if err != nil {
		return err
	}
	ep, err := cfg.Endpoints()
	if err != nil {
		return err
	}
	asm, err := cfg.Assembler()
	if err != nil {
		return err
	}
	start, err := cfg.StartTime(time.Now())
	if err != nil {
		return err
	}

	gen := generator.New(generator.Options{
		Dir:         cfg.Output.Dir,
		Concurrency: cfg.Output.Concurrency,
		Start:       start,
		Endpoints:   ep,
		Assembler:   asm,
	}, logger)
	results, err := gen.Generate(ctx, scenario.Builtins())
	if err != nil {
		return err
	}
	logger.Info("samples generated", "dir", cfg.Output.Dir, "files", len(results))
	return nil
}
