// Package generator renders scenarios into capture files.
//
// Each scenario is one independent pipeline: create file, write the global
// header, append one record per step, flush, close. Pipelines share nothing
// but the output directory and run concurrently on an errgroup.
package generator

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Eissayou/k4pcap/internal/scenario"
	"github.com/Eissayou/k4pcap/pkg/packet"
	"github.com/Eissayou/k4pcap/pkg/pcapfile"
)

// Options controls how captures are produced.
type Options struct {
	// Dir is the output directory. It is created if missing.
	Dir string

	// Concurrency bounds the number of files written at once. Values below
	// one mean one.
	Concurrency int

	// Start is the timestamp of the first record of every file, in seconds
	// since the epoch.
	Start float64

	// Now, when set, replaces Start: each Render and Generate call starts
	// at Now().
	Now func() time.Time

	Endpoints scenario.Endpoints
	Assembler packet.Assembler
}

// Result describes one written capture file.
type Result struct {
	Scenario string
	Path     string
	Records  int
	Bytes    int64
}

// Generator writes scenarios to disk.
type Generator struct {
	opts   Options
	logger *slog.Logger
}

// New returns a Generator. A nil logger means slog.Default().
func New(opts Options, logger *slog.Logger) *Generator {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{opts: opts, logger: logger}
}

// Render writes sc as a complete capture to w and returns the number of
// records written. Errors from w are returned unwrapped.
func (g *Generator) Render(ctx context.Context, w io.Writer, sc scenario.Scenario) (int, error) {
	return render(ctx, w, sc, g.pinned())
}

// pinned returns the options with Start resolved for one call.
func (g *Generator) pinned() Options {
	opts := g.opts
	if opts.Now != nil {
		opts.Start = pcapfile.Seconds(opts.Now())
		opts.Now = nil
	}
	return opts
}

func render(ctx context.Context, w io.Writer, sc scenario.Scenario, opts Options) (int, error) {
	pw := pcapfile.NewWriter(w)
	if err := pw.WriteGlobalHeader(); err != nil {
		return 0, err
	}
	sess := scenario.NewSession(opts.Endpoints, opts.Start)
	for i, st := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		p := sess.Next(st)
		if err := pw.WriteRecord(p.Timestamp, opts.Assembler.BuildFrame(p.Segment)); err != nil {
			return i, err
		}
	}
	return len(sc.Steps), nil
}

// Generate writes every scenario to Dir/<name>.pcap. Results are returned in
// the order of scs. The first failure cancels pipelines that have not
// finished; files of failed pipelines are removed.
func (g *Generator) Generate(ctx context.Context, scs []scenario.Scenario) ([]Result, error) {
	seen := make(map[string]bool, len(scs))
	for _, sc := range scs {
		if err := sc.Validate(); err != nil {
			return nil, err
		}
		if seen[sc.Name] {
			return nil, fmt.Errorf("%w: %q selected twice", scenario.ErrInvalidScenario, sc.Name)
		}
		seen[sc.Name] = true
	}
	if err := os.MkdirAll(g.opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	opts := g.pinned()
	results := make([]Result, len(scs))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.opts.Concurrency)
	for i, sc := range scs {
		eg.Go(func() error {
			res, err := g.writeFile(ctx, sc, opts)
			if err != nil {
				g.logger.Error("capture failed", "scenario", sc.Name, "error", err)
				return err
			}
			g.logger.Info("capture written",
				"scenario", res.Scenario,
				"path", res.Path,
				"records", res.Records,
				"bytes", res.Bytes)
			results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// writeFile renders into a temporary file next to the destination and renames
// it into place once it is complete.
func (g *Generator) writeFile(ctx context.Context, sc scenario.Scenario, opts Options) (res Result, err error) {
	path := filepath.Join(opts.Dir, sc.FileName())
	tmp, err := os.CreateTemp(opts.Dir, "."+sc.Name+".*.tmp")
	if err != nil {
		return res, fmt.Errorf("%s: failed to create file: %w", sc.Name, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	n, err := render(ctx, bw, sc, opts)
	if err != nil {
		return res, fmt.Errorf("%s: failed after %d records: %w", sc.Name, n, err)
	}
	if err = bw.Flush(); err != nil {
		return res, fmt.Errorf("%s: failed to flush %s: %w", sc.Name, tmp.Name(), err)
	}
	info, err := tmp.Stat()
	if err != nil {
		return res, fmt.Errorf("%s: %w", sc.Name, err)
	}
	if err = tmp.Close(); err != nil {
		return res, fmt.Errorf("%s: failed to close %s: %w", sc.Name, tmp.Name(), err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return res, fmt.Errorf("%s: %w", sc.Name, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return res, fmt.Errorf("%s: failed to move capture into place: %w", sc.Name, err)
	}

	return Result{Scenario: sc.Name, Path: path, Records: n, Bytes: info.Size()}, nil
}
