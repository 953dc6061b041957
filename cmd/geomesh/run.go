// File: cmd/geomesh/run.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/momentics/geomesh/control"
	"github.com/momentics/geomesh/geometry"
	"github.com/momentics/geomesh/hierarchy"
	"github.com/momentics/geomesh/internal/logging"
	"github.com/momentics/geomesh/work"
)

type runOptions struct {
	configPath string
	threads    int
	items      int
	maxSize    uint64
	seed       uint64
	timeout    time.Duration
	json       bool
	metrics    bool
	probes     bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build a mesh, run synthetic work through it and print pool statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMesh(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "config file (default ./geomesh.yaml when present)")
	f.IntVarP(&opts.threads, "threads", "t", 0, "threads to create including the control thread (default max_threads)")
	f.IntVarP(&opts.items, "items", "n", 1000, "synthetic work items")
	f.Uint64Var(&opts.maxSize, "max-size", 1000, "largest synthetic item size")
	f.Uint64Var(&opts.seed, "seed", 1, "synthetic workload seed")
	f.DurationVar(&opts.timeout, "timeout", 30*time.Second, "give up when work has not drained by then")
	f.BoolVar(&opts.json, "json", false, "print statistics as JSON")
	f.BoolVar(&opts.metrics, "metrics", false, "print prometheus samples after the statistics")
	f.BoolVar(&opts.probes, "probes", false, "print debug probe output after the statistics")
	return cmd
}

func runMesh(ctx context.Context, out, errOut io.Writer, opts *runOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, v, err := control.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	threads := opts.threads
	if threads <= 0 {
		threads = cfg.MaxThreads
	}
	cfg.MaxThreads = max(cfg.MaxThreads, threads)

	lc, err := cfg.Logging(errOut)
	if err != nil {
		return err
	}
	log := logging.New(lc)

	pool, err := hierarchy.NewPool(geometry.NewLattice(), cfg.Pool(), hierarchy.WithLogger(log))
	if err != nil {
		return err
	}
	defer pool.Close()

	ctl := control.NewController(cfg)
	ctl.RegisterStats("pool", pool)
	ctl.OnReload(func() {
		log.Warn("geomesh: configuration changed on disk; restart to apply", "file", v.ConfigFileUsed())
	})
	if v.ConfigFileUsed() != "" {
		ctl.Watch(v, func(err error) { log.Error("geomesh: config reload failed", "error", err) })
	}

	if err := buildMesh(pool, threads); err != nil {
		return err
	}
	edges, err := pool.ConnectLattice()
	if err != nil {
		return err
	}
	log.Info("geomesh: mesh built", "threads", threads, "edges", edges)

	dim := 0
	if cfg.NumDimensions > 0 {
		dim = int(opts.seed % uint64(cfg.NumDimensions))
	}
	producer, err := work.NewSynthetic(opts.items, 256, opts.maxSize, dim, opts.seed)
	if err != nil {
		return err
	}
	items, err := work.Collect(ctx, producer)
	if err != nil {
		return err
	}

	if len(items) > 0 {
		if threads < 2 {
			return fmt.Errorf("geomesh: %d items need at least one worker thread", len(items))
		}
		if _, err := pool.DistributeWork(items, spin); err != nil {
			return err
		}
	}
	if err := drain(ctx, pool, opts.timeout); err != nil {
		return err
	}

	if err := printStats(out, pool, opts.json); err != nil {
		return err
	}
	if opts.metrics {
		if err := printMetrics(out, pool); err != nil {
			return err
		}
	}
	if opts.probes {
		return ctl.Probes().DumpYAML(out)
	}
	return nil
}

// buildMesh creates control thread 0 and a 12-ary tree of workers below it.
// Threads with children become managers.
func buildMesh(p *hierarchy.Pool, n int) error {
	if _, err := p.CreateThread(0, hierarchy.RoleControl, -1); err != nil {
		return err
	}
	for id := 1; id < n; id++ {
		role := hierarchy.RoleWorker
		if id*hierarchy.MaxChildren+1 < n {
			role = hierarchy.RoleManager
		}
		if _, err := p.CreateThread(id, role, (id-1)/hierarchy.MaxChildren); err != nil {
			return err
		}
	}
	return nil
}

func drain(ctx context.Context, p *hierarchy.Pool, timeout time.Duration) error {
	if err := p.Start(ctx, nil); err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	idleErr := p.WaitIdle(wctx)
	p.Stop()
	if err := p.Wait(); err != nil {
		return err
	}
	return idleErr
}

var sink atomic.Uint64

// spin burns CPU proportional to the item size.
func spin(it work.Item) error {
	var acc uint64
	for i := uint64(0); i < it.Size*64; i++ {
		acc = acc*6364136223846793005 + i
	}
	sink.Add(acc)
	return nil
}

func printStats(w io.Writer, p *hierarchy.Pool, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(p.StatsMap())
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p.Stats()); err != nil {
		return err
	}
	return enc.Close()
}

func printMetrics(w io.Writer, p *hierarchy.Pool) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(control.NewPoolCollector(p)); err != nil {
		return err
	}
	mfs, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "pool" {
					continue
				}
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			val := m.GetGauge().GetValue()
			if c := m.GetCounter(); c != nil {
				val = c.GetValue()
			}
			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			fmt.Fprintf(w, "%s %g\n", name, val)
		}
	}
	return nil
}
