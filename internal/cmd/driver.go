// Package cmd wires together the configuration, input parsing, HHH engine,
// output formatting, and metrics packages into the agurim command-line
// tool, and implements the boundary-triggered two-pass control flow: a
// scan that drains pass-1 discovery every time the parsed input crosses an
// aggregation boundary, followed (for the plotting output formats) by a
// second scan that re-bins the same flows onto the accepted skeleton at
// plotting resolution.
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/AdguardTeam/golibs/log"

	"github.com/agurim/agurim/internal/agflow"
	"github.com/agurim/agurim/internal/agufmt"
	"github.com/agurim/agurim/internal/aguriparse"
	"github.com/agurim/agurim/internal/config"
	"github.com/agurim/agurim/internal/hhhengine"
	"github.com/agurim/agurim/internal/metrics"
)

// timedEntry pairs a parsed flow entry with the file it came from, purely
// for diagnostics.
type timedEntry struct {
	aguriparse.Entry
	source string
}

// Driver runs one end-to-end agurim pass: scan inputs, discover the HHH
// aggregate skeleton (re-discovering it at every aggr_interval boundary),
// optionally re-scan for a pass-2 plotting time series, and write the
// chosen output format.
type Driver struct {
	cfg *config.Config
	m   *metrics.Engine

	filterSpec agflow.Spec
	filterAF   agflow.AddrFamily
	hasFilter  bool
}

// New returns a Driver for cfg, instrumented via m (which may be nil, in
// which case metrics calls are skipped).
func New(cfg *config.Config, m *metrics.Engine) (d *Driver, err error) {
	d = &Driver{cfg: cfg, m: m}

	if cfg.Filter != "" {
		d.filterSpec, d.filterAF, err = aguriparse.ParseFilter(cfg.Filter)
		if err != nil {
			return nil, err
		}
		d.hasFilter = true
	}

	return d, nil
}

// Run scans cfg.Paths (or stdin, if empty), drives the two-pass HHH search,
// and writes the result to cfg.OutputPath.
func (d *Driver) Run(ctx context.Context) (err error) {
	entries, err := d.collect(ctx)
	if err != nil {
		return fmt.Errorf("cmd: collecting input: %w", err)
	}

	if len(entries) == 0 {
		return fmt.Errorf("cmd: no flow entries parsed from input")
	}

	engine := hhhengine.New(hhhengine.Config{
		Basis:           d.cfg.Basis,
		ThresholdPct:    d.cfg.ThresholdPct,
		SubThresholdPct: d.cfg.SubThresholdPct,
		View:            d.cfg.View,
		MaxAggregates:   d.cfg.MaxAggregates,
	})

	start := time.Now()
	accepted, windowStart, windowEnd, totalByte, totalPacket := d.passOne(ctx, engine, entries)
	d.observeDuration(ctx, start)
	d.observeCount(ctx, len(accepted))

	summary := agufmt.Summary{
		Start:        windowStart,
		End:          windowEnd,
		TotalByte:    totalByte,
		TotalPacket:  totalPacket,
		Basis:        d.cfg.Basis,
		ThresholdPct: d.cfg.ThresholdPct,
	}

	var buckets []hhhengine.Bucket
	if d.cfg.Format != agufmt.FormatText {
		plotStart := time.Now()
		buckets = d.passTwo(engine, entries, windowStart, windowEnd)
		d.observeDuration(ctx, plotStart)
		if d.m != nil {
			d.m.PlotBucketsSet(ctx, len(buckets))
		}
	}

	return agufmt.Write(d.cfg.OutputPath, d.cfg.Format, summary, accepted, buckets)
}

// collect scans cfg.Paths (or stdin) and flattens every file's entries, in
// scan order, applying the -f filter if one was given.
func (d *Driver) collect(ctx context.Context) (entries []timedEntry, err error) {
	if len(d.cfg.Paths) == 0 {
		res, serr := aguriparse.ParseStdin(os.Stdin)
		if serr != nil {
			return nil, serr
		}

		return d.flatten([]*aguriparse.FileResult{res}), nil
	}

	results, err := aguriparse.ScanPaths(ctx, d.cfg.Paths, d.cfg.Concurrency, int64(d.cfg.MaxFileSize.Bytes()))
	if err != nil {
		return nil, err
	}

	return d.flatten(results), nil
}

func (d *Driver) flatten(results []*aguriparse.FileResult) (entries []timedEntry) {
	for _, res := range results {
		for _, e := range res.Entries {
			if d.hasFilter && !d.matchesFilter(e) {
				continue
			}
			entries = append(entries, timedEntry{Entry: e, source: res.Path})
		}
	}

	return entries
}

func (d *Driver) matchesFilter(e aguriparse.Entry) (ok bool) {
	if d.filterAF == agflow.AddrFamilyProto {
		for _, p := range e.Protos {
			if agflow.IsOverlapped(p.Spec, d.filterSpec) {
				return true
			}
		}

		return false
	}

	return agflow.IsOverlapped(e.IP.Spec, d.filterSpec)
}

// passOne runs pass-1 discovery, re-running [hhhengine.Engine.Discover]
// every time the parsed timestamps cross an aggr_interval boundary,
// honoring an explicit start/end window and stopping once total_duration
// has elapsed, grounded on the source's param_set_starttime trigger
// (agr_flg on aggr_interval, exit_flg on total_duration).
func (d *Driver) passOne(
	ctx context.Context,
	engine *hhhengine.Engine,
	entries []timedEntry,
) (accepted []*agflow.Record, start, end time.Time, totalByte, totalPacket uint64) {
	windowStart := firstTimestamp(entries)
	boundaryStart := windowStart
	discarded := 0

	for _, te := range entries {
		if !te.At.IsZero() {
			if !d.cfg.StartTime.IsZero() && te.At.Before(d.cfg.StartTime) {
				discarded++

				continue
			}
			if !d.cfg.EndTime.IsZero() && te.At.After(d.cfg.EndTime) {
				break
			}

			if boundaryStart.IsZero() {
				boundaryStart = te.At
			} else if te.At.Sub(boundaryStart) >= d.cfg.AggrInterval {
				log.Debug("cmd: aggr_interval elapsed, re-running discovery")
				accepted = engine.Discover()
				boundaryStart = te.At
			}

			end = te.At
		}

		inserted := 0
		for _, rec := range te.Entry.Records(d.cfg.View) {
			engine.Insert(rec)
			totalByte += rec.Byte
			totalPacket += rec.Packet
			inserted++
		}
		if d.m != nil {
			d.m.FlowsIngested(ctx, inserted)
		}

		if d.cfg.Format != agufmt.FormatText && d.cfg.TotalDuration > 0 &&
			!windowStart.IsZero() && te.At.Sub(windowStart) >= d.cfg.TotalDuration {
			break
		}
	}

	if d.m != nil && discarded > 0 {
		d.m.FlowsDiscarded(ctx, discarded)
	}

	accepted = engine.Discover()

	if end.IsZero() {
		end = windowStart
	}

	return accepted, windowStart, end, totalByte, totalPacket
}

// passTwo re-scans entries a second time (mirroring the source's "goto
// again" re-read), re-binning each flow's counters onto the pass-1
// skeleton at a plotting resolution [hhhengine.PlottingInterval] derives
// from the analysis window's span.
func (d *Driver) passTwo(
	engine *hhhengine.Engine,
	entries []timedEntry,
	start, end time.Time,
) (buckets []hhhengine.Bucket) {
	span := end.Sub(start)
	interval := time.Duration(hhhengine.PlottingInterval(int64(span.Seconds()))) * time.Second
	if interval <= 0 {
		interval = time.Second
	}

	acc := engine.NewPlotAccumulator(start, interval)

	for _, te := range entries {
		if !te.At.IsZero() {
			if !d.cfg.StartTime.IsZero() && te.At.Before(d.cfg.StartTime) {
				continue
			}
			if !d.cfg.EndTime.IsZero() && te.At.After(d.cfg.EndTime) {
				break
			}
		}

		for _, rec := range te.Entry.Records(d.cfg.View) {
			acc.Add(rec.Spec, rec.Byte, rec.Packet, te.At)
		}
	}

	return acc.Finish()
}

func (d *Driver) observeDuration(ctx context.Context, since time.Time) {
	if d.m == nil {
		return
	}
	d.m.HandlePassDuration(ctx, time.Since(since).Seconds())
}

func (d *Driver) observeCount(ctx context.Context, n int) {
	if d.m == nil {
		return
	}
	d.m.AggregatesKeptSet(ctx, n)
}

func firstTimestamp(entries []timedEntry) (t time.Time) {
	for _, e := range entries {
		if !e.At.IsZero() {
			return e.At
		}
	}

	return time.Time{}
}
