package main

import (
	"context"
	"log/slog"
	"os"
	"runtime/pprof"
)

// cpuProfiler writes a CPU profile covering the volume-serving session.
//
//nolint:containedctx
type cpuProfiler struct {
	ctx      context.Context
	cancel   context.CancelFunc
	doneChan chan struct{}
}

// newCPUProfiler returns a pointer to a new [cpuProfiler]. Profiling starts
// immediately when a path is given and runs until [cpuProfiler.Stop].
func newCPUProfiler(ctx context.Context, path *string) *cpuProfiler {
	cprof := &cpuProfiler{}
	cprof.ctx, cprof.cancel = context.WithCancel(ctx)
	cprof.doneChan = make(chan struct{})

	go cprof.profile(path)

	return cprof
}

func (cprof *cpuProfiler) profile(path *string) {
	defer close(cprof.doneChan)

	if path == nil || *path == "" {
		return
	}

	f, err := os.Create(*path)
	if err != nil {
		slog.Error("Could not create the CPU profile file.", "err", err)

		return
	}
	defer f.Close()

	if err := pprof.StartCPUProfile(f); err != nil {
		slog.Error("Could not start profiling the CPU.", "err", err)

		return
	}

	defer pprof.StopCPUProfile()

	<-cprof.ctx.Done()
}

// Stop ends the CPU profile and waits for it to be written out.
func (cprof *cpuProfiler) Stop() {
	cprof.cancel()
	<-cprof.doneChan
}

// allocProfiler writes an allocation profile once the volume-serving
// session ends.
//
//nolint:containedctx
type allocProfiler struct {
	ctx      context.Context
	cancel   context.CancelFunc
	doneChan chan struct{}
}

// newAllocProfiler returns a pointer to a new [allocProfiler]. The profile
// is collected when [allocProfiler.Stop] is called and a path was given.
func newAllocProfiler(ctx context.Context, path *string) *allocProfiler {
	aprof := &allocProfiler{}
	aprof.ctx, aprof.cancel = context.WithCancel(ctx)
	aprof.doneChan = make(chan struct{})

	go aprof.profile(path)

	return aprof
}

func (aprof *allocProfiler) profile(path *string) {
	defer close(aprof.doneChan)

	if path == nil || *path == "" {
		return
	}

	<-aprof.ctx.Done()

	f, err := os.Create(*path)
	if err != nil {
		slog.Error("Could not create the allocation profile file.", "err", err)
	}
	defer f.Close()

	if err := pprof.Lookup("allocs").WriteTo(f, 0); err != nil {
		slog.Error("Could not write the allocation profile.", "err", err)
	}
}

// Stop collects the allocation profile and waits for it to be written out.
func (aprof *allocProfiler) Stop() {
	aprof.cancel()
	<-aprof.doneChan
}
