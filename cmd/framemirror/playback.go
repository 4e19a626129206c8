package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/evan-idocoding/framekit"
	"github.com/evan-idocoding/framekit/frame"
	"github.com/evan-idocoding/framekit/internal/codec"
	"github.com/evan-idocoding/framekit/internal/scenario"
	"github.com/evan-idocoding/framekit/ops"
	"github.com/evan-idocoding/framekit/rt/sched"
)

const settlePoll = 10 * time.Millisecond

// playback feeds scenario players into a runtime. replay calls are serialized by
// the watcher; play may run concurrently with one of them only at startup.
type playback struct {
	rt     *framekit.Runtime
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func newPlayback(rt *framekit.Runtime, logger *slog.Logger) *playback {
	return &playback{rt: rt, logger: logger}
}

// play runs sc to completion and waits until the mirror has settled every batch.
func (p *playback) play(ctx context.Context, sc *scenario.Scenario) error {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.mu.Lock()
	p.cancel, p.done = cancel, done
	p.mu.Unlock()
	defer func() {
		cancel()
		close(done)
	}()

	player := scenario.NewPlayer(sc, scenario.WithLogger(p.logger))
	var (
		hmu     sync.Mutex
		handles []sched.Handle
	)
	unsubscribe := player.Graph().OnAnnounce(func(batch []frame.Source) {
		h := p.rt.Announce(batch)
		hmu.Lock()
		handles = append(handles, h)
		hmu.Unlock()
	})
	defer unsubscribe()

	start := time.Now()
	if err := player.Run(ctx); err != nil {
		return err
	}
	hmu.Lock()
	pending := append([]sched.Handle(nil), handles...)
	hmu.Unlock()
	if err := settle(ctx, p.rt.Mirror, pending); err != nil {
		return err
	}
	p.logger.Info("scenario played",
		slog.Int("batches", len(pending)),
		slog.Int("frames", p.rt.Mirror.Snapshot().Len()),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// replay stops the current playback, resets the session and plays sc in the new one.
func (p *playback) replay(ctx context.Context, sc *scenario.Scenario) {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
	if err := p.rt.StopSession(ctx); err != nil {
		p.logger.Error("stop session failed", slog.Any("error", err))
		return
	}
	p.logger.Info("scenario changed, replaying", slog.String("session", p.rt.SessionID()))
	go func() {
		if err := p.play(ctx, sc); err != nil && ctx.Err() == nil {
			p.logger.Error("scenario playback failed", slog.Any("error", err))
		}
	}()
}

// settle waits for every announcement task and then for retries to drain.
func settle(ctx context.Context, m *frame.Mirror, handles []sched.Handle) error {
	for _, h := range handles {
		if err := h.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("announce: %w", err)
		}
	}
	t := time.NewTicker(settlePoll)
	defer t.Stop()
	for m.Stats().PendingRetries > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}

func exportFrames(path string, m *frame.Mirror) error {
	view, _ := ops.BuildFramesView(m, "")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := codec.NewEncoder(f).Encode(view); err != nil {
		_ = f.Close()
		return fmt.Errorf("export %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return nil
}

// inspectExport prints an export written by exportFrames, as a tree or, with diag,
// in CBOR diagnostic notation.
func inspectExport(w io.Writer, path string, diag bool) error {
	if diag {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("inspect: %w", err)
		}
		s, err := codec.Diagnose(data)
		if err != nil {
			return fmt.Errorf("inspect %s: %w", path, err)
		}
		_, err = fmt.Fprintln(w, s)
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("inspect: %w", err)
	}
	defer f.Close()
	var view ops.FramesView
	if err := codec.NewDecoder(f).Decode(&view); err != nil {
		return fmt.Errorf("inspect %s: %w", path, err)
	}
	if _, err := fmt.Fprintf(w, "frames %d  version %d  session %d\n", len(view.Frames), view.Version, view.Session); err != nil {
		return err
	}
	for _, fv := range view.Frames {
		if _, err := fmt.Fprintf(w, "%*s%s (%s) %s\n", 2*fv.Depth, "", fv.Name, fv.Unique, fv.Kind); err != nil {
			return err
		}
	}
	return nil
}

func printSummary(w io.Writer, m *frame.Mirror) error {
	snap := m.Snapshot()
	st := m.Stats()
	_, err := fmt.Fprintf(w, "frames %d  version %d  placeholders %d  pending %d\n",
		snap.Len(), snap.Version(), st.Placeholders, st.PendingRetries)
	if err != nil {
		return err
	}
	snap.Walk(func(h *frame.Handle, depth int) bool {
		_, err = fmt.Fprintf(w, "%*s%s (%s)\n", 2*depth, "", h.Name(), snap.UniqueName(h))
		return err == nil
	})
	return err
}
