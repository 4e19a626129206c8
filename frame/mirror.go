package frame

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/evan-idocoding/framekit/rt/sched"
)

// Mirror keeps a lock-free readable copy of a producer's frame tree.
//
// All registry mutation runs in tasks submitted with the Mirror as owner, so it is
// serialized without locks. Reads go through the latest published Snapshot.
type Mirror struct {
	cfg    config
	sched  *sched.Scheduler
	logger *slog.Logger
	root   *Handle

	// sessionMu orders session bumps against batch submission, so a batch announced
	// after Reset always queues behind the reset task.
	sessionMu sync.Mutex
	session   atomic.Uint64
	handles atomic.Pointer[sync.Map] // path -> *Handle, one per path per session
	snap    atomic.Pointer[Snapshot]

	// Owner-confined.
	reg registry

	watchMu  sync.Mutex
	watchers map[uint64]chan uint64
	watchSeq uint64

	stats counters
}

type registry struct {
	canonical map[string]*Handle
	aliases   map[string]*Handle
	undefined map[string]*Handle
	retries   map[*retry]struct{}
	version   uint64
}

type retry struct {
	timer sched.Handle
}

type counters struct {
	batches      atomic.Uint64
	registered   atomic.Uint64
	dropped      atomic.Uint64
	retries      atomic.Uint64
	placeholders atomic.Int64
	pending      atomic.Int64 // retries waiting on a timer or the owner queue
}

// Stats is a point-in-time view of mirror activity.
type Stats struct {
	Session        uint64 `json:"session"`
	Version        uint64 `json:"version"`
	Defined        int    `json:"defined"`
	Placeholders   int64  `json:"placeholders"`
	PendingRetries int64  `json:"pending_retries"`
	Batches        uint64 `json:"batches"`
	Registered     uint64 `json:"registered"`
	Dropped        uint64 `json:"dropped"`
	Retries        uint64 `json:"retries"`
}

// NewMirror creates a mirror holding only its root. s runs every registration task.
func NewMirror(s *sched.Scheduler, opts ...Option) *Mirror {
	if s == nil {
		panic("frame: nil scheduler")
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.rootName == "" || strings.Contains(cfg.rootName, "/") {
		panic(fmt.Sprintf("frame: invalid root name %q", cfg.rootName))
	}
	if cfg.maxRetries < 0 {
		panic("frame: max retries must be >= 0")
	}
	m := &Mirror{
		cfg:      cfg,
		sched:    s,
		logger:   cfg.logger,
		watchers: make(map[uint64]chan uint64),
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.root = newHandle(cfg.rootName)
	m.root.bind(newNode(cfg.rootName, cfg.rootName, "", KindFixed, Identity()))
	m.resetRegistry()
	m.publish()
	return m
}

// Announce queues registration of a batch of newly created producer frames. The batch
// may be in any order. The returned handle settles when the first pass finishes;
// retries of under-construction frames run later as separate tasks.
func (m *Mirror) Announce(frames []Source) sched.Handle {
	batch := append([]Source(nil), frames...)
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()
	gen := m.session.Load()
	return m.sched.SubmitOwned(m, func(context.Context) error {
		m.register(gen, batch, 0)
		return nil
	}, false,
		sched.WithName("frame.register"),
		sched.WithAttrs(slog.Int("frames", len(batch))),
	)
}

func (m *Mirror) register(gen uint64, batch []Source, attempt int) {
	if gen != m.session.Load() {
		m.logger.Debug("stale frame batch ignored", slog.Int("frames", len(batch)))
		return
	}
	m.stats.batches.Add(1)

	pending := make([]Source, 0, len(batch))
	for _, src := range batch {
		if src == nil || src.Parent() == nil {
			continue
		}
		if _, ok := m.reg.canonical[src.Path()]; ok {
			continue
		}
		if m.transient(src) {
			continue
		}
		if k := src.Kind(); k != KindFixed && k != KindVariable {
			m.drop(src, fmt.Errorf("%w: %s", ErrUnsupportedKind, k))
			continue
		}
		pending = append(pending, src)
	}

	var added []*Handle
	for len(pending) > 0 {
		progressed := false
		rest := pending[:0]
		for _, src := range pending {
			parent, ok := m.parentOf(src)
			if !ok {
				rest = append(rest, src)
				continue
			}
			progressed = true
			if _, dup := m.reg.canonical[src.Path()]; dup {
				continue
			}
			h, err := m.define(src, parent)
			if err != nil {
				m.drop(src, err)
				continue
			}
			added = append(added, h)
		}
		pending = rest
		if !progressed {
			break
		}
	}

	var later []Source
	for _, src := range pending {
		if underConstruction(src) {
			later = append(later, src)
			continue
		}
		m.drop(src, fmt.Errorf("%w: %q", ErrParentMissing, src.Parent().Path()))
	}

	if len(added) > 0 {
		m.resolvePlaceholders(added)
		m.publish()
	}
	if len(later) == 0 {
		return
	}
	if attempt >= m.retryLimit() {
		for _, src := range later {
			m.drop(src, fmt.Errorf("%w: %q still missing after %d retries", ErrParentMissing, src.Parent().Path(), attempt))
		}
		return
	}
	m.scheduleRetry(gen, later, attempt)
}

func (m *Mirror) retryLimit() int {
	if m.cfg.budget != nil {
		return max(m.cfg.budget(), 0)
	}
	return m.cfg.maxRetries
}

func (m *Mirror) scheduleRetry(gen uint64, batch []Source, attempt int) {
	delay := m.cfg.backoff(attempt)
	m.logger.Debug("frame batch retry scheduled",
		slog.Int("frames", len(batch)),
		slog.Int("attempt", attempt+1),
		slog.Duration("delay", delay),
	)
	r := &retry{}
	m.reg.retries[r] = struct{}{}
	m.stats.retries.Add(1)
	m.stats.pending.Add(1)
	r.timer = m.sched.ScheduleDelayed(func(context.Context) error {
		m.sched.SubmitOwned(m, func(context.Context) error {
			if _, ok := m.reg.retries[r]; !ok {
				return nil
			}
			delete(m.reg.retries, r)
			m.stats.pending.Add(-1)
			m.register(gen, batch, attempt+1)
			return nil
		}, false, sched.WithName("frame.retry"))
		return nil
	}, delay, sched.WithName("frame.retry.timer"))
}

func (m *Mirror) parentOf(src Source) (*Handle, bool) {
	p := src.Parent()
	if p.Parent() == nil {
		return m.root, true
	}
	h, ok := m.reg.canonical[p.Path()]
	return h, ok
}

func (m *Mirror) define(src Source, parent *Handle) (*Handle, error) {
	path := src.Path()
	var n *Node
	switch src.Kind() {
	case KindFixed:
		n = newNode(src.Name(), path, parent.path, KindFixed, src.Transform())
	case KindVariable:
		vs, ok := src.(VariableSource)
		if !ok {
			return nil, fmt.Errorf("%w: variable frame without inputs", ErrUnsupportedKind)
		}
		n = newNode(src.Name(), path, parent.path, KindVariable, Identity())
		n.bindInputs(vs.Inputs())
	}

	v, loaded := m.handles.Load().LoadOrStore(path, newHandle(path))
	h := v.(*Handle)
	if loaded {
		// A placeholder, possibly already aliased to a suffix match, becomes canonical.
		delete(m.reg.aliases, path)
		if _, ok := m.reg.undefined[path]; ok {
			delete(m.reg.undefined, path)
			m.stats.placeholders.Add(-1)
		}
	}
	h.bind(n)
	m.reg.canonical[path] = h
	m.stats.registered.Add(1)
	return h, nil
}

func (m *Mirror) drop(src Source, err error) {
	m.stats.dropped.Add(1)
	m.logger.Warn("frame dropped", slog.String("path", src.Path()), slog.Any("err", err))
}

func (m *Mirror) transient(src Source) bool {
	name := src.Name()
	for _, suffix := range m.cfg.transient {
		if suffix != "" && strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// resolvePlaceholders binds waiting placeholders to matching handles among added.
func (m *Mirror) resolvePlaceholders(added []*Handle) {
	for path, ph := range m.reg.undefined {
		if c := bestSuffixMatch(path, added); c != nil {
			m.bindAlias(ph, c)
		}
	}
}

func (m *Mirror) bindAlias(ph, target *Handle) {
	ph.bind(target.Node())
	m.reg.aliases[ph.path] = ph
	if _, ok := m.reg.undefined[ph.path]; ok {
		delete(m.reg.undefined, ph.path)
		m.stats.placeholders.Add(-1)
	}
}

// bestSuffixMatch picks the handle whose path ends with "/"+path. Ties go to the
// shortest path, then the lexicographically smallest.
func bestSuffixMatch(path string, hs []*Handle) *Handle {
	var best *Handle
	suffix := "/" + path
	for _, h := range hs {
		if !strings.HasSuffix(h.path, suffix) {
			continue
		}
		if best == nil || len(h.path) < len(best.path) || (len(h.path) == len(best.path) && h.path < best.path) {
			best = h
		}
	}
	return best
}

func (m *Mirror) publish() {
	m.reg.version++
	aliases := make([]*Handle, 0, len(m.reg.aliases))
	for _, a := range m.reg.aliases {
		aliases = append(aliases, a)
	}
	sort.Slice(aliases, func(i, j int) bool { return aliases[i].path < aliases[j].path })

	s := buildSnapshot(m.reg.version, m.session.Load(), m.root, m.reg.canonical, aliases)
	m.snap.Store(s)
	m.notify(s.version)
}

func (m *Mirror) resetRegistry() {
	table := new(sync.Map)
	table.Store(m.root.path, m.root)
	m.handles.Store(table)
	m.reg = registry{
		canonical: map[string]*Handle{m.root.path: m.root},
		aliases:   make(map[string]*Handle),
		undefined: make(map[string]*Handle),
		retries:   make(map[*retry]struct{}),
		version:   m.reg.version,
	}
	m.stats.placeholders.Store(0)
	m.stats.pending.Store(0)
}

// Reset ends the current session: pending retries are canceled, queued registration
// batches are discarded, every handle except the root becomes HandleRemoved and a
// root-only snapshot is published. It waits for the reset task or ctx.
func (m *Mirror) Reset(ctx context.Context) error {
	m.sessionMu.Lock()
	m.session.Add(1)
	h := m.sched.SubmitOwned(m, func(context.Context) error {
		m.clear()
		return nil
	}, true, sched.WithName("frame.reset"))
	m.sessionMu.Unlock()
	return h.Wait(ctx)
}

func (m *Mirror) clear() {
	for r := range m.reg.retries {
		if r.timer != nil {
			r.timer.Cancel()
		}
	}
	for _, h := range m.reg.canonical {
		if h == m.root {
			continue
		}
		if n := h.Node(); n != nil {
			n.release()
		}
	}
	m.handles.Load().Range(func(_, v any) bool {
		if h := v.(*Handle); h != m.root {
			h.markRemoved()
		}
		return true
	})
	m.resetRegistry()
	m.publish()
	m.logger.Info("frame mirror reset", slog.Uint64("session", m.session.Load()))
}

// Tick recomputes every dirty variable frame once and returns how many were refreshed.
func (m *Mirror) Tick() int {
	n := 0
	for _, node := range m.snap.Load().variable {
		if node.refresh() {
			n++
		}
	}
	return n
}

// StartTicking calls Tick every period on the scheduler until the handle is canceled
// or the scheduler session stops.
func (m *Mirror) StartTicking(period time.Duration) sched.Handle {
	return m.sched.SchedulePeriodic(func(context.Context) error {
		m.Tick()
		return nil
	}, period, period, sched.WithName("frame.tick"))
}

// Stats returns a snapshot of mirror counters.
func (m *Mirror) Stats() Stats {
	s := m.snap.Load()
	return Stats{
		Session:        s.session,
		Version:        s.version,
		Defined:        s.Len(),
		Placeholders:   m.stats.placeholders.Load(),
		PendingRetries: m.stats.pending.Load(),
		Batches:        m.stats.batches.Load(),
		Registered:     m.stats.registered.Load(),
		Dropped:        m.stats.dropped.Load(),
		Retries:        m.stats.retries.Load(),
	}
}
