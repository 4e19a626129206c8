package frame

import (
	"context"
	"sync"

	"github.com/evan-idocoding/framekit/rt/sched"
)

// Snapshot returns the latest published snapshot.
func (m *Mirror) Snapshot() *Snapshot { return m.snap.Load() }

// Root returns the root handle. It stays defined across resets.
func (m *Mirror) Root() *Handle { return m.root }

// Defined returns all defined handles, sorted by path.
func (m *Mirror) Defined() []*Handle { return m.snap.Load().Defined() }

// Subtree returns path's handle and its descendants, depth first.
func (m *Mirror) Subtree(path string) []*Handle { return m.snap.Load().Subtree(path) }

// LookupUnique resolves a unique name or unique short name. It returns nil if none matches.
func (m *Mirror) LookupUnique(name string) *Handle {
	h, _ := m.snap.Load().LookupUnique(name)
	return h
}

// Lookup returns the handle for a full path. If none exists and createPlaceholder is
// true, an undefined placeholder is created; concurrent callers for the same path get
// the same handle. It returns nil if path is empty, or missing and create is false.
func (m *Mirror) Lookup(path string, createPlaceholder bool) *Handle {
	if path == "" {
		return nil
	}
	if h, ok := m.snap.Load().Lookup(path); ok {
		return h
	}
	table := m.handles.Load()
	if v, ok := table.Load(path); ok {
		return v.(*Handle)
	}
	if !createPlaceholder {
		return nil
	}
	v, loaded := table.LoadOrStore(path, newHandle(path))
	h := v.(*Handle)
	if !loaded {
		m.sched.SubmitOwned(m, func(context.Context) error {
			m.addPlaceholder(table, h)
			return nil
		}, false, sched.WithName("frame.placeholder"))
	}
	return h
}

// addPlaceholder puts h on the undefined list, or binds it right away when a matching
// frame is already registered.
func (m *Mirror) addPlaceholder(table *sync.Map, h *Handle) {
	if table != m.handles.Load() {
		h.markRemoved()
		return
	}
	if h.IsDefined() {
		return
	}
	if _, ok := m.reg.undefined[h.path]; ok {
		return
	}
	m.reg.undefined[h.path] = h
	m.stats.placeholders.Add(1)

	canonical := make([]*Handle, 0, len(m.reg.canonical))
	for _, c := range m.reg.canonical {
		canonical = append(canonical, c)
	}
	if c := bestSuffixMatch(h.path, canonical); c != nil {
		m.bindAlias(h, c)
		m.publish()
	}
}

// Watch returns a channel receiving the version of each newly published snapshot.
// Only the latest version is buffered; slow readers skip intermediate ones. Call
// cancel to stop watching; the channel is closed.
func (m *Mirror) Watch() (<-chan uint64, func()) {
	ch := make(chan uint64, defaultWatchBuffer)
	m.watchMu.Lock()
	m.watchSeq++
	id := m.watchSeq
	m.watchers[id] = ch
	m.watchMu.Unlock()

	return ch, func() {
		m.watchMu.Lock()
		defer m.watchMu.Unlock()
		if _, ok := m.watchers[id]; ok {
			delete(m.watchers, id)
			close(ch)
		}
	}
}

func (m *Mirror) notify(version uint64) {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	for _, ch := range m.watchers {
		select {
		case ch <- version:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- version:
		default:
		}
	}
}
