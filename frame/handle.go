package frame

import (
	"fmt"
	"sync/atomic"
)

// HandleState is the lifecycle of a Handle.
type HandleState int32

const (
	HandleUndefined HandleState = iota
	HandleDefined
	// HandleRemoved is terminal; entered when the mirror is reset.
	HandleRemoved
)

func (s HandleState) String() string {
	switch s {
	case HandleUndefined:
		return "undefined"
	case HandleDefined:
		return "defined"
	case HandleRemoved:
		return "removed"
	default:
		return fmt.Sprintf("HandleState(%d)", int32(s))
	}
}

type names struct {
	unique string
	short  string
}

// Handle is the mirror-side identity of one full path. It is safe for concurrent use.
type Handle struct {
	name string
	path string

	state atomic.Int32 // HandleState
	node  atomic.Pointer[Node]
	names atomic.Pointer[names]
}

func newHandle(path string) *Handle {
	h := &Handle{name: leaf(path), path: path}
	h.names.Store(&names{unique: path, short: path})
	return h
}

// Name is the last path segment.
func (h *Handle) Name() string { return h.name }

// FullPath is the path this handle was created for. It never changes.
func (h *Handle) FullPath() string { return h.path }

// UniqueName is the shortest path suffix that identifies the frame. Until the handle is
// defined it is the full path.
func (h *Handle) UniqueName() string { return h.names.Load().unique }

// UniqueShortName is the abbreviated display form of UniqueName.
func (h *Handle) UniqueShortName() string { return h.names.Load().short }

func (h *Handle) State() HandleState { return HandleState(h.state.Load()) }
func (h *Handle) IsDefined() bool    { return h.State() == HandleDefined }

// Node returns the bound node, or nil while undefined.
func (h *Handle) Node() *Node { return h.node.Load() }

func (h *Handle) String() string {
	return fmt.Sprintf("%s(%s)", h.path, h.State())
}

func (h *Handle) bind(n *Node) {
	h.node.Store(n)
	h.state.CompareAndSwap(int32(HandleUndefined), int32(HandleDefined))
}

func (h *Handle) setNames(unique, short string) {
	cur := h.names.Load()
	if cur.unique == unique && cur.short == short {
		return
	}
	h.names.Store(&names{unique: unique, short: short})
}

func (h *Handle) markRemoved() { h.state.Store(int32(HandleRemoved)) }
