package frame

import "sync/atomic"

// Node is the mirror's duplicate of a producer frame.
//
// Its transform can be read from any goroutine. Parentage is kept as a path and
// resolved through a Snapshot.
type Node struct {
	name       string
	path       string
	parentPath string
	kind       Kind

	transform atomic.Pointer[Transform]

	// Variable nodes only.
	inputs Inputs
	dirty  atomic.Bool
	unsub  []func()
}

func newNode(name, path, parentPath string, kind Kind, t Transform) *Node {
	n := &Node{name: name, path: path, parentPath: parentPath, kind: kind}
	n.transform.Store(&t)
	return n
}

func (n *Node) Name() string { return n.name }
func (n *Node) Path() string { return n.path }

// ParentPath is empty for the mirror root.
func (n *Node) ParentPath() string { return n.parentPath }
func (n *Node) Kind() Kind         { return n.kind }

// Transform returns the latest transform to the parent.
func (n *Node) Transform() Transform { return *n.transform.Load() }

// Dirty reports whether an input changed since the last refresh.
func (n *Node) Dirty() bool { return n.dirty.Load() }

func (n *Node) bindInputs(in Inputs) {
	n.inputs = in
	for _, s := range in.scalars() {
		n.unsub = append(n.unsub, s.Subscribe(n.markDirty))
	}
	n.transform.Store(ptr(in.Transform()))
}

func (n *Node) markDirty() { n.dirty.Store(true) }

// refresh recomputes the transform if the node is dirty. It reports whether it did.
func (n *Node) refresh() bool {
	if !n.dirty.CompareAndSwap(true, false) {
		return false
	}
	n.transform.Store(ptr(n.inputs.Transform()))
	return true
}

func (n *Node) release() {
	for _, cancel := range n.unsub {
		if cancel != nil {
			cancel()
		}
	}
	n.unsub = nil
}

func ptr[T any](v T) *T { return &v }
