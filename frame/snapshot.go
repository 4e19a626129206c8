package frame

import "sort"

// Snapshot is an immutable view of the registry, published atomically after every
// structural change. All methods are safe for concurrent use.
type Snapshot struct {
	version uint64
	session uint64
	root    *Handle

	byPath   map[string]*Handle
	byUnique map[string]*Handle
	byShort  map[string]*Handle
	children map[string][]*Handle
	names    map[string]names

	// defined holds canonical handles (no aliases), sorted by path.
	defined  []*Handle
	variable []*Node
}

// Version increases with every publication within a mirror.
func (s *Snapshot) Version() uint64 { return s.version }

// Session is the reset generation the snapshot belongs to.
func (s *Snapshot) Session() uint64 { return s.session }

func (s *Snapshot) Root() *Handle { return s.root }

// Len is the number of defined frames, including the root.
func (s *Snapshot) Len() int { return len(s.defined) }

// Lookup returns the handle bound to path, including resolved placeholder aliases.
func (s *Snapshot) Lookup(path string) (*Handle, bool) {
	h, ok := s.byPath[path]
	return h, ok
}

// LookupUnique resolves a unique name, falling back to unique short names.
func (s *Snapshot) LookupUnique(name string) (*Handle, bool) {
	if h, ok := s.byUnique[name]; ok {
		return h, true
	}
	h, ok := s.byShort[name]
	return h, ok
}

// UniqueName returns h's unique name as of this snapshot. Handle.UniqueName always
// reports the latest one.
func (s *Snapshot) UniqueName(h *Handle) string {
	if n, ok := s.names[h.path]; ok {
		return n.unique
	}
	return h.UniqueName()
}

// UniqueShortName returns h's unique short name as of this snapshot.
func (s *Snapshot) UniqueShortName(h *Handle) string {
	if n, ok := s.names[h.path]; ok {
		return n.short
	}
	return h.UniqueShortName()
}

// Defined returns the defined handles sorted by path. The slice is a copy.
func (s *Snapshot) Defined() []*Handle {
	out := make([]*Handle, len(s.defined))
	copy(out, s.defined)
	return out
}

// Children returns the direct children of path sorted by path.
func (s *Snapshot) Children(path string) []*Handle {
	c := s.children[path]
	out := make([]*Handle, len(c))
	copy(out, c)
	return out
}

// Subtree returns path's handle followed by all its descendants, depth first.
// For an alias path the descendants are those of its target. It returns nil if path
// is not defined.
func (s *Snapshot) Subtree(path string) []*Handle {
	h, ok := s.byPath[path]
	if !ok || !h.IsDefined() {
		return nil
	}
	out := []*Handle{h}
	var walk func(parent string)
	walk = func(parent string) {
		for _, c := range s.children[parent] {
			out = append(out, c)
			walk(c.path)
		}
	}
	walk(h.Node().Path())
	return out
}

// Walk visits the tree depth first from the root. depth is 0 for the root.
// Returning false from fn skips the node's children.
func (s *Snapshot) Walk(fn func(h *Handle, depth int) bool) {
	var walk func(h *Handle, depth int)
	walk = func(h *Handle, depth int) {
		if !fn(h, depth) {
			return
		}
		for _, c := range s.children[h.path] {
			walk(c, depth+1)
		}
	}
	if s.root != nil {
		walk(s.root, 0)
	}
}

// WorldTransform composes transforms from path up to the root.
func (s *Snapshot) WorldTransform(path string) (Transform, bool) {
	h, ok := s.byPath[path]
	if !ok {
		return Transform{}, false
	}
	n := h.Node()
	if n == nil {
		return Transform{}, false
	}
	t := n.Transform()
	for n.parentPath != "" {
		p, ok := s.byPath[n.parentPath]
		if !ok || p.Node() == nil {
			return Transform{}, false
		}
		n = p.Node()
		t = n.Transform().Compose(t)
	}
	return t, true
}

// Variable returns the variable-driven nodes.
func (s *Snapshot) Variable() []*Node {
	out := make([]*Node, len(s.variable))
	copy(out, s.variable)
	return out
}

// buildSnapshot derives every index from the canonical handles and resolved aliases.
// It also stores the recomputed names on the handles.
func buildSnapshot(version, session uint64, root *Handle, canonical map[string]*Handle, aliases []*Handle) *Snapshot {
	s := &Snapshot{
		version:  version,
		session:  session,
		root:     root,
		byPath:   make(map[string]*Handle, len(canonical)+len(aliases)),
		byUnique: make(map[string]*Handle, len(canonical)),
		byShort:  make(map[string]*Handle, len(canonical)),
		children: make(map[string][]*Handle),
		names:    make(map[string]names, len(canonical)+len(aliases)),
		defined:  make([]*Handle, 0, len(canonical)),
	}

	paths := make([]string, 0, len(canonical))
	for p := range canonical {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	unique, short := uniqueNames(paths)

	for _, p := range paths {
		h := canonical[p]
		h.setNames(unique[p], short[p])
		s.names[p] = names{unique: unique[p], short: short[p]}
		s.byPath[p] = h
		s.byUnique[unique[p]] = h
		s.byShort[short[p]] = h
		s.defined = append(s.defined, h)

		n := h.Node()
		if n.parentPath != "" {
			s.children[n.parentPath] = append(s.children[n.parentPath], h)
		}
		if n.kind == KindVariable {
			s.variable = append(s.variable, n)
		}
	}
	for _, a := range aliases {
		if _, taken := s.byPath[a.path]; taken {
			continue
		}
		if n, ok := s.names[a.Node().path]; ok {
			a.setNames(n.unique, n.short)
			s.names[a.path] = n
		}
		s.byPath[a.path] = a
	}
	return s
}
