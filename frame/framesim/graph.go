package framesim

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/evan-idocoding/framekit/frame"
)

var (
	// ErrExists is returned when adding a path that is already in the graph.
	ErrExists = errors.New("framesim: frame already exists")
	// ErrInvalidPath is returned for empty paths or paths with empty segments.
	ErrInvalidPath = errors.New("framesim: invalid path")
	// ErrForeignParent is returned when the parent belongs to another graph.
	ErrForeignParent = errors.New("framesim: parent not in graph")
)

// Frame is a producer-side frame. It implements frame.VariableSource; Inputs is empty
// for fixed frames.
type Frame struct {
	g         *Graph
	name      string
	path      string
	parent    *Frame
	kind      frame.Kind
	transform frame.Transform
	inputs    frame.Inputs

	building atomic.Bool
}

func (f *Frame) Name() string { return f.name }
func (f *Frame) Path() string { return f.path }

func (f *Frame) Parent() frame.Source {
	if f.parent == nil {
		return nil
	}
	return f.parent
}

func (f *Frame) Kind() frame.Kind           { return f.kind }
func (f *Frame) Transform() frame.Transform { return f.transform }
func (f *Frame) Inputs() frame.Inputs       { return f.inputs }

// UnderConstruction reports whether the frame's subtree is still being built.
func (f *Frame) UnderConstruction() bool { return f.building.Load() }

func (f *Frame) SetUnderConstruction(b bool) { f.building.Store(b) }

// Option configures a Graph.
type Option func(*Graph)

// WithShuffle randomizes the order of every flushed batch with a seeded source.
func WithShuffle(seed int64) Option {
	return func(g *Graph) { g.rng = rand.New(rand.NewSource(seed)) }
}

// Graph is a producer frame tree. It is safe for concurrent use.
type Graph struct {
	root *Frame

	mu      sync.Mutex
	frames  map[string]*Frame
	order   []*Frame
	pending []frame.Source
	subs    map[uint64]func([]frame.Source)
	seq     uint64
	rng     *rand.Rand
}

// New creates a graph whose root frame has the given name.
func New(rootName string, opts ...Option) *Graph {
	g := &Graph{
		frames: make(map[string]*Frame),
		subs:   make(map[uint64]func([]frame.Source)),
	}
	g.root = &Frame{g: g, name: rootName, path: rootName, kind: frame.KindFixed, transform: frame.Identity()}
	g.frames[rootName] = g.root
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

func (g *Graph) Root() *Frame { return g.root }

// AddFixed adds a constant-transform frame under parent (the root if nil).
func (g *Graph) AddFixed(parent *Frame, path string, t frame.Transform) (*Frame, error) {
	return g.add(parent, path, frame.KindFixed, t, frame.Inputs{})
}

// AddVariable adds an input-driven frame under parent (the root if nil).
func (g *Graph) AddVariable(parent *Frame, path string, in frame.Inputs) (*Frame, error) {
	return g.add(parent, path, frame.KindVariable, frame.Identity(), in)
}

// AddKind adds a frame of an arbitrary kind, for exercising consumers with kinds they
// do not support.
func (g *Graph) AddKind(parent *Frame, path string, kind frame.Kind) (*Frame, error) {
	return g.add(parent, path, kind, frame.Identity(), frame.Inputs{})
}

func (g *Graph) add(parent *Frame, path string, kind frame.Kind, t frame.Transform, in frame.Inputs) (*Frame, error) {
	if path == "" || strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") || strings.Contains(path, "//") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	if parent == nil {
		parent = g.root
	}
	if parent.g != g {
		return nil, fmt.Errorf("%w: %q", ErrForeignParent, parent.path)
	}
	f := &Frame{
		g:         g,
		name:      path[strings.LastIndexByte(path, '/')+1:],
		path:      path,
		parent:    parent,
		kind:      kind,
		transform: t,
		inputs:    in,
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.frames[path]; ok {
		return nil, fmt.Errorf("%w: %q", ErrExists, path)
	}
	g.frames[path] = f
	g.order = append(g.order, f)
	g.pending = append(g.pending, f)
	return f, nil
}

// Lookup returns the frame at path, or nil.
func (g *Graph) Lookup(path string) *Frame {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.frames[path]
}

// Frames returns all non-root frames in insertion order.
func (g *Graph) Frames() []*Frame {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*Frame(nil), g.order...)
}

// All returns every non-root frame as a batch, for re-announcing a whole graph.
func (g *Graph) All() []frame.Source {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]frame.Source, 0, len(g.order))
	for _, f := range g.order {
		out = append(out, f)
	}
	return out
}

// OnAnnounce registers fn to receive every flushed batch.
func (g *Graph) OnAnnounce(fn func([]frame.Source)) (cancel func()) {
	g.mu.Lock()
	g.seq++
	id := g.seq
	g.subs[id] = fn
	g.mu.Unlock()
	return func() {
		g.mu.Lock()
		delete(g.subs, id)
		g.mu.Unlock()
	}
}

// Flush hands the frames added since the previous Flush to every subscriber and
// returns them. Empty batches are not delivered.
func (g *Graph) Flush() []frame.Source {
	g.mu.Lock()
	batch := g.pending
	g.pending = nil
	if g.rng != nil {
		g.rng.Shuffle(len(batch), func(i, j int) { batch[i], batch[j] = batch[j], batch[i] })
	}
	subs := make([]func([]frame.Source), 0, len(g.subs))
	for _, fn := range g.subs {
		subs = append(subs, fn)
	}
	g.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	for _, fn := range subs {
		fn(batch)
	}
	return batch
}
