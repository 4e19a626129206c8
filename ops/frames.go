package ops

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/evan-idocoding/framekit/frame"
)

type framesConfig struct {
	format      Format
	allowCreate bool
}

// FramesOption configures frame handlers.
type FramesOption func(*framesConfig)

// WithFramesDefaultFormat sets the default response format for frame handlers.
// ?format=json|text|cbor overrides it per request. Default is FormatText.
func WithFramesDefaultFormat(f Format) FramesOption {
	return func(c *framesConfig) { c.format = f }
}

// WithFramesAllowCreate lets FrameLookupHandler create placeholders on POST with
// create=true. Default is false.
func WithFramesAllowCreate(allow bool) FramesOption {
	return func(c *framesConfig) { c.allowCreate = allow }
}

func applyFramesOptions(opts []FramesOption) framesConfig {
	cfg := framesConfig{format: FormatText}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	switch cfg.format {
	case FormatText, FormatJSON, FormatCBOR:
	default:
		cfg.format = FormatText
	}
	return cfg
}

// FrameView is the exported form of one handle.
type FrameView struct {
	Path   string `json:"path"`
	Name   string `json:"name"`
	Unique string `json:"unique,omitempty"`
	Short  string `json:"short,omitempty"`
	Parent string `json:"parent,omitempty"`
	Kind   string `json:"kind,omitempty"`
	State  string `json:"state"`
	Depth  int    `json:"depth"`

	// Target is the canonical path an alias placeholder is bound to.
	Target string `json:"target,omitempty"`

	Local *frame.Transform `json:"local,omitempty"`
	World *frame.Transform `json:"world,omitempty"`
}

// FramesView is a consistent export of one mirror snapshot.
type FramesView struct {
	Version uint64      `json:"version"`
	Session uint64      `json:"session"`
	Root    string      `json:"root"`
	Stats   frame.Stats `json:"stats"`
	Frames  []FrameView `json:"frames"`
}

// BuildFramesView exports the tree below root (the whole tree if root is empty) from
// a single snapshot, depth first. ok is false if root is not defined.
func BuildFramesView(m *frame.Mirror, root string) (view FramesView, ok bool) {
	snap := m.Snapshot()
	view = FramesView{
		Version: snap.Version(),
		Session: snap.Session(),
		Root:    snap.Root().FullPath(),
		Stats:   m.Stats(),
	}
	start := snap.Root().FullPath()
	if root != "" {
		h, found := snap.Lookup(root)
		if !found || !h.IsDefined() {
			return view, false
		}
		start = h.Node().Path()
	}
	depth := make(map[string]int)
	for _, h := range snap.Subtree(start) {
		d := 0
		if pd, ok := depth[h.Node().ParentPath()]; ok {
			d = pd + 1
		}
		depth[h.FullPath()] = d
		view.Frames = append(view.Frames, frameView(snap, h, d))
	}
	return view, true
}

func frameView(snap *frame.Snapshot, h *frame.Handle, depth int) FrameView {
	v := FrameView{
		Path:   h.FullPath(),
		Name:   h.Name(),
		Unique: snap.UniqueName(h),
		Short:  snap.UniqueShortName(h),
		State:  h.State().String(),
		Depth:  depth,
	}
	n := h.Node()
	if n == nil {
		return v
	}
	if n.Path() != h.FullPath() {
		v.Target = n.Path()
	}
	v.Parent = n.ParentPath()
	v.Kind = n.Kind().String()
	local := n.Transform()
	v.Local = &local
	if world, ok := snap.WorldTransform(n.Path()); ok {
		v.World = &world
	}
	return v
}

type framesSnapshotResponse struct {
	OK    bool        `json:"ok"`
	Error string      `json:"error,omitempty"`
	View  *FramesView `json:"frames,omitempty"`
}

// FramesSnapshotHandler returns a handler that exports the mirror tree.
//
// Input:
//   - GET/HEAD only
//   - URL query: ?root=<path> (optional) limits the export to a subtree
//
// Text output is one "frame\t<path>\t<field>\t<value>" line per field.
func FramesSnapshotHandler(m *frame.Mirror, opts ...FramesOption) http.Handler {
	if m == nil {
		panic("ops: nil frame.Mirror")
	}
	cfg := applyFramesOptions(opts)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		format := formatFromRequest(r, cfg.format)
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			methodNotAllowed(w, r, format, "GET, HEAD")
			return
		}
		root, _ := getQueryRequired(r, "root")
		view, ok := BuildFramesView(m, root)
		if !ok {
			writeError(w, r, format, http.StatusNotFound, "frame not found")
			return
		}
		if writeStructured(w, r, format, http.StatusOK, framesSnapshotResponse{OK: true, View: &view}) {
			return
		}
		writeTextHeader(w, http.StatusOK)
		if r.Method != http.MethodHead {
			_, _ = w.Write([]byte(renderFramesText(view)))
		}
	})
}

func renderFramesText(v FramesView) string {
	var b strings.Builder
	b.Grow(128 + 96*len(v.Frames))
	textLine(&b, "mirror", "version", strconv.FormatUint(v.Version, 10))
	textLine(&b, "mirror", "session", strconv.FormatUint(v.Session, 10))
	textLine(&b, "mirror", "defined", strconv.Itoa(v.Stats.Defined))
	textLine(&b, "mirror", "placeholders", strconv.FormatInt(v.Stats.Placeholders, 10))
	textLine(&b, "mirror", "pending_retries", strconv.FormatInt(v.Stats.PendingRetries, 10))
	for _, f := range v.Frames {
		appendFrameLines(&b, f)
	}
	return b.String()
}

func appendFrameLines(b *strings.Builder, f FrameView) {
	p := escapeTextField(f.Path)
	line := func(field, value string) { textLine(b, "frame", p, field, value) }
	line("state", f.State)
	if f.Unique != "" {
		line("unique", escapeTextField(f.Unique))
		line("short", escapeTextField(f.Short))
	}
	if f.Kind != "" {
		line("kind", f.Kind)
	}
	if f.Parent != "" {
		line("parent", escapeTextField(f.Parent))
	}
	if f.Target != "" {
		line("target", escapeTextField(f.Target))
	}
	if f.World != nil {
		line("world", formatTransform(*f.World))
	}
}

func formatTransform(t frame.Transform) string {
	g := func(x float64) string { return strconv.FormatFloat(x, 'g', 6, 64) }
	return "t=" + g(t.Translation.X) + "," + g(t.Translation.Y) + "," + g(t.Translation.Z) +
		" q=" + g(t.Rotation.X) + "," + g(t.Rotation.Y) + "," + g(t.Rotation.Z) + "," + g(t.Rotation.W)
}

type frameLookupResponse struct {
	OK    bool       `json:"ok"`
	Error string     `json:"error,omitempty"`
	Frame *FrameView `json:"frame,omitempty"`
}

// FrameLookupHandler returns a handler resolving one frame.
//
// Input:
//   - GET/HEAD: ?path=<full path> or ?unique=<unique or short name>
//   - POST: ?path=<full path>&create=true creates a placeholder when missing
//     (requires WithFramesAllowCreate)
//
// Output: 200 with the frame, 404 if it does not exist, 403 if creation is disabled.
func FrameLookupHandler(m *frame.Mirror, opts ...FramesOption) http.Handler {
	if m == nil {
		panic("ops: nil frame.Mirror")
	}
	cfg := applyFramesOptions(opts)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		format := formatFromRequest(r, cfg.format)
		create := false
		switch r.Method {
		case http.MethodGet, http.MethodHead:
		case http.MethodPost:
			raw, _ := getQueryRequired(r, "create")
			create, _ = strconv.ParseBool(raw)
			if !create {
				writeError(w, r, format, http.StatusBadRequest, "POST requires create=true")
				return
			}
			if !cfg.allowCreate {
				writeError(w, r, format, http.StatusForbidden, "placeholder creation disabled")
				return
			}
		default:
			methodNotAllowed(w, r, format, "GET, HEAD, POST")
			return
		}

		path, hasPath := getQueryRequired(r, "path")
		unique, hasUnique := getQueryRequired(r, "unique")
		var h *frame.Handle
		switch {
		case hasPath && hasUnique:
			writeError(w, r, format, http.StatusBadRequest, "path and unique are exclusive")
			return
		case hasPath:
			h = m.Lookup(path, create)
		case hasUnique && !create:
			h = m.LookupUnique(unique)
		default:
			writeError(w, r, format, http.StatusBadRequest, "missing path")
			return
		}
		if h == nil {
			writeError(w, r, format, http.StatusNotFound, "frame not found")
			return
		}

		snap := m.Snapshot()
		v := frameView(snap, h, 0)
		code := http.StatusOK
		if create && !h.IsDefined() {
			code = http.StatusAccepted
		}
		if writeStructured(w, r, format, code, frameLookupResponse{OK: true, Frame: &v}) {
			return
		}
		writeTextHeader(w, code)
		if r.Method != http.MethodHead {
			var b strings.Builder
			appendFrameLines(&b, v)
			_, _ = w.Write([]byte(b.String()))
		}
	})
}
