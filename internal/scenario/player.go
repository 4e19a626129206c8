package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/evan-idocoding/framekit/frame"
	"github.com/evan-idocoding/framekit/frame/framesim"
	"github.com/evan-idocoding/framekit/rt/clock"
)

// Player replays a scenario into a framesim graph.
type Player struct {
	sc      *Scenario
	graph   *framesim.Graph
	scalars map[string]*framesim.Scalar
	clock   clock.Clock
	logger  *slog.Logger
}

// PlayerOption configures a Player.
type PlayerOption func(*Player)

// WithClock sets the clock used for wait steps. Default is clock.Real().
func WithClock(c clock.Clock) PlayerOption {
	return func(p *Player) { p.clock = c }
}

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(l *slog.Logger) PlayerOption {
	return func(p *Player) { p.logger = l }
}

// NewPlayer creates the graph and scalars for sc. Subscribe to Graph().OnAnnounce
// before calling Run.
func NewPlayer(sc *Scenario, opts ...PlayerOption) *Player {
	var gopts []framesim.Option
	if sc.Shuffle != 0 {
		gopts = append(gopts, framesim.WithShuffle(sc.Shuffle))
	}
	p := &Player{
		sc:      sc,
		graph:   framesim.New(sc.Root, gopts...),
		scalars: make(map[string]*framesim.Scalar, len(sc.Scalars)),
		clock:   clock.Real(),
		logger:  slog.Default(),
	}
	for name, v := range sc.Scalars {
		p.scalars[name] = framesim.NewScalar(v)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

func (p *Player) Graph() *framesim.Graph { return p.graph }

// Scalar returns the named scalar, or nil.
func (p *Player) Scalar(name string) *framesim.Scalar { return p.scalars[name] }

// Run plays every step in order. It returns ctx.Err() if ctx ends during a wait.
func (p *Player) Run(ctx context.Context) error {
	for i, st := range p.sc.Steps {
		if err := p.step(ctx, st); err != nil {
			return fmt.Errorf("scenario: step %d: %w", i, err)
		}
	}
	return nil
}

func (p *Player) step(ctx context.Context, st Step) error {
	if len(st.Add) > 0 {
		for _, spec := range st.Add {
			if err := p.add(spec); err != nil {
				return err
			}
		}
		batch := p.graph.Flush()
		p.logger.Debug("scenario batch flushed", slog.Int("frames", len(batch)))
	}
	for _, fp := range st.Finish {
		if f := p.graph.Lookup(fp); f != nil {
			f.SetUnderConstruction(false)
		}
	}
	for name, v := range st.Set {
		p.scalars[name].Set(v)
	}
	if st.Wait > 0 {
		return sleep(ctx, p.clock, st.Wait.Std())
	}
	return ctx.Err()
}

func (p *Player) add(spec FrameSpec) error {
	parent := p.graph.Lookup(path.Dir(spec.Path))
	if parent == nil {
		return fmt.Errorf("%w: parent of %q not added yet", ErrInvalid, spec.Path)
	}
	var (
		f   *framesim.Frame
		err error
	)
	if spec.Inputs != nil {
		f, err = p.graph.AddVariable(parent, spec.Path, p.inputs(spec.Inputs))
	} else {
		f, err = p.graph.AddFixed(parent, spec.Path, frame.Transform{
			Translation: frame.Vec3{X: spec.Translation[0], Y: spec.Translation[1], Z: spec.Translation[2]},
			Rotation:    frame.FromYPR(spec.YPR[0], spec.YPR[1], spec.YPR[2]),
		})
	}
	if err != nil {
		return err
	}
	f.SetUnderConstruction(spec.Building)
	return nil
}

func (p *Player) inputs(in *InputsSpec) frame.Inputs {
	out := frame.Inputs{
		Translation: [3]frame.Scalar{p.scalar(in.X), p.scalar(in.Y), p.scalar(in.Z)},
	}
	if in.quaternion() {
		out.Encoding = frame.RotationQuaternion
		out.Rotation = [4]frame.Scalar{p.scalar(in.QX), p.scalar(in.QY), p.scalar(in.QZ), p.scalar(in.QS)}
	} else {
		out.Rotation = [4]frame.Scalar{p.scalar(in.Yaw), p.scalar(in.Pitch), p.scalar(in.Roll)}
	}
	return out
}

// scalar keeps unbound slots as untyped nil so the mirror sees a nil interface.
func (p *Player) scalar(name string) frame.Scalar {
	if s, ok := p.scalars[name]; ok {
		return s
	}
	return nil
}

func sleep(ctx context.Context, c clock.Clock, d time.Duration) error {
	done := make(chan struct{})
	t := c.AfterFunc(d, func() { close(done) })
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		t.Stop()
		return ctx.Err()
	}
}
