package ops

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/evan-idocoding/framekit/frame"
	"github.com/evan-idocoding/framekit/frame/framesim"
	"github.com/evan-idocoding/framekit/rt/sched"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func newScheduler(t *testing.T) *sched.Scheduler {
	t.Helper()
	s := sched.New(sched.WithWorkers(2), sched.WithLogger(quiet))
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

// newRobotMirror returns a mirror holding world/robot/pelvis and world/ground.
func newRobotMirror(t *testing.T, s *sched.Scheduler) *frame.Mirror {
	t.Helper()
	m := frame.NewMirror(s, frame.WithLogger(quiet))
	g := framesim.New("world")
	robot, _ := g.AddFixed(nil, "world/robot", frame.Identity())
	_, _ = g.AddFixed(robot, "world/robot/pelvis", frame.Transform{
		Translation: frame.Vec3{Z: 0.9},
		Rotation:    frame.IdentityQuat(),
	})
	_, _ = g.AddFixed(nil, "world/ground", frame.Identity())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Announce(g.Flush()).Wait(ctx); err != nil {
		t.Fatalf("announce: %v", err)
	}
	return m
}
