package framekit

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/evan-idocoding/framekit/config"
)

func TestAdmin_ReadOnlyByDefault(t *testing.T) {
	r := newTestRuntime(t, nil)
	h := r.AdminHandler

	for _, path := range []string{"/healthz", "/readyz", "/scheduler/stats", "/frames/snapshot", "/log/level", "/tuning/snapshot", "/report"} {
		if rr := serve(h, http.MethodGet, path); rr.Code != http.StatusOK {
			t.Fatalf("GET %s: %d %q", path, rr.Code, rr.Body.String())
		}
	}
	for _, path := range []string{"/session/stop", "/log/level/set?level=debug", "/tuning/set?key=mirror.tick_interval&value=1s"} {
		if rr := serve(h, http.MethodPost, path); rr.Code != http.StatusNotFound {
			t.Fatalf("POST %s mounted without writes: %d", path, rr.Code)
		}
	}
}

func TestAdmin_Writes(t *testing.T) {
	r := newTestRuntime(t, func(c *config.Config) { c.Admin.Writes = true })
	announceRobot(t, r)
	h := r.AdminHandler
	old := r.SessionID()

	if rr := serve(h, http.MethodPost, "/tuning/set?key=mirror.tick_interval&value=1s"); rr.Code != http.StatusOK {
		t.Fatalf("tuning set: %d %q", rr.Code, rr.Body.String())
	}
	if got := r.tickInterval.Get(); got != time.Second {
		t.Fatalf("tick interval=%v", got)
	}
	if rr := serve(h, http.MethodPost, "/log/level/set?level=error"); rr.Code != http.StatusOK {
		t.Fatalf("log level set: %d", rr.Code)
	}
	if rr := serve(h, http.MethodGet, "/tuning/snapshot?key=log.level"); !strings.Contains(rr.Body.String(), "value\terror\n") {
		t.Fatalf("log level not in tuning: %q", rr.Body.String())
	}
	if rr := serve(h, http.MethodPost, "/frames/lookup?path=world/robot/arm&create=true"); rr.Code != http.StatusAccepted {
		t.Fatalf("placeholder create: %d %q", rr.Code, rr.Body.String())
	}
	if rr := serve(h, http.MethodPost, "/session/stop"); rr.Code != http.StatusOK {
		t.Fatalf("session stop: %d %q", rr.Code, rr.Body.String())
	}
	if r.SessionID() == old || r.Mirror.Snapshot().Len() != 1 {
		t.Fatalf("session not stopped: id=%s len=%d", r.SessionID(), r.Mirror.Snapshot().Len())
	}
}
