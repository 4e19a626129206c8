package admin

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// reportSectionMaxBytes caps each section of /report.
const reportSectionMaxBytes = 256 << 10

type reportSource struct {
	name string
	path string
	h    http.Handler
}

func (b *Builder) assembleReport() {
	if b.report == nil {
		return
	}
	sections := append([]reportSource(nil), b.reports...)
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		body := renderReport(r.Context(), sections, time.Now())
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	})
	b.mount("report", b.report.Path, b.report.Guard, h)
}

func renderReport(ctx context.Context, sections []reportSource, now time.Time) string {
	ok := true
	names := make([]string, 0, len(sections))
	var out strings.Builder
	for _, sec := range sections {
		names = append(names, sec.name)
		out.WriteString("\n=== ")
		out.WriteString(sec.name)
		out.WriteString(" ===\n")

		code, text, truncated := captureText(ctx, sec)
		if code < 200 || code >= 300 {
			ok = false
			out.WriteString("| error: status " + strconv.Itoa(code) + "\n")
		}
		if text == "" {
			out.WriteString("| (empty)\n")
		} else {
			appendIndented(&out, text, "| ")
		}
		if truncated {
			out.WriteString("| (truncated)\n")
		}
	}

	var head strings.Builder
	if ok {
		head.WriteString("ok\n")
	} else {
		head.WriteString("error: one or more sections failed\n")
	}
	head.WriteString("generated_at: " + now.Format(time.RFC3339Nano) + "\n")
	if len(names) == 0 {
		head.WriteString("enabled sections: (none)\n")
	} else {
		head.WriteString("enabled sections: " + strings.Join(names, ", ") + "\n")
	}
	head.WriteString(out.String())
	return head.String()
}

func appendIndented(b *strings.Builder, s, prefix string) {
	for _, line := range strings.SplitAfter(s, "\n") {
		if line == "" {
			continue
		}
		b.WriteString(prefix)
		b.WriteString(line)
	}
	if !strings.HasSuffix(s, "\n") {
		b.WriteByte('\n')
	}
}

// captureText runs sec's handler in process with ?format=text.
func captureText(ctx context.Context, sec reportSource) (status int, text string, truncated bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://admin.report.invalid"+sec.path+"?format=text", nil)
	if err != nil {
		return http.StatusInternalServerError, err.Error() + "\n", false
	}
	rw := &textCapture{hdr: make(http.Header), limit: reportSectionMaxBytes}
	sec.h.ServeHTTP(rw, req)
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	return rw.status, rw.buf.String(), rw.truncated
}

type textCapture struct {
	hdr       http.Header
	status    int
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (w *textCapture) Header() http.Header { return w.hdr }

func (w *textCapture) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
}

func (w *textCapture) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	remain := w.limit - w.buf.Len()
	switch {
	case remain <= 0:
		w.truncated = true
	case len(p) > remain:
		w.buf.Write(p[:remain])
		w.truncated = true
	default:
		w.buf.Write(p)
	}
	return len(p), nil
}
