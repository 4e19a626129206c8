package ops

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/evan-idocoding/framekit/internal/codec"
)

// Format controls the response rendering format.
//
// This is shared across ops handlers that support multiple output formats.
type Format int

const (
	FormatText Format = iota
	FormatJSON
	// FormatCBOR is only honored by the frame handlers; elsewhere it falls back to text.
	FormatCBOR
)

func formatFromRequest(r *http.Request, def Format) Format {
	if r == nil || r.URL == nil {
		return def
	}
	switch r.URL.Query().Get("format") {
	case "json":
		return FormatJSON
	case "text":
		return FormatText
	case "cbor":
		return FormatCBOR
	default:
		return def
	}
}

// textOnly maps formats a handler cannot render to text.
func textOnly(f Format) Format {
	if f != FormatJSON {
		return FormatText
	}
	return f
}

// writeStructured writes v as JSON or CBOR. It reports false for FormatText so the
// caller can render its own text.
func writeStructured(w http.ResponseWriter, r *http.Request, f Format, code int, v any) bool {
	switch f {
	case FormatJSON:
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(code)
		if r.Method != http.MethodHead {
			_ = json.NewEncoder(w).Encode(v)
		}
		return true
	case FormatCBOR:
		data, err := codec.Marshal(v)
		if err != nil {
			w.Header().Set("Cache-Control", "no-store")
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusInternalServerError)
			writeTextError(w, "cbor encode: "+err.Error())
			return true
		}
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Type", codec.ContentType)
		w.WriteHeader(code)
		if r.Method != http.MethodHead {
			_, _ = w.Write(data)
		}
		return true
	default:
		return false
	}
}

func writeTextHeader(w http.ResponseWriter, code int) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
}

func writeTextError(w http.ResponseWriter, msg string) {
	if msg != "" {
		_, _ = w.Write([]byte(msg + "\n"))
		return
	}
	_, _ = w.Write([]byte("error\n"))
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, f Format, allow string) {
	w.Header().Set("Allow", allow)
	resp := errorResponse{Error: "method not allowed"}
	if writeStructured(w, r, f, http.StatusMethodNotAllowed, resp) {
		return
	}
	writeTextHeader(w, http.StatusMethodNotAllowed)
	writeTextError(w, resp.Error)
}

func writeError(w http.ResponseWriter, r *http.Request, f Format, code int, msg string) {
	resp := errorResponse{Error: msg}
	if writeStructured(w, r, f, code, resp) {
		return
	}
	writeTextHeader(w, code)
	writeTextError(w, escapeTextField(msg))
}

type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// textLine writes one tab-separated line.
func textLine(b *strings.Builder, fields ...string) {
	for i, f := range fields {
		if i > 0 {
			b.WriteByte('\t')
		}
		b.WriteString(f)
	}
	b.WriteByte('\n')
}

func getQueryRequired(r *http.Request, name string) (string, bool) {
	v, ok := getQueryRaw(r, name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// getQueryRaw is like getQueryRequired but allows empty values.
func getQueryRaw(r *http.Request, name string) (string, bool) {
	if r == nil || r.URL == nil {
		return "", false
	}
	vs, ok := r.URL.Query()[name]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// escapeTextField escapes control characters so text output stays one record per line.
//
//   - '\'  => '\\'
//   - '\t' => '\t'
//   - '\r' => '\r'
//   - '\n' => '\n'
//   - other ASCII control chars (0x00-0x1f) => \u00XX
func escapeTextField(s string) string {
	need := false
	for i := 0; i < len(s); i++ {
		if c := s[i]; c == '\\' || c < 0x20 {
			need = true
			break
		}
	}
	if !need {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			b.WriteString(`\\`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		case '\n':
			b.WriteString(`\n`)
		default:
			if c < 0x20 {
				const hex = "0123456789abcdef"
				b.WriteString(`\u00`)
				b.WriteByte(hex[c>>4])
				b.WriteByte(hex[c&0x0f])
			} else {
				b.WriteByte(c)
			}
		}
	}
	return b.String()
}
