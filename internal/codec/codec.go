// Package codec is the CBOR encoding used for frame snapshot exports.
//
// Encoding is deterministic (Core Deterministic Encoding, sorted map keys), so two
// exports of the same tree are byte-identical. Struct fields fall back to their json
// tags, which lets the same view types serve both the JSON and the CBOR endpoints.
package codec

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// ContentType is the media type written by the HTTP export.
const ContentType = "application/cbor"

// Marshal encodes v deterministically.
func Marshal(v any) ([]byte, error) { return encMode.Marshal(v) }

// Unmarshal decodes data into v.
func Unmarshal(data []byte, v any) error { return decMode.Unmarshal(data, v) }

// NewEncoder returns a streaming encoder writing to w.
func NewEncoder(w io.Writer) *cbor.Encoder { return encMode.NewEncoder(w) }

// NewDecoder returns a streaming decoder reading from r.
func NewDecoder(r io.Reader) *cbor.Decoder { return decMode.NewDecoder(r) }

// Diagnose returns the RFC 8949 diagnostic notation of data. Useful in tests and
// for eyeballing an export.
func Diagnose(data []byte) (string, error) { return cbor.Diagnose(data) }
