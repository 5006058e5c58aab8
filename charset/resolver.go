// Package charset decodes legacy page bytes into UTF-8 text using the
// golang.org/x/text encoders for the Japanese code pages.
package charset

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/fwojciec/kura"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
)

// Ensure Resolver implements kura.EncodingResolver at compile time.
var _ kura.EncodingResolver = (*Resolver)(nil)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// candidate is a legacy encoding tried after UTF-8.
type candidate struct {
	name kura.Encoding
	enc  encoding.Encoding
}

// Resolver decodes page bytes by trying, in order: a byte-order mark,
// strict UTF-8, Shift-JIS, EUC-JP, and finally lossy UTF-8. An attempt is
// accepted only if its output contains no replacement characters.
type Resolver struct {
	candidates []candidate
}

// NewResolver creates a Resolver for the Japanese legacy encodings.
func NewResolver() *Resolver {
	return &Resolver{
		candidates: []candidate{
			{name: kura.EncodingShiftJIS, enc: japanese.ShiftJIS},
			{name: kura.EncodingEUCJP, enc: japanese.EUCJP},
		},
	}
}

// Resolve decodes raw and reports the encoding that was used.
func (r *Resolver) Resolve(raw []byte) (string, kura.Encoding) {
	if text, enc, ok := decodeBOM(raw); ok {
		return text, enc
	}

	if utf8.Valid(raw) && !bytes.ContainsRune(raw, utf8.RuneError) {
		return string(raw), kura.EncodingUTF8
	}

	for _, c := range r.candidates {
		out, err := c.enc.NewDecoder().Bytes(raw)
		if err != nil || bytes.ContainsRune(out, utf8.RuneError) {
			continue
		}
		return string(out), c.name
	}

	return strings.ToValidUTF8(string(raw), string(utf8.RuneError)), kura.EncodingUTF8Lossy
}

// decodeBOM decodes raw when it starts with a UTF-8 or UTF-16 byte-order mark.
// The mark itself is not part of the returned text.
func decodeBOM(raw []byte) (string, kura.Encoding, bool) {
	var (
		dec  *encoding.Decoder
		name kura.Encoding
	)
	switch {
	case bytes.HasPrefix(raw, bomUTF8):
		rest := raw[len(bomUTF8):]
		return strings.ToValidUTF8(string(rest), string(utf8.RuneError)), kura.EncodingUTF8, true
	case bytes.HasPrefix(raw, bomUTF16LE):
		dec = unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
		name = kura.EncodingUTF16LE
	case bytes.HasPrefix(raw, bomUTF16BE):
		dec = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
		name = kura.EncodingUTF16BE
	default:
		return "", "", false
	}

	out, err := dec.Bytes(raw)
	if err != nil {
		return "", "", false
	}
	return string(out), name, true
}
