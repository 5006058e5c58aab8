package kura

// Encoding names the character encoding a page was decoded with.
type Encoding string

// Encodings reported by an EncodingResolver.
const (
	EncodingUTF8      Encoding = "utf-8"
	EncodingUTF16LE   Encoding = "utf-16le"
	EncodingUTF16BE   Encoding = "utf-16be"
	EncodingShiftJIS  Encoding = "shift_jis"
	EncodingEUCJP     Encoding = "euc-jp"
	EncodingUTF8Lossy Encoding = "utf-8-lossy"
)

// EncodingResolver turns raw page bytes into text.
type EncodingResolver interface {
	// Resolve decodes raw and reports which encoding was used.
	// It never fails: undecodable input falls back to lossy UTF-8.
	Resolve(raw []byte) (string, Encoding)
}
