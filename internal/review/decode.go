package review

import (
	"bytes"
	"errors"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

var (
	errInvalidUTF8 = errors.New("invalid UTF-8 byte sequence")
	errBinary      = errors.New("contains NUL bytes")

	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// DecodeSource turns uploaded bytes into text. UTF-8 (with or without a BOM)
// is accepted as is; UTF-16 is accepted only when it carries a BOM. Anything
// else, including binary content, is rejected.
func DecodeSource(data []byte) (string, error) {
	if bytes.HasPrefix(data, bomUTF16LE) || bytes.HasPrefix(data, bomUTF16BE) {
		dec := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
		out, err := dec.Bytes(data)
		if err != nil {
			return "", err
		}
		data = out
	}

	data = bytes.TrimPrefix(data, bomUTF8)
	if !utf8.Valid(data) {
		return "", errInvalidUTF8
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return "", errBinary
	}
	return string(data), nil
}
