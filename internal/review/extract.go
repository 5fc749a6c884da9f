package review

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/joescharf/crev/internal/models"
)

// ErrNoJSONObject is returned when a model response holds no parseable JSON object.
var ErrNoJSONObject = errors.New("no JSON object found in model response")

// ExtractJSON returns the first syntactically valid JSON object in raw. The
// object may be bare, inside a code fence, or surrounded by prose.
func ExtractJSON(raw string) ([]byte, error) {
	for i := 0; i < len(raw); i++ {
		j := strings.IndexByte(raw[i:], '{')
		if j < 0 {
			break
		}
		i += j

		var msg json.RawMessage
		if err := json.NewDecoder(strings.NewReader(raw[i:])).Decode(&msg); err == nil {
			return msg, nil
		}
	}
	return nil, ErrNoJSONObject
}

// ParseReport extracts, decodes and validates a review report from raw model text.
func ParseReport(raw string) (*models.ReviewReport, error) {
	obj, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(obj))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode model JSON: %w", err)
	}
	return Validate(v)
}
