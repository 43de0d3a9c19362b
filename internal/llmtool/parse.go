package llmtool

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"ticketforge/internal/util/jsonutil"
)

// fencedJSON matches the first fenced code block (optionally tagged json)
// whose body is a JSON object or array.
var fencedJSON = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(\\{.*?\\}|\\[.*?\\])\\s*```")

// ExtractJSON returns the JSON payload of a model response, unwrapping a
// fenced block when one is present.
func ExtractJSON(text string) string {
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, `"`) {
		return text
	}
	// Some models add prose around a bare payload.
	if i := strings.IndexAny(text, "{["); i > 0 {
		closer := byte('}')
		if text[i] == '[' {
			closer = ']'
		}
		if j := strings.LastIndexByte(text, closer); j > i {
			return text[i : j+1]
		}
	}
	return text
}

// ErrEmptyResponse is returned for blank model output.
var ErrEmptyResponse = errors.New("empty model response")

// Decode extracts the JSON payload from text into v. When required is
// non-empty the payload must be an object carrying every listed key.
func Decode(text string, v any, required ...string) error {
	payload := ExtractJSON(text)
	if payload == "" {
		return ErrEmptyResponse
	}
	if len(required) > 0 {
		keys, err := jsonutil.Keys([]byte(payload))
		if err != nil {
			return err
		}
		var missing []string
		for _, k := range required {
			raw, ok := keys[k]
			if !ok || string(raw) == "null" {
				missing = append(missing, k)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("missing keys: %s", strings.Join(missing, ", "))
		}
	}
	return jsonutil.UnmarshalFlex([]byte(payload), v)
}

// IsArray reports whether the JSON payload of text is an array.
func IsArray(text string) bool {
	return strings.HasPrefix(ExtractJSON(text), "[")
}
