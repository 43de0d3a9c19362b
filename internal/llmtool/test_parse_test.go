package llmtool

import (
	"strings"
	"testing"

	"ticketforge/internal/tester"
)

func TestExtractJSON_UnwrapsFence(t *testing.T) {
	in := "Here you go:\n```json\n{\"a\": {\"b\": 1}}\n```\nanything else?"
	tester.Eq(t, ExtractJSON(in), `{"a": {"b": 1}}`)

	in = "```\n[1, 2]\n```"
	tester.Eq(t, ExtractJSON(in), `[1, 2]`)
}

func TestExtractJSON_BarePayloadWithProse(t *testing.T) {
	tester.Eq(t, ExtractJSON(`Sure! {"x": "y"} Hope this helps.`), `{"x": "y"}`)
	tester.Eq(t, ExtractJSON(`  {"x":1}  `), `{"x":1}`)
}

func TestDecode_RequiredKeys(t *testing.T) {
	var out struct {
		Name  string   `json:"name"`
		Items []string `json:"items"`
	}
	tester.NoErr(t, Decode("```json\n{\"name\":\"n\",\"items\":[\"a\"]}\n```", &out, "name", "items"))
	tester.Eq(t, out.Name, "n")
	tester.Eq(t, out.Items, []string{"a"})

	err := Decode(`{"name":"n"}`, &out, "name", "items")
	if err == nil || !strings.Contains(err.Error(), "items") {
		t.Fatalf("expected missing items error, got %v", err)
	}

	err = Decode(`{"name":"n","items":null}`, &out, "name", "items")
	tester.True(t, err != nil, "null required key should fail")
}

func TestDecode_InvalidJSON(t *testing.T) {
	var v map[string]any
	tester.True(t, Decode("not json at all", &v) != nil)
	tester.True(t, Decode("   ", &v) == ErrEmptyResponse)
}

func TestDecode_QuotedPayload(t *testing.T) {
	var v struct {
		A int `json:"a"`
	}
	tester.NoErr(t, Decode(`"{\"a\":3}"`, &v, "a"))
	tester.Eq(t, v.A, 3)
}

func TestIsArray(t *testing.T) {
	tester.True(t, IsArray("```json\n[{\"id\":\"T-1\"}]\n```"))
	tester.False(t, IsArray(`{"toRemove":[]}`))
}
