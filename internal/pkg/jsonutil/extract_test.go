package jsonutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{name: "bare", in: `{"action":"BUY"}`, want: `{"action":"BUY"}`, ok: true},
		{name: "prose around", in: "Sure. {\"a\":{\"b\":1}} done", want: `{"a":{"b":1}}`, ok: true},
		{name: "fenced with tag", in: "```json\n{\"action\":\"SELL\"}\n```", want: `{"action":"SELL"}`, ok: true},
		{name: "braces inside strings", in: `{"why":"x } y { z","n":2}`, want: `{"why":"x } y { z","n":2}`, ok: true},
		{name: "escaped quote", in: `{"why":"say \"}\""}`, want: `{"why":"say \"}\""}`, ok: true},
		{name: "unterminated", in: `{"action":`, ok: false},
		{name: "empty", in: "  ", ok: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractObject(tc.in)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestPretty(t *testing.T) {
	assert.Equal(t, "{\n  \"a\": 1\n}", Pretty(`{"a":1}`))
	assert.Equal(t, "not json", Pretty("not json"))
}
