package apiclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookup(t *testing.T) {
	doc := decodeJSON([]byte(`{
		"token": "abc",
		"user": {"id": "u1", "role": "rider"},
		"comments": [{"text": "Amazing ride!"}, {"text": "second"}],
		"grid": [[1, 2], [3, 4]],
		"empty": null
	}`))

	tests := []struct {
		path string
		want any
		ok   bool
	}{
		{"token", "abc", true},
		{"$.token", "abc", true},
		{"user.id", "u1", true},
		{"$.user.role", "rider", true},
		{"comments[0].text", "Amazing ride!", true},
		{"comments[1].text", "second", true},
		{"grid[1][0]", float64(3), true},
		{"comments[5].text", nil, false},
		{"user.missing", nil, false},
		{"token.inner", nil, false},
		{"comments[x]", nil, false},
		{"empty", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := Lookup(doc, tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLookup_RootAndArrays(t *testing.T) {
	doc := decodeJSON([]byte(`[{"id":"e1"},{"id":"e2"}]`))

	root, ok := Lookup(doc, "$")
	assert.True(t, ok)
	assert.Len(t, root, 2)

	id, ok := Lookup(doc, "[1].id")
	assert.True(t, ok)
	assert.Equal(t, "e2", id)

	_, ok = Lookup(nil, "")
	assert.False(t, ok)
}

func TestResponseString(t *testing.T) {
	r := &Response{Body: decodeJSON([]byte(`{"id":"x","n":3,"blank":""}`))}

	s, ok := r.String("id")
	assert.True(t, ok)
	assert.Equal(t, "x", s)

	_, ok = r.String("n")
	assert.False(t, ok, "numbers are not strings")

	_, ok = r.String("blank")
	assert.False(t, ok, "empty strings do not count as present")

	var nilResp *Response
	_, ok = nilResp.Lookup("id")
	assert.False(t, ok)
}
