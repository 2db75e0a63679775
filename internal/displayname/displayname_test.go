package displayname

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Households", `"Households"`},
		{`"Already"`, `"Already"`},
		{`{"default":"Census"}`, `{"default":"Census"}`},
		{`Say "hi"`, `"Say \"hi\""`},
		{"", `""`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Wrap(tt.in))
		})
	}
}

func TestLocalize(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		locale string
		want   string
	}{
		{"json string", `"Households"`, "fr", "Households"},
		{"object exact locale", `{"default":"Households","fr":"Ménages"}`, "fr", "Ménages"},
		{"object default", `{"default":"Households","fr":"Ménages"}`, "es", "Households"},
		{"object without default", `{"fr":"Ménages","de":"Haushalte"}`, "es", "Haushalte"},
		{"empty object", `{}`, "es", ""},
		{"not json", "Households", "fr", "Households"},
		{"empty", "", "fr", ""},
		{"json null", "null", "fr", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Localize(tt.raw, tt.locale))
		})
	}
}

func TestLocalizeOr(t *testing.T) {
	assert.Equal(t, "households", LocalizeOr(`""`, "default", "households"))
	assert.Equal(t, "Households", LocalizeOr(`"Households"`, "default", "households"))
}
