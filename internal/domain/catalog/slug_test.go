package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMakeSlug(t *testing.T) {
	tests := []struct {
		heading string
		want    string
	}{
		{"Corporate Headshot", "corporate-headshot"},
		{"  Vintage   Film Look  ", "vintage-film-look"},
		{"90's Polaroid!", "90s-polaroid"},
		{"---", "template"},
		{"", "template"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MakeSlug(tt.heading), "heading %q", tt.heading)
	}
}
