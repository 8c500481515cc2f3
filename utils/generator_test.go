package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Road Bike", "road-bike"},
		{"punctuation collapses", "Vintage  Lamp -- 1970's!", "vintage-lamp-1970-s"},
		{"leading and trailing junk", "  ***Great Deal***  ", "great-deal"},
		{"empty falls back", "!!!", "item"},
		{"unicode letters survive", "Café Chair", "café-chair"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func TestSlugifyCapsLength(t *testing.T) {
	long := strings.Repeat("word ", 40)
	slug := Slugify(long)
	assert.LessOrEqual(t, len(slug), slugMaxLength)
	assert.False(t, strings.HasSuffix(slug, "-"))
}
