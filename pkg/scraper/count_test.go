package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCount(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"0", 0},
		{"1,234", 1234},
		{" 987 ", 987},
		{"12.5K", 12500},
		{"1k", 1000},
		{"3M", 3000000},
		{"1.2m", 1200000},
		{"2B", 2000000000},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCount(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCountRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "abc", "-1k", "1.2.3k"} {
		_, err := ParseCount(in)
		assert.Error(t, err, in)
	}
}
