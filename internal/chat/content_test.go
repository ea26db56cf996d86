package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		max     int
		want    string
		wantErr error
	}{
		{name: "plain", content: "hello", max: 10, want: "hello"},
		{name: "trims surrounding whitespace", content: "  hi there \n\t", max: 10, want: "hi there"},
		{name: "empty", content: "", max: 10, wantErr: ErrEmptyContent},
		{name: "whitespace only", content: " \t\r\n ", max: 10, wantErr: ErrEmptyContent},
		{name: "exactly at limit", content: strings.Repeat("a", 10), max: 10, want: strings.Repeat("a", 10)},
		{name: "over limit", content: strings.Repeat("a", 11), max: 10, wantErr: ErrContentTooLong},
		{name: "limit counts runes not bytes", content: strings.Repeat("\u00e9", 10), max: 10, want: strings.Repeat("\u00e9", 10)},
		{name: "decomposed accents are composed", content: "cafe\u0301", max: 4, want: "caf\u00e9"},
		{name: "default limit", content: strings.Repeat("a", DefaultMaxContentLength+1), max: 0, wantErr: ErrContentTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			got, err := NormalizeContent(tt.content, tt.max)
			if tt.wantErr != nil {
				req.ErrorIs(err, tt.wantErr)
				req.Empty(got)
				return
			}
			req.NoError(err)
			req.Equal(tt.want, got)
		})
	}
}

func TestSnippet(t *testing.T) {
	req := require.New(t)

	req.Equal("short", Snippet("short", 100))
	req.Equal(strings.Repeat("x", 100), Snippet(strings.Repeat("x", 100), 100))
	req.Equal(strings.Repeat("x", 100)+"...", Snippet(strings.Repeat("x", 101), 100))
	req.Equal("h\u00e9llo...", Snippet("h\u00e9llo w\u00f6rld", 5))
	req.Equal(strings.Repeat("y", DefaultSnippetLength)+"...", Snippet(strings.Repeat("y", 150), 0))
}
