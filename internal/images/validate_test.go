package images

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidImageURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://cdn.example.com/a.jpg", true},
		{"https://cdn.example.com/a.JPEG?w=800", true},
		{"http://cdn.example.com/pic.webp", true},
		{"https://cdn.example.com/images/12345", true},
		{"https://cdn.example.com/render?image=abc", true},
		{"https://images.unsplash.com/photo-1?fm=jpg&w=1200", true},
		{"https://example.com/article/123", false},
		{"ftp://cdn.example.com/a.jpg", false},
		{"data:image/png;base64,iVBORw0", false},
		{"/relative/a.jpg", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			require.Equal(t, tt.want, ValidImageURL(tt.url))
		})
	}
}
