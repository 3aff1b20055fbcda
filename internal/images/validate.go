package images

import (
	"net/url"
	"path"
	"strings"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".avif": true, ".bmp": true, ".svg": true,
}

var pathHints = []string{"/image/", "/images/", "/img/", "/imgs/", "/photo/", "/photos/", "/media/", "/uploads/", "/thumbnails/"}

var queryHints = []string{
	"image=", "img=", "photo=",
	"format=jpg", "format=jpeg", "format=png", "format=webp", "format=avif",
	"fm=jpg", "fm=png", "fm=webp", "ext=jpg", "ext=png",
}

// ValidImageURL accepts http(s) URLs that look like images: an image file
// extension, or an image hint in the path or query.
func ValidImageURL(raw string) bool {
	u, ok := parseHTTP(raw)
	if !ok {
		return false
	}
	if imageExtensions[strings.ToLower(path.Ext(u.Path))] {
		return true
	}

	p := strings.ToLower(u.Path)
	for _, hint := range pathHints {
		if strings.Contains(p, hint) {
			return true
		}
	}
	q := strings.ToLower(u.RawQuery)
	for _, hint := range queryHints {
		if strings.Contains(q, hint) {
			return true
		}
	}
	return false
}

func parseHTTP(raw string) (*url.URL, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(strings.ToLower(raw), "data:") {
		return nil, false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	return u, true
}
