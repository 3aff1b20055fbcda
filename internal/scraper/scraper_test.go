package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestImagesFromHTML(t *testing.T) {
	t.Parallel()

	html := `<html><head>
	<meta property="og:image" content="https://cdn.example.com/og.jpg">
	</head><body>
	<main>
	  <img src="/static/logo.png">
	  <img data-src="https://cdn.example.com/lazy.jpg">
	  <img srcset="https://cdn.example.com/s.jpg 320w, https://cdn.example.com/l.jpg 1280w">
	  <img src="data:image/gif;base64,R0lGOD">
	  <img src="https://cdn.example.com/og.jpg">
	</main></body></html>`

	got, err := ImagesFromHTML("https://www.example.com/search/cats/", strings.NewReader(html))
	if err != nil {
		t.Fatalf("ImagesFromHTML returned error: %v", err)
	}

	want := []string{
		"https://cdn.example.com/og.jpg",
		"https://www.example.com/static/logo.png",
		"https://cdn.example.com/lazy.jpg",
		"https://cdn.example.com/l.jpg",
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d images, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("image %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestImagesFromFragment(t *testing.T) {
	t.Parallel()

	if got := ImagesFromFragment("<p>no pictures here</p>"); len(got) != 0 {
		t.Fatalf("expected no images, got %v", got)
	}

	got := ImagesFromFragment(`<p>Text</p><img src="https://cdn.example.com/inline.png" alt="x">`)
	if len(got) != 1 || got[0] != "https://cdn.example.com/inline.png" {
		t.Fatalf("unexpected images: %v", got)
	}
}

func TestExtractImages(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/ocean/" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if !strings.Contains(r.Header.Get("User-Agent"), "Mozilla") {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte(`<html><body><article><img src="/photos/ocean.jpeg"></article></body></html>`))
	}))
	defer srv.Close()

	page, err := ExtractImages(context.Background(), srv.Client(), srv.URL+"/search/ocean/")
	if err != nil {
		t.Fatalf("ExtractImages returned error: %v", err)
	}
	if len(page.Images) != 1 || page.Images[0] != srv.URL+"/photos/ocean.jpeg" {
		t.Fatalf("unexpected images: %v", page.Images)
	}

	if _, err := ExtractImages(context.Background(), srv.Client(), srv.URL+"/missing"); err == nil {
		t.Fatalf("expected error for 404 page")
	}
}
