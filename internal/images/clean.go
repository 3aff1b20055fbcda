package images

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// HTTPCleanChecker asks an external service whether an image is usable.
// The service takes {"image_url": "..."} and answers {"clean": true|false}.
// When the service is down the image is let through.
type HTTPCleanChecker struct {
	endpoint string
	client   *http.Client
	log      *slog.Logger
}

func NewHTTPCleanChecker(endpoint string, timeout time.Duration, log *slog.Logger) *HTTPCleanChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &HTTPCleanChecker{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		log:      log,
	}
}

func (h *HTTPCleanChecker) IsClean(ctx context.Context, imageURL string) bool {
	clean, err := h.check(ctx, imageURL)
	if err != nil {
		h.log.Warn("clean check unavailable", "url", imageURL, "error", err)
		return true
	}
	return clean
}

func (h *HTTPCleanChecker) check(ctx context.Context, imageURL string) (bool, error) {
	body, err := json.Marshal(map[string]string{"image_url": imageURL})
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	var out struct {
		Clean bool `json:"clean"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("decode: %w", err)
	}
	return out.Clean, nil
}
