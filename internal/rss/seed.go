package rss

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/deusflow/newsqueue/internal/news"
)

// SeedFile is the YAML feed configuration:
//
//	workspaces:
//	  - name: Default Workspace
//	    placeholder_image: https://...
//	    feeds:
//	      - name: BBC World
//	        url: https://feeds.bbci.co.uk/news/world/rss.xml
//	        category: World
type SeedFile struct {
	Workspaces []WorkspaceSeed `yaml:"workspaces"`
}

type WorkspaceSeed struct {
	Name             string     `yaml:"name"`
	PlaceholderImage string     `yaml:"placeholder_image"`
	Feeds            []FeedSeed `yaml:"feeds"`
}

type FeedSeed struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Category string `yaml:"category"`
	Enabled  *bool  `yaml:"enabled"` // nil = enabled
}

// Source converts the seed into a feed source of the given workspace.
func (s FeedSeed) Source(workspaceID int64) news.FeedSource {
	category := strings.TrimSpace(s.Category)
	if category == "" {
		category = news.DefaultCategory
	}
	name := strings.TrimSpace(s.Name)
	if name == "" {
		name = news.Domain(s.URL)
	}
	return news.FeedSource{
		WorkspaceID: workspaceID,
		Name:        name,
		URL:         strings.TrimSpace(s.URL),
		Category:    category,
		Enabled:     s.Enabled == nil || *s.Enabled,
	}
}

// LoadFeeds reads the feed seed file from YAML.
func LoadFeeds(path string) (*SeedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg SeedFile
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	for i, ws := range cfg.Workspaces {
		if strings.TrimSpace(ws.Name) == "" {
			return nil, fmt.Errorf("%s: workspace %d has no name", path, i)
		}
		for _, feed := range ws.Feeds {
			if !strings.HasPrefix(feed.URL, "http://") && !strings.HasPrefix(feed.URL, "https://") {
				return nil, fmt.Errorf("%s: workspace %q: feed url %q must be http(s)", path, ws.Name, feed.URL)
			}
		}
	}
	return &cfg, nil
}
