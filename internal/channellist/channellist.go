// Package channellist reads the per-(topic, platform) link-list files that
// configure which channels and groups a run collects.
package channellist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// entry is one record in a channel-list file. Older list files carry the
// link under a localized key; both spellings are accepted.
type entry struct {
	Link       string `json:"link" yaml:"link"`
	LegacyLink string `json:"ссылка" yaml:"ссылка"`
}

func (e entry) link() string {
	if strings.TrimSpace(e.Link) != "" {
		return strings.TrimSpace(e.Link)
	}
	return strings.TrimSpace(e.LegacyLink)
}

// Load reads a channel-list file (JSON or YAML by extension) and returns
// the non-empty links in file order.
func Load(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read channel list %s: %w", path, err)
	}
	var entries []entry
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &entries); err != nil {
			return nil, fmt.Errorf("parse channel list %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &entries); err != nil {
			return nil, fmt.Errorf("parse channel list %s: %w", path, err)
		}
	}
	links := make([]string, 0, len(entries))
	for _, e := range entries {
		if l := e.link(); l != "" {
			links = append(links, l)
		}
	}
	return links, nil
}

// TableName derives the topic table name from a channel-list file stem:
// lowercased, dashes folded to underscores. "Gaming_and_eSports.json"
// becomes "gaming_and_esports".
func TableName(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	stem = strings.ToLower(stem)
	return strings.ReplaceAll(stem, "-", "_")
}
