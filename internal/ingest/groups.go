package ingest

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"social-ingest/internal/channellist"
	"social-ingest/internal/model"
)

// Source is one channel or group link to collect, tagged with its
// platform.
type Source struct {
	Type model.SourceType
	Link string
}

// Group is the unit of a run: one topic, its destination table, and every
// source that feeds it across platforms.
type Group struct {
	Topic   string
	Table   string
	Sources []Source
}

// listExtensions are tried in order when locating a topic's channel-list
// file inside a platform directory.
var listExtensions = []string{".json", ".yaml", ".yml"}

func findList(dir, topic string) (string, bool) {
	for _, ext := range listExtensions {
		path := filepath.Join(dir, topic+ext)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

// LoadGroups assembles the run plan from the per-platform channel-list
// directories. A topic missing from one platform's directory collects
// from the other alone; a topic missing from both is an error, since the
// run could silently produce nothing for it.
func LoadGroups(vkDir, tgDir string, topics []string) ([]Group, error) {
	out := make([]Group, 0, len(topics))
	for _, topic := range topics {
		g := Group{Topic: topic}
		if vkDir != "" {
			if path, ok := findList(vkDir, topic); ok {
				links, err := channellist.Load(path)
				if err != nil {
					return nil, err
				}
				g.Table = channellist.TableName(path)
				for _, l := range links {
					g.Sources = append(g.Sources, Source{Type: model.SourceVK, Link: l})
				}
			}
		}
		if tgDir != "" {
			if path, ok := findList(tgDir, topic); ok {
				links, err := channellist.Load(path)
				if err != nil {
					return nil, err
				}
				if g.Table == "" {
					g.Table = channellist.TableName(path)
				}
				for _, l := range links {
					g.Sources = append(g.Sources, Source{Type: model.SourceTelegram, Link: l})
				}
			}
		}
		if g.Table == "" {
			return nil, fmt.Errorf("ingest: no channel list found for topic %q in %q or %q", topic, vkDir, tgDir)
		}
		if len(g.Sources) == 0 {
			slog.Warn("topic lists contain no links", "topic", topic)
		}
		out = append(out, g)
	}
	return out, nil
}
