package vk

import (
	"regexp"
	"strings"
)

var mentionRe = regexp.MustCompile(`\[([^|\]]+)\|([^\]]+)\]`)

// RewriteMentions replaces [id123|Name] and [club123|Group] mention
// tokens with plain profile URLs; tokens that are not profile references
// keep their label.
func RewriteMentions(text string) string {
	return mentionRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := mentionRe.FindStringSubmatch(m)
		raw, label := sub[1], sub[2]
		if strings.HasPrefix(raw, "id") || strings.HasPrefix(raw, "club") || strings.HasPrefix(raw, "public") {
			return "https://vk.com/" + raw
		}
		return label
	})
}
