package manifest

import (
	"regexp"
	"sort"
	"strings"
)

var wordRe = regexp.MustCompile(`\w+`)

// Search ranks tools by how well their tags, name and description match
// query and returns at most limit of them. Tags score highest. When nothing
// matches, the first limit tools are returned unchanged so a caller always
// has something to show. A limit of zero or less means no limit.
func Search(tools []Tool, query string, limit int) []Tool {
	if limit <= 0 || limit > len(tools) {
		limit = len(tools)
	}
	queryLower := strings.ToLower(strings.TrimSpace(query))
	queryWords := make(map[string]struct{})
	for _, w := range wordRe.FindAllString(queryLower, -1) {
		queryWords[w] = struct{}{}
	}

	type scored struct {
		tool  Tool
		score float64
	}
	ranked := make([]scored, 0, len(tools))
	for _, t := range tools {
		var score float64
		for _, tag := range t.Tags {
			tagLower := strings.ToLower(tag)
			if tagLower != "" && strings.Contains(queryLower, tagLower) {
				score++
			}
			for _, w := range wordRe.FindAllString(tagLower, -1) {
				if _, ok := queryWords[w]; ok {
					score += 0.5
				}
			}
		}
		for _, w := range splitIdent(t.Name) {
			if _, ok := queryWords[w]; ok {
				score += 0.5
			}
		}
		for _, w := range wordRe.FindAllString(strings.ToLower(t.Description), -1) {
			if len(w) <= 2 {
				continue
			}
			if _, ok := queryWords[w]; ok {
				score += 0.25
			}
		}
		ranked = append(ranked, scored{tool: t, score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	out := make([]Tool, 0, limit)
	for _, r := range ranked {
		if r.score <= 0 || len(out) == limit {
			break
		}
		out = append(out, r.tool)
	}
	if len(out) == 0 {
		out = append(out, tools[:limit]...)
	}
	return out
}

// splitIdent lower-cases the words of a CamelCase or snake_case name.
func splitIdent(name string) []string {
	var words []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, strings.ToLower(cur.String()))
			cur.Reset()
		}
	}
	runes := []rune(name)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == '.' || r == ' ':
			flush()
			continue
		case r >= 'A' && r <= 'Z' && i > 0 && runes[i-1] >= 'a' && runes[i-1] <= 'z':
			flush()
		}
		cur.WriteRune(r)
	}
	flush()
	return words
}
