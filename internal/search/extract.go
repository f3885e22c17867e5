package search

import (
	"strings"
	"unicode"
)

// definitionKeywords are the prefixes that introduce a named
// definition in the languages blast-radius cares about. The two-word
// "pub" forms come before the bare keywords.
var definitionKeywords = []string{
	"pub fn",
	"pub const",
	"function",
	"class",
	"const",
	"def",
	"fn",
}

// DiffFilePath extracts the post-image path from a unified diff
// "diff --git a/X b/Y" header line. The rightmost " b/" wins so paths
// that themselves contain " b/" parse correctly.
func DiffFilePath(line string) string {
	if !strings.HasPrefix(line, "diff --git ") {
		return ""
	}
	idx := strings.LastIndex(line, " b/")
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(line[idx+len(" b/"):])
}

// DefinitionName extracts the identifier introduced by a definition
// line, or "" when the line does not start a definition.
func DefinitionName(line string) string {
	trimmed := strings.TrimSpace(line)
	for _, kw := range definitionKeywords {
		rest, ok := strings.CutPrefix(trimmed, kw)
		if !ok {
			continue
		}
		// Keyword must end at a word boundary: "functional" is not
		// "function al".
		if rest != "" && !unicode.IsSpace(rune(rest[0])) {
			continue
		}
		name := leadingIdentifier(strings.TrimSpace(rest))
		if name != "" {
			return name
		}
	}
	return ""
}

// maxIdentifiers caps the harvest from one file so a generated or
// minified file cannot flood the reference search.
const maxIdentifiers = 50

// HarvestIdentifiers extracts up to maxIdentifiers definition names
// from file content.
func HarvestIdentifiers(content string) []string {
	var names []string
	for _, line := range strings.Split(content, "\n") {
		if name := DefinitionName(line); name != "" {
			names = append(names, name)
			if len(names) >= maxIdentifiers {
				break
			}
		}
	}
	return names
}

func leadingIdentifier(s string) string {
	end := 0
	for end < len(s) {
		c := s[end]
		if c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || end > 0 && c >= '0' && c <= '9' {
			end++
			continue
		}
		break
	}
	return s[:end]
}
