// Package textclean strips reasoning tags, terminal escapes, and other
// structural noise from LLM output before it reaches a caller.
package textclean

import (
	"regexp"
	"strings"
)

// Stage identifies one cleaning pass. Stages run in the order they are
// declared, never in the order passed to Clean.
type Stage int

const (
	ANSICodes Stage = iota
	ThinkTags
	Metadata
	NarrativeMarkers
	Whitespace
)

var stageOrder = []Stage{ANSICodes, ThinkTags, Metadata, NarrativeMarkers, Whitespace}

var (
	ansiPattern     = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)
	thinkPattern    = regexp.MustCompile(`(?s)<think>.*?</think>`)
	thinkTailPattern = regexp.MustCompile(`(?s)<think>.*$`)
	metadataPattern = regexp.MustCompile(`(?m)^\s*(?:#\s*(?:DEV|AUTHOR)[- ]?NOTE:.*|//\s*(?:DEV|AUTHOR)[- ]?NOTE:.*)$`)
	narrativePattern = regexp.MustCompile(`\[Nota:[^\]]*\]`)
	blankRunsPattern = regexp.MustCompile(`\n{3,}`)
)

// Clean applies the requested stages, in their declared order, to text.
// Clean is idempotent for any fixed stage set: Clean(Clean(t, s), s) ==
// Clean(t, s).
func Clean(text string, stages []Stage) string {
	set := make(map[Stage]bool, len(stages))
	for _, s := range stages {
		set[s] = true
	}

	for _, s := range stageOrder {
		if !set[s] {
			continue
		}
		switch s {
		case ANSICodes:
			text = ansiPattern.ReplaceAllString(text, "")
		case ThinkTags:
			text = thinkPattern.ReplaceAllString(text, "")
			text = thinkTailPattern.ReplaceAllString(text, "")
		case Metadata:
			text = metadataPattern.ReplaceAllString(text, "")
		case NarrativeMarkers:
			text = narrativePattern.ReplaceAllString(text, "")
		case Whitespace:
			text = collapseWhitespace(text)
		}
	}

	return text
}

// All returns the full default stage set, in declared order.
func All() []Stage {
	out := make([]Stage, len(stageOrder))
	copy(out, stageOrder)
	return out
}

func collapseWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	text = strings.Join(lines, "\n")
	text = blankRunsPattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
