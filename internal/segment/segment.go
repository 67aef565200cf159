// Package segment selects representative slices of long chapter text
// under a character budget, so a summarization or context call never
// has to pay for the whole chapter.
package segment

import (
	"fmt"
	"regexp"
	"strings"
)

// Strategy selects how a text is reduced to fit a budget.
type Strategy int

const (
	Adaptive Strategy = iota // first + middle + last, lengths scaled with total size
	StartEnd                 // first K chars and last K chars only
	Uniform                  // N equally spaced segments
	Full                     // passthrough when the text already fits
)

// Config tunes one extraction. BaseLength is the nominal segment size
// before AdaptiveScaling stretches or shrinks it; MinLength/MaxLength
// bound the result regardless of scaling.
type Config struct {
	Strategy          Strategy
	MaxSegments       int
	BaseLength        int
	AdaptiveScaling   bool
	RespectBoundaries bool
	MinLength         int
	MaxLength         int
}

// DefaultConfig is a reasonable starting point for extraction.
func DefaultConfig() Config {
	return Config{
		Strategy:          Adaptive,
		MaxSegments:       3,
		BaseLength:        1000,
		AdaptiveScaling:   true,
		RespectBoundaries: true,
		MinLength:         500,
		MaxLength:         2000,
	}
}

const (
	elisionPart    = "[...part omitted...]"
	elisionContent = "[...content omitted...]"
)

var (
	paragraphPattern = regexp.MustCompile(`\n\s*\n`)
	sentencePattern  = regexp.MustCompile(`[.!?]+[\s\n]+`)
)

// Extractor applies a Config deterministically to any text.
type Extractor struct {
	config Config
}

// New builds an Extractor bound to config.
func New(config Config) *Extractor {
	return &Extractor{config: config}
}

// Extract reduces text to fit within the extractor's budget, or
// returns it unchanged if it already fits or the strategy is Full.
// The result is deterministic given text and the extractor's config.
func (e *Extractor) Extract(text string) string {
	cfg := e.config
	segLen := cfg.BaseLength
	if cfg.AdaptiveScaling {
		segLen = e.adaptiveLength(text, segLen)
	}

	if len(text) <= segLen*cfg.MaxSegments {
		return text
	}

	switch cfg.Strategy {
	case Full:
		return text
	case StartEnd:
		return e.extractStartEnd(text, segLen)
	case Adaptive:
		return e.extractAdaptive(text, segLen, cfg.MaxSegments)
	case Uniform:
		return e.extractUniform(text, segLen, cfg.MaxSegments)
	default:
		return e.extractUniform(text, segLen, cfg.MaxSegments)
	}
}

// adaptiveLength scales BaseLength by total text size: longer texts
// get larger segments to preserve context, shorter texts get smaller
// ones to avoid redundancy. Result is clamped to [MinLength, MaxLength].
func (e *Extractor) adaptiveLength(text string, base int) int {
	n := len(text)
	var scale float64
	switch {
	case n > 50000:
		scale = 1.5
	case n > 20000:
		scale = 1.2
	case n < 5000:
		scale = 0.7
	case n < 10000:
		scale = 0.85
	default:
		scale = 1.0
	}

	length := int(float64(base) * scale)
	if length < e.config.MinLength {
		length = e.config.MinLength
	}
	if length > e.config.MaxLength {
		length = e.config.MaxLength
	}
	return length
}

// findBoundary snaps targetPos to the nearest paragraph break within a
// 200-char search window, falling back to a sentence end, and to
// targetPos itself if RespectBoundaries is off or no boundary exists.
// direction > 0 searches forward from targetPos, direction < 0 searches
// backward into it.
func (e *Extractor) findBoundary(text string, targetPos int, direction int) int {
	if !e.config.RespectBoundaries {
		return clamp(targetPos, 0, len(text))
	}

	const searchRange = 200
	targetPos = clamp(targetPos, 0, len(text))

	var start, end int
	if direction > 0 {
		start = targetPos
		end = clamp(targetPos+searchRange, 0, len(text))
	} else {
		start = clamp(targetPos-searchRange, 0, len(text))
		end = targetPos
	}
	if start >= end {
		return targetPos
	}
	window := text[start:end]

	if loc := boundaryMatch(paragraphPattern, window, direction); loc >= 0 {
		return start + loc
	}
	if loc := boundaryMatch(sentencePattern, window, direction); loc >= 0 {
		return start + loc
	}
	return targetPos
}

// boundaryMatch returns the end offset of the first match when
// searching forward, or of the last match when searching backward;
// -1 if the pattern does not occur in window.
func boundaryMatch(pattern *regexp.Regexp, window string, direction int) int {
	matches := pattern.FindAllStringIndex(window, -1)
	if len(matches) == 0 {
		return -1
	}
	if direction > 0 {
		return matches[0][1]
	}
	return matches[len(matches)-1][1]
}

func (e *Extractor) extractStartEnd(text string, segLen int) string {
	startEnd := e.findBoundary(text, segLen, 1)
	endStart := e.findBoundary(text, len(text)-segLen, -1)

	var b strings.Builder
	fmt.Fprintf(&b, "CHAPTER START:\n%s", text[:startEnd])
	fmt.Fprintf(&b, "\n\n%s\n\n", elisionContent)
	fmt.Fprintf(&b, "CHAPTER END:\n%s", text[endStart:])
	return b.String()
}

func (e *Extractor) extractUniform(text string, segLen, maxSegments int) string {
	n := len(text)

	var positions []int
	var labels []string

	if maxSegments <= 2 {
		positions = []int{0, n - segLen}
		labels = []string{"CHAPTER START", "CHAPTER END"}
	} else {
		step := (n - segLen) / (maxSegments - 1)
		for i := 0; i < maxSegments; i++ {
			positions = append(positions, i*step)
		}
		labels = append(labels, "CHAPTER START")
		for i := 1; i < maxSegments-1; i++ {
			labels = append(labels, fmt.Sprintf("CHAPTER PART %d", i))
		}
		labels = append(labels, "CHAPTER END")
	}

	segments := make([]string, 0, len(positions))
	for _, pos := range positions {
		start := e.findBoundary(text, pos, 1)
		end := e.findBoundary(text, pos+segLen, 1)
		segments = append(segments, sliceClamped(text, start, end))
	}

	return assemble(labels, segments, elisionPart)
}

func (e *Extractor) extractAdaptive(text string, segLen, maxSegments int) string {
	n := len(text)

	startEnd := e.findBoundary(text, segLen, 1)
	segments := []string{text[:startEnd]}
	labels := []string{"CHAPTER START"}

	if middleSegments := maxSegments - 2; middleSegments > 0 {
		paragraphs := paragraphPattern.Split(text, -1)
		mid := len(paragraphs) / 3
		midEnd := 2 * len(paragraphs) / 3
		keyParagraphs := paragraphs[mid:midEnd]
		middleText := strings.Join(keyParagraphs, "\n\n")

		if len(middleText) > segLen {
			midPoint := len(middleText) / 2
			midStart := midPoint - segLen/2
			if midStart < 0 {
				midStart = 0
			}
			midStop := midStart + segLen
			if midStop > len(middleText) {
				midStop = len(middleText)
			}
			midStart = e.findBoundary(middleText, midStart, 1)
			midStop = e.findBoundary(middleText, midStop, -1)
			segments = append(segments, sliceClamped(middleText, midStart, midStop))
		} else {
			segments = append(segments, middleText)
		}
		labels = append(labels, "CHAPTER MIDDLE")
	}

	endStart := e.findBoundary(text, n-segLen, -1)
	segments = append(segments, text[endStart:])
	labels = append(labels, "CHAPTER END")

	return assemble(labels, segments, elisionContent)
}

func assemble(labels, segments []string, elision string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:\n%s", labels[0], segments[0])
	for i := 1; i < len(segments); i++ {
		fmt.Fprintf(&b, "\n\n%s\n\n%s:\n%s", elision, labels[i], segments[i])
	}
	return b.String()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func sliceClamped(s string, start, end int) string {
	start = clamp(start, 0, len(s))
	end = clamp(end, 0, len(s))
	if end < start {
		return ""
	}
	return s[start:end]
}
