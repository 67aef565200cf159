package segment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShortTextPassesThrough(t *testing.T) {
	text := "This is a short chapter that needs no extraction."
	e := New(Config{MaxSegments: 3, BaseLength: 100})

	assert.Equal(t, text, e.Extract(text))
}

func TestFullStrategyAlwaysPassesThrough(t *testing.T) {
	text := strings.Repeat("The complete text that must not change. ", 100)
	e := New(Config{Strategy: Full, MaxSegments: 3, BaseLength: 500})

	assert.Equal(t, text, e.Extract(text))
}

func TestStartEndStrategyKeepsHeadAndTail(t *testing.T) {
	text := strings.Repeat("A", 1000) + strings.Repeat("B", 5000) + strings.Repeat("C", 1000)
	cfg := Config{Strategy: StartEnd, RespectBoundaries: false, MaxSegments: 2, BaseLength: 500}
	e := New(cfg)

	result := e.Extract(text)

	assert.Contains(t, result, "CHAPTER START")
	assert.Contains(t, result, "CHAPTER END")
	assert.Contains(t, result, "content omitted")
	assert.Greater(t, strings.Count(result, "A"), 100)
	assert.Greater(t, strings.Count(result, "C"), 100)
	assert.Less(t, strings.Count(result, "B"), 1000)
}

func TestUniformStrategyLabelsEachPart(t *testing.T) {
	text := strings.Repeat("START ", 200) + strings.Repeat("MIDDLE ", 800) + strings.Repeat("END ", 200)
	cfg := Config{Strategy: Uniform, RespectBoundaries: false, MaxSegments: 3, BaseLength: 500}
	e := New(cfg)

	result := e.Extract(text)

	assert.Contains(t, result, "CHAPTER START")
	assert.Contains(t, result, "CHAPTER PART 1")
	assert.Contains(t, result, "CHAPTER END")
}

func TestAdaptiveStrategyCapturesAllThreeParts(t *testing.T) {
	text := strings.Repeat("Opening paragraph one.\n\nOpening paragraph two.\n\n", 50) +
		strings.Repeat("Important middle paragraph.\n\n", 100) +
		strings.Repeat("Closing paragraph one.\n\nClosing paragraph two.\n\n", 50)
	cfg := Config{Strategy: Adaptive, MaxSegments: 3, BaseLength: 500}
	e := New(cfg)

	result := e.Extract(text)

	assert.Contains(t, result, "CHAPTER START")
	assert.Contains(t, result, "CHAPTER MIDDLE")
	assert.Contains(t, result, "CHAPTER END")
	assert.Contains(t, strings.ToLower(result), "opening")
	assert.Contains(t, strings.ToLower(result), "closing")
}

func TestAdaptiveScalingGrowsForLongText(t *testing.T) {
	e := New(Config{AdaptiveScaling: true, MinLength: 500, MaxLength: 2000})

	longLen := e.adaptiveLength(strings.Repeat("A", 60000), 1000)
	assert.Greater(t, longLen, 1000)
	assert.LessOrEqual(t, longLen, 2000)

	shortLen := e.adaptiveLength(strings.Repeat("B", 4000), 1000)
	assert.Less(t, shortLen, 1000)
	assert.GreaterOrEqual(t, shortLen, 500)
}

func TestRespectBoundariesPreservesParagraphBreaks(t *testing.T) {
	paragraph := "First paragraph with content.\n\nSecond paragraph with more content.\n\nThird paragraph final.\n\n"
	text := strings.Repeat(paragraph, 50)
	cfg := Config{Strategy: StartEnd, RespectBoundaries: true, MaxSegments: 2, BaseLength: 200}
	e := New(cfg)

	result := e.Extract(text)

	assert.Greater(t, len(strings.Split(result, "\n\n")), 1)
}

func TestBoundaryDetectionFindsParagraphOrSentence(t *testing.T) {
	text := "First sentence. Second sentence.\n\n" +
		"Second paragraph with content. More content.\n\n" +
		"Third paragraph.\n\n"
	e := New(Config{RespectBoundaries: true})

	boundary := e.findBoundary(text, 20, 1)

	assert.Equal(t, len("First sentence. Second sentence.\n\n"), boundary)
}

func TestExtractionIsDeterministic(t *testing.T) {
	text := strings.Repeat("Repeatable narrative content. ", 300)
	e := New(DefaultConfig())

	first := e.Extract(text)
	second := e.Extract(text)

	assert.Equal(t, first, second)
}

func TestLongTextShrinksUnderAdaptiveStrategy(t *testing.T) {
	text := strings.Repeat("X", 5000)
	e := New(Config{Strategy: Adaptive, MaxSegments: 3, BaseLength: 1000})

	result := e.Extract(text)

	assert.Less(t, len(result), len(text))
}
