package bookcontext

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleModeReturnsOnlyFramework(t *testing.T) {
	m := New("A lighthouse keeper guards a coastline.", Config{Mode: Simple, MaxContextSize: 500}, nil)
	m.RegisterChapter("ch1", "Chapter 1", "")

	resp := m.GetContextForSection(1, Start, "ch1")
	assert.Equal(t, "A lighthouse keeper guards a coastline.", resp.Framework)
	assert.Empty(t, resp.PreviousChaptersSummary)
	assert.Empty(t, resp.CurrentChapterSummary)
}

func TestProgressiveModeIncludesPriorSummaries(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = Progressive
	m := New("framework text", cfg, nil)

	m.RegisterChapter("ch1", "Chapter 1", "The keeper finds a shipwreck.")
	m.RegisterChapter("ch2", "Chapter 2", "")

	resp := m.GetContextForSection(2, Start, "ch2")
	assert.Contains(t, resp.PreviousChaptersSummary, "The keeper finds a shipwreck.")
}

func TestProgressiveModeIncludesRecentSections(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = Progressive
	cfg.RecentParagraphs = 2
	m := New("framework", cfg, nil)
	m.RegisterChapter("ch1", "Chapter 1", "")

	require.NoError(t, m.AppendSection(context.Background(), "ch1", "first section"))
	require.NoError(t, m.AppendSection(context.Background(), "ch1", "second section"))
	require.NoError(t, m.AppendSection(context.Background(), "ch1", "third section"))

	resp := m.GetContextForSection(1, Middle, "ch1")
	assert.NotContains(t, resp.CurrentChapterSummary, "first section")
	assert.Contains(t, resp.CurrentChapterSummary, "second section")
	assert.Contains(t, resp.CurrentChapterSummary, "third section")
}

func TestBudgetIsNeverExceeded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = Progressive
	cfg.MaxContextSize = 200
	m := New(strings.Repeat("framework ", 100), cfg, nil)

	m.RegisterChapter("ch1", "Chapter 1", strings.Repeat("summary ", 100))
	m.RegisterChapter("ch2", "Chapter 2", "")
	require.NoError(t, m.AppendSection(context.Background(), "ch2", strings.Repeat("content ", 100)))

	resp := m.GetContextForSection(2, Middle, "ch2")
	total := len(resp.Framework) + len(resp.PreviousChaptersSummary) + len(resp.CurrentChapterSummary)
	assert.LessOrEqual(t, total, cfg.MaxContextSize)
}

func TestFrameworkPreservedWhenSummariesAreTrimmedInstead(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = Progressive
	cfg.MaxContextSize = 500
	framework := strings.Repeat("f", 400)
	m := New(framework, cfg, nil)

	m.RegisterChapter("ch1", "Chapter 1", strings.Repeat("summary ", 100))
	m.RegisterChapter("ch2", "Chapter 2", "")

	resp := m.GetContextForSection(2, Start, "ch2")
	assert.Equal(t, framework, resp.Framework, "framework must survive whole when trimming summaries already makes room for it")
	total := len(resp.Framework) + len(resp.PreviousChaptersSummary) + len(resp.CurrentChapterSummary)
	assert.LessOrEqual(t, total, cfg.MaxContextSize)
}

func TestFrameworkTruncatedOnlyAsLastResort(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = Progressive
	cfg.MaxContextSize = 100
	framework := strings.Repeat("f", 300)
	m := New(framework, cfg, nil)
	m.RegisterChapter("ch1", "Chapter 1", "")

	resp := m.GetContextForSection(1, Start, "ch1")
	assert.Empty(t, resp.PreviousChaptersSummary)
	assert.Empty(t, resp.CurrentChapterSummary)
	assert.Len(t, resp.Framework, cfg.MaxContextSize)
}

func TestIntelligentModeTriggersMicroSummaryOnSectionCount(t *testing.T) {
	var calls int
	summarizer := func(ctx context.Context, template string, vars map[string]string) (string, error) {
		calls++
		return "condensed note", nil
	}
	cfg := DefaultConfig()
	cfg.Mode = Intelligent
	cfg.MicroSummaryInterval = 2
	cfg.MicroSummaryCharThreshold = 1 << 20
	m := New("framework", cfg, summarizer)
	m.RegisterChapter("ch1", "Chapter 1", "")

	require.NoError(t, m.AppendSection(context.Background(), "ch1", "one"))
	require.NoError(t, m.AppendSection(context.Background(), "ch1", "two"))

	assert.Equal(t, 1, calls)
}

func TestIntelligentModeTriggersMicroSummaryOnCharThreshold(t *testing.T) {
	var calls int
	summarizer := func(ctx context.Context, template string, vars map[string]string) (string, error) {
		calls++
		return "condensed note", nil
	}
	cfg := DefaultConfig()
	cfg.Mode = Intelligent
	cfg.MicroSummaryInterval = 1000
	cfg.MicroSummaryCharThreshold = 10
	m := New("framework", cfg, summarizer)
	m.RegisterChapter("ch1", "Chapter 1", "")

	require.NoError(t, m.AppendSection(context.Background(), "ch1", "this section is longer than ten characters"))

	assert.Equal(t, 1, calls)
}

func TestMicroSummaryFallsBackOnSummarizerError(t *testing.T) {
	summarizer := func(ctx context.Context, template string, vars map[string]string) (string, error) {
		return "", errors.New("provider exhausted")
	}
	cfg := DefaultConfig()
	cfg.Mode = Intelligent
	cfg.MicroSummaryInterval = 1
	m := New("framework", cfg, summarizer)
	m.RegisterChapter("ch1", "Chapter 1", "")

	err := m.AppendSection(context.Background(), "ch1", "only section")
	require.Error(t, err)

	resp := m.GetContextForSection(1, Middle, "ch1")
	assert.Contains(t, resp.CurrentChapterSummary, "only section")
}

func TestFinalizeChapterStoresRollingSummary(t *testing.T) {
	summarizer := func(ctx context.Context, template string, vars map[string]string) (string, error) {
		return "chapter one: the keeper finds a shipwreck and investigates.", nil
	}
	cfg := DefaultConfig()
	cfg.Mode = Intelligent
	m := New("framework", cfg, summarizer)
	m.RegisterChapter("ch1", "Chapter 1", "")
	require.NoError(t, m.AppendSection(context.Background(), "ch1", "the keeper finds a shipwreck"))

	summary, err := m.FinalizeChapter(context.Background(), "ch1")
	require.NoError(t, err)
	assert.Equal(t, "chapter one: the keeper finds a shipwreck and investigates.", summary)

	m.RegisterChapter("ch2", "Chapter 2", "")
	resp := m.GetContextForSection(2, Start, "ch2")
	assert.Contains(t, resp.PreviousChaptersSummary, "shipwreck")
}

func TestFinalizeChapterFallsBackToExtractiveSummary(t *testing.T) {
	summarizer := func(ctx context.Context, template string, vars map[string]string) (string, error) {
		return "", errors.New("timeout")
	}
	cfg := DefaultConfig()
	cfg.Mode = Intelligent
	m := New("framework", cfg, summarizer)
	m.RegisterChapter("ch1", "Chapter 1", "")
	require.NoError(t, m.AppendSection(context.Background(), "ch1", "first paragraph"))
	require.NoError(t, m.AppendSection(context.Background(), "ch1", "last paragraph"))

	summary, err := m.FinalizeChapter(context.Background(), "ch1")
	require.Error(t, err)
	assert.Contains(t, summary, "first paragraph")
	assert.Contains(t, summary, "last paragraph")
}

func TestRegisterChapterIsIdempotent(t *testing.T) {
	m := New("framework", DefaultConfig(), nil)
	m.RegisterChapter("ch1", "Chapter 1", "original summary")
	m.RegisterChapter("ch1", "Chapter 1 renamed", "overwritten summary")

	require.NoError(t, m.AppendSection(context.Background(), "ch1", "a section"))
	m.RegisterChapter("ch2", "Chapter 2", "")
	resp := m.GetContextForSection(2, Start, "ch2")
	assert.Contains(t, resp.PreviousChaptersSummary, "original summary")
	assert.NotContains(t, resp.PreviousChaptersSummary, "overwritten summary")
}

func TestEntityHintsExtractedFromRecentSections(t *testing.T) {
	m := New("framework", DefaultConfig(), nil)
	m.RegisterChapter("ch1", "Chapter 1", "")
	require.NoError(t, m.AppendSection(context.Background(), "ch1", "Elena walked along the cliff with Marcus."))

	resp := m.GetContextForSection(1, Middle, "ch1")
	assert.Contains(t, resp.KeyEntities, "Elena")
	assert.Contains(t, resp.KeyEntities, "Marcus")
}
