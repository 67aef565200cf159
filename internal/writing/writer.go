// Package writing implements the per-section prose loop: for each
// chapter, for each idea in that chapter's idea list, obtain context,
// invoke the LLM gateway, and append the result — the core loop of the
// generation pipeline.
package writing

import (
	"context"
	"fmt"
	"strings"
)

// Position mirrors bookcontext.Position without importing it, keeping
// this package's only dependency on the context manager the narrow
// ContextProvider interface below.
type Position string

const (
	Start  Position = "start"
	Middle Position = "middle"
	End    Position = "end"
)

// ContextResult mirrors bookcontext.Response's fields.
type ContextResult struct {
	Framework               string
	PreviousChaptersSummary string
	CurrentChapterSummary   string
	KeyEntities             map[string]string
}

// ContextProvider is satisfied by *bookcontext.Manager through a thin
// adapter built at pipeline wiring time.
type ContextProvider interface {
	GetContextForSection(chapterNum int, position Position, key string) ContextResult
	AppendSection(ctx context.Context, key, sectionText string) error
	FinalizeChapter(ctx context.Context, key string) (string, error)
}

// Invoker matches llmgateway.Gateway.Invoke's signature.
type Invoker func(ctx context.Context, template string, vars map[string]string) (string, error)

// Chapter is the input to WriteChapter: a stable key, its position
// among all chapters, and its ordered idea list from planning.
type Chapter struct {
	Key         string
	Title       string
	Description string
	Number      int
	Total       int
	Ideas       []string
}

// Section is one written unit of prose.
type Section struct {
	Idea  string
	Text  string
	Short bool
}

// Outcome is everything WriteChapter produced for one chapter.
type Outcome struct {
	Key      string
	Sections []Section
	Summary  string
}

// Config tunes recoverable-condition handling.
type Config struct {
	// MinSectionLength is the floor below which a non-empty response is
	// accepted but flagged as short rather than retried.
	MinSectionLength int
}

func DefaultConfig() Config {
	return Config{MinSectionLength: 200}
}

// Progress is called after each section is written, with enough to
// drive a workflow state update (incrementing the section counter).
type Progress func(chapter Chapter, sectionIndex, sectionTotal int, short bool)

const (
	writerTemplate = "Framework:\n{framework}\n\n" +
		"Summary of earlier chapters:\n{previous_chapters_summary}\n\n" +
		"This chapter so far:\n{current_chapter_summary}\n\n" +
		"Recurring characters and elements: {key_entities}\n\n" +
		"You are writing chapter {chapter_number} of {chapter_total} (\"{chapter_title}\"), " +
		"idea {idea_number} of {idea_total}, position: {position}.\n" +
		"Idea to develop into prose: {idea}\n\n" +
		"Continue the narrative directly, in prose, with no headings or meta-commentary."

	simplifiedWriterTemplate = "Continue this chapter (\"{chapter_title}\") with a short scene developing: {idea}\n\n" +
		"Prior context: {previous_chapters_summary} {current_chapter_summary}\n\n" +
		"Write plain prose, a few paragraphs, nothing else."
)

// WriteChapter runs the writer loop for one chapter: for each idea in
// order it determines position, pulls context from ctxProvider,
// invokes the writer template through invoke, appends the resulting
// prose back to ctxProvider, and reports progress. After the last
// idea it finalizes the chapter and returns its summary.
func WriteChapter(ctx context.Context, chapter Chapter, invoke Invoker, ctxProvider ContextProvider, cfg Config, onProgress Progress) (Outcome, error) {
	outcome := Outcome{Key: chapter.Key}
	total := len(chapter.Ideas)

	for i, idea := range chapter.Ideas {
		position := positionFor(i, total)

		section, err := writeSection(ctx, chapter, i, idea, position, invoke, ctxProvider, cfg)
		if err != nil {
			return outcome, fmt.Errorf("chapter %s section %d: %w", chapter.Key, i+1, err)
		}

		// An AppendSection error reports a failed micro-summary call; the
		// section is already stored and an extractive summary stands in
		// for the failed one, so the loop goes on.
		_ = ctxProvider.AppendSection(ctx, chapter.Key, section.Text)

		outcome.Sections = append(outcome.Sections, section)
		if onProgress != nil {
			onProgress(chapter, i+1, total, section.Short)
		}
	}

	summary, err := ctxProvider.FinalizeChapter(ctx, chapter.Key)
	if err != nil && summary == "" {
		// When the summarizer fails, FinalizeChapter returns an
		// extractive summary alongside the error, and that summary is
		// kept. An error with no summary means the chapter itself could
		// not be located, which is a caller bug, not a recoverable
		// writing condition.
		return outcome, fmt.Errorf("chapter %s: finalize: %w", chapter.Key, err)
	}
	outcome.Summary = summary
	return outcome, nil
}

func positionFor(index, total int) Position {
	switch {
	case index == 0:
		return Start
	case index == total-1:
		return End
	default:
		return Middle
	}
}

// writeSection invokes the writer template once, handling the three
// recoverable conditions: an empty response (including a
// response that was entirely reasoning tokens, which by the time it
// reaches this package is indistinguishable from empty, since the
// gateway's sanitizer has already stripped the thought channel) is
// retried once with a simplified prompt; a short-but-nonempty response
// is accepted and flagged; a second empty response is unrecoverable.
func writeSection(ctx context.Context, chapter Chapter, index int, idea string, position Position, invoke Invoker, ctxProvider ContextProvider, cfg Config) (Section, error) {
	vars := templateVars(ctx, chapter, index, idea, position, ctxProvider)

	text, err := invoke(ctx, writerTemplate, vars)
	if err != nil {
		return Section{}, err
	}

	if strings.TrimSpace(text) == "" {
		simplified := map[string]string{
			"chapter_title":             chapter.Title,
			"idea":                      idea,
			"previous_chapters_summary": vars["previous_chapters_summary"],
			"current_chapter_summary":   vars["current_chapter_summary"],
		}
		text, err = invoke(ctx, simplifiedWriterTemplate, simplified)
		if err != nil {
			return Section{}, err
		}
		if strings.TrimSpace(text) == "" {
			return Section{}, fmt.Errorf("empty response after simplified retry")
		}
	}

	return Section{
		Idea:  idea,
		Text:  text,
		Short: len(text) < cfg.MinSectionLength,
	}, nil
}

func templateVars(_ context.Context, chapter Chapter, index int, idea string, position Position, ctxProvider ContextProvider) map[string]string {
	resp := ctxProvider.GetContextForSection(chapter.Number, position, chapter.Key)
	return map[string]string{
		"framework":                 resp.Framework,
		"previous_chapters_summary": resp.PreviousChaptersSummary,
		"current_chapter_summary":   resp.CurrentChapterSummary,
		"key_entities":              formatEntities(resp.KeyEntities),
		"chapter_number":            fmt.Sprintf("%d", chapter.Number),
		"chapter_total":             fmt.Sprintf("%d", chapter.Total),
		"chapter_title":             chapter.Title,
		"idea_number":               fmt.Sprintf("%d", index+1),
		"idea_total":                fmt.Sprintf("%d", len(chapter.Ideas)),
		"position":                  string(position),
		"idea":                      idea,
	}
}

func formatEntities(entities map[string]string) string {
	if len(entities) == 0 {
		return "none yet"
	}
	names := make([]string, 0, len(entities))
	for name := range entities {
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}
