// Package planning runs the four templated chains that plan a book
// before any prose is written: title, framework, chapter list, and
// per-chapter ideas. Each chain is one templated call through the LLM
// gateway followed by a deterministic line-based parse, with a single
// stricter-prompt retry on parse failure.
package planning

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bookforge/bookforge/internal/llmgateway"
)

// Invoker matches llmgateway.Gateway.Invoke's signature. Chains call
// through this narrow function type rather than a *llmgateway.Gateway,
// so they never touch provider chains or retry policy; the package
// imports llmgateway only for its MalformedResponseError type.
type Invoker func(ctx context.Context, template string, vars map[string]string) (string, error)

// Brief is the fixed set of inputs that seed every planning chain.
type Brief struct {
	Subject string
	Genre   string
	Profile string
	Style   string
}

func (b Brief) vars() map[string]string {
	return map[string]string{
		"subject": b.Subject,
		"genre":   b.Genre,
		"profile": b.Profile,
		"style":   b.Style,
	}
}

// ChapterEntry is one line of the chapter list: a stable key (as it
// would appear in a table of contents) and a short description.
// Order is the order the model proposed, preserved as returned;
// canonical narrative order is the chapter sorter's job, not this package's.
type ChapterEntry struct {
	Key         string
	Description string
}

const (
	titleTemplate = "You are planning a book. Subject: {subject}. Genre: {genre}. " +
		"Target readership: {profile}. Style: {style}.\n\n" +
		"Respond with exactly one line: the book's title. No quotes, no preamble."

	titleStrictTemplate = "Subject: {subject}. Genre: {genre}. Readership: {profile}. Style: {style}.\n\n" +
		"Output ONLY the title, one line, no prefix, no punctuation wrapper, no explanation."

	frameworkTemplate = "Book title: {title}. Subject: {subject}. Genre: {genre}. " +
		"Target readership: {profile}. Style: {style}.\n\n" +
		"Write a narrative framework for this book: world, tone, central characters, and the " +
		"arc the book as a whole should trace. Several paragraphs, prose, no headings."

	frameworkStrictTemplate = "Title: {title}. Subject: {subject}. Genre: {genre}. Style: {style}.\n\n" +
		"Write the narrative framework as plain paragraphs only. Do not use headings, bullet " +
		"points, or numbered lists anywhere in the response."

	chaptersTemplate = "Framework:\n{framework}\n\nGenre: {genre}. Style: {style}.\n\n" +
		"List the book's chapters in narrative order, one per line, each formatted exactly as " +
		"`Chapter key: short description`. Include a prologue or epilogue only if the framework " +
		"calls for one."

	chaptersStrictTemplate = "Framework:\n{framework}\n\n" +
		"Output the chapter list as plain lines, one chapter per line, each line exactly " +
		"`key: description`, nothing else. No numbering prefixes beyond the key itself, no " +
		"blank lines, no commentary before or after the list."

	ideasTemplate = "Framework:\n{framework}\n\nChapter \"{chapter_key}\": {chapter_description}.\n" +
		"Ideas already used in earlier chapters:\n{prior_ideas}\n\n" +
		"Propose 3 to 5 distinct scene or beat ideas for this chapter, one per line, each a " +
		"single sentence. Do not repeat earlier ideas."

	ideasStrictTemplate = "Chapter \"{chapter_key}\": {chapter_description}. Framework:\n{framework}\n\n" +
		"Output 3 to 5 ideas as plain lines, one idea per line, no numbering, no bullets, no " +
		"blank lines, no commentary."
)

var listPrefixPattern = regexp.MustCompile(`^\s*[-•*]\s+|^\s*\d+[.)]\s+`)

// stripListPrefix removes a leading bullet, dash, or numbered-list
// marker from one line, per the "lines matching ^\s*[-•*\d.]\s+ are
// list items" parsing rule.
func stripListPrefix(line string) string {
	return strings.TrimSpace(listPrefixPattern.ReplaceAllString(line, ""))
}

func nonEmptyLines(raw string) []string {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}

// GenerateTitle runs the Title chain, returning the single-line title.
func GenerateTitle(ctx context.Context, invoke Invoker, brief Brief) (string, error) {
	parse := func(raw string) (string, error) {
		lines := nonEmptyLines(raw)
		if len(lines) == 0 {
			return "", fmt.Errorf("empty title response")
		}
		return stripListPrefix(lines[0]), nil
	}
	return runWithRetry(ctx, invoke, titleTemplate, titleStrictTemplate, brief.vars(), "title", parse)
}

// GenerateFramework runs the Framework chain, returning the full
// multi-paragraph narrative bible.
func GenerateFramework(ctx context.Context, invoke Invoker, title string, brief Brief) (string, error) {
	vars := brief.vars()
	vars["title"] = title
	parse := func(raw string) (string, error) {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			return "", fmt.Errorf("empty framework response")
		}
		return trimmed, nil
	}
	return runWithRetry(ctx, invoke, frameworkTemplate, frameworkStrictTemplate, vars, "framework", parse)
}

// GenerateChapters runs the Chapters chain, returning the ordered
// chapter list parsed from `key: description` lines.
func GenerateChapters(ctx context.Context, invoke Invoker, framework string, brief Brief) ([]ChapterEntry, error) {
	vars := brief.vars()
	vars["framework"] = framework
	parse := func(raw string) ([]ChapterEntry, error) {
		lines := nonEmptyLines(raw)
		entries := make([]ChapterEntry, 0, len(lines))
		for _, line := range lines {
			line = stripListPrefix(line)
			key, desc, ok := strings.Cut(line, ":")
			if !ok {
				return nil, fmt.Errorf("chapter line %q has no key: description separator", line)
			}
			key = strings.TrimSpace(key)
			desc = strings.TrimSpace(desc)
			if key == "" {
				return nil, fmt.Errorf("chapter line %q has an empty key", line)
			}
			entries = append(entries, ChapterEntry{Key: key, Description: desc})
		}
		if len(entries) == 0 {
			return nil, fmt.Errorf("no chapters parsed from response")
		}
		return entries, nil
	}
	return runWithRetry(ctx, invoke, chaptersTemplate, chaptersStrictTemplate, vars, "chapters", parse)
}

// GenerateIdeas runs the Ideas chain for one chapter, returning 3-5
// scene ideas in proposed order. priorIdeas, when given, steers the
// model away from repeating them; callers that fan this out across
// chapters concurrently pass nil, since each chapter's ideas only need
// to avoid repeating themselves, not every other chapter's.
func GenerateIdeas(ctx context.Context, invoke Invoker, framework string, chapter ChapterEntry, priorIdeas []string) ([]string, error) {
	vars := map[string]string{
		"framework":           framework,
		"chapter_key":         chapter.Key,
		"chapter_description": chapter.Description,
		"prior_ideas":         strings.Join(priorIdeas, "\n"),
	}
	parse := func(raw string) ([]string, error) {
		lines := nonEmptyLines(raw)
		ideas := make([]string, 0, len(lines))
		for _, line := range lines {
			idea := stripListPrefix(line)
			if idea != "" {
				ideas = append(ideas, idea)
			}
		}
		if len(ideas) < 3 {
			return nil, fmt.Errorf("expected at least 3 ideas, parsed %d", len(ideas))
		}
		if len(ideas) > 5 {
			ideas = ideas[:5]
		}
		return ideas, nil
	}
	return runWithRetry(ctx, invoke, ideasTemplate, ideasStrictTemplate, vars, "ideas:"+chapter.Key, parse)
}

// runWithRetry invokes template, parses the result, and on parse
// failure retries once with strictTemplate before raising
// MalformedResponse. A transport-level error from invoke itself is
// returned immediately without a retry; that retry belongs to the
// gateway's own provider-call layer, not the chain.
func runWithRetry[T any](ctx context.Context, invoke Invoker, template, strictTemplate string, vars map[string]string, chain string, parse func(string) (T, error)) (T, error) {
	var zero T

	raw, err := invoke(ctx, template, vars)
	if err != nil {
		return zero, err
	}
	if parsed, perr := parse(raw); perr == nil {
		return parsed, nil
	}

	raw, err = invoke(ctx, strictTemplate, vars)
	if err != nil {
		return zero, err
	}
	parsed, perr := parse(raw)
	if perr != nil {
		return zero, &llmgateway.MalformedResponseError{Provider: chain, Cause: perr}
	}
	return parsed, nil
}

// ChapterIndex formats a chapter's position as "position/total".
func ChapterIndex(position, total int) string {
	return strconv.Itoa(position) + "/" + strconv.Itoa(total)
}
