// Package pipeline wires every component into the linear run described
// by the system overview: IDLE -> STARTING -> GENERATING_STRUCTURE ->
// GENERATING_IDEAS -> WRITING_BOOK -> SAVING_DOCUMENT -> COMPLETE.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/bookforge/bookforge/internal/bookcontext"
	"github.com/bookforge/bookforge/internal/chapters"
	"github.com/bookforge/bookforge/internal/config"
	"github.com/bookforge/bookforge/internal/genstate"
	"github.com/bookforge/bookforge/internal/llmgateway"
	_ "github.com/bookforge/bookforge/internal/llmgateway/providers"
	"github.com/bookforge/bookforge/internal/planning"
	"github.com/bookforge/bookforge/internal/ratelimit"
	"github.com/bookforge/bookforge/internal/resilience"
	"github.com/bookforge/bookforge/internal/segment"
	"github.com/bookforge/bookforge/internal/storage"
	"github.com/bookforge/bookforge/internal/writing"
	"golang.org/x/sync/errgroup"
)

// Request is the inbound book request: the inputs the outer caller
// supplies for one generation run.
type Request struct {
	Subject      string
	Profile      string
	Style        string
	Genre        string
	Model        string // provider:model put at the head of the gateway chain when set
	OutputFormat string
	OutputPath   string
}

// Book is the accumulated output: chapter key -> ordered section
// strings, handed to the (out of scope) formatter.
type Book map[string][]string

// Result is what a COMPLETE run produces.
type Result struct {
	RunID    string
	FilePath string
	Book     Book
}

// Pipeline holds everything wired up for one run. Build one per
// process with New; Run executes a single book end to end.
type Pipeline struct {
	cfg     *config.Config
	gateway *llmgateway.Gateway
	state   *genstate.Manager
	store   storage.Storage
	segExt  *segment.Extractor
	logger  *slog.Logger
}

// New wires the gateway, rate limiter, and segment extractor from cfg,
// and returns a Pipeline with a fresh IDLE state manager.
func New(cfg *config.Config, store storage.Storage, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}

	delays := make(map[string]time.Duration, len(cfg.RateLimit.ProviderDelays))
	for provider, d := range cfg.RateLimit.ProviderDelays {
		delays[provider] = d
	}
	limiter := ratelimit.New(cfg.RateLimit.DefaultDelay, delays)

	gwCfg := llmgateway.Config{
		ProviderChain: cfg.ProviderChain,
		BaseURL:       make(map[string]string),
		Model:         make(map[string]string),
		MaxTokens:     0,
		Streaming:     cfg.LLM.Streaming,
		Retry:         cfg.Retry.ToResilience(),
		Breaker:       resilience.DefaultBreakerConfig(),
	}
	temp := cfg.LLM.Temperature
	gwCfg.Temperature = &temp
	for name, provider := range cfg.Providers {
		if provider.BaseURL != "" {
			gwCfg.BaseURL[name] = provider.BaseURL
		}
		if provider.Model != "" {
			gwCfg.Model[name] = provider.Model
		}
	}

	state := genstate.NewManager(time.Now())
	state.Subscribe(genstate.LoggerObserver(logger))

	gw := llmgateway.New(gwCfg, limiter, nil, logger)

	segCfg := segment.DefaultConfig()
	segCfg.Strategy = parseSegmentStrategy(cfg.Segment.Strategy)
	segCfg.MaxSegments = cfg.Segment.MaxCount
	segCfg.BaseLength = cfg.Segment.BaseLength
	segCfg.AdaptiveScaling = cfg.Segment.AdaptiveScaling

	return &Pipeline{
		cfg:     cfg,
		gateway: gw,
		state:   state,
		store:   store,
		segExt:  segment.New(segCfg),
		logger:  logger,
	}
}

// State exposes the pipeline's generation state manager, so a caller
// (an HTTP/WebSocket façade, out of scope here) can subscribe its own
// observer or poll Current.
func (p *Pipeline) State() *genstate.Manager { return p.state }

func parseSegmentStrategy(s string) segment.Strategy {
	switch strings.ToLower(s) {
	case "start_end", "startend":
		return segment.StartEnd
	case "uniform":
		return segment.Uniform
	case "full":
		return segment.Full
	default:
		return segment.Adaptive
	}
}

// Run executes one full book generation: structure, ideas, writing,
// saving. Each stage transitions p.State() before doing its work so an
// observer sees STARTING before any network call happens.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	now := time.Now

	transition := func(status genstate.Status, fields genstate.Fields) error {
		fields.Status = status
		_, err := p.state.Update(fields, now())
		return err
	}

	if err := transition(genstate.Starting, genstate.Fields{}); err != nil {
		return nil, err
	}

	brief := planning.Brief{Subject: req.Subject, Genre: req.Genre, Profile: req.Profile, Style: req.Style}
	gateway := p.gateway
	if provider, model := splitModelOverride(req.Model); provider != "" {
		gateway = gateway.WithModel(provider, model)
	}
	invoke := gateway.Invoke

	if err := transition(genstate.ConfiguringModel, genstate.Fields{}); err != nil {
		return nil, err
	}

	if err := transition(genstate.GeneratingStructure, genstate.Fields{}); err != nil {
		return nil, err
	}

	title, err := planning.GenerateTitle(ctx, invoke, brief)
	if err != nil {
		p.fail(err)
		return nil, fmt.Errorf("generating title: %w", err)
	}

	framework, err := planning.GenerateFramework(ctx, invoke, title, brief)
	if err != nil {
		p.fail(err)
		return nil, fmt.Errorf("generating framework: %w", err)
	}

	entries, err := planning.GenerateChapters(ctx, invoke, framework, brief)
	if err != nil {
		p.fail(err)
		return nil, fmt.Errorf("generating chapter list: %w", err)
	}
	entries, sortWarnings := orderChapters(entries)
	for _, w := range sortWarnings {
		p.logger.Warn("chapter ordering", "warning", w)
	}

	chapterCount := len(entries)
	if err := transition(genstate.StructureComplete, genstate.Fields{
		Title: &title, ChapterCount: &chapterCount,
	}); err != nil {
		return nil, err
	}

	if err := transition(genstate.GeneratingIdeas, genstate.Fields{}); err != nil {
		return nil, err
	}

	// Per-chapter idea generation depends only on the framework and
	// that chapter's own metadata, so unlike WRITING_BOOK's strictly
	// sequential loop, these calls fan out across chapters; each still
	// passes through the mutex-guarded rate limiter and circuit
	// breaker individually.
	ideasByChapter := make([][]string, len(entries))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(maxInt(1, p.cfg.Concurrency.MaxConcurrentIdeaWorkers))
	for i, entry := range entries {
		i, entry := i, entry
		group.Go(func() error {
			ideas, err := planning.GenerateIdeas(groupCtx, invoke, framework, entry, nil)
			if err != nil {
				return fmt.Errorf("generating ideas for %s: %w", entry.Key, err)
			}
			ideasByChapter[i] = ideas
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		p.fail(err)
		return nil, err
	}

	chapterIdeas := make(map[string][]string, len(entries))
	for i, entry := range entries {
		chapterIdeas[entry.Key] = ideasByChapter[i]
	}

	if err := transition(genstate.IdeasComplete, genstate.Fields{}); err != nil {
		return nil, err
	}
	if err := transition(genstate.WritingBook, genstate.Fields{}); err != nil {
		return nil, err
	}

	ctxMgr := bookcontext.New(framework, p.contextConfig(), p.makeSummarizer(gateway))
	for _, entry := range entries {
		ctxMgr.RegisterChapter(entry.Key, entry.Key, "")
	}

	book := make(Book, len(entries))
	adapter := &contextAdapter{m: ctxMgr}
	writingCfg := writing.DefaultConfig()

	sectionsWritten := 0
	totalSections := 0
	for _, entry := range entries {
		totalSections += len(chapterIdeas[entry.Key])
	}

	for i, entry := range entries {
		chapter := writing.Chapter{
			Key: entry.Key, Title: entry.Key, Description: entry.Description,
			Number: i + 1, Total: chapterCount, Ideas: chapterIdeas[entry.Key],
		}

		outcome, err := writing.WriteChapter(ctx, chapter, writing.Invoker(invoke), adapter, writingCfg, func(c writing.Chapter, sectionIndex, sectionTotal int, short bool) {
			sectionsWritten++
			progress := 0
			if totalSections > 0 {
				progress = (sectionsWritten * 100) / totalSections
			}
			current := i + 1
			_ = transition(genstate.WritingBook, genstate.Fields{CurrentChapter: &current, Progress: &progress})
		})
		if err != nil {
			p.fail(err)
			return nil, fmt.Errorf("writing chapter %s: %w", entry.Key, err)
		}

		texts := make([]string, len(outcome.Sections))
		for j, s := range outcome.Sections {
			texts[j] = s.Text
		}
		book[entry.Key] = texts

		current := i + 1
		if err := transition(genstate.ChapterComplete, genstate.Fields{CurrentChapter: &current}); err != nil {
			return nil, err
		}
		// WRITING_COMPLETE is only reachable from WRITING_BOOK, so every
		// chapter (including the last) re-enters WRITING_BOOK before the
		// loop decides whether there is another chapter to write.
		if err := transition(genstate.WritingBook, genstate.Fields{}); err != nil {
			return nil, err
		}
	}

	if err := transition(genstate.WritingComplete, genstate.Fields{}); err != nil {
		return nil, err
	}
	if err := transition(genstate.SavingDocument, genstate.Fields{}); err != nil {
		return nil, err
	}

	runID := p.state.Current().RunID
	path, err := p.save(ctx, req, runID, title, book)
	if err != nil {
		p.fail(err)
		return nil, fmt.Errorf("saving document: %w", err)
	}

	ready := true
	if err := transition(genstate.Complete, genstate.Fields{
		BookReady: &ready, FilePath: &path, Progress: intPtr(100),
	}); err != nil {
		return nil, err
	}

	return &Result{RunID: runID, FilePath: path, Book: book}, nil
}

func (p *Pipeline) fail(err error) {
	_, _ = p.state.Fail(err.Error(), time.Now())
}

// contextConfig maps config.ContextConfig onto bookcontext.Config.
// INTELLIGENT mode is selected whenever micro-summaries are enabled,
// since that is the only mode that spends an LLM call; otherwise
// PROGRESSIVE gives rolling summaries without one.
func (p *Pipeline) contextConfig() bookcontext.Config {
	cfg := bookcontext.DefaultConfig()
	cfg.Mode = bookcontext.Progressive
	if p.cfg.Context.EnableMicroSummaries {
		cfg.Mode = bookcontext.Intelligent
	}
	cfg.MaxContextSize = p.cfg.Context.StandardSize
	cfg.MicroSummaryInterval = p.cfg.Context.MicroSummaryInterval
	cfg.MicroSummaryCharThreshold = p.cfg.Context.MaxAccumulation
	return cfg
}

// makeSummarizer adapts the gateway into a bookcontext.Summarizer,
// running every long template variable through the segment extractor
// first so a chapter's full text never blows the summarization
// prompt's budget.
func (p *Pipeline) makeSummarizer(gateway *llmgateway.Gateway) bookcontext.Summarizer {
	return func(ctx context.Context, template string, vars map[string]string) (string, error) {
		reduced := make(map[string]string, len(vars))
		for k, v := range vars {
			reduced[k] = p.segExt.Extract(v)
		}
		return gateway.Invoke(ctx, template, reduced)
	}
}

// splitModelOverride parses a request's "model" field as either
// "provider:model" or a bare provider name; an empty request field
// leaves the configured default provider chain untouched.
func splitModelOverride(raw string) (provider, model string) {
	if raw == "" {
		return "", ""
	}
	if i := strings.IndexByte(raw, ':'); i >= 0 {
		return raw[:i], raw[i+1:]
	}
	return raw, ""
}

// save writes the finished book, as a storage.BookRecord, and a
// sidecar metadata file describing the run, under a session directory
// named from the run ID and title. An explicit req.OutputPath is
// honored as the book file's path directly, with the metadata file
// dropped alongside it.
func (p *Pipeline) save(ctx context.Context, req Request, runID, title string, book Book) (string, error) {
	record := storage.BookRecord{RunID: runID, Title: title, Subject: req.Subject, Genre: req.Genre, Book: book}

	bookPath := req.OutputPath
	if bookPath == "" {
		dir := storage.CreateSessionPath("", runID, title, storage.SessionDescriptive)
		bookPath = filepath.Join(dir, "book.json")
	}

	if err := storage.SaveBook(ctx, p.store, bookPath, record); err != nil {
		return "", err
	}

	metaPath := filepath.Join(filepath.Dir(bookPath), "metadata.md")
	metadata := storage.CreateSessionMetadata(p.cfg.OutputDir, runID, storage.SessionInfo{
		Title:        title,
		Subject:      req.Subject,
		Genre:        req.Genre,
		Provider:     p.primaryProvider(),
		ChapterCount: len(book),
	})
	if err := p.store.Save(ctx, metaPath, metadata); err != nil {
		return "", err
	}

	return bookPath, nil
}

// primaryProvider names the provider chain's head for the session
// metadata file, or "unknown" if the chain is somehow empty.
func (p *Pipeline) primaryProvider() string {
	if len(p.cfg.ProviderChain) == 0 {
		return "unknown"
	}
	return p.cfg.ProviderChain[0]
}

// orderChapters applies the canonical total order over the generated chapter
// keys and returns the reordered entries alongside any well-formedness
// warnings (gaps, duplicates, unrecognized labels).
func orderChapters(entries []planning.ChapterEntry) ([]planning.ChapterEntry, []string) {
	keys := make([]string, len(entries))
	byKey := make(map[string]planning.ChapterEntry, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
		byKey[e.Key] = e
	}

	result := chapters.SortChapters(keys)
	ordered := make([]planning.ChapterEntry, len(result.Sorted))
	for i, key := range result.Sorted {
		ordered[i] = byKey[key]
	}
	return ordered, result.Warnings
}

func intPtr(v int) *int { return &v }

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// contextAdapter satisfies writing.ContextProvider over a
// *bookcontext.Manager.
type contextAdapter struct {
	m *bookcontext.Manager
}

func (a *contextAdapter) GetContextForSection(chapterNum int, position writing.Position, key string) writing.ContextResult {
	resp := a.m.GetContextForSection(chapterNum, bookcontext.Position(position), key)
	return writing.ContextResult{
		Framework:               resp.Framework,
		PreviousChaptersSummary: resp.PreviousChaptersSummary,
		CurrentChapterSummary:   resp.CurrentChapterSummary,
		KeyEntities:             resp.KeyEntities,
	}
}

func (a *contextAdapter) AppendSection(ctx context.Context, key, sectionText string) error {
	return a.m.AppendSection(ctx, key, sectionText)
}

func (a *contextAdapter) FinalizeChapter(ctx context.Context, key string) (string, error) {
	return a.m.FinalizeChapter(ctx, key)
}
