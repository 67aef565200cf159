package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bookforge/bookforge/internal/config"
	"github.com/bookforge/bookforge/internal/genstate"
	"github.com/bookforge/bookforge/internal/pipeline"
	"github.com/bookforge/bookforge/internal/storage"
)

func main() {
	subject := flag.String("subject", "", "the subject or premise of the book (required)")
	profile := flag.String("profile", "", "reader profile / target audience")
	style := flag.String("style", "", "desired prose style")
	genre := flag.String("genre", "", "genre")
	model := flag.String("model", "", "override the configured provider:model for this run")
	output := flag.String("output", "", "output file path, relative to OUTPUT_DIR (defaults to sessions/<timestamp>_<title-slug>_<short-id>/book.json)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *subject == "" {
		fmt.Fprintln(os.Stderr, "Usage: bookforge -subject \"...\" [-profile ...] [-style ...] [-genre ...] [-model provider:model] [-output path.json]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("loading config", "error", err)
		os.Exit(1)
	}

	store := storage.NewFileSystem(cfg.OutputDir)
	p := pipeline.New(cfg, store, logger)

	p.State().Subscribe(func(s genstate.State) {
		logger.Info("generation status",
			"status", s.Status.String(),
			"chapter", s.CurrentChapter,
			"of", s.ChapterCount,
			"progress", s.Progress,
		)
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	result, err := p.Run(ctx, pipeline.Request{
		Subject:      *subject,
		Profile:      *profile,
		Style:        *style,
		Genre:        *genre,
		Model:        *model,
		OutputFormat: "json",
		OutputPath:   *output,
	})
	if err != nil {
		logger.Error("generation failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("book written to %s (%d chapters)\n", result.FilePath, len(result.Book))
}
