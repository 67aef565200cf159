package genstate

import (
	"encoding/json"
	"log/slog"
)

// event is the wire schema emitted to the UI for one state transition.
type event struct {
	Status         string `json:"status"`
	Title          string `json:"title"`
	CurrentStep    string `json:"current_step"`
	Progress       int    `json:"progress"`
	ChapterCount   int    `json:"chapter_count"`
	CurrentChapter int    `json:"current_chapter"`
	Error          string `json:"error,omitempty"`
	BookReady      bool   `json:"book_ready"`
	FilePath       string `json:"file_path"`
	OutputFormat   string `json:"output_format"`
	Timestamp      string `json:"timestamp"`
}

func toEvent(s State) event {
	return event{
		Status:         s.Status.String(),
		Title:          s.Title,
		CurrentStep:    s.CurrentStep,
		Progress:       s.Progress,
		ChapterCount:   s.ChapterCount,
		CurrentChapter: s.CurrentChapter,
		Error:          s.ErrorMessage,
		BookReady:      s.BookReady,
		FilePath:       s.FilePath,
		OutputFormat:   s.OutputFormat,
		Timestamp:      s.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// Emit is satisfied by anything that can forward a serialized state
// event to an external UI (a websocket hub, an SSE broadcaster, ...).
type Emit func(payload []byte)

// NetworkObserver adapts an Emit function into an Observer. Each
// notification marshals the state to the event schema and hands
// off to emit; emit is expected to be non-blocking (a rewrite that
// hands off to its own dispatcher, as the design calls for).
func NetworkObserver(emit Emit) Observer {
	return func(s State) {
		payload, err := json.Marshal(toEvent(s))
		if err != nil {
			return
		}
		emit(payload)
	}
}

// LoggerObserver adapts a structured logger into an Observer.
func LoggerObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "genstate")

	return func(s State) {
		attrs := []any{
			"status", s.Status.String(),
			"progress", s.Progress,
			"chapter", s.CurrentChapter,
			"of", s.ChapterCount,
		}
		if s.Status == Error {
			logger.Error("generation state transition", append(attrs, "error", s.ErrorMessage)...)
			return
		}
		logger.Info("generation state transition", attrs...)
	}
}
