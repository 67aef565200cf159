package storage

import (
	"context"
	"encoding/json"
	"fmt"
)

// BookRecord is the full persisted shape of one completed generation
// run: everything a later reader needs to reconstruct the book without
// re-running the pipeline.
type BookRecord struct {
	RunID   string              `json:"run_id"`
	Title   string              `json:"title"`
	Subject string              `json:"subject"`
	Genre   string              `json:"genre"`
	Book    map[string][]string `json:"book"`
}

// SaveBook marshals record as indented JSON and writes it through s at
// path.
func SaveBook(ctx context.Context, s Storage, path string, record BookRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling book: %w", err)
	}
	return s.Save(ctx, path, data)
}

// LoadBook reads and unmarshals a book previously written by SaveBook.
func LoadBook(ctx context.Context, s Storage, path string) (BookRecord, error) {
	data, err := s.Load(ctx, path)
	if err != nil {
		return BookRecord{}, fmt.Errorf("loading book: %w", err)
	}
	var record BookRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return BookRecord{}, fmt.Errorf("unmarshaling book: %w", err)
	}
	return record, nil
}
