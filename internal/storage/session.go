package storage

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// SessionNamingStrategy defines how to name session output directories
type SessionNamingStrategy int

const (
	// SessionUUID uses the full UUID (default)
	SessionUUID SessionNamingStrategy = iota
	// SessionTimestamp uses timestamp + short ID
	SessionTimestamp
	// SessionDescriptive uses timestamp + sanitized title + short ID
	SessionDescriptive
)

// CreateSessionPath builds the session directory a finished book's
// book.json and metadata.md are written under, named according to
// strategy. title is the book's generated title (pipeline.Pipeline.save
// passes the title planning.GenerateTitle produced, not the subject the
// request was seeded with), so SessionDescriptive sessions read as the
// book they hold rather than the prompt that requested it.
func CreateSessionPath(baseDir, sessionID, title string, strategy SessionNamingStrategy) string {
	switch strategy {
	case SessionTimestamp:
		// Format: 2025-07-16_1530_82f06b15
		timestamp := time.Now().Format("2006-01-02_1504")
		shortID := sessionID[:8]
		return filepath.Join(baseDir, "sessions", fmt.Sprintf("%s_%s", timestamp, shortID))

	case SessionDescriptive:
		// Format: 2025-07-16_1530_the-quiet-harbor_82f06b15
		timestamp := time.Now().Format("2006-01-02_1504")
		shortID := sessionID[:8]

		sanitized := sanitizeForFilename(title, 30)

		return filepath.Join(baseDir, "sessions", fmt.Sprintf("%s_%s_%s", timestamp, sanitized, shortID))

	default:
		// Default: use full session UUID
		return filepath.Join(baseDir, "sessions", sessionID)
	}
}

// sanitizeForFilename converts a string to a safe filename component
func sanitizeForFilename(s string, maxLen int) string {
	// Convert to lowercase and replace spaces with hyphens
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "-")
	
	// Remove or replace problematic characters
	replacements := map[string]string{
		"/":  "-",
		"\\": "-",
		":":  "-",
		"*":  "",
		"?":  "",
		"\"": "",
		"<":  "",
		">":  "",
		"|":  "",
		".":  "-",
		",":  "",
		"'":  "",
		"!":  "",
		"@":  "",
		"#":  "",
		"$":  "",
		"%":  "",
		"^":  "",
		"&":  "",
		"(":  "",
		")":  "",
		"[":  "",
		"]":  "",
		"{":  "",
		"}":  "",
		";":  "",
		"=":  "",
		"+":  "",
	}
	
	for old, new := range replacements {
		s = strings.ReplaceAll(s, old, new)
	}
	
	// Remove multiple consecutive hyphens
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	
	// Trim hyphens from start and end
	s = strings.Trim(s, "-")
	
	// Truncate to max length
	if len(s) > maxLen {
		s = s[:maxLen]
		// Ensure we don't end with a hyphen after truncation
		s = strings.TrimRight(s, "-")
	}
	
	// If empty after sanitization, use a default
	if s == "" {
		s = "output"
	}
	
	return s
}

// SessionInfo is the book-generation detail CreateSessionMetadata
// records alongside a session's book.json — the fields a reader
// browsing sessions/ wants without opening the book itself.
type SessionInfo struct {
	Title        string
	Subject      string
	Genre        string
	Provider     string
	ChapterCount int
}

// CreateSessionMetadata creates the metadata.md sidecar for a session,
// the summary pipeline.Pipeline.save writes next to book.json.
func CreateSessionMetadata(outputDir, sessionID string, info SessionInfo) []byte {
	genre := info.Genre
	if genre == "" {
		genre = "unspecified"
	}

	metadata := fmt.Sprintf(`# Session Metadata

**Session ID**: %s
**Date**: %s
**Title**: %s
**Genre**: %s
**Chapters**: %d
**Provider**: %s
**Subject**: %s

## Output Files

This directory contains book.json (the generated book) and this
metadata file, from one book generation session.
`, sessionID, time.Now().Format("2006-01-02 15:04:05"), info.Title, genre, info.ChapterCount, info.Provider, info.Subject)

	return []byte(metadata)
}