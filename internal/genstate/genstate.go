// Package genstate tracks the generation pipeline's workflow status as
// an immutable value, replacing it atomically under a mutex and
// fanning every transition out to registered observers outside the
// lock.
package genstate

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is one of the 13 legal workflow states.
type Status int

const (
	Idle Status = iota
	Starting
	ConfiguringModel
	GeneratingStructure
	StructureComplete
	GeneratingIdeas
	IdeasComplete
	WritingBook
	ChapterComplete
	WritingComplete
	SavingDocument
	Complete
	Error
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Starting:
		return "STARTING"
	case ConfiguringModel:
		return "CONFIGURING_MODEL"
	case GeneratingStructure:
		return "GENERATING_STRUCTURE"
	case StructureComplete:
		return "STRUCTURE_COMPLETE"
	case GeneratingIdeas:
		return "GENERATING_IDEAS"
	case IdeasComplete:
		return "IDEAS_COMPLETE"
	case WritingBook:
		return "WRITING_BOOK"
	case ChapterComplete:
		return "CHAPTER_COMPLETE"
	case WritingComplete:
		return "WRITING_COMPLETE"
	case SavingDocument:
		return "SAVING_DOCUMENT"
	case Complete:
		return "COMPLETE"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// legalTransitions is the declared DAG: ERROR is reachable from every
// non-terminal state (added below, not listed per-row) and COMPLETE is
// reachable only from SAVING_DOCUMENT. CHAPTER_COMPLETE re-enters
// WRITING_BOOK for the next chapter.
var legalTransitions = map[Status][]Status{
	Idle:                 {Starting},
	Starting:             {ConfiguringModel},
	ConfiguringModel:     {GeneratingStructure},
	GeneratingStructure:  {StructureComplete},
	StructureComplete:    {GeneratingIdeas},
	GeneratingIdeas:      {IdeasComplete},
	IdeasComplete:        {WritingBook},
	WritingBook:          {ChapterComplete, WritingComplete},
	ChapterComplete:      {WritingBook},
	WritingComplete:      {SavingDocument},
	SavingDocument:       {Complete},
	Complete:             {},
	Error:                {},
}

func init() {
	for s := range legalTransitions {
		if s == Complete || s == Error {
			continue
		}
		legalTransitions[s] = append(legalTransitions[s], Error)
	}
}

// IllegalTransitionError is returned when update requests a status not
// reachable from the current one.
type IllegalTransitionError struct {
	From, To Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition from %s to %s", e.From, e.To)
}

// State is an immutable snapshot of the generation workflow. Every
// mutation produces a new value; nothing in this package mutates a
// State in place.
type State struct {
	RunID          string
	Status         Status
	Title          string
	CurrentStep    string
	Progress       int
	ChapterCount   int
	CurrentChapter int
	ErrorMessage   string
	BookReady      bool
	FilePath       string
	OutputFormat   string
	Timestamp      time.Time
}

// Fields names the subset of State a caller wants update to change;
// zero-value fields are left untouched except Status, which is
// required.
type Fields struct {
	Status         Status
	Title          *string
	CurrentStep    *string
	Progress       *int
	ChapterCount   *int
	CurrentChapter *int
	ErrorMessage   *string
	BookReady      *bool
	FilePath       *string
	OutputFormat   *string
}

// Observer is notified after every successful transition, outside the
// manager's mutex.
type Observer func(State)

// Manager is the sole mutator of the held State. Reads and writes are
// safe for concurrent use from any number of goroutines; a request/UI
// goroutine may call Current at any time.
type Manager struct {
	mu        sync.Mutex
	current   State
	observers []Observer
}

// NewManager starts in IDLE with a freshly minted run identifier,
// assigned once per run.
func NewManager(now time.Time) *Manager {
	return &Manager{current: State{RunID: uuid.New().String(), Status: Idle, Timestamp: now}}
}

// Current returns the held state. Safe to call from any goroutine.
func (m *Manager) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Subscribe registers an observer; it will be called for every
// transition from this point on, in the order transitions occur.
func (m *Manager) Subscribe(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, o)
}

// Update validates that fields.Status is legal from the current
// status, atomically swaps the held state, and notifies observers
// outside the mutex, in subscription order. On an illegal transition
// the held state is unchanged and no observer is notified.
func (m *Manager) Update(fields Fields, now time.Time) (State, error) {
	m.mu.Lock()

	from := m.current.Status
	if !isLegal(from, fields.Status) {
		m.mu.Unlock()
		return State{}, &IllegalTransitionError{From: from, To: fields.Status}
	}

	next := apply(m.current, fields, now)
	m.current = next
	observers := append([]Observer(nil), m.observers...)
	m.mu.Unlock()

	for _, o := range observers {
		o(next)
	}
	return next, nil
}

// Fail is a convenience over Update that transitions to ERROR with the
// given message. ERROR is reachable from any non-terminal state, so
// this never itself returns an IllegalTransitionError unless the
// manager is already terminal (COMPLETE or ERROR).
func (m *Manager) Fail(message string, now time.Time) (State, error) {
	return m.Update(Fields{Status: Error, ErrorMessage: &message}, now)
}

// isLegal treats a status equal to the current one as always legal: a
// field-only update (progress percentage, current chapter) that does
// not actually change the workflow stage is not a "transition" in the
// sense the DAG restricts.
func isLegal(from, to Status) bool {
	if from == to {
		return true
	}
	for _, candidate := range legalTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

func apply(base State, fields Fields, now time.Time) State {
	next := base
	next.Status = fields.Status
	next.Timestamp = now

	if fields.Title != nil {
		next.Title = *fields.Title
	}
	if fields.CurrentStep != nil {
		next.CurrentStep = *fields.CurrentStep
	}
	if fields.Progress != nil {
		next.Progress = *fields.Progress
	}
	if fields.ChapterCount != nil {
		next.ChapterCount = *fields.ChapterCount
	}
	if fields.CurrentChapter != nil {
		next.CurrentChapter = *fields.CurrentChapter
	}
	if fields.ErrorMessage != nil {
		next.ErrorMessage = *fields.ErrorMessage
	}
	if fields.BookReady != nil {
		next.BookReady = *fields.BookReady
	}
	if fields.FilePath != nil {
		next.FilePath = *fields.FilePath
	}
	if fields.OutputFormat != nil {
		next.OutputFormat = *fields.OutputFormat
	}
	return next
}
