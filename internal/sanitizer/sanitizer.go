// Package sanitizer implements a character-level state machine that
// splits a live LLM token stream into answer and reasoning (thought)
// channels, tolerating <think>...</think> tags that straddle chunk
// boundaries.
package sanitizer

import "strings"

// State is one of the four states in the sanitizer's FSM.
type State int

const (
	Normal State = iota
	PossibleThinkStart
	InThink
	PossibleThinkEnd
)

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// OnDelta is called with a contiguous run of unambiguously classified
// text on one channel.
type OnDelta func(delta string)

// Sanitizer strips disallowed markup from streamed text incrementally.
// It is not safe for concurrent
// use: a single goroutine owns the pipeline thread that feeds it.
type Sanitizer struct {
	state   State
	pending []byte

	OnAnswer  OnDelta
	OnThought OnDelta
}

// New creates a Sanitizer in its initial NORMAL state.
func New() *Sanitizer {
	return &Sanitizer{state: Normal}
}

// State reports the sanitizer's current FSM state.
func (s *Sanitizer) State() State {
	return s.state
}

// Feed consumes a chunk of arbitrary size and classifies every byte in
// it, emitting contiguous runs on the answer/thought channels as soon
// as they are unambiguous. Feed never raises on content.
func (s *Sanitizer) Feed(chunk string) {
	var answer, thought strings.Builder

	emitAnswer := func(b byte) { answer.WriteByte(b) }
	emitThought := func(b byte) { thought.WriteByte(b) }

	for i := 0; i < len(chunk); i++ {
		s.step(chunk[i], emitAnswer, emitThought)
	}

	if answer.Len() > 0 && s.OnAnswer != nil {
		s.OnAnswer(answer.String())
	}
	if thought.Len() > 0 && s.OnThought != nil {
		s.OnThought(thought.String())
	}
}

func (s *Sanitizer) step(c byte, emitAnswer, emitThought func(byte)) {
	switch s.state {
	case Normal:
		if c == '<' {
			s.pending = []byte{c}
			s.state = PossibleThinkStart
			return
		}
		emitAnswer(c)

	case PossibleThinkStart:
		cand := append(s.pending, c)
		switch {
		case string(cand) == thinkOpen:
			s.pending = nil
			s.state = InThink
		case isPrefixOf(cand, thinkOpen):
			s.pending = cand
		default:
			for _, b := range s.pending {
				emitAnswer(b)
			}
			s.pending = nil
			s.state = Normal
			s.step(c, emitAnswer, emitThought)
		}

	case InThink:
		if c == '<' {
			s.pending = []byte{c}
			s.state = PossibleThinkEnd
			return
		}
		emitThought(c)

	case PossibleThinkEnd:
		cand := append(s.pending, c)
		switch {
		case string(cand) == thinkClose:
			s.pending = nil
			s.state = Normal
		case isPrefixOf(cand, thinkClose):
			s.pending = cand
		default:
			for _, b := range s.pending {
				emitThought(b)
			}
			s.pending = nil
			s.state = InThink
			s.step(c, emitAnswer, emitThought)
		}
	}
}

// Flush reclassifies any still-buffered, ambiguous prefix according to
// the state it was buffered in: a prefix buffered while looking for
// <think> becomes answer text, a prefix buffered while looking for
// </think> becomes thought text. Flush is safe to call at any point,
// including as the last call before discarding the sanitizer.
func (s *Sanitizer) Flush() {
	if len(s.pending) == 0 {
		return
	}
	switch s.state {
	case PossibleThinkStart:
		delta := string(s.pending)
		s.pending = nil
		s.state = Normal
		if s.OnAnswer != nil {
			s.OnAnswer(delta)
		}
	case PossibleThinkEnd:
		delta := string(s.pending)
		s.pending = nil
		s.state = InThink
		if s.OnThought != nil {
			s.OnThought(delta)
		}
	}
}

func isPrefixOf(candidate []byte, full string) bool {
	if len(candidate) > len(full) {
		return false
	}
	return full[:len(candidate)] == string(candidate)
}
