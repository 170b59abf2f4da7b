package aistream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// FallbackMessage is appended to a conversation when the upstream call
// fails for any reason other than cancellation.
const FallbackMessage = "⚠️ Erreur IA. Réessayez."

const readBufferSize = 4096

// State is the lifecycle of a single stream.
type State string

const (
	StateIdle      State = "idle"
	StateStreaming State = "streaming"
	StateCompleted State = "completed"
	StateAborted   State = "aborted"
	StateErrored   State = "errored"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateAborted || s == StateErrored
}

// ErrNotIdle is returned when a Stream is started twice.
var ErrNotIdle = errors.New("aistream: stream already started")

// Update is delivered once per chunk that produced new text.
type Update struct {
	Delta string `json:"delta"`
	Text  string `json:"text"`
}

// Delta is one text fragment from a source that already yields decoded
// text, or the error that ended it.
type Delta struct {
	Text string
	Err  error
}

// Result summarizes a finished stream.
type Result struct {
	State State
	Text  string
	Err   error
}

// Stream accumulates the answer of one request. It moves
// idle -> streaming -> completed|aborted|errored exactly once and is never
// resumed; a new request needs a new Stream.
type Stream struct {
	mu    sync.Mutex
	state State
	text  strings.Builder
	err   error
}

// NewStream returns an idle stream.
func NewStream() *Stream {
	return &Stream{state: StateIdle}
}

// State returns the current state.
func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Text returns the text accumulated so far.
func (s *Stream) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text.String()
}

// Run reads a raw JSON stream from r and parses it with a Parser. When ctx
// is cancelled Run returns at once with StateAborted; r is closed if it
// implements io.Closer so the pending read unblocks.
func (s *Stream) Run(ctx context.Context, r io.Reader, onUpdate func(Update)) Result {
	deltas := make(chan Delta)
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		defer close(deltas)
		var p Parser
		buf := make([]byte, readBufferSize)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				if frags := p.Feed(buf[:n]); len(frags) > 0 {
					select {
					case deltas <- Delta{Text: strings.Join(frags, "")}:
					case <-stop:
						return
					}
				}
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				select {
				case deltas <- Delta{Err: err}:
				case <-stop:
				}
				return
			}
		}
	}()

	res := s.Consume(ctx, deltas, onUpdate)
	if res.State == StateAborted {
		if c, ok := r.(io.Closer); ok {
			_ = c.Close()
		}
	}
	return res
}

// Consume drains already-decoded fragments until the channel closes, an
// error arrives or ctx is cancelled.
func (s *Stream) Consume(ctx context.Context, deltas <-chan Delta, onUpdate func(Update)) Result {
	if err := s.begin(); err != nil {
		return Result{State: s.State(), Text: s.Text(), Err: err}
	}
	for {
		if ctx.Err() != nil {
			return s.finish(StateAborted, nil)
		}
		select {
		case <-ctx.Done():
			return s.finish(StateAborted, nil)
		case d, ok := <-deltas:
			if !ok {
				return s.finish(StateCompleted, nil)
			}
			if d.Err != nil {
				if ctx.Err() != nil || errors.Is(d.Err, context.Canceled) {
					return s.finish(StateAborted, nil)
				}
				return s.finish(StateErrored, d.Err)
			}
			if d.Text == "" {
				continue
			}
			up := s.append(d.Text)
			if onUpdate != nil && ctx.Err() == nil {
				onUpdate(up)
			}
		}
	}
}

// Fail moves an idle or streaming stream to StateErrored. It is used when
// the upstream request fails before any body is available.
func (s *Stream) Fail(err error) Result {
	s.mu.Lock()
	if s.state == StateIdle {
		s.state = StateStreaming
	}
	s.mu.Unlock()
	return s.finish(StateErrored, err)
}

func (s *Stream) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return ErrNotIdle
	}
	s.state = StateStreaming
	return nil
}

func (s *Stream) append(delta string) Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text.WriteString(delta)
	return Update{Delta: delta, Text: s.text.String()}
}

func (s *Stream) finish(state State, err error) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateStreaming {
		s.state = state
		if err != nil {
			s.err = fmt.Errorf("aistream: %w", err)
		}
	}
	return Result{State: s.state, Text: s.text.String(), Err: s.err}
}
