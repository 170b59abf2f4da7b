package aistream

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRunCompletes(t *testing.T) {
	s := NewStream()
	var updates []Update
	res := s.Run(context.Background(), iotest.OneByteReader(strings.NewReader(geminiStream)), func(u Update) {
		updates = append(updates, u)
	})

	require.NoError(t, res.Err)
	assert.Equal(t, StateCompleted, res.State)
	assert.Equal(t, wantText, res.Text)
	assert.Equal(t, StateCompleted, s.State())
	require.Len(t, updates, 3)
	assert.Equal(t, "Bonjour", updates[0].Delta)
	assert.Equal(t, wantText, updates[2].Text)
}

func TestRunAbortKeepsPartialText(t *testing.T) {
	pr, pw := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_, _ = pw.Write([]byte(`{"text": "partial"}`))
	}()

	s := NewStream()
	res := s.Run(ctx, pr, func(u Update) {
		cancel()
	})

	assert.Equal(t, StateAborted, res.State)
	assert.Equal(t, "partial", res.Text)
	assert.NoError(t, res.Err)
	assert.True(t, res.State.Terminal())
}

func TestRunAbortBeforeFirstChunk(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	res := NewStream().Run(ctx, strings.NewReader(geminiStream), func(Update) { called = true })
	assert.Equal(t, StateAborted, res.State)
	assert.Empty(t, res.Text)
	assert.False(t, called)
}

func TestRunReaderError(t *testing.T) {
	boom := errors.New("connection reset")
	r := io.MultiReader(strings.NewReader(`{"text": "a"}`), iotest.ErrReader(boom))

	res := NewStream().Run(context.Background(), r, nil)
	assert.Equal(t, StateErrored, res.State)
	assert.Equal(t, "a", res.Text)
	assert.ErrorIs(t, res.Err, boom)
}

func TestRunTwice(t *testing.T) {
	s := NewStream()
	first := s.Run(context.Background(), strings.NewReader(`{"text": "x"}`), nil)
	require.Equal(t, StateCompleted, first.State)

	second := s.Run(context.Background(), strings.NewReader(`{"text": "y"}`), nil)
	assert.ErrorIs(t, second.Err, ErrNotIdle)
	assert.Equal(t, "x", s.Text())
	assert.Equal(t, StateCompleted, second.State)
}

func TestConsume(t *testing.T) {
	deltas := make(chan Delta, 4)
	deltas <- Delta{Text: "Hel"}
	deltas <- Delta{Text: ""}
	deltas <- Delta{Text: "lo"}
	close(deltas)

	var got []string
	res := NewStream().Consume(context.Background(), deltas, func(u Update) {
		got = append(got, u.Text)
	})
	assert.Equal(t, StateCompleted, res.State)
	assert.Equal(t, []string{"Hel", "Hello"}, got)
}

func TestConsumeCancelledError(t *testing.T) {
	deltas := make(chan Delta, 2)
	deltas <- Delta{Text: "a"}
	deltas <- Delta{Err: context.Canceled}
	close(deltas)

	res := NewStream().Consume(context.Background(), deltas, nil)
	assert.Equal(t, StateAborted, res.State)
	assert.NoError(t, res.Err)
	assert.Equal(t, "a", res.Text)
}

func TestFail(t *testing.T) {
	s := NewStream()
	res := s.Fail(errors.New("status 503"))
	assert.Equal(t, StateErrored, res.State)
	assert.EqualError(t, res.Err, "aistream: status 503")

	// terminal states are final
	res = s.Fail(errors.New("again"))
	assert.EqualError(t, res.Err, "aistream: status 503")
}
