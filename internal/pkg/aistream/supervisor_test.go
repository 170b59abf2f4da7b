package aistream

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSupervisorSupersedes(t *testing.T) {
	sup := NewSupervisor()
	first := sup.Begin(context.Background(), "post-1")
	second := sup.Begin(context.Background(), "post-1")

	assert.Error(t, first.Context().Err())
	assert.NoError(t, second.Context().Err())
	assert.False(t, first.Current())
	assert.True(t, second.Current())
	assert.Greater(t, second.Gen, first.Gen)
	assert.Equal(t, 1, sup.Active())

	var seen []string
	record := func(u Update) { seen = append(seen, u.Delta) }
	first.Guard(record)(Update{Delta: "stale"})
	second.Guard(record)(Update{Delta: "fresh"})
	assert.Equal(t, []string{"fresh"}, seen)

	first.Done()
	assert.True(t, second.Current())
	second.Done()
	assert.Equal(t, 0, sup.Active())
}

func TestSupervisorAbort(t *testing.T) {
	sup := NewSupervisor()
	tk := sup.Begin(context.Background(), "k")
	other := sup.Begin(context.Background(), "other")

	assert.True(t, sup.Abort("k"))
	assert.False(t, sup.Abort("k"))
	assert.Error(t, tk.Context().Err())
	assert.NoError(t, other.Context().Err())

	called := false
	tk.Guard(func(Update) { called = true })(Update{})
	assert.False(t, called)
	other.Done()
}

func TestSupervisorParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	sup := NewSupervisor()
	tk := sup.Begin(parent, "k")
	cancel()
	assert.Error(t, tk.Context().Err())
	tk.Done()
	assert.Equal(t, 0, sup.Active())
}
