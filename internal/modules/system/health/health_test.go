package health

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/wiki/internal/models"
	"github.com/mx-space/wiki/internal/pkg/cron"
	"github.com/mx-space/wiki/internal/pkg/nativelog"
	"github.com/mx-space/wiki/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestStatus(t *testing.T) {
	db := testutil.DB(t)
	for _, tc := range []struct {
		name  string
		cache Pinger
		want  string
	}{
		{"memory", nil, "memory"},
		{"up", pinger{}, "ok"},
		{"down", pinger{err: errors.New("refused")}, "down"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			NewHandler(db, tc.cache, cron.New(nil), t.TempDir()).RegisterRoutes(r.Group(""), testutil.As(nil))
			var body map[string]interface{}
			w := testutil.Do(r, http.MethodGet, "/health", nil)
			require.Equal(t, http.StatusOK, w.Code)
			testutil.Decode(t, w, &body)
			assert.Equal(t, "ok", body["status"])
			assert.Equal(t, tc.want, body["cache"])
		})
	}
}

func TestCronAndLogs(t *testing.T) {
	db := testutil.DB(t)
	admin := testutil.Profile(t, db, "admin", models.RoleAdmin)
	bob := testutil.Profile(t, db, "bob", models.RoleUser)

	ran := false
	sched := cron.New(nil)
	sched.Register(cron.Job{Name: "purge_sessions", Interval: time.Hour, Fn: func(context.Context) error {
		ran = true
		return nil
	}})

	dir := t.TempDir()
	today := nativelog.DailyFilename(time.Now())
	require.NoError(t, os.WriteFile(filepath.Join(dir, today), []byte("hello\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	asBob := gin.New()
	NewHandler(db, nil, sched, dir).RegisterRoutes(asBob.Group(""), testutil.As(bob))
	assert.Equal(t, http.StatusForbidden, testutil.Do(asBob, http.MethodGet, "/health/cron", nil).Code)

	r := gin.New()
	NewHandler(db, nil, sched, dir).RegisterRoutes(r.Group(""), testutil.As(admin))

	assert.Equal(t, http.StatusOK, testutil.Do(r, http.MethodPost, "/health/cron/run/purge_sessions", nil).Code)
	assert.True(t, ran)
	assert.Equal(t, http.StatusNotFound, testutil.Do(r, http.MethodPost, "/health/cron/run/nope", nil).Code)

	var jobs struct {
		Data []cron.ListItem `json:"data"`
	}
	testutil.Decode(t, testutil.Do(r, http.MethodGet, "/health/cron", nil), &jobs)
	require.Len(t, jobs.Data, 1)
	assert.Equal(t, cron.StatusFulfill, jobs.Data[0].Status)

	var logs struct {
		Data []logItem `json:"data"`
	}
	testutil.Decode(t, testutil.Do(r, http.MethodGet, "/health/logs", nil), &logs)
	require.Len(t, logs.Data, 1)
	assert.True(t, logs.Data[0].Today)
	assert.Equal(t, "6 B", logs.Data[0].Size)

	w := testutil.Do(r, http.MethodGet, "/health/logs/"+today, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello\n", w.Body.String())
	assert.Equal(t, http.StatusUnprocessableEntity, testutil.Do(r, http.MethodGet, "/health/logs/notes.txt", nil).Code)
}

func TestFormatByteSize(t *testing.T) {
	assert.Equal(t, "512 B", formatByteSize(512))
	assert.Equal(t, "1.50 KB", formatByteSize(1536))
	assert.Equal(t, "2.00 MB", formatByteSize(2<<20))
}
