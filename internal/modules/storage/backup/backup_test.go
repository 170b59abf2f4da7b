package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/wiki/internal/models"
	"github.com/mx-space/wiki/internal/modules/content/navigation"
	"github.com/mx-space/wiki/internal/modules/gateway/notify"
	"github.com/mx-space/wiki/internal/modules/reader"
	"github.com/mx-space/wiki/internal/pkg/redis"
	"github.com/mx-space/wiki/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 9, 22, 15, 0, 0, time.UTC)

var ctx = context.Background()

func newService(t *testing.T) (*Service, *notify.Recorder) {
	t.Helper()
	svc, rec, _ := newServiceWithReader(t)
	return svc, rec
}

func newServiceWithReader(t *testing.T) (*Service, *notify.Recorder, *reader.Service) {
	t.Helper()
	rec := &notify.Recorder{}
	kv := redis.NewMemory()
	history := reader.NewService(kv, 10, time.Hour, nil)
	svc := NewService(testutil.DB(t), kv, history, rec, nil)
	svc.now = func() time.Time { return fixedNow }
	return svc, rec, history
}

func TestExport(t *testing.T) {
	svc, _ := newService(t)
	testutil.Post(t, svc.db, models.PostModel{Title: "Alpha", Slug: "alpha", Folder: "Dev", Tags: models.StringArray{"go"}, IsPublic: true})
	testutil.Post(t, svc.db, models.PostModel{Title: "Secret", Slug: "secret"})

	var buf bytes.Buffer
	doc, err := svc.WriteExport(&buf)
	require.NoError(t, err)
	assert.Equal(t, "1.0", doc.Version)
	assert.Len(t, doc.Posts, 2)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "1.0", decoded["version"])
	assert.Equal(t, "2024-03-09T22:15:00Z", decoded["date"])
	assert.Len(t, decoded["posts"], 2)

	st, err := svc.Stats()
	require.NoError(t, err)
	assert.EqualValues(t, 2, st.Posts)
	assert.Equal(t, buf.Len(), st.Bytes)

	assert.Equal(t, "wiki-os-backup-2024-03-09.json", FileName(fixedNow))
}

func TestImportUpsertsOnSlug(t *testing.T) {
	svc, rec := newService(t)
	old := testutil.Post(t, svc.db, models.PostModel{Title: "Old", Slug: "alpha", Content: "v1", IsPublic: true})

	doc := `{"version":"1.0","posts":[
		{"id":"ignored","title":"Alpha","slug":"alpha","content":"v2","tags":["go"," go "],"is_public":false,"views":7},
		{"id":"0b0e3f5e-2f4c-4a55-9a63-8a7f6f7c2b10","title":"Nouveau Billet","folder":"/Dev//Go/","content":"x"},
		{"title":"   ","slug":""}
	]}`
	n, err := svc.Import(ctx, strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{notify.EventPostUpdate}, rec.Names())

	var alpha models.PostModel
	require.NoError(t, svc.db.First(&alpha, "slug = ?", "alpha").Error)
	assert.Equal(t, old.ID, alpha.ID)
	assert.Equal(t, "Alpha", alpha.Title)
	assert.Equal(t, "v2", alpha.Content)
	assert.Equal(t, models.StringArray{"go"}, alpha.Tags)
	assert.False(t, alpha.IsPublic)
	assert.Equal(t, 7, alpha.Views)
	assert.True(t, alpha.UpdatedAt.Equal(fixedNow))

	var fresh models.PostModel
	require.NoError(t, svc.db.First(&fresh, "slug = ?", "nouveau-billet").Error)
	assert.Equal(t, "0b0e3f5e-2f4c-4a55-9a63-8a7f6f7c2b10", fresh.ID)
	assert.Equal(t, "Dev/Go", fresh.Folder)
	assert.True(t, fresh.IsPublic)
}

func TestImportRejectsBadDocuments(t *testing.T) {
	svc, _ := newService(t)
	for _, in := range []string{`not json`, `{}`, `{"posts":{}}`, `{"posts":"x"}`, `{"posts":null}`} {
		_, err := svc.Import(ctx, strings.NewReader(in))
		assert.ErrorIs(t, err, ErrInvalidFormat, in)
	}

	n, err := svc.Import(ctx, strings.NewReader(`{"posts":[]}`))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReset(t *testing.T) {
	svc, rec := newService(t)
	p := testutil.Post(t, svc.db, models.PostModel{Title: "A", Slug: "a"})
	testutil.Post(t, svc.db, models.PostModel{Title: "B", Slug: "b"})
	bob := testutil.Profile(t, svc.db, "bob", models.RoleUser)
	require.NoError(t, svc.db.Create(&models.CommentModel{PostID: p.ID, UserID: bob.ID, Content: "hi"}).Error)

	n, err := svc.Reset(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Equal(t, []string{notify.EventPostDelete}, rec.Names())

	var left int64
	require.NoError(t, svc.db.Model(&models.CommentModel{}).Count(&left).Error)
	assert.Zero(t, left)

	n, err = svc.Reset(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestResetClearsHistoriesAndTrending(t *testing.T) {
	svc, _, history := newServiceWithReader(t)
	p := testutil.Post(t, svc.db, models.PostModel{Title: "Docker", Slug: "docker", IsPublic: true})
	require.NoError(t, history.Push(ctx, "u1", reader.Entry{ID: p.ID, Title: p.Title, Slug: p.Slug}))
	require.NoError(t, history.Push(ctx, "u2", reader.Entry{ID: p.ID, Title: p.Title, Slug: p.Slug}))

	nav := navigation.NewService(svc.db, svc.kv, history, navigation.Options{}, nil)
	trending, err := nav.Trending(ctx)
	require.NoError(t, err)
	require.Len(t, trending, 1)

	_, err = svc.Reset(ctx)
	require.NoError(t, err)

	assert.Empty(t, history.History(ctx, "u1"))
	assert.Empty(t, history.History(ctx, "u2"))
	trending, err = nav.Trending(ctx)
	require.NoError(t, err)
	assert.Empty(t, trending)
}

func TestImportRefreshesTrending(t *testing.T) {
	svc, _ := newService(t)
	testutil.Post(t, svc.db, models.PostModel{Title: "Docker", Slug: "docker", IsPublic: true})
	nav := navigation.NewService(svc.db, svc.kv, nil, navigation.Options{}, nil)
	_, err := nav.Trending(ctx)
	require.NoError(t, err)

	_, err = svc.Import(ctx, strings.NewReader(`{"posts":[{"title":"Docker","slug":"docker","is_public":false}]}`))
	require.NoError(t, err)

	trending, err := nav.Trending(ctx)
	require.NoError(t, err)
	assert.Empty(t, trending)
}

func TestHandler(t *testing.T) {
	svc, _ := newService(t)
	admin := testutil.Profile(t, svc.db, "admin", models.RoleAdmin)
	bob := testutil.Profile(t, svc.db, "bob", models.RoleUser)
	testutil.Post(t, svc.db, models.PostModel{Title: "A", Slug: "a", IsPublic: true})

	asAdmin := gin.New()
	NewHandler(svc).RegisterRoutes(asAdmin.Group(""), testutil.As(admin))
	asBob := gin.New()
	NewHandler(svc).RegisterRoutes(asBob.Group(""), testutil.As(bob))

	assert.Equal(t, http.StatusForbidden, testutil.Do(asBob, http.MethodGet, "/backup/export", nil).Code)

	w := testutil.Do(asAdmin, http.MethodGet, "/backup/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="wiki-os-backup-2024-03-09.json"`, w.Header().Get("Content-Disposition"))
	exported := w.Body.Bytes()

	req := httptest.NewRequest(http.MethodPost, "/backup/import", strings.NewReader(`{"posts":1}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	asAdmin.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Format de fichier invalide")

	w = testutil.Upload(asAdmin, "/backup/import", "wiki.json", exported)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res struct {
		Imported int    `json:"imported"`
		Message  string `json:"message"`
	}
	testutil.Decode(t, w, &res)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, "1 articles restaurés/mis à jour !", res.Message)

	var del map[string]int64
	testutil.Decode(t, testutil.Do(asAdmin, http.MethodDelete, "/backup/posts", nil), &del)
	assert.EqualValues(t, 1, del["deleted"])
}
