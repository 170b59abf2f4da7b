package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	appcfg "github.com/mx-space/wiki/internal/config"
	"github.com/mx-space/wiki/internal/models"
	"github.com/mx-space/wiki/internal/modules/content/post"
	"github.com/mx-space/wiki/internal/modules/gateway/notify"
	"github.com/mx-space/wiki/internal/pkg/aistream"
	"github.com/mx-space/wiki/internal/pkg/metrics"
	"github.com/mx-space/wiki/internal/pkg/redis"
	"github.com/mx-space/wiki/internal/testutil"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeProvider replays canned deltas. With hold set, Stream signals
// started once the first delta is delivered (or at once when there are
// none) and then waits for its context instead of completing.
type fakeProvider struct {
	mu        sync.Mutex
	deltas    []string
	err       error
	hold      bool
	started   chan struct{}
	systems   []string
	histories [][]Turn
	generate  func(prompt string) (string, error)
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Generate(_ context.Context, _, prompt string) (string, error) {
	return f.generate(prompt)
}

func (f *fakeProvider) Stream(ctx context.Context, system string, history []Turn, onUpdate func(aistream.Update)) aistream.Result {
	f.mu.Lock()
	f.systems = append(f.systems, system)
	f.histories = append(f.histories, history)
	f.mu.Unlock()

	ch := make(chan aistream.Delta, len(f.deltas)+1)
	for _, d := range f.deltas {
		ch <- aistream.Delta{Text: d}
	}
	if f.err != nil {
		ch <- aistream.Delta{Err: f.err}
	}
	if !f.hold {
		close(ch)
		return aistream.NewStream().Consume(ctx, ch, onUpdate)
	}
	if len(f.deltas) == 0 {
		f.started <- struct{}{}
		return aistream.NewStream().Consume(ctx, ch, onUpdate)
	}
	var once sync.Once
	return aistream.NewStream().Consume(ctx, ch, func(u aistream.Update) {
		onUpdate(u)
		once.Do(func() { f.started <- struct{}{} })
	})
}

func newFixture(t *testing.T, fp Provider, opts Options) (*Service, *gorm.DB, *metrics.Metrics) {
	t.Helper()
	db := testutil.DB(t)
	posts := post.NewService(db, redis.NewMemory(), &notify.Recorder{}, nil, nil)
	m := metrics.New()
	return NewService(db, fp, posts, m, opts, nil), db, m
}

func TestChatStreamsAndFramesArticle(t *testing.T) {
	fp := &fakeProvider{deltas: []string{"Bon", "jour"}}
	svc, db, m := newFixture(t, fp, Options{})
	testutil.Post(t, db, models.PostModel{Title: "Docker", Slug: "docker", Content: "Les conteneurs", IsPublic: true})

	var texts []string
	res, err := svc.Chat(context.Background(), "u1", "docker", false,
		[]Turn{{Role: RoleUser, Text: "avant"}, {Role: RoleModel, Text: "réponse"}, {Role: RoleUser, Text: " "}},
		"Qu'est-ce ?", func(u aistream.Update) { texts = append(texts, u.Text) })
	require.NoError(t, err)

	assert.Equal(t, aistream.StateCompleted, res.State)
	assert.Equal(t, "Bonjour", res.Text)
	assert.Equal(t, []string{"Bon", "Bonjour"}, texts)

	require.Len(t, fp.systems, 1)
	assert.Contains(t, fp.systems[0], "Titre : Docker")
	assert.Contains(t, fp.systems[0], "Contenu : Les conteneurs")
	assert.Equal(t, []Turn{
		{Role: RoleUser, Text: "avant"},
		{Role: RoleModel, Text: "réponse"},
		{Role: RoleUser, Text: "Qu'est-ce ?"},
	}, fp.histories[0])

	assert.Equal(t, 1.0, promtest.ToFloat64(m.AIStreams.WithLabelValues("fake", "completed")))
	assert.Equal(t, 0, svc.Streaming())
}

func TestChatHidesPrivatePosts(t *testing.T) {
	svc, db, _ := newFixture(t, &fakeProvider{}, Options{})
	p := testutil.Post(t, db, models.PostModel{Title: "Secret", Slug: "secret"})

	_, err := svc.Chat(context.Background(), "u1", p.ID, false, nil, "q", nil)
	assert.ErrorIs(t, err, ErrPostNotFound)

	res, err := svc.Chat(context.Background(), "u1", p.ID, true, nil, "q", nil)
	require.NoError(t, err)
	assert.Equal(t, aistream.StateCompleted, res.State)
}

func TestChatRequiresQuestionAndProvider(t *testing.T) {
	svc, _, _ := newFixture(t, &fakeProvider{}, Options{})
	_, err := svc.Chat(context.Background(), "u1", "x", false, nil, "   ", nil)
	assert.ErrorIs(t, err, ErrNoQuestion)

	off, _, _ := newFixture(t, nil, Options{})
	assert.False(t, off.Enabled())
	_, err = off.Chat(context.Background(), "u1", "x", false, nil, "q", nil)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestChatRateLimitPerUser(t *testing.T) {
	svc, db, _ := newFixture(t, &fakeProvider{}, Options{ChatEvery: time.Hour, ChatBurst: 1})
	p := testutil.Post(t, db, models.PostModel{Title: "P", Slug: "p", IsPublic: true})

	_, err := svc.Chat(context.Background(), "u1", p.ID, false, nil, "q", nil)
	require.NoError(t, err)
	_, err = svc.Chat(context.Background(), "u1", p.ID, false, nil, "q", nil)
	assert.ErrorIs(t, err, ErrRateLimited)
	_, err = svc.Chat(context.Background(), "u2", p.ID, false, nil, "q", nil)
	assert.NoError(t, err)
}

func TestChatStopKeepsPartialText(t *testing.T) {
	fp := &fakeProvider{deltas: []string{"partiel"}, hold: true, started: make(chan struct{}, 1)}
	svc, db, _ := newFixture(t, fp, Options{})
	p := testutil.Post(t, db, models.PostModel{Title: "P", Slug: "p", IsPublic: true})

	done := make(chan aistream.Result, 1)
	go func() {
		res, _ := svc.Chat(context.Background(), "u1", p.ID, false, nil, "q", nil)
		done <- res
	}()
	<-fp.started

	assert.True(t, svc.Stop("u1", "p"))
	res := <-done
	assert.Equal(t, aistream.StateAborted, res.State)
	assert.Equal(t, "partiel", res.Text)
	assert.False(t, svc.Stop("u1", p.ID))
}

func TestChatNewRequestSupersedesOld(t *testing.T) {
	fp := &fakeProvider{deltas: []string{"x"}, hold: true, started: make(chan struct{}, 2)}
	svc, db, _ := newFixture(t, fp, Options{})
	p := testutil.Post(t, db, models.PostModel{Title: "P", Slug: "p", IsPublic: true})

	first := make(chan aistream.Result, 1)
	go func() {
		res, _ := svc.Chat(context.Background(), "u1", p.ID, false, nil, "q1", nil)
		first <- res
	}()
	<-fp.started

	second := make(chan aistream.Result, 1)
	go func() {
		res, _ := svc.Chat(context.Background(), "u1", p.ID, false, nil, "q2", nil)
		second <- res
	}()
	<-fp.started

	assert.Equal(t, aistream.StateAborted, (<-first).State)
	assert.Equal(t, 1, svc.Streaming())

	assert.True(t, svc.Stop("u1", p.ID))
	assert.Equal(t, aistream.StateAborted, (<-second).State)
}

func TestChatTimeoutIsAnError(t *testing.T) {
	fp := &fakeProvider{hold: true, started: make(chan struct{}, 1)}
	svc, db, m := newFixture(t, fp, Options{StreamTimeout: 20 * time.Millisecond})
	p := testutil.Post(t, db, models.PostModel{Title: "P", Slug: "p", IsPublic: true})

	res, err := svc.Chat(context.Background(), "u1", p.ID, false, nil, "q", nil)
	require.NoError(t, err)
	assert.Equal(t, aistream.StateErrored, res.State)
	assert.ErrorIs(t, res.Err, ErrStreamTimeout)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.AIStreams.WithLabelValues("fake", "errored")))
}

func TestGenerateDrafts(t *testing.T) {
	fp := &fakeProvider{generate: func(prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, `"Panne"`):
			return "", errors.New("quota")
		case strings.Contains(prompt, `"Vide"`):
			return "  ", nil
		}
		return "# Article", nil
	}}
	svc, db, _ := newFixture(t, fp, Options{GenerateEvery: time.Millisecond})
	svc.now = func() time.Time { return time.UnixMilli(1700000001234) }

	results, err := svc.Generate(context.Background(), []string{"Réseaux Linux", "", "Panne", "Vide"})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, GenerateResult{Title: "Réseaux Linux", Status: StatusSuccess, Slug: "reseaux-linux-1234"}, results[0])
	assert.Equal(t, GenerateResult{Title: "Panne", Status: StatusError, Message: "quota"}, results[1])
	assert.Equal(t, StatusError, results[2].Status)
	assert.Equal(t, "Réponse vide", results[2].Message)

	var saved models.PostModel
	require.NoError(t, db.First(&saved, "slug = ?", "reseaux-linux-1234").Error)
	assert.Equal(t, DraftFolder, saved.Folder)
	assert.Equal(t, models.StringArray{DraftTag}, saved.Tags)
	assert.False(t, saved.IsPublic)
	assert.Equal(t, "# Article", saved.Content)

	var count int64
	require.NoError(t, db.Model(&models.PostModel{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestGenerateRejectsEmptyBatch(t *testing.T) {
	svc, _, _ := newFixture(t, &fakeProvider{}, Options{})
	_, err := svc.Generate(context.Background(), []string{" ", ""})
	assert.ErrorIs(t, err, ErrNoTitles)

	many := make([]string, maxGenerateItems+1)
	for i := range many {
		many[i] = "t"
	}
	_, err = svc.Generate(context.Background(), many)
	assert.ErrorIs(t, err, ErrTooManyTitles)
}

func TestChatHandlerSSE(t *testing.T) {
	fp := &fakeProvider{deltas: []string{"Bon", "jour"}}
	svc, db, _ := newFixture(t, fp, Options{})
	user := testutil.Profile(t, db, "u", models.RoleUser)
	p := testutil.Post(t, db, models.PostModel{Title: "P", Slug: "p", IsPublic: true})

	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group(""), testutil.As(user))

	w := testutil.Do(r, http.MethodPost, "/ai/chat/"+p.ID, gin.H{"message": "q"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, "event:delta")
	assert.Contains(t, body, `"text":"Bonjour"`)
	assert.Contains(t, body, "event:done")
	assert.Contains(t, body, `"state":"completed"`)
	assert.Less(t, strings.Index(body, "event:delta"), strings.Index(body, "event:done"))

	w = testutil.Do(r, http.MethodPost, "/ai/chat/missing", gin.H{"message": "q"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = testutil.Do(r, http.MethodPost, "/ai/chat/"+p.ID, gin.H{"message": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatHandlerFallbackOnError(t *testing.T) {
	fp := &fakeProvider{deltas: []string{"début"}, err: errors.New("upstream 500")}
	svc, db, _ := newFixture(t, fp, Options{})
	user := testutil.Profile(t, db, "u", models.RoleUser)
	p := testutil.Post(t, db, models.PostModel{Title: "P", Slug: "p", IsPublic: true})

	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group(""), testutil.As(user))

	body := testutil.Do(r, http.MethodPost, "/ai/chat/"+p.ID, gin.H{"message": "q"}).Body.String()
	assert.Contains(t, body, "event:error")
	assert.Contains(t, body, aistream.FallbackMessage)
	assert.NotContains(t, body, "event:done")
	assert.NotContains(t, body, "upstream 500")
}

func TestGenerateHandlerAdminOnly(t *testing.T) {
	fp := &fakeProvider{generate: func(string) (string, error) { return "# A", nil }}
	svc, db, _ := newFixture(t, fp, Options{GenerateEvery: time.Millisecond})
	user := testutil.Profile(t, db, "u", models.RoleUser)
	admin := testutil.Profile(t, db, "a", models.RoleAdmin)

	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group(""), testutil.As(user))
	assert.Equal(t, http.StatusForbidden,
		testutil.Do(r, http.MethodPost, "/ai/generate", gin.H{"titles": []string{"A"}}).Code)

	r = gin.New()
	NewHandler(svc).RegisterRoutes(r.Group(""), testutil.As(admin))
	var out struct {
		Data []GenerateResult `json:"data"`
	}
	testutil.Decode(t, testutil.Do(r, http.MethodPost, "/ai/generate", gin.H{"titles": []string{"A"}}), &out)
	require.Len(t, out.Data, 1)
	assert.Equal(t, StatusSuccess, out.Data[0].Status)
}

const geminiBody = `[{"candidates": [{"content": {"parts": [{"text": "Bonjour"}],"role": "model"}}]}
,
{"candidates": [{"content": {"parts": [{"text": " \"toi\"\n"}],"role": "model"},"finishReason": "STOP"}]}
]`

func TestGeminiStream(t *testing.T) {
	var got struct {
		Contents []geminiContent `json:"contents"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-flash-latest:streamGenerateContent", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		flusher := w.(http.Flusher)
		half := len(geminiBody) / 2
		_, _ = w.Write([]byte(geminiBody[:half]))
		flusher.Flush()
		_, _ = w.Write([]byte(geminiBody[half:]))
	}))
	defer srv.Close()

	p, err := NewProvider(appcfg.AIConfig{
		Provider: appcfg.ProviderGemini, APIKey: "secret", Model: "gemini-flash-latest", Endpoint: srv.URL,
	}, srv.Client())
	require.NoError(t, err)
	assert.Equal(t, appcfg.ProviderGemini, p.Name())

	var last string
	res := p.Stream(context.Background(), "système", []Turn{{Role: RoleUser, Text: "q"}}, func(u aistream.Update) {
		last = u.Text
	})
	require.NoError(t, res.Err)
	assert.Equal(t, aistream.StateCompleted, res.State)
	assert.Equal(t, "Bonjour \"toi\"\n", res.Text)
	assert.Equal(t, res.Text, last)

	require.Len(t, got.Contents, 2)
	assert.Equal(t, "user", got.Contents[0].Role)
	assert.Equal(t, "système", got.Contents[0].Parts[0].Text)
	assert.Equal(t, "q", got.Contents[1].Parts[0].Text)
}

func TestGeminiStreamStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p, err := NewProvider(appcfg.AIConfig{Provider: appcfg.ProviderGemini, APIKey: "k", Model: "m", Endpoint: srv.URL}, srv.Client())
	require.NoError(t, err)

	res := p.Stream(context.Background(), "s", []Turn{{Role: RoleUser, Text: "q"}}, nil)
	assert.Equal(t, aistream.StateErrored, res.State)
	assert.ErrorContains(t, res.Err, "429")
	assert.Empty(t, res.Text)
}

func TestGeminiStreamAbort(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"candidates":[{"content":{"parts":[{"text": "partiel"}]}}]}`))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	p, err := NewProvider(appcfg.AIConfig{Provider: appcfg.ProviderGemini, APIKey: "k", Model: "m", Endpoint: srv.URL}, srv.Client())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	res := p.Stream(ctx, "s", []Turn{{Role: RoleUser, Text: "q"}}, func(aistream.Update) { cancel() })
	assert.Equal(t, aistream.StateAborted, res.State)
	assert.Equal(t, "partiel", res.Text)
	assert.NoError(t, res.Err)
}

func TestNewProvider(t *testing.T) {
	_, err := NewProvider(appcfg.AIConfig{Provider: appcfg.ProviderGemini}, nil)
	assert.ErrorIs(t, err, ErrNoAPIKey)

	for _, name := range []string{appcfg.ProviderOpenAI, appcfg.ProviderAnthropic} {
		p, err := NewProvider(appcfg.AIConfig{Provider: name, APIKey: "k", Model: "m"}, nil)
		require.NoError(t, err)
		assert.Equal(t, name, p.Name())
	}
}

func TestTranscript(t *testing.T) {
	assert.Equal(t, "seul", transcript([]Turn{{Role: RoleUser, Text: "seul"}}))
	assert.Equal(t, "Utilisateur : a\n\nAssistant : b\n\nUtilisateur : c", transcript([]Turn{
		{Role: RoleUser, Text: "a"}, {Role: RoleModel, Text: "b"}, {Role: RoleUser, Text: "c"},
	}))
}

func TestNormalizeOpenAIBaseURL(t *testing.T) {
	assert.Equal(t, "", normalizeOpenAIBaseURL(" "))
	assert.Equal(t, "https://api.example.com/v1", normalizeOpenAIBaseURL("https://api.example.com"))
	assert.Equal(t, "https://api.example.com/v1", normalizeOpenAIBaseURL("https://api.example.com/v1/"))
}
