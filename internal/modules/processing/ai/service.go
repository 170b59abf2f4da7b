package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mx-space/wiki/internal/models"
	"github.com/mx-space/wiki/internal/modules/content/post"
	"github.com/mx-space/wiki/internal/pkg/aistream"
	"github.com/mx-space/wiki/internal/pkg/metrics"
	"github.com/mx-space/wiki/internal/pkg/wikilink"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// Generated drafts land here, private and tagged.
const (
	DraftFolder = "0.Brouillons_IA"
	DraftTag    = "IA"
)

// Generation item statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

const (
	maxHistoryTurns  = 20
	maxGenerateItems = 20
	limiterSweepSize = 1024
)

var (
	ErrUnavailable   = errors.New("AI provider is not configured")
	ErrPostNotFound  = errors.New("post not found")
	ErrNoQuestion    = errors.New("message is empty")
	ErrRateLimited   = errors.New("too many AI requests")
	ErrStreamTimeout = errors.New("AI stream timed out")
	ErrNoTitles      = errors.New("no titles given")
	ErrTooManyTitles = fmt.Errorf("at most %d titles per batch", maxGenerateItems)
)

// DraftCreator stores a generated article.
type DraftCreator interface {
	Create(dto *post.CreatePostDTO) (*models.PostModel, error)
}

// Options tunes the service. Zero values fall back to defaults.
type Options struct {
	StreamTimeout time.Duration
	// ChatEvery and ChatBurst bound how often one user may start a chat
	// stream.
	ChatEvery     time.Duration
	ChatBurst     int
	GenerateEvery time.Duration
}

// GenerateResult is the outcome of one title in a batch.
type GenerateResult struct {
	Title   string `json:"title"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Slug    string `json:"slug,omitempty"`
}

type Service struct {
	db       *gorm.DB
	provider Provider
	drafts   DraftCreator
	sup      *aistream.Supervisor
	metrics  *metrics.Metrics
	opts     Options
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewService wires the AI service. provider may be nil when no key is
// configured; every call then fails with ErrUnavailable.
func NewService(db *gorm.DB, provider Provider, drafts DraftCreator, m *metrics.Metrics, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.StreamTimeout <= 0 {
		opts.StreamTimeout = 2 * time.Minute
	}
	if opts.ChatEvery <= 0 {
		opts.ChatEvery = 3 * time.Second
	}
	if opts.ChatBurst <= 0 {
		opts.ChatBurst = 3
	}
	if opts.GenerateEvery <= 0 {
		opts.GenerateEvery = time.Second
	}
	return &Service{
		db:       db,
		provider: provider,
		drafts:   drafts,
		sup:      aistream.NewSupervisor(),
		metrics:  m,
		opts:     opts,
		logger:   logger.Named("AIService"),
		now:      time.Now,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Enabled reports whether a provider is configured.
func (s *Service) Enabled() bool { return s.provider != nil }

func chatKey(userID, postID string) string { return userID + ":" + postID }

// Chat answers message about the post identified by postID (id or slug)
// given the earlier turns of the conversation. Each update is passed to
// emit as long as this request is the latest one for the same user and
// post; starting a new chat or calling Stop cancels it.
func (s *Service) Chat(ctx context.Context, userID, postID string, isAdmin bool, history []Turn, message string, emit func(aistream.Update)) (aistream.Result, error) {
	if s.provider == nil {
		return aistream.Result{}, ErrUnavailable
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return aistream.Result{}, ErrNoQuestion
	}

	var p models.PostModel
	err := s.db.Scopes(models.VisibleTo(isAdmin)).
		Where("id = ? OR slug = ?", postID, postID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return aistream.Result{}, ErrPostNotFound
	}
	if err != nil {
		return aistream.Result{}, err
	}

	if !s.allow(userID) {
		return aistream.Result{}, ErrRateLimited
	}

	turns := trimHistory(history)
	turns = append(turns, Turn{Role: RoleUser, Text: message})

	ticket := s.sup.Begin(ctx, chatKey(userID, p.ID))
	defer ticket.Done()

	streamCtx, cancel := context.WithTimeout(ticket.Context(), s.opts.StreamTimeout)
	defer cancel()

	if emit == nil {
		emit = func(aistream.Update) {}
	}
	res := s.provider.Stream(streamCtx, buildChatSystemPrompt(p.Title, p.Content), turns, ticket.Guard(emit))

	if res.State == aistream.StateAborted &&
		errors.Is(streamCtx.Err(), context.DeadlineExceeded) && ticket.Context().Err() == nil {
		res.State = aistream.StateErrored
		res.Err = ErrStreamTimeout
	}

	if s.metrics != nil {
		s.metrics.AIStreams.WithLabelValues(s.provider.Name(), string(res.State)).Inc()
	}
	switch res.State {
	case aistream.StateErrored:
		s.logger.Warn("chat stream failed",
			zap.String("post_id", p.ID),
			zap.String("user_id", userID),
			zap.Error(res.Err))
	default:
		s.logger.Debug("chat stream finished",
			zap.String("post_id", p.ID),
			zap.String("state", string(res.State)),
			zap.Int("chars", len(res.Text)))
	}
	return res, nil
}

// Stop aborts the running chat of userID on postID.
func (s *Service) Stop(userID, postID string) bool {
	if s.sup.Abort(chatKey(userID, postID)) {
		return true
	}
	var p models.PostModel
	if err := s.db.Select("id").Where("slug = ?", postID).First(&p).Error; err != nil {
		return false
	}
	return s.sup.Abort(chatKey(userID, p.ID))
}

// Streaming returns the number of chats in flight.
func (s *Service) Streaming() int { return s.sup.Active() }

// Generate writes one private draft per title, pacing provider calls. A
// failing title does not stop the batch.
func (s *Service) Generate(ctx context.Context, titles []string) ([]GenerateResult, error) {
	if s.provider == nil {
		return nil, ErrUnavailable
	}
	clean := make([]string, 0, len(titles))
	for _, t := range titles {
		if t = strings.TrimSpace(t); t != "" {
			clean = append(clean, t)
		}
	}
	if len(clean) == 0 {
		return nil, ErrNoTitles
	}
	if len(clean) > maxGenerateItems {
		return nil, ErrTooManyTitles
	}

	limiter := rate.NewLimiter(rate.Every(s.opts.GenerateEvery), 1)
	results := make([]GenerateResult, 0, len(clean))
	for _, title := range clean {
		if err := limiter.Wait(ctx); err != nil {
			results = append(results, GenerateResult{Title: title, Status: StatusError, Message: err.Error()})
			continue
		}
		results = append(results, s.generateOne(ctx, title))
	}
	return results, nil
}

func (s *Service) generateOne(ctx context.Context, title string) GenerateResult {
	res := GenerateResult{Title: title}

	content, err := s.provider.Generate(ctx, "", buildGeneratorPrompt(title))
	if err == nil && strings.TrimSpace(content) == "" {
		err = ErrEmptyResponse
	}
	if err != nil {
		s.logger.Warn("generation failed", zap.String("title", title), zap.Error(err))
		res.Status, res.Message = StatusError, err.Error()
		return res
	}

	private := false
	created, err := s.drafts.Create(&post.CreatePostDTO{
		Title:    title,
		Slug:     s.draftSlug(title),
		Folder:   DraftFolder,
		Tags:     []string{DraftTag},
		Content:  content,
		IsPublic: &private,
	})
	if err != nil {
		s.logger.Warn("saving generated draft failed", zap.String("title", title), zap.Error(err))
		res.Status, res.Message = StatusError, err.Error()
		return res
	}

	s.logger.Info("draft generated", zap.String("title", title), zap.String("slug", created.Slug))
	res.Status, res.Slug = StatusSuccess, created.Slug
	return res
}

// draftSlug suffixes the title slug with the last four digits of the
// current unix time in milliseconds.
func (s *Service) draftSlug(title string) string {
	ms := fmt.Sprintf("%04d", s.now().UnixMilli()%10000)
	return wikilink.Slugify(title) + "-" + ms
}

func (s *Service) allow(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	lim, ok := s.limiters[userID]
	if !ok {
		if len(s.limiters) >= limiterSweepSize {
			s.sweepLimiters()
		}
		lim = rate.NewLimiter(rate.Every(s.opts.ChatEvery), s.opts.ChatBurst)
		s.limiters[userID] = lim
	}
	return lim.Allow()
}

// sweepLimiters drops limiters that have refilled, which are
// indistinguishable from new ones. Caller holds s.mu.
func (s *Service) sweepLimiters() {
	for id, lim := range s.limiters {
		if lim.Tokens() >= float64(s.opts.ChatBurst) {
			delete(s.limiters, id)
		}
	}
}

// trimHistory keeps the latest non-empty turns with a known role.
func trimHistory(history []Turn) []Turn {
	out := make([]Turn, 0, len(history)+1)
	for _, t := range history {
		if strings.TrimSpace(t.Text) == "" {
			continue
		}
		if t.Role != RoleUser {
			t.Role = RoleModel
		}
		out = append(out, t)
	}
	if len(out) > maxHistoryTurns {
		out = out[len(out)-maxHistoryTurns:]
	}
	return out
}
