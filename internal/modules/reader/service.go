package reader

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/mx-space/wiki/internal/pkg/redis"
	"go.uber.org/zap"
)

const (
	historyPrefix = "wiki:history:"
	draftPrefix   = "wiki:draft:"

	DefaultHistoryLimit = 10
	DefaultDraftTTL     = 7 * 24 * time.Hour
)

var ErrInvalidDraftKey = errors.New("invalid draft key")

// Entry is one reading-history row.
type Entry struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Slug   string `json:"slug"`
	Folder string `json:"folder"`
}

// Draft is an autosaved editor buffer.
type Draft struct {
	Title   string    `json:"title"`
	Content string    `json:"content"`
	SavedAt time.Time `json:"saved_at"`
}

// Service keeps per-user reading history and editor drafts in Redis. The
// data is a cache: read failures surface as empty results.
type Service struct {
	kv       redis.KV
	limit    int
	draftTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(kv redis.KV, historyLimit int, draftTTL time.Duration, logger *zap.Logger) *Service {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	if draftTTL <= 0 {
		draftTTL = DefaultDraftTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		kv:       kv,
		limit:    historyLimit,
		draftTTL: draftTTL,
		logger:   logger.Named("ReaderService"),
		now:      time.Now,
	}
}

// History returns the user's most recently viewed posts, newest first.
func (s *Service) History(ctx context.Context, userID string) []Entry {
	entries, err := s.load(ctx, historyPrefix+userID)
	if err != nil {
		s.logger.Warn("read history failed", zap.String("user", userID), zap.Error(err))
		return []Entry{}
	}
	return entries
}

// Push records a view. An entry already present moves to the front, and
// the list is cut to the configured limit. The read-modify-write is atomic
// per user.
func (s *Service) Push(ctx context.Context, userID string, e Entry) error {
	if userID == "" || e.ID == "" {
		return nil
	}
	return s.kv.Update(ctx, historyPrefix+userID, 0, func(cur string) (string, error) {
		entries, err := decode(cur)
		if err != nil {
			s.logger.Warn("read history failed, starting over", zap.String("user", userID), zap.Error(err))
			entries = nil
		}
		return encode(pushEntry(entries, e, s.limit))
	})
}

// Clear drops the user's history.
func (s *Service) Clear(ctx context.Context, userID string) error {
	return s.kv.Del(ctx, historyPrefix+userID)
}

// ClearAll drops every user's history.
func (s *Service) ClearAll(ctx context.Context) error {
	keys, err := s.kv.Keys(ctx, historyPrefix+"*")
	if err != nil {
		return err
	}
	return s.kv.Del(ctx, keys...)
}

// RemovePost strips a deleted post from every user's history.
func (s *Service) RemovePost(ctx context.Context, postID string) error {
	keys, err := s.kv.Keys(ctx, historyPrefix+"*")
	if err != nil {
		return err
	}
	for _, key := range keys {
		err := s.kv.Update(ctx, key, 0, func(cur string) (string, error) {
			entries, err := decode(cur)
			if err != nil {
				return cur, nil
			}
			kept := entries[:0]
			for _, e := range entries {
				if e.ID != postID {
					kept = append(kept, e)
				}
			}
			return encode(kept)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// SaveDraft stores the buffer for key, which is a post id or "new".
func (s *Service) SaveDraft(ctx context.Context, userID, key string, d Draft) (Draft, error) {
	if !validDraftKey(key) {
		return Draft{}, ErrInvalidDraftKey
	}
	d.SavedAt = s.now().UTC()
	raw, err := json.Marshal(d)
	if err != nil {
		return Draft{}, err
	}
	return d, s.kv.Set(ctx, draftKey(userID, key), string(raw), s.draftTTL)
}

// Draft returns the saved buffer or nil when there is none.
func (s *Service) Draft(ctx context.Context, userID, key string) (*Draft, error) {
	if !validDraftKey(key) {
		return nil, ErrInvalidDraftKey
	}
	raw, err := s.kv.Get(ctx, draftKey(userID, key))
	if err != nil || raw == "" {
		return nil, err
	}
	var d Draft
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, nil
	}
	return &d, nil
}

// DiscardDraft deletes the saved buffer.
func (s *Service) DiscardDraft(ctx context.Context, userID, key string) error {
	if !validDraftKey(key) {
		return ErrInvalidDraftKey
	}
	return s.kv.Del(ctx, draftKey(userID, key))
}

func (s *Service) load(ctx context.Context, key string) ([]Entry, error) {
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return decode(raw)
}

func decode(raw string) ([]Entry, error) {
	if raw == "" {
		return []Entry{}, nil
	}
	var entries []Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// encode returns "" for an empty list so the key is removed.
func encode(entries []Entry) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func pushEntry(entries []Entry, e Entry, limit int) []Entry {
	out := make([]Entry, 0, limit)
	out = append(out, e)
	for _, old := range entries {
		if len(out) == limit {
			break
		}
		if old.ID != e.ID {
			out = append(out, old)
		}
	}
	return out
}

func draftKey(userID, key string) string {
	return draftPrefix + userID + ":" + key
}

func validDraftKey(key string) bool {
	return key != "" && len(key) <= 64 && !strings.ContainsAny(key, ":*? ")
}
