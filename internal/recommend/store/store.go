// Package store keeps the three persisted slots: last successful results,
// last search preferences and saved places. Reads treat missing or malformed
// data as absent.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"quiz-recommender/internal/common/config"
	"quiz-recommender/internal/common/database"
	apperrors "quiz-recommender/internal/common/errors"
	"quiz-recommender/internal/common/logger"
	"quiz-recommender/internal/models"
)

const (
	slotLastResults = "last_results"
	slotPreferences = "preferences"
	slotSavedPlaces = "saved_places"
)

type Options struct {
	KV        KV
	KeyPrefix string
	// MaxAge hides cached results older than this; zero keeps them forever.
	MaxAge time.Duration
	Logger logger.Logger
}

type Store struct {
	kv        KV
	prefix    string
	namespace string
	maxAge    time.Duration
	now       func() time.Time
	logger    logger.Logger
}

func New(opts Options) *Store {
	if opts.KV == nil {
		opts.KV = NewMemoryKV()
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "recommender"
	}
	return &Store{
		kv:     opts.KV,
		prefix: opts.KeyPrefix,
		maxAge: opts.MaxAge,
		now:    time.Now,
		logger: logger.ForComponent(opts.Logger, "store"),
	}
}

// Open builds a Store over the configured backend.
func Open(cfg config.CacheConfig, log logger.Logger) (*Store, error) {
	kv, err := OpenKV(cfg)
	if err != nil {
		return nil, apperrors.NewCacheUnavailableError(err)
	}
	return New(Options{
		KV:        kv,
		KeyPrefix: cfg.KeyPrefix,
		MaxAge:    config.GetDuration(cfg.MaxAge),
		Logger:    log,
	}), nil
}

// Namespace returns a view of the store whose slots are scoped to ns, e.g. a session id.
func (s *Store) Namespace(ns string) *Store {
	cp := *s
	cp.namespace = ns
	return &cp
}

func (s *Store) Close() error {
	return closeKV(s.kv)
}

func (s *Store) key(slot string) string {
	if s.namespace == "" {
		return s.prefix + ":" + slot
	}
	return s.prefix + ":" + s.namespace + ":" + slot
}

// ==========================================
// Last results
// ==========================================

// SaveLast overwrites the last-results slot with a fresh timestamp.
func (s *Store) SaveLast(ctx context.Context, businesses []models.Business) error {
	entry := models.ResultCacheEntry{Timestamp: s.now().UTC(), Businesses: businesses}
	if entry.Businesses == nil {
		entry.Businesses = []models.Business{}
	}
	return s.put(ctx, slotLastResults, entry)
}

// LoadLast returns nil when nothing usable is cached. Entries older than MaxAge
// are reported as absent.
func (s *Store) LoadLast(ctx context.Context) (*models.ResultCacheEntry, error) {
	var entry models.ResultCacheEntry
	found, err := s.get(ctx, slotLastResults, &entry)
	if err != nil || !found {
		return nil, err
	}
	if s.maxAge > 0 && s.now().Sub(entry.Timestamp) > s.maxAge {
		s.logger.Info("Cached results older than max age, ignoring", map[string]interface{}{
			"cachedAt": entry.Timestamp,
		})
		return nil, nil
	}
	return &entry, nil
}

// ==========================================
// Preferences
// ==========================================

func (s *Store) SavePreferences(ctx context.Context, prefs models.Preferences) error {
	return s.put(ctx, slotPreferences, prefs)
}

func (s *Store) LoadPreferences(ctx context.Context) (*models.Preferences, error) {
	var prefs models.Preferences
	found, err := s.get(ctx, slotPreferences, &prefs)
	if err != nil || !found {
		return nil, err
	}
	return &prefs, nil
}

// ==========================================
// Saved places
// ==========================================

// SavedPlaces lists saved places in the order they were saved.
func (s *Store) SavedPlaces(ctx context.Context) ([]models.SavedPlace, error) {
	var places []models.SavedPlace
	found, err := s.get(ctx, slotSavedPlaces, &places)
	if err != nil || !found {
		return nil, err
	}
	return places, nil
}

// ToggleSaved saves b, or removes it when already saved. It reports whether b is saved afterwards.
func (s *Store) ToggleSaved(ctx context.Context, b models.Business) (bool, error) {
	places, err := s.SavedPlaces(ctx)
	if err != nil {
		return false, err
	}
	kept := make([]models.SavedPlace, 0, len(places)+1)
	removed := false
	for _, p := range places {
		if p.ID == b.ID {
			removed = true
			continue
		}
		kept = append(kept, p)
	}
	if !removed {
		kept = append(kept, models.SavedPlaceFrom(b, s.now().UTC()))
	}
	if err := s.put(ctx, slotSavedPlaces, kept); err != nil {
		return false, err
	}
	return !removed, nil
}

func (s *Store) IsSaved(ctx context.Context, id string) (bool, error) {
	places, err := s.SavedPlaces(ctx)
	if err != nil {
		return false, err
	}
	for _, p := range places {
		if p.ID == id {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ClearSaved(ctx context.Context) error {
	if err := s.kv.Del(ctx, s.key(slotSavedPlaces)); err != nil {
		return apperrors.NewCacheUnavailableError(err)
	}
	return nil
}

func (s *Store) put(ctx context.Context, slot string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return apperrors.NewCacheUnavailableError(err)
	}
	if err := s.kv.Set(ctx, s.key(slot), data, 0); err != nil {
		s.logger.Warn("Failed to write slot", map[string]interface{}{
			"slot":  slot,
			"error": err.Error(),
		})
		return apperrors.NewCacheUnavailableError(err)
	}
	return nil
}

// get decodes a slot into v. Missing and malformed slots report found=false
// without an error; backend failures are returned.
func (s *Store) get(ctx context.Context, slot string, v interface{}) (bool, error) {
	data, err := s.kv.Get(ctx, s.key(slot))
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.NewCacheUnavailableError(err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.logger.Warn("Ignoring malformed slot", map[string]interface{}{
			"slot":  slot,
			"error": err.Error(),
		})
		return false, nil
	}
	return true, nil
}
