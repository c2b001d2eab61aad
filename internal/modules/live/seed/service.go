package seed

import (
	"context"
	"errors"

	"github.com/stayknown/core/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Store is the read surface the seeder needs. Implemented by GormStore;
// tests substitute fakes.
type Store interface {
	// LatestLocation returns the newest location sample, or nil when the
	// visit has none yet.
	LatestLocation(ctx context.Context, sessionID string) (*models.VisitLocationModel, error)
	// Visit returns the visit row, or nil when it does not exist.
	Visit(ctx context.Context, sessionID string) (*models.VisitModel, error)
	// LatestEpisode returns the most recently started SOS episode, or nil.
	LatestEpisode(ctx context.Context, sessionID string) (*models.SosEpisodeModel, error)
}

// ErrMissingSessionID is returned before any store access when sid is empty.
var ErrMissingSessionID = errors.New("missing session id")

// errBackendUnavailable marks a seed where no sub-read could complete.
var errBackendUnavailable = errors.New("seed backend unavailable")

type Service struct {
	store  Store
	logger *zap.Logger
}

func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Seed performs the three independent reads behind a viewer's initial
// snapshot. A failed sub-read degrades to "absent"; only a backend where
// every read fails surfaces as a seed failure.
func (s *Service) Seed(ctx context.Context, sessionID string) (*Snapshot, error) {
	if sessionID == "" {
		return nil, ErrMissingSessionID
	}

	snap := &Snapshot{SessionID: sessionID}
	failures := 0

	loc, err := s.store.LatestLocation(ctx, sessionID)
	if err != nil {
		failures++
		s.warn("latest location read failed", sessionID, err)
	} else if loc != nil {
		snap.Latest = &LatestLocation{
			Lat:       loc.Lat,
			Lng:       loc.Lng,
			Accuracy:  loc.Accuracy,
			CreatedAt: loc.CreatedAt,
		}
	}

	visit, err := s.store.Visit(ctx, sessionID)
	if err != nil {
		failures++
		s.warn("visit read failed", sessionID, err)
	} else if visit != nil {
		snap.Ended = visit.Ended()
	}

	episode, err := s.store.LatestEpisode(ctx, sessionID)
	if err != nil {
		failures++
		s.warn("sos episode read failed", sessionID, err)
	} else if episode != nil {
		snap.SosActive = episode.Active()
	}

	if failures == 3 {
		return nil, errBackendUnavailable
	}
	return snap, nil
}

func (s *Service) warn(msg, sessionID string, err error) {
	if s.logger != nil {
		s.logger.Warn(msg, zap.String("session_id", sessionID), zap.Error(err))
	}
}

// GormStore implements Store on the visits schema.
type GormStore struct{ db *gorm.DB }

func NewGormStore(db *gorm.DB) *GormStore { return &GormStore{db: db} }

func (g *GormStore) LatestLocation(ctx context.Context, sessionID string) (*models.VisitLocationModel, error) {
	var row models.VisitLocationModel
	err := g.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (g *GormStore) Visit(ctx context.Context, sessionID string) (*models.VisitModel, error) {
	var row models.VisitModel
	err := g.db.WithContext(ctx).First(&row, "id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (g *GormStore) LatestEpisode(ctx context.Context, sessionID string) (*models.SosEpisodeModel, error) {
	var row models.SosEpisodeModel
	err := g.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("started_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
