package ingest

import (
	"context"
	"errors"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/stayknown/core/internal/models"
	"github.com/stayknown/core/internal/pkg/changefeed"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrVisitNotFound   = errors.New("visit not found")
	ErrVisitEnded      = errors.New("visit already ended")
	ErrBadCoordinates  = errors.New("coordinates out of range")
	ErrNoActiveEpisode = errors.New("no active sos episode")
)

// Service owns the write path: every accepted write lands in MySQL and is
// announced on the change feed so open relays see it.
type Service struct {
	db     *gorm.DB
	feed   changefeed.Publisher
	logger *zap.Logger
}

func NewService(db *gorm.DB, feed changefeed.Publisher, logger *zap.Logger) *Service {
	return &Service{db: db, feed: feed, logger: logger}
}

// CreateVisit starts a visit. Re-sending the same client-supplied ID returns
// the existing row instead of an error.
func (s *Service) CreateVisit(ctx context.Context, dto *CreateVisitDTO) (*models.VisitModel, error) {
	visit := &models.VisitModel{
		OwnerRef:   dto.OwnerRef,
		Label:      dto.Label,
		StartedAt:  time.Now(),
		MaxMinutes: dto.MaxMinutes,
	}
	visit.ID = dto.ID

	err := s.db.WithContext(ctx).Create(visit).Error
	if err != nil {
		if isDuplicateErr(err) && dto.ID != "" {
			var existing models.VisitModel
			if findErr := s.db.WithContext(ctx).First(&existing, "id = ?", dto.ID).Error; findErr == nil {
				return &existing, nil
			}
		}
		return nil, err
	}
	return visit, nil
}

// AppendLocation stores one sample and publishes a location feed event.
func (s *Service) AppendLocation(ctx context.Context, sessionID string, dto *AppendLocationDTO) (*models.VisitLocationModel, error) {
	lat, lng := *dto.Lat, *dto.Lng
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, ErrBadCoordinates
	}

	visit, err := s.visit(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if visit.Ended() {
		return nil, ErrVisitEnded
	}

	row := &models.VisitLocationModel{
		SessionID: sessionID,
		Lat:       lat,
		Lng:       lng,
		Accuracy:  dto.Accuracy,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}

	s.publish(func() error {
		return s.feed.PublishLocation(ctx, changefeed.LocationRow{
			SessionID: sessionID,
			Lat:       row.Lat,
			Lng:       row.Lng,
			Accuracy:  row.Accuracy,
			CreatedAt: row.CreatedAt,
		})
	}, sessionID, "location")

	return row, nil
}

// EndVisit sets ended_at once. Ending twice keeps the first timestamp and
// reports ErrVisitEnded.
func (s *Service) EndVisit(ctx context.Context, sessionID, endedBy string) (*models.VisitModel, error) {
	visit, err := s.visit(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if visit.Ended() {
		return visit, ErrVisitEnded
	}

	now := time.Now()
	updates := map[string]interface{}{"ended_at": now, "ended_by": endedBy}
	res := s.db.WithContext(ctx).
		Model(&models.VisitModel{}).
		Where("id = ? AND ended_at IS NULL", sessionID).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// lost the race, refetch the winner's timestamp
		return s.visit(ctx, sessionID)
	}
	visit.EndedAt = &now
	visit.EndedBy = endedBy

	s.publish(func() error {
		return s.feed.PublishVisit(ctx, changefeed.VisitRow{SessionID: sessionID, EndedAt: visit.EndedAt})
	}, sessionID, "visit")

	return visit, nil
}

// StartSos opens an episode. An already-active episode is returned as-is so
// the panic button stays idempotent.
func (s *Service) StartSos(ctx context.Context, sessionID string) (*models.SosEpisodeModel, error) {
	visit, err := s.visit(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if visit.Ended() {
		return nil, ErrVisitEnded
	}

	var active models.SosEpisodeModel
	err = s.db.WithContext(ctx).
		Where("session_id = ? AND ended_at IS NULL", sessionID).
		Order("started_at DESC").
		First(&active).Error
	if err == nil {
		return &active, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	episode := &models.SosEpisodeModel{
		SessionID: sessionID,
		StartedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(episode).Error; err != nil {
		return nil, err
	}

	s.publishSos(ctx, episode)
	return episode, nil
}

// EndSos closes the active episode.
func (s *Service) EndSos(ctx context.Context, sessionID, endedBy string) (*models.SosEpisodeModel, error) {
	var episode models.SosEpisodeModel
	err := s.db.WithContext(ctx).
		Where("session_id = ? AND ended_at IS NULL", sessionID).
		Order("started_at DESC").
		First(&episode).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoActiveEpisode
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).
		Model(&episode).
		Updates(map[string]interface{}{"ended_at": now, "ended_by": endedBy}).Error; err != nil {
		return nil, err
	}
	episode.EndedAt = &now
	episode.EndedBy = endedBy

	s.publishSos(ctx, &episode)
	return &episode, nil
}

// SweepOverdue ends visits that outlived the policy cap. Per-visit caps
// (max_minutes) win over the global maximum when set.
func (s *Service) SweepOverdue(ctx context.Context, maxDuration time.Duration) (int, error) {
	var open []models.VisitModel
	if err := s.db.WithContext(ctx).
		Where("ended_at IS NULL").
		Find(&open).Error; err != nil {
		return 0, err
	}

	ended := 0
	now := time.Now()
	for i := range open {
		visit := &open[i]
		limit := maxDuration
		if visit.MaxMinutes > 0 {
			limit = time.Duration(visit.MaxMinutes) * time.Minute
		}
		if now.Sub(visit.StartedAt) < limit {
			continue
		}
		if _, err := s.EndVisit(ctx, visit.ID, "policy"); err != nil && !errors.Is(err, ErrVisitEnded) {
			if s.logger != nil {
				s.logger.Warn("sweep failed to end visit", zap.String("session_id", visit.ID), zap.Error(err))
			}
			continue
		}
		ended++
	}
	return ended, nil
}

func (s *Service) visit(ctx context.Context, sessionID string) (*models.VisitModel, error) {
	var visit models.VisitModel
	err := s.db.WithContext(ctx).First(&visit, "id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrVisitNotFound
	}
	if err != nil {
		return nil, err
	}
	return &visit, nil
}

func (s *Service) publishSos(ctx context.Context, episode *models.SosEpisodeModel) {
	s.publish(func() error {
		return s.feed.PublishSos(ctx, changefeed.EpisodeRow{
			SessionID: episode.SessionID,
			StartedAt: episode.StartedAt,
			EndedAt:   episode.EndedAt,
		})
	}, episode.SessionID, "sos")
}

// publish announces a change. A feed hiccup never fails the write: the row
// is durable and the next seed will pick it up.
func (s *Service) publish(fn func() error, sessionID, kind string) {
	if s.feed == nil {
		return
	}
	if err := fn(); err != nil && s.logger != nil {
		s.logger.Warn("changefeed publish failed",
			zap.String("session_id", sessionID),
			zap.String("kind", kind),
			zap.Error(err))
	}
}

func isDuplicateErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}
