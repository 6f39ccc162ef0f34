package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventra/internal/alert/domain"
	"github.com/smallbiznis/eventra/internal/orgcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("alert.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func validThreshold(pct float64) bool {
	return pct > 0 && pct <= 100
}

func (s *Service) FindCandidates(ctx context.Context, thresholdPct float64, limit int) ([]domain.Candidate, error) {
	if !validThreshold(thresholdPct) {
		return nil, domain.ErrInvalidThreshold
	}
	if limit <= 0 {
		limit = 100
	}
	return s.repo.FindCandidates(ctx, s.db, thresholdPct, limit)
}

func (s *Service) Raise(ctx context.Context, candidate domain.Candidate, thresholdPct float64, now time.Time) (bool, error) {
	if !validThreshold(thresholdPct) {
		return false, domain.ErrInvalidThreshold
	}
	alert := &domain.CapacityAlert{
		ID:              s.genID.Generate(),
		OrgID:           candidate.OrgID,
		EventID:         candidate.EventID,
		ThresholdPct:    thresholdPct,
		MaxCapacity:     candidate.MaxCapacity,
		RegisteredCount: candidate.RegisteredCount,
		Status:          domain.AlertActive,
		RaisedAt:        now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	raised, err := s.repo.Raise(ctx, s.db, alert)
	if err != nil {
		return false, err
	}
	if raised {
		s.log.Info("capacity alert raised",
			zap.Int64("event_id", int64(candidate.EventID)),
			zap.Int64("org_id", int64(candidate.OrgID)),
			zap.Int64("registered_count", candidate.RegisteredCount),
			zap.Int64("max_capacity", candidate.MaxCapacity),
			zap.Float64("threshold_pct", thresholdPct),
		)
	}
	return raised, nil
}

func (s *Service) ResolveRecovered(ctx context.Context, thresholdPct float64, now time.Time) (int64, error) {
	if !validThreshold(thresholdPct) {
		return 0, domain.ErrInvalidThreshold
	}
	return s.repo.ResolveRecovered(ctx, s.db, thresholdPct, now)
}

func (s *Service) ListActive(ctx context.Context) ([]domain.AlertListItem, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	return s.repo.ListActiveByOrg(ctx, s.db, orgID)
}
