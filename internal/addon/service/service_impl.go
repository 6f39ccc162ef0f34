package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventra/internal/addon/domain"
	"github.com/smallbiznis/eventra/internal/cache"
	"github.com/smallbiznis/eventra/internal/orgcontext"
	"github.com/smallbiznis/eventra/internal/pricing/engine"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      domain.Repository
	Snapshots cache.SnapshotCache
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      domain.Repository
	snapshots cache.SnapshotCache
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("addon.service"),
		genID:     p.GenID,
		repo:      p.Repo,
		snapshots: p.Snapshots,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateAddOnRequest) (domain.AddOnItem, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.AddOnItem{}, domain.ErrInvalidOrganization
	}

	eventID, err := snowflake.ParseString(strings.TrimSpace(req.EventID))
	if err != nil {
		return domain.AddOnItem{}, domain.ErrInvalidEvent
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.AddOnItem{}, domain.ErrInvalidName
	}
	if req.UnitPrice < 0 {
		return domain.AddOnItem{}, domain.ErrInvalidPrice
	}
	currency, err := normalizeCurrency(req.Currency)
	if err != nil {
		return domain.AddOnItem{}, err
	}
	if req.MaxCapacity != nil && *req.MaxCapacity <= 0 {
		return domain.AddOnItem{}, domain.ErrInvalidCapacity
	}

	conditions, err := encodeConditions(req.Conditions)
	if err != nil {
		return domain.AddOnItem{}, err
	}
	logic, err := normalizeLogic(req.ConditionLogic)
	if err != nil {
		return domain.AddOnItem{}, err
	}

	existing, err := s.repo.ListByEvent(ctx, s.db, orgID, eventID, nil)
	if err != nil {
		return domain.AddOnItem{}, err
	}

	now := time.Now().UTC()
	item := domain.AddOnItem{
		ID:             s.genID.Generate(),
		OrgID:          orgID,
		EventID:        eventID,
		Name:           name,
		Description:    strings.TrimSpace(req.Description),
		UnitPrice:      req.UnitPrice,
		Currency:       currency,
		MaxCapacity:    req.MaxCapacity,
		Conditions:     conditions,
		ConditionLogic: logic,
		Active:         true,
		Position:       len(existing),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Insert(ctx, s.db, &item); err != nil {
		return domain.AddOnItem{}, err
	}
	s.snapshots.Invalidate(orgID.String(), eventID.String())
	return item, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetAddOnRequest) (domain.AddOnItem, error) {
	item, err := s.find(ctx, req.ID)
	if err != nil {
		return domain.AddOnItem{}, err
	}
	return *item, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateAddOnRequest) (domain.AddOnItem, error) {
	item, err := s.find(ctx, req.ID)
	if err != nil {
		return domain.AddOnItem{}, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.AddOnItem{}, domain.ErrInvalidName
		}
		item.Name = name
	}
	if req.Description != nil {
		item.Description = strings.TrimSpace(*req.Description)
	}
	if req.UnitPrice != nil {
		if *req.UnitPrice < 0 {
			return domain.AddOnItem{}, domain.ErrInvalidPrice
		}
		item.UnitPrice = *req.UnitPrice
	}
	if req.Currency != nil {
		currency, err := normalizeCurrency(*req.Currency)
		if err != nil {
			return domain.AddOnItem{}, err
		}
		item.Currency = currency
	}
	if req.MaxCapacity != nil {
		if *req.MaxCapacity <= 0 || *req.MaxCapacity < item.RegisteredCount {
			return domain.AddOnItem{}, domain.ErrInvalidCapacity
		}
		item.MaxCapacity = req.MaxCapacity
	}
	if req.Conditions != nil {
		conditions, err := encodeConditions(*req.Conditions)
		if err != nil {
			return domain.AddOnItem{}, err
		}
		item.Conditions = conditions
	}
	if req.ConditionLogic != nil {
		logic, err := normalizeLogic(*req.ConditionLogic)
		if err != nil {
			return domain.AddOnItem{}, err
		}
		item.ConditionLogic = logic
	}
	if req.Active != nil {
		item.Active = *req.Active
	}

	item.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, s.db, item); err != nil {
		return domain.AddOnItem{}, err
	}
	s.snapshots.Invalidate(item.OrgID.String(), item.EventID.String())
	return *item, nil
}

func (s *Service) Archive(ctx context.Context, req domain.GetAddOnRequest) (domain.AddOnItem, error) {
	item, err := s.find(ctx, req.ID)
	if err != nil {
		return domain.AddOnItem{}, err
	}

	item.Active = false
	item.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, s.db, item); err != nil {
		return domain.AddOnItem{}, err
	}
	s.snapshots.Invalidate(item.OrgID.String(), item.EventID.String())
	return *item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListAddOnRequest) ([]domain.AddOnItem, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	eventID, err := snowflake.ParseString(strings.TrimSpace(req.EventID))
	if err != nil {
		return nil, domain.ErrInvalidEvent
	}

	return s.repo.ListByEvent(ctx, s.db, orgID, eventID, req.Active)
}

func (s *Service) find(ctx context.Context, rawID string) (*domain.AddOnItem, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	return item, nil
}

func encodeConditions(conditions []engine.Condition) (datatypes.JSON, error) {
	if len(conditions) == 0 {
		return nil, nil
	}
	if err := engine.ValidateConditions(conditions); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(conditions)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func normalizeLogic(value string) (engine.Logic, error) {
	logic := engine.Logic(strings.ToUpper(strings.TrimSpace(value)))
	if logic == "" {
		return engine.LogicAnd, nil
	}
	if !logic.Valid() {
		return "", domain.ErrInvalidLogic
	}
	return logic, nil
}

func normalizeCurrency(value string) (string, error) {
	currency := strings.ToUpper(strings.TrimSpace(value))
	if currency == "" {
		return "", nil
	}
	if len(currency) != 3 {
		return "", domain.ErrInvalidCurrency
	}
	return currency, nil
}
