package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/eventra/internal/event/domain"
	"github.com/smallbiznis/eventra/internal/orgcontext"
	"github.com/smallbiznis/eventra/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
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

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("event.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateEventRequest) (domain.Event, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Event{}, domain.ErrInvalidOrganization
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return domain.Event{}, domain.ErrInvalidTitle
	}

	var clientID *snowflake.ID
	if raw := strings.TrimSpace(req.ClientID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil {
			return domain.Event{}, domain.ErrInvalidClient
		}
		clientID = &id
	}

	if err := validateSchedule(req.StartsAt, req.EndsAt); err != nil {
		return domain.Event{}, err
	}
	if req.MaxCapacity != nil && *req.MaxCapacity <= 0 {
		return domain.Event{}, domain.ErrInvalidCapacity
	}

	eventSlug, err := s.uniqueSlug(ctx, orgID, title)
	if err != nil {
		return domain.Event{}, err
	}

	now := time.Now().UTC()
	event := domain.Event{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		ClientID:    clientID,
		Title:       title,
		Slug:        eventSlug,
		Description: strings.TrimSpace(req.Description),
		Location:    strings.TrimSpace(req.Location),
		Timezone:    strings.TrimSpace(req.Timezone),
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		Status:      domain.EventDraft,
		MaxCapacity: req.MaxCapacity,
		Metadata:    datatypes.JSONMap{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Insert(ctx, s.db, &event); err != nil {
		return domain.Event{}, err
	}

	return event, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetEventRequest) (domain.Event, error) {
	event, err := s.find(ctx, req.ID)
	if err != nil {
		return domain.Event{}, err
	}
	return *event, nil
}

// GetPublishedBySlug serves the public registration page. The organization is
// resolved by the caller, so the lookup does not rely on request context.
func (s *Service) GetPublishedBySlug(ctx context.Context, orgID snowflake.ID, eventSlug string) (domain.Event, error) {
	if orgID == 0 || strings.TrimSpace(eventSlug) == "" {
		return domain.Event{}, domain.ErrNotFound
	}
	event, err := s.repo.FindBySlug(ctx, s.db, orgID, strings.TrimSpace(eventSlug))
	if err != nil {
		return domain.Event{}, err
	}
	if event == nil || event.Status != domain.EventPublished {
		return domain.Event{}, domain.ErrNotFound
	}
	return *event, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateEventRequest) (domain.Event, error) {
	event, err := s.find(ctx, req.ID)
	if err != nil {
		return domain.Event{}, err
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return domain.Event{}, domain.ErrInvalidTitle
		}
		// Slug stays stable so shared registration links survive renames.
		event.Title = title
	}
	if req.Description != nil {
		event.Description = strings.TrimSpace(*req.Description)
	}
	if req.Location != nil {
		event.Location = strings.TrimSpace(*req.Location)
	}
	if req.Timezone != nil {
		event.Timezone = strings.TrimSpace(*req.Timezone)
	}
	if req.StartsAt != nil {
		event.StartsAt = req.StartsAt
	}
	if req.EndsAt != nil {
		event.EndsAt = req.EndsAt
	}
	if err := validateSchedule(event.StartsAt, event.EndsAt); err != nil {
		return domain.Event{}, err
	}
	if req.MaxCapacity != nil {
		if *req.MaxCapacity <= 0 || *req.MaxCapacity < event.RegisteredCount {
			return domain.Event{}, domain.ErrInvalidCapacity
		}
		event.MaxCapacity = req.MaxCapacity
	}
	if req.ClientID != nil {
		if raw := strings.TrimSpace(*req.ClientID); raw != "" {
			id, err := snowflake.ParseString(raw)
			if err != nil {
				return domain.Event{}, domain.ErrInvalidClient
			}
			event.ClientID = &id
		} else {
			event.ClientID = nil
		}
	}

	event.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, s.db, event); err != nil {
		return domain.Event{}, err
	}

	return *event, nil
}

func (s *Service) Publish(ctx context.Context, req domain.GetEventRequest) (domain.Event, error) {
	event, err := s.find(ctx, req.ID)
	if err != nil {
		return domain.Event{}, err
	}

	switch event.Status {
	case domain.EventPublished:
		return *event, nil
	case domain.EventArchived:
		return domain.Event{}, domain.ErrNotPublishable
	}
	if event.StartsAt == nil {
		return domain.Event{}, domain.ErrNotPublishable
	}

	event.Status = domain.EventPublished
	event.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, s.db, event); err != nil {
		return domain.Event{}, err
	}

	return *event, nil
}

func (s *Service) Archive(ctx context.Context, req domain.ArchiveEventRequest) (domain.Event, error) {
	event, err := s.find(ctx, req.ID)
	if err != nil {
		return domain.Event{}, err
	}

	if event.Status == domain.EventPublished && !req.Force {
		return domain.Event{}, domain.ErrArchivePublished
	}

	event.Status = domain.EventArchived
	event.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, s.db, event); err != nil {
		return domain.Event{}, err
	}

	return *event, nil
}

func (s *Service) List(ctx context.Context, req domain.ListEventRequest) (domain.ListEventResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ListEventResponse{}, domain.ErrInvalidOrganization
	}

	filter := domain.ListEventFilter{
		Status:     domain.EventStatus(strings.ToUpper(strings.TrimSpace(req.Status))),
		ClientID:   strings.TrimSpace(req.ClientID),
		Search:     strings.TrimSpace(req.Search),
		StartsFrom: req.StartsFrom,
		StartsTo:   req.StartsTo,
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, orgID, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListEventResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(event domain.Event) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        event.ID.String(),
			CreatedAt: event.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	resp := domain.ListEventResponse{Events: items}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

// uniqueSlug derives a slug from the title, suffixing a counter when an event
// in the same organization already claimed it.
func (s *Service) uniqueSlug(ctx context.Context, orgID snowflake.ID, title string) (string, error) {
	base := slug.Make(title)
	candidate := base
	for i := 2; ; i++ {
		existing, err := s.repo.FindBySlug(ctx, s.db, orgID, candidate)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return candidate, nil
		}
		if i > 50 {
			return fmt.Sprintf("%s-%s", base, s.genID.Generate().String()), nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

func (s *Service) find(ctx context.Context, rawID string) (*domain.Event, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	event, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, domain.ErrNotFound
	}
	return event, nil
}

func validateSchedule(startsAt, endsAt *time.Time) error {
	if startsAt != nil && endsAt != nil && endsAt.Before(*startsAt) {
		return domain.ErrInvalidSchedule
	}
	return nil
}
