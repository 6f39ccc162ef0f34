package service

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventra/internal/form/domain"
	"github.com/smallbiznis/eventra/internal/orgcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var fieldKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

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
		log:   p.Log.Named("form.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateFormRequest) (domain.FormWithFields, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.FormWithFields{}, domain.ErrInvalidOrganization
	}

	eventID, err := snowflake.ParseString(strings.TrimSpace(req.EventID))
	if err != nil {
		return domain.FormWithFields{}, domain.ErrInvalidEvent
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return domain.FormWithFields{}, domain.ErrInvalidTitle
	}

	now := time.Now().UTC()
	form := domain.RegistrationForm{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		EventID:     eventID,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Active:      false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	fields := make([]domain.FormField, 0, len(req.Fields))
	seen := make(map[string]bool, len(req.Fields))
	for i, input := range req.Fields {
		field, err := s.buildField(orgID, form.ID, input, i, now)
		if err != nil {
			return domain.FormWithFields{}, err
		}
		if seen[field.Key] {
			return domain.FormWithFields{}, domain.ErrDuplicateFieldKey
		}
		seen[field.Key] = true
		fields = append(fields, field)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertForm(ctx, tx, &form); err != nil {
			return err
		}
		for i := range fields {
			if err := s.repo.InsertField(ctx, tx, &fields[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.FormWithFields{}, err
	}

	return domain.FormWithFields{RegistrationForm: form, Fields: fields}, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetFormRequest) (domain.FormWithFields, error) {
	form, err := s.find(ctx, req.ID)
	if err != nil {
		return domain.FormWithFields{}, err
	}
	return s.withFields(ctx, form)
}

func (s *Service) GetActiveByEvent(ctx context.Context, orgID, eventID snowflake.ID) (domain.FormWithFields, error) {
	if orgID == 0 || eventID == 0 {
		return domain.FormWithFields{}, domain.ErrNoActiveForm
	}
	form, err := s.repo.FindActiveFormByEvent(ctx, s.db, orgID, eventID)
	if err != nil {
		return domain.FormWithFields{}, err
	}
	if form == nil {
		return domain.FormWithFields{}, domain.ErrNoActiveForm
	}
	return s.withFields(ctx, form)
}

func (s *Service) List(ctx context.Context, req domain.ListFormRequest) ([]domain.RegistrationForm, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	var eventID snowflake.ID
	if raw := strings.TrimSpace(req.EventID); raw != "" {
		parsed, err := snowflake.ParseString(raw)
		if err != nil {
			return nil, domain.ErrInvalidEvent
		}
		eventID = parsed
	}

	return s.repo.ListForms(ctx, s.db, orgID, eventID, req.Active)
}

func (s *Service) Update(ctx context.Context, req domain.UpdateFormRequest) (domain.FormWithFields, error) {
	form, err := s.find(ctx, req.ID)
	if err != nil {
		return domain.FormWithFields{}, err
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return domain.FormWithFields{}, domain.ErrInvalidTitle
		}
		form.Title = title
	}
	if req.Description != nil {
		form.Description = strings.TrimSpace(*req.Description)
	}

	form.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateForm(ctx, s.db, form); err != nil {
		return domain.FormWithFields{}, err
	}
	return s.withFields(ctx, form)
}

// Activate makes this the event's submission target, demoting whichever form
// held the flag before. Both writes ride one transaction.
func (s *Service) Activate(ctx context.Context, req domain.GetFormRequest) (domain.FormWithFields, error) {
	form, err := s.find(ctx, req.ID)
	if err != nil {
		return domain.FormWithFields{}, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.DeactivateFormsByEvent(ctx, tx, form.OrgID, form.EventID); err != nil {
			return err
		}
		form.Active = true
		form.UpdatedAt = time.Now().UTC()
		return s.repo.UpdateForm(ctx, tx, form)
	})
	if err != nil {
		return domain.FormWithFields{}, err
	}
	return s.withFields(ctx, form)
}

func (s *Service) Archive(ctx context.Context, req domain.GetFormRequest) (domain.FormWithFields, error) {
	form, err := s.find(ctx, req.ID)
	if err != nil {
		return domain.FormWithFields{}, err
	}

	form.Active = false
	form.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateForm(ctx, s.db, form); err != nil {
		return domain.FormWithFields{}, err
	}
	return s.withFields(ctx, form)
}

func (s *Service) AddField(ctx context.Context, req domain.AddFieldRequest) (domain.FormField, error) {
	form, err := s.find(ctx, req.FormID)
	if err != nil {
		return domain.FormField{}, err
	}

	existing, err := s.repo.ListFields(ctx, s.db, form.OrgID, form.ID)
	if err != nil {
		return domain.FormField{}, err
	}

	field, err := s.buildField(form.OrgID, form.ID, req.Field, len(existing), time.Now().UTC())
	if err != nil {
		return domain.FormField{}, err
	}
	for _, other := range existing {
		if other.Key == field.Key {
			return domain.FormField{}, domain.ErrDuplicateFieldKey
		}
	}

	if err := s.repo.InsertField(ctx, s.db, &field); err != nil {
		return domain.FormField{}, err
	}
	return field, nil
}

func (s *Service) UpdateField(ctx context.Context, req domain.UpdateFieldRequest) (domain.FormField, error) {
	form, err := s.find(ctx, req.FormID)
	if err != nil {
		return domain.FormField{}, err
	}

	fieldID, err := snowflake.ParseString(strings.TrimSpace(req.FieldID))
	if err != nil {
		return domain.FormField{}, domain.ErrInvalidID
	}

	field, err := s.repo.FindFieldByID(ctx, s.db, form.OrgID, form.ID, fieldID)
	if err != nil {
		return domain.FormField{}, err
	}
	if field == nil {
		return domain.FormField{}, domain.ErrFieldNotFound
	}

	if req.Label != nil {
		label := strings.TrimSpace(*req.Label)
		if label == "" {
			return domain.FormField{}, domain.ErrInvalidTitle
		}
		field.Label = label
	}
	if req.Required != nil {
		field.Required = *req.Required
	}
	if req.Options != nil {
		options, err := encodeOptions(field.Type, *req.Options)
		if err != nil {
			return domain.FormField{}, err
		}
		field.Options = options
	}
	if req.HelpText != nil {
		field.HelpText = strings.TrimSpace(*req.HelpText)
	}

	field.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateField(ctx, s.db, field); err != nil {
		return domain.FormField{}, err
	}
	return *field, nil
}

func (s *Service) RemoveField(ctx context.Context, req domain.RemoveFieldRequest) error {
	form, err := s.find(ctx, req.FormID)
	if err != nil {
		return err
	}

	fieldID, err := snowflake.ParseString(strings.TrimSpace(req.FieldID))
	if err != nil {
		return domain.ErrInvalidID
	}

	field, err := s.repo.FindFieldByID(ctx, s.db, form.OrgID, form.ID, fieldID)
	if err != nil {
		return err
	}
	if field == nil {
		return domain.ErrFieldNotFound
	}

	return s.repo.DeleteField(ctx, s.db, form.OrgID, form.ID, fieldID)
}

// ReorderFields rewrites positions from the given ID order. The list must name
// every field of the form exactly once.
func (s *Service) ReorderFields(ctx context.Context, req domain.ReorderFieldsRequest) ([]domain.FormField, error) {
	form, err := s.find(ctx, req.FormID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.ListFields(ctx, s.db, form.OrgID, form.ID)
	if err != nil {
		return nil, err
	}
	if len(req.FieldIDs) != len(existing) {
		return nil, domain.ErrInvalidReorder
	}

	byID := make(map[snowflake.ID]bool, len(existing))
	for _, field := range existing {
		byID[field.ID] = true
	}

	ordered := make([]snowflake.ID, 0, len(req.FieldIDs))
	for _, raw := range req.FieldIDs {
		id, err := snowflake.ParseString(strings.TrimSpace(raw))
		if err != nil || !byID[id] {
			return nil, domain.ErrInvalidReorder
		}
		for _, prev := range ordered {
			if prev == id {
				return nil, domain.ErrInvalidReorder
			}
		}
		ordered = append(ordered, id)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for position, id := range ordered {
			if err := s.repo.UpdateFieldPosition(ctx, tx, form.OrgID, form.ID, id, position); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.repo.ListFields(ctx, s.db, form.OrgID, form.ID)
}

func (s *Service) buildField(orgID, formID snowflake.ID, input domain.FieldInput, position int, now time.Time) (domain.FormField, error) {
	key := strings.TrimSpace(input.Key)
	if !fieldKeyPattern.MatchString(key) {
		return domain.FormField{}, domain.ErrInvalidFieldKey
	}

	label := strings.TrimSpace(input.Label)
	if label == "" {
		return domain.FormField{}, domain.ErrInvalidTitle
	}

	if !input.Type.Valid() {
		return domain.FormField{}, domain.ErrInvalidFieldType
	}

	options, err := encodeOptions(input.Type, input.Options)
	if err != nil {
		return domain.FormField{}, err
	}

	return domain.FormField{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		FormID:    formID,
		Key:       key,
		Label:     label,
		Type:      input.Type,
		Required:  input.Required,
		Options:   options,
		HelpText:  strings.TrimSpace(input.HelpText),
		Position:  position,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *Service) withFields(ctx context.Context, form *domain.RegistrationForm) (domain.FormWithFields, error) {
	fields, err := s.repo.ListFields(ctx, s.db, form.OrgID, form.ID)
	if err != nil {
		return domain.FormWithFields{}, err
	}
	return domain.FormWithFields{RegistrationForm: *form, Fields: fields}, nil
}

func (s *Service) find(ctx context.Context, rawID string) (*domain.RegistrationForm, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	form, err := s.repo.FindFormByID(ctx, s.db, orgID, id)
	if err != nil {
		return nil, err
	}
	if form == nil {
		return nil, domain.ErrNotFound
	}
	return form, nil
}

func encodeOptions(fieldType domain.FieldType, options []string) (datatypes.JSON, error) {
	cleaned := make([]string, 0, len(options))
	for _, option := range options {
		if trimmed := strings.TrimSpace(option); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if fieldType.NeedsOptions() && len(cleaned) == 0 {
		return nil, domain.ErrOptionsRequired
	}
	if len(cleaned) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(cleaned)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
