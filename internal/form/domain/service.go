package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type CreateFormRequest struct {
	EventID     string
	Title       string
	Description string
	Fields      []FieldInput
}

type FieldInput struct {
	Key      string    `json:"key"`
	Label    string    `json:"label"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Options  []string  `json:"options,omitempty"`
	HelpText string    `json:"help_text,omitempty"`
}

type UpdateFormRequest struct {
	ID          string
	Title       *string
	Description *string
}

type GetFormRequest struct {
	ID string
}

type ListFormRequest struct {
	EventID string
	Active  *bool
}

type AddFieldRequest struct {
	FormID string
	Field  FieldInput
}

type UpdateFieldRequest struct {
	FormID   string
	FieldID  string
	Label    *string
	Required *bool
	Options  *[]string
	HelpText *string
}

type RemoveFieldRequest struct {
	FormID  string
	FieldID string
}

type ReorderFieldsRequest struct {
	FormID   string
	FieldIDs []string
}

// FormWithFields is the aggregate handed to callers; fields come back in
// position order.
type FormWithFields struct {
	RegistrationForm
	Fields []FormField `json:"fields"`
}

type Service interface {
	Create(context.Context, CreateFormRequest) (FormWithFields, error)
	GetByID(context.Context, GetFormRequest) (FormWithFields, error)
	GetActiveByEvent(ctx context.Context, orgID, eventID snowflake.ID) (FormWithFields, error)
	List(context.Context, ListFormRequest) ([]RegistrationForm, error)
	Update(context.Context, UpdateFormRequest) (FormWithFields, error)
	Activate(context.Context, GetFormRequest) (FormWithFields, error)
	Archive(context.Context, GetFormRequest) (FormWithFields, error)

	AddField(context.Context, AddFieldRequest) (FormField, error)
	UpdateField(context.Context, UpdateFieldRequest) (FormField, error)
	RemoveField(context.Context, RemoveFieldRequest) error
	ReorderFields(context.Context, ReorderFieldsRequest) ([]FormField, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidEvent        = errors.New("invalid_event")
	ErrInvalidTitle        = errors.New("invalid_title")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidFieldKey     = errors.New("invalid_field_key")
	ErrDuplicateFieldKey   = errors.New("duplicate_field_key")
	ErrInvalidFieldType    = errors.New("invalid_field_type")
	ErrOptionsRequired     = errors.New("options_required")
	ErrInvalidReorder      = errors.New("invalid_reorder")
	ErrNotFound            = errors.New("not_found")
	ErrFieldNotFound       = errors.New("field_not_found")
	ErrNoActiveForm        = errors.New("no_active_form")
)
