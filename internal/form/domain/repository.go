package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertForm(ctx context.Context, db *gorm.DB, form *RegistrationForm) error
	FindFormByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*RegistrationForm, error)
	FindActiveFormByEvent(ctx context.Context, db *gorm.DB, orgID, eventID snowflake.ID) (*RegistrationForm, error)
	ListForms(ctx context.Context, db *gorm.DB, orgID, eventID snowflake.ID, active *bool) ([]RegistrationForm, error)
	UpdateForm(ctx context.Context, db *gorm.DB, form *RegistrationForm) error

	// DeactivateFormsByEvent clears the active flag on every form of the event.
	DeactivateFormsByEvent(ctx context.Context, db *gorm.DB, orgID, eventID snowflake.ID) error

	InsertField(ctx context.Context, db *gorm.DB, field *FormField) error
	FindFieldByID(ctx context.Context, db *gorm.DB, orgID, formID, fieldID snowflake.ID) (*FormField, error)
	ListFields(ctx context.Context, db *gorm.DB, orgID, formID snowflake.ID) ([]FormField, error)
	UpdateField(ctx context.Context, db *gorm.DB, field *FormField) error
	DeleteField(ctx context.Context, db *gorm.DB, orgID, formID, fieldID snowflake.ID) error
	UpdateFieldPosition(ctx context.Context, db *gorm.DB, orgID, formID, fieldID snowflake.ID, position int) error
}
