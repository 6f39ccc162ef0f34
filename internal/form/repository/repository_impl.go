package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventra/internal/form/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertForm(ctx context.Context, db *gorm.DB, form *domain.RegistrationForm) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO registration_forms (id, org_id, event_id, title, description, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		form.ID,
		form.OrgID,
		form.EventID,
		form.Title,
		form.Description,
		form.Active,
		form.CreatedAt,
		form.UpdatedAt,
	).Error
}

func (r *repo) FindFormByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.RegistrationForm, error) {
	var form domain.RegistrationForm
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, event_id, title, description, active, created_at, updated_at
		 FROM registration_forms WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&form).Error
	if err != nil {
		return nil, err
	}
	if form.ID == 0 {
		return nil, nil
	}
	return &form, nil
}

func (r *repo) FindActiveFormByEvent(ctx context.Context, db *gorm.DB, orgID, eventID snowflake.ID) (*domain.RegistrationForm, error) {
	var form domain.RegistrationForm
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, event_id, title, description, active, created_at, updated_at
		 FROM registration_forms WHERE org_id = ? AND event_id = ? AND active = ?`,
		orgID,
		eventID,
		true,
	).Scan(&form).Error
	if err != nil {
		return nil, err
	}
	if form.ID == 0 {
		return nil, nil
	}
	return &form, nil
}

func (r *repo) ListForms(ctx context.Context, db *gorm.DB, orgID, eventID snowflake.ID, active *bool) ([]domain.RegistrationForm, error) {
	var forms []domain.RegistrationForm
	stmt := db.WithContext(ctx).
		Model(&domain.RegistrationForm{}).
		Where("org_id = ?", orgID)
	if eventID != 0 {
		stmt = stmt.Where("event_id = ?", eventID)
	}
	if active != nil {
		stmt = stmt.Where("active = ?", *active)
	}
	if err := stmt.Order("created_at desc, id desc").Find(&forms).Error; err != nil {
		return nil, err
	}
	return forms, nil
}

func (r *repo) UpdateForm(ctx context.Context, db *gorm.DB, form *domain.RegistrationForm) error {
	return db.WithContext(ctx).Exec(
		`UPDATE registration_forms
		 SET title = ?, description = ?, active = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		form.Title,
		form.Description,
		form.Active,
		form.UpdatedAt,
		form.OrgID,
		form.ID,
	).Error
}

func (r *repo) DeactivateFormsByEvent(ctx context.Context, db *gorm.DB, orgID, eventID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE registration_forms
		 SET active = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE org_id = ? AND event_id = ? AND active = ?`,
		false,
		orgID,
		eventID,
		true,
	).Error
}

func (r *repo) InsertField(ctx context.Context, db *gorm.DB, field *domain.FormField) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO form_fields (id, org_id, form_id, key, label, field_type, required, options, help_text, position, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		field.ID,
		field.OrgID,
		field.FormID,
		field.Key,
		field.Label,
		field.Type,
		field.Required,
		field.Options,
		field.HelpText,
		field.Position,
		field.CreatedAt,
		field.UpdatedAt,
	).Error
}

func (r *repo) FindFieldByID(ctx context.Context, db *gorm.DB, orgID, formID, fieldID snowflake.ID) (*domain.FormField, error) {
	var field domain.FormField
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, form_id, key, label, field_type, required, options, help_text, position, created_at, updated_at
		 FROM form_fields WHERE org_id = ? AND form_id = ? AND id = ?`,
		orgID,
		formID,
		fieldID,
	).Scan(&field).Error
	if err != nil {
		return nil, err
	}
	if field.ID == 0 {
		return nil, nil
	}
	return &field, nil
}

func (r *repo) ListFields(ctx context.Context, db *gorm.DB, orgID, formID snowflake.ID) ([]domain.FormField, error) {
	var fields []domain.FormField
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, form_id, key, label, field_type, required, options, help_text, position, created_at, updated_at
		 FROM form_fields WHERE org_id = ? AND form_id = ?
		 ORDER BY position ASC, id ASC`,
		orgID,
		formID,
	).Scan(&fields).Error
	if err != nil {
		return nil, err
	}
	return fields, nil
}

func (r *repo) UpdateField(ctx context.Context, db *gorm.DB, field *domain.FormField) error {
	return db.WithContext(ctx).Exec(
		`UPDATE form_fields
		 SET label = ?, required = ?, options = ?, help_text = ?, position = ?, updated_at = ?
		 WHERE org_id = ? AND form_id = ? AND id = ?`,
		field.Label,
		field.Required,
		field.Options,
		field.HelpText,
		field.Position,
		field.UpdatedAt,
		field.OrgID,
		field.FormID,
		field.ID,
	).Error
}

func (r *repo) DeleteField(ctx context.Context, db *gorm.DB, orgID, formID, fieldID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM form_fields WHERE org_id = ? AND form_id = ? AND id = ?`,
		orgID,
		formID,
		fieldID,
	).Error
}

func (r *repo) UpdateFieldPosition(ctx context.Context, db *gorm.DB, orgID, formID, fieldID snowflake.ID, position int) error {
	return db.WithContext(ctx).Exec(
		`UPDATE form_fields
		 SET position = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE org_id = ? AND form_id = ? AND id = ?`,
		position,
		orgID,
		formID,
		fieldID,
	).Error
}
