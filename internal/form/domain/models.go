package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type FieldType string

const (
	FieldText        FieldType = "TEXT"
	FieldEmail       FieldType = "EMAIL"
	FieldNumber      FieldType = "NUMBER"
	FieldSelect      FieldType = "SELECT"
	FieldMultiSelect FieldType = "MULTISELECT"
	FieldCheckbox    FieldType = "CHECKBOX"
	FieldDate        FieldType = "DATE"
)

func (t FieldType) Valid() bool {
	switch t {
	case FieldText, FieldEmail, FieldNumber, FieldSelect, FieldMultiSelect, FieldCheckbox, FieldDate:
		return true
	}
	return false
}

// NeedsOptions reports whether the type is only meaningful with a choice list.
func (t FieldType) NeedsOptions() bool {
	return t == FieldSelect || t == FieldMultiSelect
}

// RegistrationForm collects attendee answers for one event. At most one form
// per event is active; activation demotes the previous one.
type RegistrationForm struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID `gorm:"not null;index" json:"organization_id"`
	EventID     snowflake.ID `gorm:"not null;index" json:"event_id"`
	Title       string       `gorm:"not null" json:"title"`
	Description string       `gorm:"type:text" json:"description,omitempty"`
	Active      bool         `gorm:"not null;default:false" json:"active"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (RegistrationForm) TableName() string { return "registration_forms" }

type FormField struct {
	ID        snowflake.ID   `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID   `gorm:"not null;index" json:"organization_id"`
	FormID    snowflake.ID   `gorm:"not null;index:ux_form_fields_form_key,priority:1" json:"form_id"`
	Key       string         `gorm:"not null;index:ux_form_fields_form_key,priority:2" json:"key"`
	Label     string         `gorm:"not null" json:"label"`
	Type      FieldType      `gorm:"column:field_type;not null" json:"type"`
	Required  bool           `gorm:"not null;default:false" json:"required"`
	Options   datatypes.JSON `gorm:"type:jsonb" json:"options,omitempty"`
	HelpText  string         `gorm:"type:text" json:"help_text,omitempty"`
	Position  int            `gorm:"not null;default:0" json:"position"`
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (FormField) TableName() string { return "form_fields" }

// OptionValues decodes the stored option list. A missing or malformed payload
// yields an empty list.
func (f FormField) OptionValues() []string {
	if len(f.Options) == 0 {
		return nil
	}
	var options []string
	if err := json.Unmarshal(f.Options, &options); err != nil {
		return nil
	}
	return options
}
