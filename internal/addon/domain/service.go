package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/eventra/internal/pricing/engine"
)

type CreateAddOnRequest struct {
	EventID        string             `json:"event_id"`
	Name           string             `json:"name"`
	Description    string             `json:"description,omitempty"`
	UnitPrice      int64              `json:"unit_price"`
	Currency       string             `json:"currency,omitempty"`
	MaxCapacity    *int64             `json:"max_capacity,omitempty"`
	Conditions     []engine.Condition `json:"conditions,omitempty"`
	ConditionLogic string             `json:"condition_logic,omitempty"`
}

type UpdateAddOnRequest struct {
	ID             string              `json:"id"`
	Name           *string             `json:"name,omitempty"`
	Description    *string             `json:"description,omitempty"`
	UnitPrice      *int64              `json:"unit_price,omitempty"`
	Currency       *string             `json:"currency,omitempty"`
	MaxCapacity    *int64              `json:"max_capacity,omitempty"`
	Conditions     *[]engine.Condition `json:"conditions,omitempty"`
	ConditionLogic *string             `json:"condition_logic,omitempty"`
	Active         *bool               `json:"active,omitempty"`
}

type GetAddOnRequest struct {
	ID string
}

type ListAddOnRequest struct {
	EventID string
	Active  *bool
}

type Service interface {
	Create(context.Context, CreateAddOnRequest) (AddOnItem, error)
	GetByID(context.Context, GetAddOnRequest) (AddOnItem, error)
	Update(context.Context, UpdateAddOnRequest) (AddOnItem, error)
	Archive(context.Context, GetAddOnRequest) (AddOnItem, error)
	List(context.Context, ListAddOnRequest) ([]AddOnItem, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidEvent        = errors.New("invalid_event")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidPrice        = errors.New("invalid_unit_price")
	ErrInvalidCurrency     = errors.New("invalid_currency")
	ErrInvalidCapacity     = errors.New("invalid_capacity")
	ErrInvalidLogic        = errors.New("invalid_condition_logic")
	ErrInvalidID           = errors.New("invalid_id")
	ErrNotFound            = errors.New("not_found")
)
