package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/eventra/pkg/db/pagination"
)

type CreateClientRequest struct {
	Name         string
	ContactName  string
	ContactEmail string
	ContactPhone string
	Website      string
	Notes        string
}

type UpdateClientRequest struct {
	ID           string
	Name         *string
	ContactName  *string
	ContactEmail *string
	ContactPhone *string
	Website      *string
	Notes        *string
	Active       *bool
}

type GetClientRequest struct {
	ID string
}

type ListClientRequest struct {
	PageToken   string
	PageSize    int32
	Search      string
	Active      *bool
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

type ListClientFilter struct {
	Search      string
	Active      *bool
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

type ListClientResponse struct {
	pagination.PageInfo
	Clients []Client `json:"clients"`
}

type Service interface {
	Create(context.Context, CreateClientRequest) (Client, error)
	GetByID(context.Context, GetClientRequest) (Client, error)
	Update(context.Context, UpdateClientRequest) (Client, error)
	Archive(context.Context, GetClientRequest) (Client, error)
	List(context.Context, ListClientRequest) (ListClientResponse, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrInvalidID           = errors.New("invalid_id")
	ErrNotFound            = errors.New("not_found")
)
