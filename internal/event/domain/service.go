package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventra/pkg/db/pagination"
)

type CreateEventRequest struct {
	ClientID    string
	Title       string
	Description string
	Location    string
	Timezone    string
	StartsAt    *time.Time
	EndsAt      *time.Time
	MaxCapacity *int64
}

type UpdateEventRequest struct {
	ID          string
	Title       *string
	Description *string
	Location    *string
	Timezone    *string
	StartsAt    *time.Time
	EndsAt      *time.Time
	MaxCapacity *int64
	ClientID    *string
}

type GetEventRequest struct {
	ID string
}

type ArchiveEventRequest struct {
	ID    string
	Force bool
}

type ListEventRequest struct {
	PageToken  string
	PageSize   int32
	Status     string
	ClientID   string
	Search     string
	StartsFrom *time.Time
	StartsTo   *time.Time
}

type ListEventFilter struct {
	Status     EventStatus
	ClientID   string
	Search     string
	StartsFrom *time.Time
	StartsTo   *time.Time
}

type ListEventResponse struct {
	pagination.PageInfo
	Events []Event `json:"events"`
}

type Service interface {
	Create(context.Context, CreateEventRequest) (Event, error)
	GetByID(context.Context, GetEventRequest) (Event, error)
	GetPublishedBySlug(ctx context.Context, orgID snowflake.ID, slug string) (Event, error)
	Update(context.Context, UpdateEventRequest) (Event, error)
	Publish(context.Context, GetEventRequest) (Event, error)
	Archive(context.Context, ArchiveEventRequest) (Event, error)
	List(context.Context, ListEventRequest) (ListEventResponse, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidTitle        = errors.New("invalid_title")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidClient       = errors.New("invalid_client")
	ErrInvalidSchedule     = errors.New("invalid_schedule")
	ErrInvalidCapacity     = errors.New("invalid_capacity")
	ErrNotFound            = errors.New("not_found")
	ErrNotPublishable      = errors.New("event_not_publishable")
	ErrArchivePublished    = errors.New("event_still_published")
	ErrCapacityExceeded    = errors.New("event_capacity_exceeded")
)
