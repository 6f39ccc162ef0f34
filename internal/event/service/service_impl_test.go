package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/eventra/internal/event/domain"
	"github.com/smallbiznis/eventra/internal/event/repository"
	"github.com/smallbiznis/eventra/internal/orgcontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupEventService(t *testing.T) (domain.Service, domain.Repository, *gorm.DB, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Event{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	repo := repository.Provide()
	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repo,
	})
	return svc, repo, db, node
}

func orgCtx(orgID snowflake.ID) context.Context {
	return orgcontext.WithOrgID(context.Background(), int64(orgID))
}

func TestCreateEventGeneratesUniqueSlug(t *testing.T) {
	svc, _, _, node := setupEventService(t)
	ctx := orgCtx(node.Generate())

	first, err := svc.Create(ctx, domain.CreateEventRequest{Title: "Spring Gala 2026"})
	require.NoError(t, err)
	assert.Equal(t, "spring-gala-2026", first.Slug)
	assert.Equal(t, domain.EventDraft, first.Status)

	second, err := svc.Create(ctx, domain.CreateEventRequest{Title: "Spring Gala 2026"})
	require.NoError(t, err)
	assert.Equal(t, "spring-gala-2026-2", second.Slug)
}

func TestCreateEventValidation(t *testing.T) {
	svc, _, _, node := setupEventService(t)
	ctx := orgCtx(node.Generate())

	_, err := svc.Create(ctx, domain.CreateEventRequest{Title: "   "})
	assert.ErrorIs(t, err, domain.ErrInvalidTitle)

	starts := time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)
	ends := starts.Add(-time.Hour)
	_, err = svc.Create(ctx, domain.CreateEventRequest{Title: "Workshop", StartsAt: &starts, EndsAt: &ends})
	assert.ErrorIs(t, err, domain.ErrInvalidSchedule)

	zero := int64(0)
	_, err = svc.Create(ctx, domain.CreateEventRequest{Title: "Workshop", MaxCapacity: &zero})
	assert.ErrorIs(t, err, domain.ErrInvalidCapacity)

	_, err = svc.Create(context.Background(), domain.CreateEventRequest{Title: "Workshop"})
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)
}

func TestPublishLifecycle(t *testing.T) {
	svc, _, _, node := setupEventService(t)
	ctx := orgCtx(node.Generate())

	created, err := svc.Create(ctx, domain.CreateEventRequest{Title: "Summit"})
	require.NoError(t, err)

	// No start date yet, not publishable.
	_, err = svc.Publish(ctx, domain.GetEventRequest{ID: created.ID.String()})
	assert.ErrorIs(t, err, domain.ErrNotPublishable)

	starts := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	_, err = svc.Update(ctx, domain.UpdateEventRequest{ID: created.ID.String(), StartsAt: &starts})
	require.NoError(t, err)

	published, err := svc.Publish(ctx, domain.GetEventRequest{ID: created.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, domain.EventPublished, published.Status)

	// Publishing twice is a no-op.
	again, err := svc.Publish(ctx, domain.GetEventRequest{ID: created.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, domain.EventPublished, again.Status)

	// Published events need force to archive.
	_, err = svc.Archive(ctx, domain.ArchiveEventRequest{ID: created.ID.String()})
	assert.ErrorIs(t, err, domain.ErrArchivePublished)

	archived, err := svc.Archive(ctx, domain.ArchiveEventRequest{ID: created.ID.String(), Force: true})
	require.NoError(t, err)
	assert.Equal(t, domain.EventArchived, archived.Status)

	// Archived events never return to published.
	_, err = svc.Publish(ctx, domain.GetEventRequest{ID: created.ID.String()})
	assert.ErrorIs(t, err, domain.ErrNotPublishable)
}

func TestGetPublishedBySlugHidesDrafts(t *testing.T) {
	svc, _, _, node := setupEventService(t)
	orgID := node.Generate()
	ctx := orgCtx(orgID)

	starts := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	created, err := svc.Create(ctx, domain.CreateEventRequest{Title: "Hack Night", StartsAt: &starts})
	require.NoError(t, err)

	_, err = svc.GetPublishedBySlug(context.Background(), orgID, "hack-night")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Publish(ctx, domain.GetEventRequest{ID: created.ID.String()})
	require.NoError(t, err)

	found, err := svc.GetPublishedBySlug(context.Background(), orgID, "hack-night")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	// Other organizations cannot see it.
	_, err = svc.GetPublishedBySlug(context.Background(), node.Generate(), "hack-night")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateRejectsCapacityBelowRegistered(t *testing.T) {
	svc, repo, db, node := setupEventService(t)
	orgID := node.Generate()
	ctx := orgCtx(orgID)

	starts := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	cap := int64(10)
	created, err := svc.Create(ctx, domain.CreateEventRequest{Title: "Bootcamp", StartsAt: &starts, MaxCapacity: &cap})
	require.NoError(t, err)
	_, err = svc.Publish(ctx, domain.GetEventRequest{ID: created.ID.String()})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		ok, err := repo.ReserveCapacity(ctx, db, orgID, created.ID, 1)
		require.NoError(t, err)
		require.True(t, ok)
	}

	two := int64(2)
	_, err = svc.Update(ctx, domain.UpdateEventRequest{ID: created.ID.String(), MaxCapacity: &two})
	assert.ErrorIs(t, err, domain.ErrInvalidCapacity)

	five := int64(5)
	updated, err := svc.Update(ctx, domain.UpdateEventRequest{ID: created.ID.String(), MaxCapacity: &five})
	require.NoError(t, err)
	assert.Equal(t, int64(5), *updated.MaxCapacity)
}

func TestReserveCapacityStopsAtLimit(t *testing.T) {
	svc, repo, db, node := setupEventService(t)
	orgID := node.Generate()
	ctx := orgCtx(orgID)

	starts := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	cap := int64(2)
	created, err := svc.Create(ctx, domain.CreateEventRequest{Title: "Dinner", StartsAt: &starts, MaxCapacity: &cap})
	require.NoError(t, err)

	// Draft events accept no reservations.
	ok, err := repo.ReserveCapacity(ctx, db, orgID, created.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.Publish(ctx, domain.GetEventRequest{ID: created.ID.String()})
	require.NoError(t, err)

	ok, err = repo.ReserveCapacity(ctx, db, orgID, created.ID, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ReserveCapacity(ctx, db, orgID, created.ID, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ReserveCapacity(ctx, db, orgID, created.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := svc.GetByID(ctx, domain.GetEventRequest{ID: created.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.RegisteredCount)
	assert.True(t, got.IsFull())

	require.NoError(t, repo.ReleaseCapacity(ctx, db, orgID, created.ID, 1))
	got, err = svc.GetByID(ctx, domain.GetEventRequest{ID: created.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.RegisteredCount)

	// Releasing more than reserved floors at zero.
	require.NoError(t, repo.ReleaseCapacity(ctx, db, orgID, created.ID, 5))
	got, err = svc.GetByID(ctx, domain.GetEventRequest{ID: created.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.RegisteredCount)
}

func TestListEventsFiltersByStatus(t *testing.T) {
	svc, _, _, node := setupEventService(t)
	ctx := orgCtx(node.Generate())

	starts := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	a, err := svc.Create(ctx, domain.CreateEventRequest{Title: "Alpha", StartsAt: &starts})
	require.NoError(t, err)
	_, err = svc.Create(ctx, domain.CreateEventRequest{Title: "Beta"})
	require.NoError(t, err)
	_, err = svc.Publish(ctx, domain.GetEventRequest{ID: a.ID.String()})
	require.NoError(t, err)

	resp, err := svc.List(ctx, domain.ListEventRequest{Status: "published"})
	require.NoError(t, err)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "Alpha", resp.Events[0].Title)

	resp, err = svc.List(ctx, domain.ListEventRequest{})
	require.NoError(t, err)
	assert.Len(t, resp.Events, 2)
}
