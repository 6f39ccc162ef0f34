package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/eventra/internal/alert/domain"
	"github.com/smallbiznis/eventra/internal/alert/repository"
	eventdomain "github.com/smallbiznis/eventra/internal/event/domain"
	"github.com/smallbiznis/eventra/internal/orgcontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type alertFixture struct {
	svc   domain.Service
	db    *gorm.DB
	node  *snowflake.Node
	orgID snowflake.ID
}

func setupAlert(t *testing.T) alertFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.CapacityAlert{},
		&eventdomain.Event{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return alertFixture{
		svc:   NewService(Params{DB: db, Log: zap.NewNop(), GenID: node, Repo: repository.Provide()}),
		db:    db,
		node:  node,
		orgID: node.Generate(),
	}
}

func (f alertFixture) ctx() context.Context {
	return orgcontext.WithOrgID(context.Background(), int64(f.orgID))
}

func (f alertFixture) createEvent(t *testing.T, orgID snowflake.ID, status eventdomain.EventStatus, maxCapacity *int64, registered int64) eventdomain.Event {
	t.Helper()

	event := eventdomain.Event{
		ID:              f.node.Generate(),
		OrgID:           orgID,
		Title:           "Harbor Summit",
		Slug:            "harbor-summit-" + f.node.Generate().String(),
		Status:          status,
		MaxCapacity:     maxCapacity,
		RegisteredCount: registered,
		Metadata:        datatypes.JSONMap{},
	}
	require.NoError(t, f.db.Create(&event).Error)
	return event
}

func capOf(n int64) *int64 { return &n }

func TestFindCandidatesSelectsOverThresholdEvents(t *testing.T) {
	f := setupAlert(t)
	ctx := context.Background()

	nearFull := f.createEvent(t, f.orgID, eventdomain.EventPublished, capOf(10), 8)
	full := f.createEvent(t, f.orgID, eventdomain.EventPublished, capOf(10), 10)
	f.createEvent(t, f.orgID, eventdomain.EventPublished, capOf(10), 5)
	f.createEvent(t, f.orgID, eventdomain.EventDraft, capOf(10), 9)
	f.createEvent(t, f.orgID, eventdomain.EventPublished, nil, 5000)

	candidates, err := f.svc.FindCandidates(ctx, 80, 100)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, nearFull.ID, candidates[0].EventID)
	assert.Equal(t, full.ID, candidates[1].EventID)
	assert.Equal(t, int64(8), candidates[0].RegisteredCount)
	assert.Equal(t, int64(10), candidates[0].MaxCapacity)
	assert.Equal(t, "Harbor Summit", candidates[0].Title)
}

func TestFindCandidatesSkipsEventsWithActiveAlert(t *testing.T) {
	f := setupAlert(t)
	ctx := context.Background()
	now := time.Now().UTC()

	event := f.createEvent(t, f.orgID, eventdomain.EventPublished, capOf(10), 9)

	candidates, err := f.svc.FindCandidates(ctx, 80, 100)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	raised, err := f.svc.Raise(ctx, candidates[0], 80, now)
	require.NoError(t, err)
	assert.True(t, raised)

	candidates, err = f.svc.FindCandidates(ctx, 80, 100)
	require.NoError(t, err)
	assert.Empty(t, candidates)

	// A second pass racing to raise on the same event loses quietly.
	raised, err = f.svc.Raise(ctx, domain.Candidate{
		EventID:         event.ID,
		OrgID:           f.orgID,
		MaxCapacity:     10,
		RegisteredCount: 9,
	}, 80, now)
	require.NoError(t, err)
	assert.False(t, raised)

	var count int64
	require.NoError(t, f.db.Model(&domain.CapacityAlert{}).Where("event_id = ?", event.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestResolveRecoveredClosesDroppedEvents(t *testing.T) {
	f := setupAlert(t)
	ctx := context.Background()
	now := time.Now().UTC()

	recovered := f.createEvent(t, f.orgID, eventdomain.EventPublished, capOf(10), 9)
	stillHot := f.createEvent(t, f.orgID, eventdomain.EventPublished, capOf(10), 10)

	for _, event := range []eventdomain.Event{recovered, stillHot} {
		raised, err := f.svc.Raise(ctx, domain.Candidate{
			EventID:         event.ID,
			OrgID:           event.OrgID,
			MaxCapacity:     *event.MaxCapacity,
			RegisteredCount: event.RegisteredCount,
		}, 80, now)
		require.NoError(t, err)
		require.True(t, raised)
	}

	require.NoError(t, f.db.Exec(
		`UPDATE events SET registered_count = 4 WHERE id = ?`, recovered.ID,
	).Error)

	resolvedAt := now.Add(5 * time.Minute)
	changed, err := f.svc.ResolveRecovered(ctx, 80, resolvedAt)
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)

	var alert domain.CapacityAlert
	require.NoError(t, f.db.Where("event_id = ?", recovered.ID).First(&alert).Error)
	assert.Equal(t, domain.AlertResolved, alert.Status)
	require.NotNil(t, alert.ResolvedAt)

	require.NoError(t, f.db.Where("event_id = ?", stillHot.ID).First(&alert).Error)
	assert.Equal(t, domain.AlertActive, alert.Status)
	assert.Nil(t, alert.ResolvedAt)
}

func TestResolveRecoveredClosesArchivedEvents(t *testing.T) {
	f := setupAlert(t)
	ctx := context.Background()
	now := time.Now().UTC()

	event := f.createEvent(t, f.orgID, eventdomain.EventPublished, capOf(10), 10)
	raised, err := f.svc.Raise(ctx, domain.Candidate{
		EventID:         event.ID,
		OrgID:           event.OrgID,
		MaxCapacity:     10,
		RegisteredCount: 10,
	}, 80, now)
	require.NoError(t, err)
	require.True(t, raised)

	require.NoError(t, f.db.Exec(
		`UPDATE events SET status = ? WHERE id = ?`, eventdomain.EventArchived, event.ID,
	).Error)

	changed, err := f.svc.ResolveRecovered(ctx, 80, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)

	// A later surge on a republished event opens a fresh alert.
	require.NoError(t, f.db.Exec(
		`UPDATE events SET status = ? WHERE id = ?`, eventdomain.EventPublished, event.ID,
	).Error)
	candidates, err := f.svc.FindCandidates(ctx, 80, 100)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	raised, err = f.svc.Raise(ctx, candidates[0], 80, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.True(t, raised)
}

func TestListActiveScopesToOrganization(t *testing.T) {
	f := setupAlert(t)
	ctx := context.Background()
	now := time.Now().UTC()
	otherOrg := f.node.Generate()

	mine := f.createEvent(t, f.orgID, eventdomain.EventPublished, capOf(20), 19)
	theirs := f.createEvent(t, otherOrg, eventdomain.EventPublished, capOf(20), 20)

	for _, event := range []eventdomain.Event{mine, theirs} {
		raised, err := f.svc.Raise(ctx, domain.Candidate{
			EventID:         event.ID,
			OrgID:           event.OrgID,
			MaxCapacity:     *event.MaxCapacity,
			RegisteredCount: event.RegisteredCount,
		}, 80, now)
		require.NoError(t, err)
		require.True(t, raised)
	}

	items, err := f.svc.ListActive(f.ctx())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, mine.ID, items[0].EventID)
	assert.Equal(t, "Harbor Summit", items[0].EventTitle)
	assert.Equal(t, domain.AlertActive, items[0].Status)

	_, err = f.svc.ListActive(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)
}

func TestAlertThresholdValidation(t *testing.T) {
	f := setupAlert(t)
	ctx := context.Background()

	_, err := f.svc.FindCandidates(ctx, 0, 10)
	assert.ErrorIs(t, err, domain.ErrInvalidThreshold)

	_, err = f.svc.FindCandidates(ctx, 140, 10)
	assert.ErrorIs(t, err, domain.ErrInvalidThreshold)

	_, err = f.svc.Raise(ctx, domain.Candidate{}, -1, time.Now().UTC())
	assert.ErrorIs(t, err, domain.ErrInvalidThreshold)

	_, err = f.svc.ResolveRecovered(ctx, 0, time.Now().UTC())
	assert.ErrorIs(t, err, domain.ErrInvalidThreshold)
}
