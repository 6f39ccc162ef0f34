package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/eventra/internal/addon/domain"
	"github.com/smallbiznis/eventra/internal/addon/repository"
	"github.com/smallbiznis/eventra/internal/cache"
	"github.com/smallbiznis/eventra/internal/orgcontext"
	"github.com/smallbiznis/eventra/internal/pricing/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupAddOnService(t *testing.T) (domain.Service, domain.Repository, *gorm.DB, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.AddOnItem{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	repo := repository.Provide()
	svc := New(Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Repo:      repo,
		Snapshots: cache.NewSnapshotCache(),
	})
	return svc, repo, db, node
}

func TestCreateAddOnValidatesConditions(t *testing.T) {
	svc, _, _, node := setupAddOnService(t)
	ctx := orgcontext.WithOrgID(context.Background(), int64(node.Generate()))
	eventID := node.Generate().String()

	_, err := svc.Create(ctx, domain.CreateAddOnRequest{
		EventID:   eventID,
		Name:      "Workshop",
		UnitPrice: 5000,
		Conditions: []engine.Condition{
			{FieldID: "ticket_type", Operator: "matches", Value: "vip"},
		},
	})
	var verr *engine.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "unknown_operator", verr.Code)

	_, err = svc.Create(ctx, domain.CreateAddOnRequest{
		EventID:   eventID,
		Name:      "Workshop",
		UnitPrice: 5000,
		Conditions: []engine.Condition{
			{FieldID: "ticket_type", Operator: engine.OpIn, Value: "vip"},
		},
	})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "in_requires_array", verr.Code)

	created, err := svc.Create(ctx, domain.CreateAddOnRequest{
		EventID:   eventID,
		Name:      "Workshop",
		UnitPrice: 5000,
		Conditions: []engine.Condition{
			{FieldID: "ticket_type", Operator: engine.OpEquals, Value: "vip"},
		},
		ConditionLogic: "or",
	})
	require.NoError(t, err)
	assert.Equal(t, engine.LogicOr, created.ConditionLogic)
	require.Len(t, created.ConditionValues(), 1)
	assert.Equal(t, "ticket_type", created.ConditionValues()[0].FieldID)
}

func TestCreateAddOnValidation(t *testing.T) {
	svc, _, _, node := setupAddOnService(t)
	ctx := orgcontext.WithOrgID(context.Background(), int64(node.Generate()))
	eventID := node.Generate().String()

	_, err := svc.Create(ctx, domain.CreateAddOnRequest{EventID: eventID, Name: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.Create(ctx, domain.CreateAddOnRequest{EventID: eventID, Name: "Lunch", UnitPrice: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)

	_, err = svc.Create(ctx, domain.CreateAddOnRequest{EventID: eventID, Name: "Lunch", Currency: "EURO"})
	assert.ErrorIs(t, err, domain.ErrInvalidCurrency)

	zero := int64(0)
	_, err = svc.Create(ctx, domain.CreateAddOnRequest{EventID: eventID, Name: "Lunch", MaxCapacity: &zero})
	assert.ErrorIs(t, err, domain.ErrInvalidCapacity)

	// Free add-ons are allowed.
	created, err := svc.Create(ctx, domain.CreateAddOnRequest{EventID: eventID, Name: "Lunch"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), created.UnitPrice)
	assert.True(t, created.Active)
}

func TestListAssignsPositions(t *testing.T) {
	svc, _, _, node := setupAddOnService(t)
	ctx := orgcontext.WithOrgID(context.Background(), int64(node.Generate()))
	eventID := node.Generate().String()

	for _, name := range []string{"Workshop", "Dinner", "Parking"} {
		_, err := svc.Create(ctx, domain.CreateAddOnRequest{EventID: eventID, Name: name, UnitPrice: 1000})
		require.NoError(t, err)
	}

	items, err := svc.List(ctx, domain.ListAddOnRequest{EventID: eventID})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "Workshop", items[0].Name)
	assert.Equal(t, "Dinner", items[1].Name)
	assert.Equal(t, "Parking", items[2].Name)
	assert.Equal(t, 2, items[2].Position)
}

func TestAddOnCapacityLifecycle(t *testing.T) {
	svc, repo, db, node := setupAddOnService(t)
	orgID := node.Generate()
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))
	eventID := node.Generate().String()

	cap := int64(2)
	created, err := svc.Create(ctx, domain.CreateAddOnRequest{
		EventID:     eventID,
		Name:        "Dinner",
		UnitPrice:   8000,
		MaxCapacity: &cap,
	})
	require.NoError(t, err)

	ok, err := repo.ReserveCapacity(ctx, db, orgID, created.ID, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	// Full now.
	ok, err = repo.ReserveCapacity(ctx, db, orgID, created.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := svc.GetByID(ctx, domain.GetAddOnRequest{ID: created.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Remaining())

	// Lowering capacity below what is already sold is rejected.
	one := int64(1)
	_, err = svc.Update(ctx, domain.UpdateAddOnRequest{ID: created.ID.String(), MaxCapacity: &one})
	assert.ErrorIs(t, err, domain.ErrInvalidCapacity)

	require.NoError(t, repo.ReleaseCapacity(ctx, db, orgID, created.ID, 1))
	got, err = svc.GetByID(ctx, domain.GetAddOnRequest{ID: created.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Remaining())

	// Inactive items accept no reservations.
	archived, err := svc.Archive(ctx, domain.GetAddOnRequest{ID: created.ID.String()})
	require.NoError(t, err)
	assert.False(t, archived.Active)

	ok, err = repo.ReserveCapacity(ctx, db, orgID, created.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}
