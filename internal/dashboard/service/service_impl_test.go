package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	dashboard "github.com/smallbiznis/eventra/internal/dashboard/domain"
	eventdomain "github.com/smallbiznis/eventra/internal/event/domain"
	"github.com/smallbiznis/eventra/internal/orgcontext"
	"github.com/smallbiznis/eventra/internal/pricing/engine"
	registrationdomain "github.com/smallbiznis/eventra/internal/registration/domain"
	sponsorshipdomain "github.com/smallbiznis/eventra/internal/sponsorship/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type dashboardFixture struct {
	svc   dashboard.Service
	db    *gorm.DB
	node  *snowflake.Node
	orgID snowflake.ID
}

func setupDashboard(t *testing.T) dashboardFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&dashboard.EventStatRollup{},
		&eventdomain.Event{},
		&registrationdomain.Registration{},
		&registrationdomain.RegistrationAddOn{},
		&sponsorshipdomain.SponsorshipBatch{},
		&sponsorshipdomain.SponsorshipRecord{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return dashboardFixture{
		svc:   NewService(Params{DB: db, Log: zap.NewNop()}),
		db:    db,
		node:  node,
		orgID: node.Generate(),
	}
}

func (f dashboardFixture) ctx() context.Context {
	return orgcontext.WithOrgID(context.Background(), int64(f.orgID))
}

func (f dashboardFixture) createEvent(t *testing.T, orgID snowflake.ID, slug string, status eventdomain.EventStatus) eventdomain.Event {
	t.Helper()

	event := eventdomain.Event{
		ID:       f.node.Generate(),
		OrgID:    orgID,
		Title:    "Autumn Gala",
		Slug:     slug,
		Status:   status,
		Metadata: datatypes.JSONMap{},
	}
	require.NoError(t, f.db.Create(&event).Error)
	return event
}

func (f dashboardFixture) seedRollup(t *testing.T, row dashboard.EventStatRollup) {
	t.Helper()
	require.NoError(t, f.db.Create(&row).Error)
}

func (f dashboardFixture) addRegistration(t *testing.T, event eventdomain.Event, status registrationdomain.Status) registrationdomain.Registration {
	t.Helper()

	reg := registrationdomain.Registration{
		ID:               f.node.Generate(),
		OrgID:            event.OrgID,
		EventID:          event.ID,
		AttendeeName:     "Ada Lively",
		AttendeeEmail:    "ada@example.test",
		Status:           status,
		Currency:         "USD",
		ConfirmationCode: "CNF-" + f.node.Generate().String(),
	}
	require.NoError(t, f.db.Create(&reg).Error)
	return reg
}

func (f dashboardFixture) addAddOnLine(t *testing.T, reg registrationdomain.Registration, addOnID snowflake.ID, name string, quantity, unitPrice int64) {
	t.Helper()

	line := registrationdomain.RegistrationAddOn{
		ID:             f.node.Generate(),
		OrgID:          reg.OrgID,
		RegistrationID: reg.ID,
		EventID:        reg.EventID,
		AddOnID:        addOnID,
		Name:           name,
		Quantity:       quantity,
		UnitPrice:      unitPrice,
		Subtotal:       quantity * unitPrice,
	}
	require.NoError(t, f.db.Create(&line).Error)
}

func TestOverviewSumsRollups(t *testing.T) {
	f := setupDashboard(t)

	published := f.createEvent(t, f.orgID, "autumn-gala", eventdomain.EventPublished)
	draft := f.createEvent(t, f.orgID, "winter-ball", eventdomain.EventDraft)

	f.seedRollup(t, dashboard.EventStatRollup{
		OrgID: f.orgID, EventID: published.ID, Day: "2026-03-10",
		Registrations: 3, Confirmed: 2, Cancelled: 1,
		Revenue: 20000, SponsorshipApplied: 3000, AddOnUnits: 2,
	})
	f.seedRollup(t, dashboard.EventStatRollup{
		OrgID: f.orgID, EventID: published.ID, Day: "2026-03-11",
		Registrations: 2, Pending: 1, Waitlisted: 1, Revenue: 5000,
	})
	f.seedRollup(t, dashboard.EventStatRollup{
		OrgID: f.orgID, EventID: draft.ID, Day: "2026-03-10",
		Registrations: 4, Confirmed: 4,
		Revenue: 40000, SponsorshipApplied: 1000, AddOnUnits: 5,
	})

	// Another org's rows stay invisible.
	otherOrg := f.node.Generate()
	otherEvent := f.createEvent(t, otherOrg, "other-gala", eventdomain.EventPublished)
	f.seedRollup(t, dashboard.EventStatRollup{
		OrgID: otherOrg, EventID: otherEvent.ID, Day: "2026-03-10",
		Registrations: 50, Revenue: 900000,
	})

	overview, err := f.svc.Overview(f.ctx())
	require.NoError(t, err)

	assert.Equal(t, int64(2), overview.Events)
	assert.Equal(t, int64(1), overview.PublishedEvents)
	assert.Equal(t, int64(9), overview.Registrations)
	assert.Equal(t, int64(6), overview.Confirmed)
	assert.Equal(t, int64(1), overview.Pending)
	assert.Equal(t, int64(1), overview.Cancelled)
	assert.Equal(t, int64(1), overview.Waitlisted)
	assert.Equal(t, int64(65000), overview.Revenue)
	assert.Equal(t, int64(4000), overview.SponsorshipApplied)
	assert.Equal(t, int64(7), overview.AddOnUnits)
}

func TestOverviewRequiresOrganization(t *testing.T) {
	f := setupDashboard(t)

	_, err := f.svc.Overview(context.Background())
	assert.ErrorIs(t, err, dashboard.ErrInvalidOrganization)
}

func TestRegistrationSeries(t *testing.T) {
	f := setupDashboard(t)

	eventA := f.createEvent(t, f.orgID, "autumn-gala", eventdomain.EventPublished)
	eventB := f.createEvent(t, f.orgID, "winter-ball", eventdomain.EventPublished)

	today := time.Now().UTC()
	recent := today.AddDate(0, 0, -1)
	older := today.AddDate(0, 0, -2)
	ancient := today.AddDate(0, 0, -45)

	f.seedRollup(t, dashboard.EventStatRollup{
		OrgID: f.orgID, EventID: eventA.ID, Day: older.Format(dashboard.DayFormat),
		Registrations: 2, Confirmed: 2, Revenue: 10000,
	})
	f.seedRollup(t, dashboard.EventStatRollup{
		OrgID: f.orgID, EventID: eventA.ID, Day: recent.Format(dashboard.DayFormat),
		Registrations: 1, Confirmed: 1, Revenue: 6000, AddOnUnits: 3,
	})
	f.seedRollup(t, dashboard.EventStatRollup{
		OrgID: f.orgID, EventID: eventB.ID, Day: recent.Format(dashboard.DayFormat),
		Registrations: 4, Confirmed: 3, Cancelled: 1, Revenue: 20000,
	})
	f.seedRollup(t, dashboard.EventStatRollup{
		OrgID: f.orgID, EventID: eventA.ID, Day: ancient.Format(dashboard.DayFormat),
		Registrations: 9, Revenue: 90000,
	})

	points, err := f.svc.RegistrationSeries(f.ctx(), dashboard.SeriesRequest{})
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, older.Format(dashboard.DayFormat), points[0].Day)
	assert.Equal(t, int64(2), points[0].Registrations)
	assert.Equal(t, recent.Format(dashboard.DayFormat), points[1].Day)
	assert.Equal(t, int64(5), points[1].Registrations)
	assert.Equal(t, int64(4), points[1].Confirmed)
	assert.Equal(t, int64(1), points[1].Cancelled)
	assert.Equal(t, int64(26000), points[1].Revenue)
	assert.Equal(t, int64(3), points[1].AddOnUnits)

	narrowed, err := f.svc.RegistrationSeries(f.ctx(), dashboard.SeriesRequest{From: recent, To: today})
	require.NoError(t, err)
	require.Len(t, narrowed, 1)
	assert.Equal(t, recent.Format(dashboard.DayFormat), narrowed[0].Day)

	scoped, err := f.svc.RegistrationSeries(f.ctx(), dashboard.SeriesRequest{EventID: eventA.ID.String()})
	require.NoError(t, err)
	require.Len(t, scoped, 2)
	assert.Equal(t, int64(1), scoped[1].Registrations)

	_, err = f.svc.RegistrationSeries(f.ctx(), dashboard.SeriesRequest{EventID: "not-a-snowflake"})
	assert.ErrorIs(t, err, dashboard.ErrInvalidEvent)

	_, err = f.svc.RegistrationSeries(f.ctx(), dashboard.SeriesRequest{From: today, To: older})
	assert.ErrorIs(t, err, dashboard.ErrInvalidRange)
}

func TestTopAddOns(t *testing.T) {
	f := setupDashboard(t)
	event := f.createEvent(t, f.orgID, "autumn-gala", eventdomain.EventPublished)

	confirmedA := f.addRegistration(t, event, registrationdomain.StatusConfirmed)
	confirmedB := f.addRegistration(t, event, registrationdomain.StatusConfirmed)
	cancelled := f.addRegistration(t, event, registrationdomain.StatusCancelled)

	workshopID := f.node.Generate()
	dinnerID := f.node.Generate()
	tourID := f.node.Generate()

	f.addAddOnLine(t, confirmedA, workshopID, "Workshop Pass", 2, 3000)
	f.addAddOnLine(t, confirmedB, workshopID, "Workshop Pass", 3, 3000)
	f.addAddOnLine(t, confirmedA, dinnerID, "Gala Dinner", 1, 9000)
	f.addAddOnLine(t, cancelled, tourID, "City Tour", 9, 2000)

	stats, err := f.svc.TopAddOns(f.ctx(), 0)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, workshopID.String(), stats[0].AddOnID)
	assert.Equal(t, "Workshop Pass", stats[0].Name)
	assert.Equal(t, int64(5), stats[0].Units)
	assert.Equal(t, int64(15000), stats[0].Revenue)

	assert.Equal(t, dinnerID.String(), stats[1].AddOnID)
	assert.Equal(t, int64(1), stats[1].Units)

	capped, err := f.svc.TopAddOns(f.ctx(), 1)
	require.NoError(t, err)
	require.Len(t, capped, 1)
	assert.Equal(t, "Workshop Pass", capped[0].Name)
}

func TestSponsorshipUtilization(t *testing.T) {
	f := setupDashboard(t)
	event := f.createEvent(t, f.orgID, "autumn-gala", eventdomain.EventPublished)

	gold := sponsorshipdomain.SponsorshipBatch{
		ID:            f.node.Generate(),
		OrgID:         f.orgID,
		EventID:       event.ID,
		Name:          "Gold Sponsor",
		CodePrefix:    "GOLD",
		Quantity:      2,
		AmountPerCode: 10000,
		Currency:      "USD",
		Coverage:      engine.CoverageAll,
		CreatedAt:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, f.db.Create(&gold).Error)

	empty := sponsorshipdomain.SponsorshipBatch{
		ID:            f.node.Generate(),
		OrgID:         f.orgID,
		EventID:       event.ID,
		Name:          "Silver Sponsor",
		CodePrefix:    "SILVER",
		Quantity:      0,
		AmountPerCode: 5000,
		Currency:      "USD",
		Coverage:      engine.CoverageBaseOnly,
		CreatedAt:     time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, f.db.Create(&empty).Error)

	records := []sponsorshipdomain.SponsorshipRecord{
		{
			ID: f.node.Generate(), OrgID: f.orgID, BatchID: gold.ID, EventID: event.ID,
			Code: "GOLD0001", Status: engine.SponsorshipActive,
			TotalAmount: 10000, ConsumedAmount: 3000,
		},
		{
			ID: f.node.Generate(), OrgID: f.orgID, BatchID: gold.ID, EventID: event.ID,
			Code: "GOLD0002", Status: engine.SponsorshipActive,
			TotalAmount: 10000,
		},
	}
	require.NoError(t, f.db.Create(&records).Error)

	batches, err := f.svc.SponsorshipUtilization(f.ctx())
	require.NoError(t, err)
	require.Len(t, batches, 2)

	// Newest batch first.
	assert.Equal(t, "Silver Sponsor", batches[0].Name)
	assert.Equal(t, int64(0), batches[0].Codes)
	assert.Equal(t, int64(0), batches[0].TotalAmount)
	assert.Equal(t, 0.0, batches[0].Utilization)

	assert.Equal(t, "Gold Sponsor", batches[1].Name)
	assert.Equal(t, gold.ID.String(), batches[1].BatchID)
	assert.Equal(t, string(engine.CoverageAll), batches[1].Coverage)
	assert.Equal(t, int64(2), batches[1].Codes)
	assert.Equal(t, int64(1), batches[1].RedeemedCodes)
	assert.Equal(t, int64(20000), batches[1].TotalAmount)
	assert.Equal(t, int64(3000), batches[1].ConsumedAmount)
	assert.InDelta(t, 0.15, batches[1].Utilization, 1e-9)
}
