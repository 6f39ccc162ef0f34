package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	addondomain "github.com/smallbiznis/eventra/internal/addon/domain"
	addonrepository "github.com/smallbiznis/eventra/internal/addon/repository"
	addonservice "github.com/smallbiznis/eventra/internal/addon/service"
	"github.com/smallbiznis/eventra/internal/cache"
	"github.com/smallbiznis/eventra/internal/orgcontext"
	"github.com/smallbiznis/eventra/internal/pricing/domain"
	"github.com/smallbiznis/eventra/internal/pricing/engine"
	"github.com/smallbiznis/eventra/internal/pricing/repository"
	"github.com/smallbiznis/eventra/internal/reference"
	referencedomain "github.com/smallbiznis/eventra/internal/reference/domain"
	sponsorshipdomain "github.com/smallbiznis/eventra/internal/sponsorship/domain"
	sponsorshiprepository "github.com/smallbiznis/eventra/internal/sponsorship/repository"
	sponsorshipservice "github.com/smallbiznis/eventra/internal/sponsorship/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type pricingFixture struct {
	pricing      domain.Service
	addons       addondomain.Service
	sponsorships sponsorshipdomain.Service
	db           *gorm.DB
	node         *snowflake.Node
}

func setupPricingService(t *testing.T) pricingFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.EventPricing{},
		&domain.PricingRule{},
		&addondomain.AddOnItem{},
		&sponsorshipdomain.SponsorshipBatch{},
		&sponsorshipdomain.SponsorshipRecord{},
		&sponsorshipdomain.SponsorshipConsumption{},
		&referencedomain.Currency{},
	))
	require.NoError(t, db.Create(&referencedomain.Currency{Code: "USD", Name: "US Dollar", MinorUnit: 2, IsActive: true}).Error)
	require.NoError(t, db.Create(&referencedomain.Currency{Code: "EUR", Name: "Euro", MinorUnit: 2, IsActive: true}).Error)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zap.NewNop()
	snapshots := cache.NewSnapshotCache()

	addonRepo := addonrepository.Provide()
	addonSvc := addonservice.New(addonservice.Params{
		DB:        db,
		Log:       log,
		GenID:     node,
		Repo:      addonRepo,
		Snapshots: snapshots,
	})

	sponsorshipSvc := sponsorshipservice.New(sponsorshipservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Repo:  sponsorshiprepository.Provide(),
	})

	pricingSvc := New(Params{
		DB:           db,
		Log:          log,
		GenID:        node,
		Repo:         repository.Provide(),
		AddOns:       addonRepo,
		Sponsorships: sponsorshipSvc,
		Snapshots:    snapshots,
		Ref:          reference.NewRepository(db),
	})

	return pricingFixture{
		pricing:      pricingSvc,
		addons:       addonSvc,
		sponsorships: sponsorshipSvc,
		db:           db,
		node:         node,
	}
}

func orgCtx(orgID snowflake.ID) context.Context {
	return orgcontext.WithOrgID(context.Background(), int64(orgID))
}

func TestUpsertReplacesBasePrice(t *testing.T) {
	f := setupPricingService(t)
	ctx := orgCtx(f.node.Generate())
	eventID := f.node.Generate().String()

	created, err := f.pricing.Upsert(ctx, domain.UpsertPricingRequest{
		EventID:   eventID,
		BasePrice: 100000,
		Currency:  "usd",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(100000), created.BasePrice)
	assert.Equal(t, "USD", created.Currency)

	updated, err := f.pricing.Upsert(ctx, domain.UpsertPricingRequest{
		EventID:   eventID,
		BasePrice: 120000,
		Currency:  "EUR",
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, int64(120000), updated.BasePrice)
	assert.Equal(t, "EUR", updated.Currency)

	got, err := f.pricing.GetByEvent(ctx, domain.GetPricingRequest{EventID: eventID})
	require.NoError(t, err)
	assert.Equal(t, int64(120000), got.BasePrice)
	assert.Empty(t, got.Rules)

	_, err = f.pricing.Upsert(ctx, domain.UpsertPricingRequest{EventID: eventID, BasePrice: 1, Currency: "dollars"})
	assert.ErrorIs(t, err, domain.ErrInvalidCurrency)

	// Well-formed but not in the currency catalog.
	_, err = f.pricing.Upsert(ctx, domain.UpsertPricingRequest{EventID: eventID, BasePrice: 1, Currency: "ZZZ"})
	assert.ErrorIs(t, err, domain.ErrInvalidCurrency)

	_, err = f.pricing.Upsert(ctx, domain.UpsertPricingRequest{EventID: eventID, BasePrice: -1, Currency: "USD"})
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)
}

func TestRuleLifecycle(t *testing.T) {
	f := setupPricingService(t)
	ctx := orgCtx(f.node.Generate())
	eventID := f.node.Generate().String()

	_, err := f.pricing.AddRule(ctx, domain.CreateRuleRequest{EventID: eventID, Name: "Student", Price: 1})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.pricing.Upsert(ctx, domain.UpsertPricingRequest{EventID: eventID, BasePrice: 100000, Currency: "USD"})
	require.NoError(t, err)

	student, err := f.pricing.AddRule(ctx, domain.CreateRuleRequest{
		EventID:  eventID,
		Name:     "Student Discount",
		Price:    50000,
		Priority: 10,
		Conditions: []engine.Condition{
			{FieldID: "ticket_type", Operator: engine.OpEquals, Value: "student"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, student.Position)
	assert.True(t, student.Active)

	earlyBird, err := f.pricing.AddRule(ctx, domain.CreateRuleRequest{
		EventID:  eventID,
		Name:     "Early Bird",
		Price:    75000,
		Priority: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, earlyBird.Position)

	_, err = f.pricing.AddRule(ctx, domain.CreateRuleRequest{
		EventID: eventID,
		Name:    "Broken",
		Price:   1,
		Conditions: []engine.Condition{
			{FieldID: "ticket_type", Operator: "matches", Value: "x"},
		},
	})
	var verr *engine.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "unknown_operator", verr.Code)

	newPrice := int64(60000)
	inactive := false
	updated, err := f.pricing.UpdateRule(ctx, domain.UpdateRuleRequest{
		EventID: eventID,
		RuleID:  earlyBird.ID.String(),
		Price:   &newPrice,
		Active:  &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(60000), updated.Price)
	assert.False(t, updated.Active)

	reordered, err := f.pricing.ReorderRules(ctx, domain.ReorderRulesRequest{
		EventID: eventID,
		RuleIDs: []string{earlyBird.ID.String(), student.ID.String()},
	})
	require.NoError(t, err)
	require.Len(t, reordered, 2)
	assert.Equal(t, earlyBird.ID, reordered[0].ID)
	assert.Equal(t, student.ID, reordered[1].ID)

	_, err = f.pricing.ReorderRules(ctx, domain.ReorderRulesRequest{
		EventID: eventID,
		RuleIDs: []string{student.ID.String()},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidReorder)

	require.NoError(t, f.pricing.RemoveRule(ctx, domain.RuleRequest{EventID: eventID, RuleID: earlyBird.ID.String()}))
	got, err := f.pricing.GetByEvent(ctx, domain.GetPricingRequest{EventID: eventID})
	require.NoError(t, err)
	require.Len(t, got.Rules, 1)
	assert.Equal(t, student.ID, got.Rules[0].ID)

	err = f.pricing.RemoveRule(ctx, domain.RuleRequest{EventID: eventID, RuleID: earlyBird.ID.String()})
	assert.ErrorIs(t, err, domain.ErrRuleNotFound)
}

func TestPreviewComposesBreakdown(t *testing.T) {
	f := setupPricingService(t)
	orgID := f.node.Generate()
	ctx := orgCtx(orgID)
	eventID := f.node.Generate().String()

	_, err := f.pricing.Upsert(ctx, domain.UpsertPricingRequest{EventID: eventID, BasePrice: 100000, Currency: "USD"})
	require.NoError(t, err)

	student, err := f.pricing.AddRule(ctx, domain.CreateRuleRequest{
		EventID:  eventID,
		Name:     "Student Discount",
		Price:    50000,
		Priority: 10,
		Conditions: []engine.Condition{
			{FieldID: "ticket_type", Operator: engine.OpEquals, Value: "student"},
		},
	})
	require.NoError(t, err)

	_, err = f.pricing.AddRule(ctx, domain.CreateRuleRequest{
		EventID:  eventID,
		Name:     "Early Bird",
		Price:    75000,
		Priority: 5,
	})
	require.NoError(t, err)

	workshop, err := f.addons.Create(ctx, addondomain.CreateAddOnRequest{
		EventID:   eventID,
		Name:      "Workshop Pass",
		UnitPrice: 25000,
	})
	require.NoError(t, err)

	_, codes, err := f.sponsorships.CreateBatch(ctx, sponsorshipdomain.CreateBatchRequest{
		EventID:       eventID,
		Name:          "Gold Sponsors",
		CodePrefix:    "GOLD",
		Quantity:      1,
		AmountPerCode: 60000,
	})
	require.NoError(t, err)
	code := codes[0].Code

	breakdown, err := f.pricing.Preview(ctx, domain.PreviewRequest{
		EventID:  eventID,
		FormData: map[string]any{"ticket_type": "student"},
		SelectedAddOns: []engine.Selection{
			{ID: workshop.ID.String(), Quantity: 2},
		},
		SponsorshipCodes: []string{code},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(100000), breakdown.BasePrice)
	require.Len(t, breakdown.AppliedRules, 1)
	assert.Equal(t, student.ID.String(), breakdown.AppliedRules[0].RuleID)
	assert.Equal(t, int64(-50000), breakdown.AppliedRules[0].Effect)
	assert.Equal(t, int64(50000), breakdown.CalculatedBasePrice)
	require.Len(t, breakdown.AddOnItems, 1)
	assert.Equal(t, int64(50000), breakdown.AddOnTotal)
	assert.Equal(t, int64(100000), breakdown.Subtotal)
	require.Len(t, breakdown.Sponsorships, 1)
	assert.True(t, breakdown.Sponsorships[0].Valid)
	assert.Equal(t, int64(60000), breakdown.SponsorshipTotal)
	assert.Equal(t, int64(40000), breakdown.Total)
	assert.Equal(t, "USD", breakdown.Currency)

	// No student answer: the unconditional early bird rule wins instead.
	breakdown, err = f.pricing.Preview(ctx, domain.PreviewRequest{
		EventID:  eventID,
		FormData: map[string]any{"ticket_type": "regular"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(75000), breakdown.CalculatedBasePrice)
	assert.Equal(t, int64(75000), breakdown.Total)

	// Unknown codes degrade to invalid zero lines, never errors.
	breakdown, err = f.pricing.Preview(ctx, domain.PreviewRequest{
		EventID:          eventID,
		FormData:         map[string]any{"ticket_type": "regular"},
		SponsorshipCodes: []string{"GOLD-NOSUCH99"},
	})
	require.NoError(t, err)
	require.Len(t, breakdown.Sponsorships, 1)
	assert.False(t, breakdown.Sponsorships[0].Valid)
	assert.Zero(t, breakdown.SponsorshipTotal)
	assert.Equal(t, int64(75000), breakdown.Total)
}

func TestPreviewWithoutPricingIsNotFound(t *testing.T) {
	f := setupPricingService(t)
	ctx := orgCtx(f.node.Generate())

	_, err := f.pricing.Preview(ctx, domain.PreviewRequest{EventID: f.node.Generate().String()})
	var nf *engine.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "pricing", nf.Resource)
}

func TestPreviewReportsAddOnProblems(t *testing.T) {
	f := setupPricingService(t)
	ctx := orgCtx(f.node.Generate())
	eventID := f.node.Generate().String()

	_, err := f.pricing.Upsert(ctx, domain.UpsertPricingRequest{EventID: eventID, BasePrice: 10000, Currency: "USD"})
	require.NoError(t, err)

	capacity := int64(1)
	limited, err := f.addons.Create(ctx, addondomain.CreateAddOnRequest{
		EventID:     eventID,
		Name:        "VIP Dinner",
		UnitPrice:   90000,
		MaxCapacity: &capacity,
	})
	require.NoError(t, err)

	_, err = f.pricing.Preview(ctx, domain.PreviewRequest{
		EventID:        eventID,
		SelectedAddOns: []engine.Selection{{ID: limited.ID.String(), Quantity: 2}},
	})
	var capErr *engine.CapacityExceededError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, limited.ID.String(), capErr.AddOnID)

	_, err = f.pricing.Preview(ctx, domain.PreviewRequest{
		EventID:        eventID,
		SelectedAddOns: []engine.Selection{{ID: f.node.Generate().String(), Quantity: 1}},
	})
	var nf *engine.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "add_on", nf.Resource)
}

func TestSnapshotInvalidationOnWrites(t *testing.T) {
	f := setupPricingService(t)
	ctx := orgCtx(f.node.Generate())
	eventID := f.node.Generate().String()

	_, err := f.pricing.Upsert(ctx, domain.UpsertPricingRequest{EventID: eventID, BasePrice: 10000, Currency: "USD"})
	require.NoError(t, err)

	breakdown, err := f.pricing.Preview(ctx, domain.PreviewRequest{EventID: eventID})
	require.NoError(t, err)
	assert.Equal(t, int64(10000), breakdown.Total)

	// A rule added after the snapshot was cached must show up immediately.
	_, err = f.pricing.AddRule(ctx, domain.CreateRuleRequest{EventID: eventID, Name: "Flash Sale", Price: 5000})
	require.NoError(t, err)

	breakdown, err = f.pricing.Preview(ctx, domain.PreviewRequest{EventID: eventID})
	require.NoError(t, err)
	assert.Equal(t, int64(5000), breakdown.Total)

	// Same for add-on writes, which invalidate through their own service.
	pass, err := f.addons.Create(ctx, addondomain.CreateAddOnRequest{EventID: eventID, Name: "Parking", UnitPrice: 2000})
	require.NoError(t, err)

	breakdown, err = f.pricing.Preview(ctx, domain.PreviewRequest{
		EventID:        eventID,
		SelectedAddOns: []engine.Selection{{ID: pass.ID.String(), Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7000), breakdown.Total)

	_, err = f.addons.Archive(ctx, addondomain.GetAddOnRequest{ID: pass.ID.String()})
	require.NoError(t, err)

	_, err = f.pricing.Preview(ctx, domain.PreviewRequest{
		EventID:        eventID,
		SelectedAddOns: []engine.Selection{{ID: pass.ID.String(), Quantity: 1}},
	})
	var verr *engine.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "add_on_inactive", verr.Code)
}

func TestTieBreakKeepsFirstDeclaredRule(t *testing.T) {
	f := setupPricingService(t)
	ctx := orgCtx(f.node.Generate())
	eventID := f.node.Generate().String()

	_, err := f.pricing.Upsert(ctx, domain.UpsertPricingRequest{EventID: eventID, BasePrice: 100000, Currency: "USD"})
	require.NoError(t, err)

	first, err := f.pricing.AddRule(ctx, domain.CreateRuleRequest{EventID: eventID, Name: "First", Price: 80000, Priority: 5})
	require.NoError(t, err)
	second, err := f.pricing.AddRule(ctx, domain.CreateRuleRequest{EventID: eventID, Name: "Second", Price: 70000, Priority: 5})
	require.NoError(t, err)

	breakdown, err := f.pricing.Preview(ctx, domain.PreviewRequest{EventID: eventID})
	require.NoError(t, err)
	require.Len(t, breakdown.AppliedRules, 1)
	assert.Equal(t, first.ID.String(), breakdown.AppliedRules[0].RuleID)

	// Reordering changes declaration order and therefore the tie winner.
	_, err = f.pricing.ReorderRules(ctx, domain.ReorderRulesRequest{
		EventID: eventID,
		RuleIDs: []string{second.ID.String(), first.ID.String()},
	})
	require.NoError(t, err)

	breakdown, err = f.pricing.Preview(ctx, domain.PreviewRequest{EventID: eventID})
	require.NoError(t, err)
	require.Len(t, breakdown.AppliedRules, 1)
	assert.Equal(t, second.ID.String(), breakdown.AppliedRules[0].RuleID)
}
