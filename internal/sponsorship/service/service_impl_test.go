package service

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/golang/mock/gomock"
	"github.com/smallbiznis/eventra/internal/orgcontext"
	"github.com/smallbiznis/eventra/internal/pricing/engine"
	"github.com/smallbiznis/eventra/internal/sponsorship/domain"
	"github.com/smallbiznis/eventra/internal/sponsorship/mocks"
	"github.com/smallbiznis/eventra/internal/sponsorship/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupSponsorshipService(t *testing.T) (domain.Service, domain.Repository, *gorm.DB, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.SponsorshipBatch{},
		&domain.SponsorshipRecord{},
		&domain.SponsorshipConsumption{},
	))

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

func issueBatch(t *testing.T, ctx context.Context, svc domain.Service, node *snowflake.Node, req domain.CreateBatchRequest) (domain.SponsorshipBatch, []domain.SponsorshipRecord) {
	t.Helper()
	if req.EventID == "" {
		req.EventID = node.Generate().String()
	}
	if req.Name == "" {
		req.Name = "Gala Sponsors"
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.AmountPerCode == 0 {
		req.AmountPerCode = 100000
	}
	batch, records, err := svc.CreateBatch(ctx, req)
	require.NoError(t, err)
	return batch, records
}

func TestCreateBatchGeneratesUniqueCodes(t *testing.T) {
	svc, _, _, node := setupSponsorshipService(t)
	ctx := orgCtx(node.Generate())

	batch, records, err := svc.CreateBatch(ctx, domain.CreateBatchRequest{
		EventID:       node.Generate().String(),
		Name:          "Gala Sponsors",
		CodePrefix:    "gala",
		Quantity:      25,
		AmountPerCode: 250000,
		Currency:      "usd",
	})
	require.NoError(t, err)
	assert.Equal(t, "GALA", batch.CodePrefix)
	assert.Equal(t, "USD", batch.Currency)
	assert.Equal(t, engine.CoverageAll, batch.Coverage)
	require.Len(t, records, 25)

	codePattern := regexp.MustCompile(`^GALA-[A-Z2-9]{8}$`)
	seen := make(map[string]bool, len(records))
	for _, record := range records {
		assert.Regexp(t, codePattern, record.Code)
		assert.False(t, seen[record.Code], "duplicate code %s", record.Code)
		seen[record.Code] = true
		assert.Equal(t, engine.SponsorshipPending, record.Status)
		assert.Equal(t, int64(250000), record.TotalAmount)
		assert.Zero(t, record.ConsumedAmount)
	}

	got, err := svc.GetBatch(ctx, domain.GetBatchRequest{ID: batch.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, int64(25), got.IssuedCount)
	assert.Zero(t, got.ConsumedCount)
	assert.Equal(t, int64(25*250000), got.TotalAmount)
}

func TestCreateBatchDerivesPrefixFromName(t *testing.T) {
	svc, _, _, node := setupSponsorshipService(t)
	ctx := orgCtx(node.Generate())

	batch, records := issueBatch(t, ctx, svc, node, domain.CreateBatchRequest{
		Name:     "Acme Corp 2026",
		Quantity: 2,
	})
	assert.Equal(t, "ACMECO", batch.CodePrefix)
	for _, record := range records {
		assert.Regexp(t, regexp.MustCompile(`^ACMECO-`), record.Code)
	}
}

func TestCreateBatchValidation(t *testing.T) {
	svc, _, _, node := setupSponsorshipService(t)
	ctx := orgCtx(node.Generate())
	eventID := node.Generate().String()

	_, _, err := svc.CreateBatch(context.Background(), domain.CreateBatchRequest{EventID: eventID, Name: "x", Quantity: 1, AmountPerCode: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)

	_, _, err = svc.CreateBatch(ctx, domain.CreateBatchRequest{EventID: "not-a-snowflake", Name: "x", Quantity: 1, AmountPerCode: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)

	_, _, err = svc.CreateBatch(ctx, domain.CreateBatchRequest{EventID: eventID, Quantity: 1, AmountPerCode: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, _, err = svc.CreateBatch(ctx, domain.CreateBatchRequest{EventID: eventID, Name: "x", Quantity: 0, AmountPerCode: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, _, err = svc.CreateBatch(ctx, domain.CreateBatchRequest{EventID: eventID, Name: "x", Quantity: 1, AmountPerCode: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, _, err = svc.CreateBatch(ctx, domain.CreateBatchRequest{EventID: eventID, Name: "x", Quantity: 1, AmountPerCode: 1, Coverage: "SOME"})
	assert.ErrorIs(t, err, domain.ErrInvalidCoverage)

	// Covered add-on lists only make sense for ADDONS coverage.
	_, _, err = svc.CreateBatch(ctx, domain.CreateBatchRequest{
		EventID:         eventID,
		Name:            "x",
		Quantity:        1,
		AmountPerCode:   1,
		Coverage:        "ALL",
		CoveredAddOnIDs: []string{node.Generate().String()},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidCoverage)

	_, _, err = svc.CreateBatch(ctx, domain.CreateBatchRequest{EventID: eventID, Name: "x", Quantity: 1, AmountPerCode: 1, CodePrefix: "gala codes!"})
	assert.ErrorIs(t, err, domain.ErrInvalidPrefix)
}

func TestGetByCodeNormalizesCase(t *testing.T) {
	svc, _, _, node := setupSponsorshipService(t)
	orgID := node.Generate()
	ctx := orgCtx(orgID)

	batch, records := issueBatch(t, ctx, svc, node, domain.CreateBatchRequest{CodePrefix: "VIP"})
	code := records[0].Code

	got, err := svc.GetByCode(ctx, orgID, batch.EventID, "  "+strings.ToLower(code)+"  ")
	require.NoError(t, err)
	assert.Equal(t, records[0].ID, got.ID)

	_, err = svc.GetByCode(ctx, orgID, batch.EventID, "VIP-NOSUCHCD")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordTransitions(t *testing.T) {
	svc, _, _, node := setupSponsorshipService(t)
	ctx := orgCtx(node.Generate())

	_, records := issueBatch(t, ctx, svc, node, domain.CreateBatchRequest{})
	id := records[0].ID.String()

	activated, err := svc.ActivateRecord(ctx, domain.GetRecordRequest{ID: id})
	require.NoError(t, err)
	assert.Equal(t, engine.SponsorshipActive, activated.Status)

	_, err = svc.ActivateRecord(ctx, domain.GetRecordRequest{ID: id})
	assert.ErrorIs(t, err, domain.ErrNotTransitionable)

	cancelled, err := svc.CancelRecord(ctx, domain.GetRecordRequest{ID: id})
	require.NoError(t, err)
	assert.Equal(t, engine.SponsorshipCancelled, cancelled.Status)

	_, err = svc.CancelRecord(ctx, domain.GetRecordRequest{ID: id})
	assert.ErrorIs(t, err, domain.ErrNotTransitionable)
}

func TestBatchTransitions(t *testing.T) {
	svc, _, _, node := setupSponsorshipService(t)
	ctx := orgCtx(node.Generate())

	batch, records := issueBatch(t, ctx, svc, node, domain.CreateBatchRequest{Quantity: 4})

	// One record cancelled ahead of time stays out of the activation sweep.
	_, err := svc.CancelRecord(ctx, domain.GetRecordRequest{ID: records[0].ID.String()})
	require.NoError(t, err)

	activated, err := svc.ActivateBatch(ctx, domain.GetBatchRequest{ID: batch.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, int64(3), activated)

	again, err := svc.ActivateBatch(ctx, domain.GetBatchRequest{ID: batch.ID.String()})
	require.NoError(t, err)
	assert.Zero(t, again)

	cancelled, err := svc.CancelBatch(ctx, domain.GetBatchRequest{ID: batch.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, int64(3), cancelled)
}

func TestRedeemConsumesBalance(t *testing.T) {
	svc, repo, db, node := setupSponsorshipService(t)
	orgID := node.Generate()
	ctx := orgCtx(orgID)

	_, records := issueBatch(t, ctx, svc, node, domain.CreateBatchRequest{AmountPerCode: 1000})
	recordID := records[0].ID
	registrationID := node.Generate()

	ok, err := repo.Redeem(ctx, db, orgID, recordID, registrationID, 400)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := svc.GetRecord(ctx, domain.GetRecordRequest{ID: recordID.String()})
	require.NoError(t, err)
	assert.Equal(t, engine.SponsorshipActive, got.Status)
	assert.Equal(t, int64(400), got.ConsumedAmount)
	require.NotNil(t, got.RegistrationID)
	assert.Equal(t, registrationID, *got.RegistrationID)

	// More than the remaining balance never partially applies.
	ok, err = repo.Redeem(ctx, db, orgID, recordID, registrationID, 700)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Redeem(ctx, db, orgID, recordID, registrationID, 600)
	require.NoError(t, err)
	require.True(t, ok)

	got, err = svc.GetRecord(ctx, domain.GetRecordRequest{ID: recordID.String()})
	require.NoError(t, err)
	assert.Equal(t, engine.SponsorshipConsumed, got.Status)
	assert.Equal(t, int64(1000), got.ConsumedAmount)
	assert.Zero(t, got.Remaining())

	ok, err = repo.Redeem(ctx, db, orgID, recordID, registrationID, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRestoreReturnsBalance(t *testing.T) {
	svc, repo, db, node := setupSponsorshipService(t)
	orgID := node.Generate()
	ctx := orgCtx(orgID)

	_, records := issueBatch(t, ctx, svc, node, domain.CreateBatchRequest{AmountPerCode: 1000})
	recordID := records[0].ID
	registrationID := node.Generate()

	ok, err := repo.Redeem(ctx, db, orgID, recordID, registrationID, 1000)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, repo.Restore(ctx, db, orgID, recordID, 600))
	got, err := svc.GetRecord(ctx, domain.GetRecordRequest{ID: recordID.String()})
	require.NoError(t, err)
	assert.Equal(t, engine.SponsorshipActive, got.Status)
	assert.Equal(t, int64(400), got.ConsumedAmount)

	// A cancelled record regains balance without leaving its terminal status.
	_, err = svc.CancelRecord(ctx, domain.GetRecordRequest{ID: recordID.String()})
	require.NoError(t, err)
	require.NoError(t, repo.Restore(ctx, db, orgID, recordID, 400))

	got, err = svc.GetRecord(ctx, domain.GetRecordRequest{ID: recordID.String()})
	require.NoError(t, err)
	assert.Equal(t, engine.SponsorshipCancelled, got.Status)
	assert.Zero(t, got.ConsumedAmount)

	require.NoError(t, repo.ClearRegistration(ctx, db, orgID, registrationID))
	got, err = svc.GetRecord(ctx, domain.GetRecordRequest{ID: recordID.String()})
	require.NoError(t, err)
	assert.Nil(t, got.RegistrationID)
}

func TestExpireDueFlipsLapsedCodes(t *testing.T) {
	svc, _, _, node := setupSponsorshipService(t)
	ctx := orgCtx(node.Generate())

	past := time.Now().UTC().Add(-time.Hour)
	_, lapsed := issueBatch(t, ctx, svc, node, domain.CreateBatchRequest{Quantity: 2, ExpiresAt: &past})
	_, open := issueBatch(t, ctx, svc, node, domain.CreateBatchRequest{Quantity: 1})

	count, err := svc.ExpireDue(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	for _, record := range lapsed {
		got, err := svc.GetRecord(ctx, domain.GetRecordRequest{ID: record.ID.String()})
		require.NoError(t, err)
		assert.Equal(t, engine.SponsorshipExpired, got.Status)
	}

	got, err := svc.GetRecord(ctx, domain.GetRecordRequest{ID: open[0].ID.String()})
	require.NoError(t, err)
	assert.Equal(t, engine.SponsorshipPending, got.Status)

	count, err = svc.ExpireDue(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestListRecordsFilters(t *testing.T) {
	svc, _, _, node := setupSponsorshipService(t)
	ctx := orgCtx(node.Generate())

	batch, records := issueBatch(t, ctx, svc, node, domain.CreateBatchRequest{Quantity: 3})
	_, err := svc.ActivateRecord(ctx, domain.GetRecordRequest{ID: records[0].ID.String()})
	require.NoError(t, err)

	resp, err := svc.ListRecords(ctx, domain.ListRecordRequest{BatchID: batch.ID.String()})
	require.NoError(t, err)
	assert.Len(t, resp.Records, 3)

	resp, err = svc.ListRecords(ctx, domain.ListRecordRequest{BatchID: batch.ID.String(), Status: "active"})
	require.NoError(t, err)
	require.Len(t, resp.Records, 1)
	assert.Equal(t, records[0].ID, resp.Records[0].ID)
}

func TestResolveForPricing(t *testing.T) {
	svc, repo, db, node := setupSponsorshipService(t)
	orgID := node.Generate()
	ctx := orgCtx(orgID)

	addOnID := node.Generate().String()
	batch, records := issueBatch(t, ctx, svc, node, domain.CreateBatchRequest{
		AmountPerCode:   50000,
		Coverage:        "ADDONS",
		CoveredAddOnIDs: []string{addOnID},
	})
	code := records[0].Code

	view, err := svc.ResolveForPricing(ctx, orgID, batch.EventID, "nope-12345678")
	require.NoError(t, err)
	assert.Nil(t, view)

	view, err = svc.ResolveForPricing(ctx, orgID, batch.EventID, strings.ToLower(code))
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, engine.SponsorshipPending, view.Status)
	assert.Equal(t, engine.CoverageAddOns, view.Coverage)
	assert.Equal(t, []string{addOnID}, view.CoveredAddOnIDs)
	assert.Equal(t, int64(50000), view.Remaining())

	ok, err := repo.Redeem(ctx, db, orgID, records[0].ID, node.Generate(), 20000)
	require.NoError(t, err)
	require.True(t, ok)

	view, err = svc.ResolveForPricing(ctx, orgID, batch.EventID, code)
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, int64(30000), view.Remaining())
}

func TestResolveForPricingReportsLapsedExpiry(t *testing.T) {
	svc, _, _, node := setupSponsorshipService(t)
	orgID := node.Generate()
	ctx := orgCtx(orgID)

	past := time.Now().UTC().Add(-time.Minute)
	batch, records := issueBatch(t, ctx, svc, node, domain.CreateBatchRequest{ExpiresAt: &past})

	// The sweep has not run yet, so the row still says PENDING.
	got, err := svc.GetRecord(ctx, domain.GetRecordRequest{ID: records[0].ID.String()})
	require.NoError(t, err)
	assert.Equal(t, engine.SponsorshipPending, got.Status)

	view, err := svc.ResolveForPricing(ctx, orgID, batch.EventID, records[0].Code)
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, engine.SponsorshipExpired, view.Status)
	assert.False(t, view.Redeemable())
}

func TestGetBatchMergesStats(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	repo := mocks.NewMockRepository(ctrl)
	svc := New(Params{DB: db, Log: zap.NewNop(), GenID: node, Repo: repo})

	orgID := node.Generate()
	batch := domain.SponsorshipBatch{ID: node.Generate(), OrgID: orgID, Name: "Gala Sponsors"}

	repo.EXPECT().FindBatchByID(gomock.Any(), gomock.Any(), orgID, batch.ID).Return(&batch, nil)
	repo.EXPECT().BatchStats(gomock.Any(), gomock.Any(), orgID, batch.ID).
		Return(int64(100), int64(40), int64(500000), int64(175000), nil)

	got, err := svc.GetBatch(orgCtx(orgID), domain.GetBatchRequest{ID: batch.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, "Gala Sponsors", got.Name)
	assert.Equal(t, int64(100), got.IssuedCount)
	assert.Equal(t, int64(40), got.ConsumedCount)
	assert.Equal(t, int64(500000), got.TotalAmount)
	assert.Equal(t, int64(175000), got.ConsumedAmount)
}
