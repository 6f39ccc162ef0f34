package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/eventra/internal/orgcontext"
	orgdomain "github.com/smallbiznis/eventra/internal/organization/domain"
	"github.com/smallbiznis/eventra/internal/pricing/engine"
	"github.com/smallbiznis/eventra/internal/providers/pdf"
	"github.com/smallbiznis/eventra/internal/receipt/domain"
	"github.com/smallbiznis/eventra/internal/receipt/render"
	"github.com/smallbiznis/eventra/internal/receipt/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type receiptFixture struct {
	svc     domain.Service
	repo    domain.Repository
	db      *gorm.DB
	node    *snowflake.Node
	orgID   snowflake.ID
	eventID snowflake.ID
}

func setupReceiptService(t *testing.T) receiptFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Receipt{},
		&domain.ReceiptCounter{},
		&orgdomain.Organization{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	orgID := node.Generate()
	require.NoError(t, db.Create(&orgdomain.Organization{
		ID:       orgID,
		Name:     "Fernwood Events",
		Slug:     "fernwood-events",
		Metadata: datatypes.JSONMap{},
	}).Error)

	repo := repository.Provide()
	svc := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Repo:     repo,
		Renderer: render.NewRenderer(),
		PDF:      pdf.New(),
	})

	return receiptFixture{
		svc:     svc,
		repo:    repo,
		db:      db,
		node:    node,
		orgID:   orgID,
		eventID: node.Generate(),
	}
}

func orgCtx(orgID snowflake.ID) context.Context {
	return orgcontext.WithOrgID(context.Background(), int64(orgID))
}

func sampleBreakdown() engine.Breakdown {
	return engine.Breakdown{
		BasePrice: 100000,
		AppliedRules: []engine.AppliedRule{
			{RuleID: "101", RuleName: "Student Discount", Effect: -50000},
		},
		CalculatedBasePrice: 50000,
		AddOnItems: []engine.AddOnLine{
			{ID: "201", Name: "Workshop Pass", UnitPrice: 25000, Quantity: 2, Subtotal: 50000},
		},
		AddOnTotal: 50000,
		Subtotal:   100000,
		Sponsorships: []engine.SponsorshipLine{
			{Code: "GALA-GOLD1", Amount: 60000, Valid: true},
			{Code: "GALA-STALE", Amount: 0, Valid: false},
		},
		SponsorshipTotal: 60000,
		Total:            40000,
		Currency:         "USD",
	}
}

func issueReq(f receiptFixture, registrationID snowflake.ID, issuedAt time.Time) domain.IssueRequest {
	return domain.IssueRequest{
		OrgID:          f.orgID,
		RegistrationID: registrationID,
		EventID:        f.eventID,
		EventName:      "Annual Gala",
		AttendeeName:   "Dana Smith",
		AttendeeEmail:  "dana@example.com",
		Breakdown:      sampleBreakdown(),
		IssuedAt:       issuedAt,
	}
}

func TestIssueNumbersSequentially(t *testing.T) {
	f := setupReceiptService(t)
	ctx := orgCtx(f.orgID)
	issuedAt := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

	first, err := f.svc.Issue(ctx, f.db, issueReq(f, f.node.Generate(), issuedAt))
	require.NoError(t, err)
	assert.Equal(t, "RCP-2026-000001", first.Number)
	assert.Equal(t, int64(40000), first.AmountTotal)
	assert.Equal(t, "USD", first.Currency)
	assert.Equal(t, "Dana Smith", first.AttendeeName)

	second, err := f.svc.Issue(ctx, f.db, issueReq(f, f.node.Generate(), issuedAt))
	require.NoError(t, err)
	assert.Equal(t, "RCP-2026-000002", second.Number)
}

func TestIssueIsIdempotentPerRegistration(t *testing.T) {
	f := setupReceiptService(t)
	ctx := orgCtx(f.orgID)
	issuedAt := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	registrationID := f.node.Generate()

	first, err := f.svc.Issue(ctx, f.db, issueReq(f, registrationID, issuedAt))
	require.NoError(t, err)

	again, err := f.svc.Issue(ctx, f.db, issueReq(f, registrationID, issuedAt))
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, first.Number, again.Number)

	// The repeat did not consume a sequence number.
	next, err := f.svc.Issue(ctx, f.db, issueReq(f, f.node.Generate(), issuedAt))
	require.NoError(t, err)
	assert.Equal(t, "RCP-2026-000002", next.Number)
}

func TestIssueValidatesIdentifiers(t *testing.T) {
	f := setupReceiptService(t)
	ctx := orgCtx(f.orgID)
	issuedAt := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

	req := issueReq(f, f.node.Generate(), issuedAt)
	req.OrgID = 0
	_, err := f.svc.Issue(ctx, f.db, req)
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)

	req = issueReq(f, 0, issuedAt)
	_, err = f.svc.Issue(ctx, f.db, req)
	assert.ErrorIs(t, err, domain.ErrInvalidRegistration)

	req = issueReq(f, f.node.Generate(), issuedAt)
	req.EventID = 0
	_, err = f.svc.Issue(ctx, f.db, req)
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)
}

func TestIssueDerivesLinesFromBreakdown(t *testing.T) {
	f := setupReceiptService(t)
	ctx := orgCtx(f.orgID)
	issuedAt := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

	receipt, err := f.svc.Issue(ctx, f.db, issueReq(f, f.node.Generate(), issuedAt))
	require.NoError(t, err)

	lines := receipt.Lines()
	require.Len(t, lines, 4)

	assert.Equal(t, domain.LineKindBase, lines[0].Kind)
	assert.Equal(t, "Annual Gala", lines[0].Description)
	assert.Equal(t, int64(100000), lines[0].Amount)

	assert.Equal(t, domain.LineKindRule, lines[1].Kind)
	assert.Equal(t, "Student Discount", lines[1].Description)
	assert.Equal(t, int64(-50000), lines[1].Amount)

	assert.Equal(t, domain.LineKindAddOn, lines[2].Kind)
	assert.Equal(t, int64(2), lines[2].Quantity)
	assert.Equal(t, int64(25000), lines[2].UnitPrice)
	assert.Equal(t, int64(50000), lines[2].Amount)

	// Only the valid sponsorship becomes a line, as a negative amount.
	assert.Equal(t, domain.LineKindSponsorship, lines[3].Kind)
	assert.Equal(t, "Sponsorship GALA-GOLD1", lines[3].Description)
	assert.Equal(t, int64(-60000), lines[3].Amount)

	var sum int64
	for _, line := range lines {
		sum += line.Amount
	}
	assert.Equal(t, receipt.AmountTotal, sum)
}

func TestCounterResetsPerYear(t *testing.T) {
	f := setupReceiptService(t)
	ctx := orgCtx(f.orgID)

	first, err := f.svc.Issue(ctx, f.db, issueReq(f, f.node.Generate(), time.Date(2026, time.December, 31, 23, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.Equal(t, "RCP-2026-000001", first.Number)

	second, err := f.svc.Issue(ctx, f.db, issueReq(f, f.node.Generate(), time.Date(2027, time.January, 1, 1, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.Equal(t, "RCP-2027-000001", second.Number)
}

func TestGetAndListByEvent(t *testing.T) {
	f := setupReceiptService(t)
	ctx := orgCtx(f.orgID)
	issuedAt := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

	registrationID := f.node.Generate()
	issued, err := f.svc.Issue(ctx, f.db, issueReq(f, registrationID, issuedAt))
	require.NoError(t, err)

	otherEvent := issueReq(f, f.node.Generate(), issuedAt)
	otherEvent.EventID = f.node.Generate()
	_, err = f.svc.Issue(ctx, f.db, otherEvent)
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, domain.GetRequest{ReceiptID: issued.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, issued.Number, got.Number)

	_, err = f.svc.Get(ctx, domain.GetRequest{ReceiptID: f.node.Generate().String()})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	byRegistration, err := f.svc.GetByRegistration(ctx, registrationID)
	require.NoError(t, err)
	require.NotNil(t, byRegistration)
	assert.Equal(t, issued.ID, byRegistration.ID)

	missing, err := f.svc.GetByRegistration(ctx, f.node.Generate())
	require.NoError(t, err)
	assert.Nil(t, missing)

	receipts, pageInfo, err := f.svc.ListByEvent(ctx, domain.ListByEventRequest{EventID: f.eventID.String()})
	require.NoError(t, err)
	require.NotNil(t, pageInfo)
	assert.False(t, pageInfo.HasMore)
	require.Len(t, receipts, 1)
	assert.Equal(t, issued.ID, receipts[0].ID)
}

func TestRenderHTMLIncludesDocumentFields(t *testing.T) {
	f := setupReceiptService(t)
	ctx := orgCtx(f.orgID)
	issuedAt := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

	receipt, err := f.svc.Issue(ctx, f.db, issueReq(f, f.node.Generate(), issuedAt))
	require.NoError(t, err)

	html, err := f.svc.RenderHTML(ctx, domain.GetRequest{ReceiptID: receipt.ID.String()})
	require.NoError(t, err)

	assert.True(t, strings.Contains(html, receipt.Number))
	assert.True(t, strings.Contains(html, "Fernwood Events"))
	assert.True(t, strings.Contains(html, "Dana Smith"))
	assert.True(t, strings.Contains(html, "Annual Gala"))
	assert.True(t, strings.Contains(html, "USD 400.00"))
	assert.True(t, strings.Contains(html, "Sponsorship applied"))
	assert.True(t, strings.Contains(html, "2026-03-10"))
}

func TestRenderPDFProducesDocument(t *testing.T) {
	f := setupReceiptService(t)
	ctx := orgCtx(f.orgID)
	issuedAt := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

	receipt, err := f.svc.Issue(ctx, f.db, issueReq(f, f.node.Generate(), issuedAt))
	require.NoError(t, err)

	reader, err := f.svc.RenderPDF(ctx, domain.GetRequest{ReceiptID: receipt.ID.String()})
	require.NoError(t, err)
	require.NotNil(t, reader)

	payload, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.NotEmpty(t, payload)
}
