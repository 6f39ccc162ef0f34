package service

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventra/internal/cloudmetrics"
	"github.com/smallbiznis/eventra/internal/config"
	"github.com/smallbiznis/eventra/internal/orgcontext"
	"github.com/smallbiznis/eventra/internal/pricing/engine"
	"github.com/smallbiznis/eventra/internal/providers/pdf"
	"github.com/smallbiznis/eventra/internal/receipt/domain"
	"github.com/smallbiznis/eventra/internal/receipt/format"
	"github.com/smallbiznis/eventra/internal/receipt/render"
	"github.com/smallbiznis/eventra/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Renderer render.Renderer
	PDF      pdf.Provider
	Policy   *config.RegistrationPolicyHolder `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	renderer render.Renderer
	pdf      pdf.Provider
	policy   *config.RegistrationPolicyHolder
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("receipt.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		renderer: p.Renderer,
		pdf:      p.PDF,
		policy:   p.Policy,
	}
}

// Issue numbers and persists a receipt inside the caller's transaction. The
// per-org sequence is drawn in the same transaction, so a rolled-back
// registration never burns a number.
func (s *Service) Issue(ctx context.Context, db *gorm.DB, req domain.IssueRequest) (*domain.Receipt, error) {
	if req.OrgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	if req.RegistrationID == 0 {
		return nil, domain.ErrInvalidRegistration
	}
	if req.EventID == 0 {
		return nil, domain.ErrInvalidEvent
	}

	existing, err := s.repo.FindByRegistration(ctx, db, req.OrgID, req.RegistrationID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	issuedAt := req.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = time.Now().UTC()
	}

	seq, err := s.repo.NextSequence(ctx, db, req.OrgID, issuedAt.UTC().Year())
	if err != nil {
		return nil, err
	}

	// Org pattern wins, then the deployment policy, then the built-in.
	template := req.NumberPattern
	if template == "" {
		template = strings.TrimSpace(s.policy.Get().ReceiptNumberPattern)
	}
	if template == "" {
		template = format.DefaultReceiptNumberTemplate
	}
	number, err := format.FormatReceiptNumber(template, issuedAt, seq)
	if err != nil {
		return nil, err
	}

	lines, err := json.Marshal(buildLineItems(req.EventName, req.Breakdown))
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	receipt := &domain.Receipt{
		ID:             s.genID.Generate(),
		OrgID:          req.OrgID,
		RegistrationID: req.RegistrationID,
		EventID:        req.EventID,
		Number:         number,
		EventName:      req.EventName,
		AttendeeName:   req.AttendeeName,
		AttendeeEmail:  req.AttendeeEmail,
		Currency:       req.Breakdown.Currency,
		AmountTotal:    req.Breakdown.Total,
		LineItems:      datatypes.JSON(lines),
		IssuedAt:       issuedAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	inserted, err := s.repo.Insert(ctx, db, receipt)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return s.repo.FindByRegistration(ctx, db, req.OrgID, req.RegistrationID)
	}

	cloudmetrics.RecordReceiptIssued(req.OrgID.String())
	s.log.Info("receipt issued",
		zap.String("org_id", req.OrgID.String()),
		zap.String("registration_id", req.RegistrationID.String()),
		zap.String("number", number),
	)
	return receipt, nil
}

func (s *Service) Get(ctx context.Context, req domain.GetRequest) (*domain.Receipt, error) {
	return s.findReceipt(ctx, req.ReceiptID)
}

// GetByRegistration returns nil without error when no receipt exists;
// waitlisted registrations legitimately have none.
func (s *Service) GetByRegistration(ctx context.Context, registrationID snowflake.ID) (*domain.Receipt, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	if registrationID == 0 {
		return nil, domain.ErrInvalidRegistration
	}
	return s.repo.FindByRegistration(ctx, s.db, orgID, registrationID)
}

func (s *Service) ListByEvent(ctx context.Context, req domain.ListByEventRequest) ([]domain.Receipt, *pagination.PageInfo, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, nil, domain.ErrInvalidOrganization
	}

	eventID, err := snowflake.ParseString(strings.TrimSpace(req.EventID))
	if err != nil {
		return nil, nil, domain.ErrInvalidEvent
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	receipts, err := s.repo.ListByEvent(ctx, s.db, orgID, eventID, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		return nil, nil, err
	}

	pageInfo := pagination.BuildCursorPageInfo(receipts, int32(pageSize), func(receipt domain.Receipt) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        receipt.ID.String(),
			CreatedAt: receipt.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(receipts) > pageSize {
		receipts = receipts[:pageSize]
	}

	return receipts, pageInfo, nil
}

func (s *Service) RenderHTML(ctx context.Context, req domain.GetRequest) (string, error) {
	input, err := s.buildRenderInput(ctx, req.ReceiptID)
	if err != nil {
		return "", err
	}
	return s.renderer.RenderHTML(*input)
}

func (s *Service) RenderPDF(ctx context.Context, req domain.GetRequest) (io.Reader, error) {
	input, err := s.buildRenderInput(ctx, req.ReceiptID)
	if err != nil {
		return nil, err
	}

	items := make([]pdf.ReceiptItem, 0, len(input.Items))
	for _, item := range input.Items {
		items = append(items, pdf.ReceiptItem{
			Description: item.Description,
			Qty:         item.Quantity,
			UnitPrice:   render.FormatMoney(item.UnitPrice, input.Receipt.Currency),
			Amount:      render.FormatMoney(item.Amount, input.Receipt.Currency),
		})
	}

	data := pdf.ReceiptData{
		OrgName:       input.Org.Name,
		ReceiptNumber: input.Receipt.Number,
		EventName:     input.Receipt.EventName,
		AttendeeName:  input.Receipt.AttendeeName,
		AttendeeEmail: input.Receipt.AttendeeEmail,
		IssuedDate:    input.Receipt.IssuedAt.UTC().Format("2006-01-02"),
		Items:         items,
		Subtotal:      render.FormatMoney(input.Receipt.Subtotal, input.Receipt.Currency),
		Total:         render.FormatMoney(input.Receipt.Total, input.Receipt.Currency),
	}
	if input.Receipt.SponsorshipTotal > 0 {
		data.SponsorshipTotal = render.FormatMoney(input.Receipt.SponsorshipTotal, input.Receipt.Currency)
	}

	reader, err := s.pdf.GenerateReceipt(ctx, data)
	if err != nil {
		return nil, err
	}
	if reader == nil {
		return nil, domain.ErrRenderingUnavailable
	}
	return reader, nil
}

func (s *Service) findReceipt(ctx context.Context, id string) (*domain.Receipt, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	receiptID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	receipt, err := s.repo.FindByID(ctx, s.db, orgID, receiptID)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, domain.ErrNotFound
	}
	return receipt, nil
}

func (s *Service) buildRenderInput(ctx context.Context, id string) (*render.RenderInput, error) {
	receipt, err := s.findReceipt(ctx, id)
	if err != nil {
		return nil, err
	}

	org, err := s.loadOrg(ctx, receipt.OrgID)
	if err != nil {
		return nil, err
	}

	lines := receipt.Lines()
	items := make([]render.LineItemView, 0, len(lines))
	var subtotal, sponsorshipTotal int64
	for _, line := range lines {
		items = append(items, render.LineItemView{
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Amount:      line.Amount,
		})
		if line.Kind == domain.LineKindSponsorship {
			sponsorshipTotal -= line.Amount
		} else {
			subtotal += line.Amount
		}
	}

	return &render.RenderInput{
		Org: render.OrgView{Name: org.Name},
		Receipt: render.ReceiptView{
			Number:           receipt.Number,
			EventName:        receipt.EventName,
			AttendeeName:     receipt.AttendeeName,
			AttendeeEmail:    receipt.AttendeeEmail,
			Currency:         receipt.Currency,
			Subtotal:         subtotal,
			SponsorshipTotal: sponsorshipTotal,
			Total:            receipt.AmountTotal,
			IssuedAt:         receipt.IssuedAt,
		},
		Items: items,
	}, nil
}

type orgRow struct {
	ID   snowflake.ID
	Name string
}

func (s *Service) loadOrg(ctx context.Context, orgID snowflake.ID) (*orgRow, error) {
	var org orgRow
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, name FROM organizations WHERE id = ?`,
		orgID,
	).Scan(&org).Error
	if err != nil {
		return nil, err
	}
	if org.ID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	return &org, nil
}

// buildLineItems flattens a breakdown into receipt lines. The base line
// carries the configured base price; the winning rule shows as a signed
// adjustment so the arithmetic on the document matches the breakdown.
func buildLineItems(eventName string, b engine.Breakdown) []domain.LineItem {
	if eventName == "" {
		eventName = "Registration"
	}

	lines := make([]domain.LineItem, 0, 2+len(b.AddOnItems)+len(b.Sponsorships))
	lines = append(lines, domain.LineItem{
		Kind:        domain.LineKindBase,
		Description: eventName,
		Quantity:    1,
		UnitPrice:   b.BasePrice,
		Amount:      b.BasePrice,
	})
	for _, rule := range b.AppliedRules {
		lines = append(lines, domain.LineItem{
			Kind:        domain.LineKindRule,
			Description: rule.RuleName,
			Quantity:    1,
			UnitPrice:   rule.Effect,
			Amount:      rule.Effect,
		})
	}
	for _, item := range b.AddOnItems {
		lines = append(lines, domain.LineItem{
			Kind:        domain.LineKindAddOn,
			Description: item.Name,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Amount:      item.Subtotal,
		})
	}
	for _, sp := range b.Sponsorships {
		if !sp.Valid || sp.Amount == 0 {
			continue
		}
		lines = append(lines, domain.LineItem{
			Kind:        domain.LineKindSponsorship,
			Description: "Sponsorship " + sp.Code,
			Quantity:    1,
			UnitPrice:   -sp.Amount,
			Amount:      -sp.Amount,
		})
	}
	return lines
}
