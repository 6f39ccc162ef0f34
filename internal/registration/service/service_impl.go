package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	addondomain "github.com/smallbiznis/eventra/internal/addon/domain"
	"github.com/smallbiznis/eventra/internal/cloudmetrics"
	"github.com/smallbiznis/eventra/internal/config"
	eventdomain "github.com/smallbiznis/eventra/internal/event/domain"
	formdomain "github.com/smallbiznis/eventra/internal/form/domain"
	"github.com/smallbiznis/eventra/internal/orgcontext"
	pricingdomain "github.com/smallbiznis/eventra/internal/pricing/domain"
	"github.com/smallbiznis/eventra/internal/pricing/engine"
	"github.com/smallbiznis/eventra/internal/providers/email"
	"github.com/smallbiznis/eventra/internal/providers/slack"
	receiptdomain "github.com/smallbiznis/eventra/internal/receipt/domain"
	"github.com/smallbiznis/eventra/internal/receipt/format"
	"github.com/smallbiznis/eventra/internal/receipt/render"
	"github.com/smallbiznis/eventra/internal/registration/domain"
	"github.com/smallbiznis/eventra/internal/registration/liveevents"
	sponsorshipdomain "github.com/smallbiznis/eventra/internal/sponsorship/domain"
	"github.com/smallbiznis/eventra/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultCurrency      = "USD"
	confirmationAttempts = 5
	notifyTimeout        = 10 * time.Second
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Cfg          config.Config
	Repo         domain.Repository
	Events       eventdomain.Repository
	Forms        formdomain.Service
	AddOns       addondomain.Repository
	Sponsorships sponsorshipdomain.Repository
	SponsorSvc   sponsorshipdomain.Service
	Pricing      pricingdomain.Service
	Receipts     receiptdomain.Service
	Email        email.Provider
	Slack        slack.Provider
	Hub          *liveevents.Hub
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	cfg          config.Config
	repo         domain.Repository
	events       eventdomain.Repository
	forms        formdomain.Service
	addOns       addondomain.Repository
	sponsorships sponsorshipdomain.Repository
	sponsorSvc   sponsorshipdomain.Service
	pricing      pricingdomain.Service
	receipts     receiptdomain.Service
	email        email.Provider
	slack        slack.Provider
	hub          *liveevents.Hub
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("registration.service"),
		genID:        p.GenID,
		cfg:          p.Cfg,
		repo:         p.Repo,
		events:       p.Events,
		forms:        p.Forms,
		addOns:       p.AddOns,
		sponsorships: p.Sponsorships,
		sponsorSvc:   p.SponsorSvc,
		pricing:      p.Pricing,
		receipts:     p.Receipts,
		email:        p.Email,
		slack:        p.Slack,
		hub:          p.Hub,
	}
}

func (s *Service) Preview(ctx context.Context, req domain.PreviewRequest) (engine.Breakdown, error) {
	return s.pricing.Preview(ctx, pricingdomain.PreviewRequest{
		EventID:          req.EventID,
		FormData:         req.FormData,
		SelectedAddOns:   req.SelectedAddOns,
		SponsorshipCodes: req.SponsorshipCodes,
	})
}

func (s *Service) Submit(ctx context.Context, req domain.SubmitRequest) (*domain.Registration, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	eventID, err := snowflake.ParseString(strings.TrimSpace(req.EventID))
	if err != nil {
		return nil, domain.ErrInvalidEvent
	}

	name := strings.TrimSpace(req.AttendeeName)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	attendeeEmail, err := normalizeEmail(req.AttendeeEmail)
	if err != nil {
		return nil, domain.ErrInvalidEmail
	}

	event, err := s.events.FindByID(ctx, s.db, orgID, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, eventdomain.ErrNotFound
	}
	now := time.Now().UTC()
	if !eventOpen(*event, now) {
		return nil, domain.ErrEventNotOpen
	}

	formID, err := s.validateAnswers(ctx, orgID, eventID, req.FormData)
	if err != nil {
		return nil, err
	}

	settings, err := s.loadSettings(ctx, orgID)
	if err != nil {
		return nil, err
	}

	breakdown, err := s.priceSubmission(ctx, orgID, eventID, req)
	if err != nil {
		return nil, err
	}

	code, err := s.newConfirmationCode(ctx, orgID)
	if err != nil {
		return nil, err
	}

	status := domain.StatusConfirmed
	if settings.RequireReview {
		status = domain.StatusPending
	}

	currency := breakdown.Currency
	if currency == "" {
		currency = settings.DefaultCurrency
	}

	breakdownJSON, err := json.Marshal(breakdown)
	if err != nil {
		return nil, err
	}
	var formData datatypes.JSON
	if len(req.FormData) > 0 {
		raw, err := json.Marshal(req.FormData)
		if err != nil {
			return nil, err
		}
		formData = raw
	}
	var appliedCodes datatypes.JSON
	if codes := redeemableCodes(breakdown.Sponsorships); len(codes) > 0 {
		raw, err := json.Marshal(codes)
		if err != nil {
			return nil, err
		}
		appliedCodes = raw
	}

	registration := &domain.Registration{
		ID:               s.genID.Generate(),
		OrgID:            orgID,
		EventID:          eventID,
		FormID:           formID,
		AttendeeName:     name,
		AttendeeEmail:    attendeeEmail,
		FormData:         formData,
		Status:           status,
		Breakdown:        breakdownJSON,
		TotalAmount:      breakdown.Total,
		Currency:         currency,
		SponsorshipCodes: appliedCodes,
		ConfirmationCode: code,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reserved, err := s.events.ReserveCapacity(ctx, tx, orgID, eventID, 1)
		if err != nil {
			return err
		}
		if !reserved {
			current, err := s.events.FindByID(ctx, tx, orgID, eventID)
			if err != nil {
				return err
			}
			if current == nil || current.Status != eventdomain.EventPublished {
				return domain.ErrEventNotOpen
			}
			if !settings.WaitlistEnabled {
				return domain.ErrEventFull
			}
			registration.Status = domain.StatusWaitlisted
		}

		if err := s.repo.Insert(ctx, tx, registration); err != nil {
			return err
		}

		// A waitlisted row holds no seat, no add-on units, and no
		// sponsorship credit, so there is nothing left to reserve and no
		// receipt to issue.
		if registration.Status == domain.StatusWaitlisted {
			return nil
		}

		addOnRows, err := s.reserveAddOns(ctx, tx, orgID, registration, breakdown.AddOnItems)
		if err != nil {
			return err
		}
		if len(addOnRows) > 0 {
			if err := s.repo.InsertAddOns(ctx, tx, addOnRows); err != nil {
				return err
			}
		}

		if err := s.redeemSponsorships(ctx, tx, orgID, registration.ID, eventID, breakdown.Sponsorships); err != nil {
			return err
		}

		receipt, err := s.receipts.Issue(ctx, tx, receiptdomain.IssueRequest{
			OrgID:          orgID,
			RegistrationID: registration.ID,
			EventID:        eventID,
			EventName:      event.Title,
			AttendeeName:   name,
			AttendeeEmail:  attendeeEmail,
			Breakdown:      breakdown,
			IssuedAt:       now,
			NumberPattern:  settings.ReceiptNumberPattern,
		})
		if err != nil {
			return err
		}
		if err := s.repo.SetReceipt(ctx, tx, orgID, registration.ID, receipt.ID); err != nil {
			return err
		}
		registration.ReceiptID = &receipt.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.pricing.Invalidate(orgID, eventID)
	s.publish(orgID, liveevents.KindSubmitted, registration)
	go s.notifySubmitted(*event, *registration)
	cloudmetrics.RecordRegistrationCreated(orgID.String())

	s.log.Info("registration submitted",
		zap.String("registration_id", registration.ID.String()),
		zap.String("event_id", eventID.String()),
		zap.String("status", string(registration.Status)),
		zap.Int64("total_amount", registration.TotalAmount),
	)
	return registration, nil
}

func (s *Service) Get(ctx context.Context, req domain.GetRequest) (*domain.Registration, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	id, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil {
		return nil, domain.ErrInvalidID
	}
	registration, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return nil, err
	}
	if registration == nil {
		return nil, domain.ErrNotFound
	}
	return registration, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ListResponse{}, domain.ErrInvalidOrganization
	}

	filter := domain.ListFilter{
		Search: strings.TrimSpace(req.Search),
		From:   req.From,
		To:     req.To,
	}
	if raw := strings.TrimSpace(req.EventID); raw != "" {
		parsed, err := snowflake.ParseString(raw)
		if err != nil {
			return domain.ListResponse{}, domain.ErrInvalidEvent
		}
		filter.EventID = parsed
	}
	if raw := strings.TrimSpace(req.Status); raw != "" {
		status := domain.Status(strings.ToUpper(raw))
		switch status {
		case domain.StatusPending, domain.StatusConfirmed, domain.StatusCancelled, domain.StatusWaitlisted:
			filter.Status = status
		default:
			return domain.ListResponse{}, domain.ErrInvalidStatus
		}
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	registrations, err := s.repo.List(ctx, s.db, orgID, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(registrations, pageSize, func(registration domain.Registration) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        registration.ID.String(),
			CreatedAt: registration.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(registrations) > int(pageSize) {
		registrations = registrations[:pageSize]
	}

	resp := domain.ListResponse{Registrations: registrations}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) Approve(ctx context.Context, req domain.GetRequest) (*domain.Registration, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	id, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	registration, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return nil, err
	}
	if registration == nil {
		return nil, domain.ErrNotFound
	}

	flipped, err := s.repo.UpdateStatus(ctx, s.db, orgID, id,
		[]domain.Status{domain.StatusPending}, domain.StatusConfirmed, nil)
	if err != nil {
		return nil, err
	}
	if !flipped {
		return nil, domain.ErrNotApprovable
	}

	now := time.Now().UTC()
	registration.Status = domain.StatusConfirmed
	registration.UpdatedAt = now

	s.publish(orgID, liveevents.KindConfirmed, registration)

	if event, findErr := s.events.FindByID(ctx, s.db, orgID, registration.EventID); findErr == nil && event != nil {
		go s.notifySubmitted(*event, *registration)
	}

	s.log.Info("registration approved", zap.String("registration_id", id.String()))
	return registration, nil
}

func (s *Service) Cancel(ctx context.Context, req domain.CancelRequest) (*domain.Registration, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	id, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	registration, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return nil, err
	}
	if registration == nil {
		return nil, domain.ErrNotFound
	}
	if registration.Status == domain.StatusCancelled {
		return nil, domain.ErrNotCancellable
	}

	prior := registration.Status
	now := time.Now().UTC()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		flipped, err := s.repo.UpdateStatus(ctx, tx, orgID, id,
			[]domain.Status{domain.StatusPending, domain.StatusConfirmed, domain.StatusWaitlisted},
			domain.StatusCancelled, &now)
		if err != nil {
			return err
		}
		if !flipped {
			return domain.ErrNotCancellable
		}

		// Waitlisted rows never reserved anything, so there is nothing to
		// give back.
		if prior == domain.StatusWaitlisted {
			return nil
		}

		if err := s.events.ReleaseCapacity(ctx, tx, orgID, registration.EventID, 1); err != nil {
			return err
		}

		addOnRows, err := s.repo.ListAddOns(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		for _, row := range addOnRows {
			if err := s.addOns.ReleaseCapacity(ctx, tx, orgID, row.AddOnID, row.Quantity); err != nil {
				return err
			}
		}

		consumptions, err := s.sponsorships.ListConsumptionsByRegistration(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		for _, item := range netConsumptions(consumptions) {
			if item.amount <= 0 {
				continue
			}
			if err := s.sponsorships.Restore(ctx, tx, orgID, item.recordID, item.amount); err != nil {
				return err
			}
			compensating := &sponsorshipdomain.SponsorshipConsumption{
				ID:             s.genID.Generate(),
				OrgID:          orgID,
				RecordID:       item.recordID,
				RegistrationID: id,
				Amount:         -item.amount,
				CreatedAt:      now,
			}
			if err := s.sponsorships.InsertConsumption(ctx, tx, compensating); err != nil {
				return err
			}
		}
		return s.sponsorships.ClearRegistration(ctx, tx, orgID, id)
	})
	if err != nil {
		return nil, err
	}

	registration.Status = domain.StatusCancelled
	registration.CancelledAt = &now
	registration.UpdatedAt = now

	s.pricing.Invalidate(orgID, registration.EventID)
	s.publish(orgID, liveevents.KindCancelled, registration)

	s.log.Info("registration cancelled",
		zap.String("registration_id", id.String()),
		zap.String("prior_status", string(prior)),
	)
	return registration, nil
}

func (s *Service) Resend(ctx context.Context, req domain.ResendRequest) error {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ErrInvalidOrganization
	}
	id, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil {
		return domain.ErrInvalidID
	}

	registration, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return err
	}
	if registration == nil {
		return domain.ErrNotFound
	}
	if registration.Status != domain.StatusConfirmed && registration.Status != domain.StatusPending {
		return domain.ErrNotResendable
	}

	event, err := s.events.FindByID(ctx, s.db, orgID, registration.EventID)
	if err != nil {
		return err
	}
	if event == nil {
		return eventdomain.ErrNotFound
	}

	subject, body := confirmationMessage(*event, *registration)
	return s.email.Send(ctx, []string{registration.AttendeeEmail}, subject, body)
}

func (s *Service) ListAddOns(ctx context.Context, registrationID string) ([]domain.RegistrationAddOn, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	id, err := snowflake.ParseString(strings.TrimSpace(registrationID))
	if err != nil {
		return nil, domain.ErrInvalidID
	}
	registration, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return nil, err
	}
	if registration == nil {
		return nil, domain.ErrNotFound
	}
	return s.repo.ListAddOns(ctx, s.db, orgID, id)
}

func (s *Service) GetSettings(ctx context.Context) (domain.RegistrationSettings, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.RegistrationSettings{}, domain.ErrInvalidOrganization
	}
	return s.loadSettings(ctx, orgID)
}

func (s *Service) UpdateSettings(ctx context.Context, req domain.UpdateSettingsRequest) (domain.RegistrationSettings, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.RegistrationSettings{}, domain.ErrInvalidOrganization
	}

	settings, err := s.loadSettings(ctx, orgID)
	if err != nil {
		return domain.RegistrationSettings{}, err
	}

	if req.RequireReview != nil {
		settings.RequireReview = *req.RequireReview
	}
	if req.WaitlistEnabled != nil {
		settings.WaitlistEnabled = *req.WaitlistEnabled
	}
	if req.DefaultCurrency != nil {
		currency := strings.ToUpper(strings.TrimSpace(*req.DefaultCurrency))
		if !validCurrency(currency) {
			return domain.RegistrationSettings{}, domain.ErrInvalidCurrency
		}
		settings.DefaultCurrency = currency
	}
	if req.ReceiptNumberPattern != nil {
		pattern := strings.TrimSpace(*req.ReceiptNumberPattern)
		if pattern != "" {
			// Reject templates that would fail at issue time, when the
			// registration transaction is already holding locks.
			if _, err := format.FormatReceiptNumber(pattern, time.Now().UTC(), 1); err != nil {
				return domain.RegistrationSettings{}, err
			}
		}
		settings.ReceiptNumberPattern = pattern
	}

	now := time.Now().UTC()
	settings.OrgID = orgID
	if settings.CreatedAt.IsZero() {
		settings.CreatedAt = now
	}
	settings.UpdatedAt = now

	if err := s.repo.UpsertSettings(ctx, s.db, &settings); err != nil {
		return domain.RegistrationSettings{}, err
	}
	return settings, nil
}

// validateAnswers runs the submission through the event's active form, if
// one exists. Events without a published form accept any answers.
func (s *Service) validateAnswers(ctx context.Context, orgID, eventID snowflake.ID, formData map[string]any) (*snowflake.ID, error) {
	form, err := s.forms.GetActiveByEvent(ctx, orgID, eventID)
	if err != nil {
		if errors.Is(err, formdomain.ErrNoActiveForm) {
			return nil, nil
		}
		return nil, err
	}
	if fieldErrors := formdomain.ValidateSubmission(form.Fields, formData); len(fieldErrors) > 0 {
		return nil, &domain.SubmissionError{FieldErrors: fieldErrors}
	}
	formID := form.ID
	return &formID, nil
}

// priceSubmission runs the engine against current configuration with a
// strict sponsorship lookup: preview degrades lookup failures to invalid
// lines, but a commit must not guess, so infrastructure errors abort.
func (s *Service) priceSubmission(ctx context.Context, orgID, eventID snowflake.ID, req domain.SubmitRequest) (engine.Breakdown, error) {
	snapshot, err := s.pricing.Snapshot(ctx, orgID, eventID)
	if err != nil {
		return engine.Breakdown{}, err
	}

	var lookupErr error
	lookup := func(code string) *engine.Sponsorship {
		view, err := s.sponsorSvc.ResolveForPricing(ctx, orgID, eventID, code)
		if err != nil {
			lookupErr = err
			return nil
		}
		return view
	}

	breakdown, err := engine.Calculate(snapshot, lookup, engine.Request{
		FormData:         req.FormData,
		SelectedAddOns:   req.SelectedAddOns,
		SponsorshipCodes: req.SponsorshipCodes,
	})
	if err != nil {
		return engine.Breakdown{}, err
	}
	if lookupErr != nil {
		return engine.Breakdown{}, lookupErr
	}
	return breakdown, nil
}

// reserveAddOns takes the units the breakdown priced, one conditional update
// per item. A lost reservation reloads the item so the error can say how
// many units were actually left.
func (s *Service) reserveAddOns(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, registration *domain.Registration, lines []engine.AddOnLine) ([]domain.RegistrationAddOn, error) {
	if len(lines) == 0 {
		return nil, nil
	}
	rows := make([]domain.RegistrationAddOn, 0, len(lines))
	for _, line := range lines {
		addOnID, err := snowflake.ParseString(line.ID)
		if err != nil {
			return nil, fmt.Errorf("parse add-on id %q: %w", line.ID, err)
		}
		reserved, err := s.addOns.ReserveCapacity(ctx, tx, orgID, addOnID, line.Quantity)
		if err != nil {
			return nil, err
		}
		if !reserved {
			item, err := s.addOns.FindByID(ctx, tx, orgID, addOnID)
			if err != nil {
				return nil, err
			}
			var remaining int64
			if item != nil {
				if remaining = item.Remaining(); remaining < 0 {
					remaining = 0
				}
			}
			return nil, &engine.CapacityExceededError{
				AddOnID:   line.ID,
				Requested: line.Quantity,
				Remaining: remaining,
			}
		}
		rows = append(rows, domain.RegistrationAddOn{
			ID:             s.genID.Generate(),
			OrgID:          orgID,
			RegistrationID: registration.ID,
			EventID:        registration.EventID,
			AddOnID:        addOnID,
			Name:           line.Name,
			Quantity:       line.Quantity,
			UnitPrice:      line.UnitPrice,
			Subtotal:       line.Subtotal,
			CreatedAt:      registration.CreatedAt,
		})
	}
	return rows, nil
}

// redeemSponsorships consumes each applied line against its record. The
// breakdown was advisory; the conditional redeem is the authoritative check,
// and a lost race aborts the whole transaction.
func (s *Service) redeemSponsorships(ctx context.Context, tx *gorm.DB, orgID, registrationID, eventID snowflake.ID, lines []engine.SponsorshipLine) error {
	for _, line := range lines {
		if !line.Valid || line.Amount <= 0 {
			continue
		}
		code := strings.ToUpper(strings.TrimSpace(line.Code))
		record, err := s.sponsorships.FindRecordByCode(ctx, tx, orgID, eventID, code)
		if err != nil {
			return err
		}
		if record == nil {
			return sponsorshipdomain.ErrCodeExhausted
		}
		redeemed, err := s.sponsorships.Redeem(ctx, tx, orgID, record.ID, registrationID, line.Amount)
		if err != nil {
			return err
		}
		if !redeemed {
			return sponsorshipdomain.ErrCodeExhausted
		}
		consumption := &sponsorshipdomain.SponsorshipConsumption{
			ID:             s.genID.Generate(),
			OrgID:          orgID,
			RecordID:       record.ID,
			RegistrationID: registrationID,
			Amount:         line.Amount,
			CreatedAt:      time.Now().UTC(),
		}
		if err := s.sponsorships.InsertConsumption(ctx, tx, consumption); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) loadSettings(ctx context.Context, orgID snowflake.ID) (domain.RegistrationSettings, error) {
	settings, err := s.repo.FindSettings(ctx, s.db, orgID)
	if err != nil {
		return domain.RegistrationSettings{}, err
	}
	if settings == nil {
		return domain.RegistrationSettings{OrgID: orgID, DefaultCurrency: defaultCurrency}, nil
	}
	if settings.DefaultCurrency == "" {
		settings.DefaultCurrency = defaultCurrency
	}
	return *settings, nil
}

// newConfirmationCode derives a short attendee-facing code from a ULID. The
// random tail makes collisions unlikely; the lookup retry covers the rest.
func (s *Service) newConfirmationCode(ctx context.Context, orgID snowflake.ID) (string, error) {
	for attempt := 0; attempt < confirmationAttempts; attempt++ {
		id := ulid.Make().String()
		code := "CNF-" + id[len(id)-10:]
		existing, err := s.repo.FindByConfirmationCode(ctx, s.db, orgID, code)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return code, nil
		}
	}
	return "", fmt.Errorf("confirmation code collision after %d attempts", confirmationAttempts)
}

func (s *Service) publish(orgID snowflake.ID, kind string, registration *domain.Registration) {
	s.hub.Publish(orgID.String(), liveevents.LiveEvent{
		Kind:             kind,
		RegistrationID:   registration.ID.String(),
		EventID:          registration.EventID.String(),
		ConfirmationCode: registration.ConfirmationCode,
		AttendeeName:     registration.AttendeeName,
		Status:           string(registration.Status),
		TotalAmount:      registration.TotalAmount,
		Currency:         registration.Currency,
		OccurredAt:       time.Now().UTC().Format(time.RFC3339),
	})
}

// notifySubmitted delivers the confirmation email and the operator channel
// note after the transaction committed. Delivery failures are logged, never
// surfaced: the registration already exists.
func (s *Service) notifySubmitted(event eventdomain.Event, registration domain.Registration) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	if registration.Status == domain.StatusConfirmed || registration.Status == domain.StatusPending {
		subject, body := confirmationMessage(event, registration)
		if err := s.email.Send(ctx, []string{registration.AttendeeEmail}, subject, body); err != nil {
			s.log.Warn("confirmation email failed",
				zap.String("registration_id", registration.ID.String()),
				zap.Error(err),
			)
		}
	}

	message := fmt.Sprintf("%s registered for %s (%s, %s)",
		registration.AttendeeName,
		event.Title,
		strings.ToLower(string(registration.Status)),
		render.FormatMoney(registration.TotalAmount, registration.Currency),
	)
	if err := s.slack.PostMessage(ctx, s.cfg.Slack.Channel, message); err != nil {
		s.log.Warn("slack notification failed",
			zap.String("registration_id", registration.ID.String()),
			zap.Error(err),
		)
	}
}

func confirmationMessage(event eventdomain.Event, registration domain.Registration) (string, string) {
	subject := fmt.Sprintf("Registration confirmed: %s", event.Title)
	if registration.Status == domain.StatusPending {
		subject = fmt.Sprintf("Registration received: %s", event.Title)
	}
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>Your registration for <strong>%s</strong> is %s.</p><p>Confirmation code: <strong>%s</strong><br>Total: %s</p>",
		registration.AttendeeName,
		event.Title,
		strings.ToLower(string(registration.Status)),
		registration.ConfirmationCode,
		render.FormatMoney(registration.TotalAmount, registration.Currency),
	)
	return subject, body
}

// eventOpen reports whether the event accepts submissions: it must be
// published and not yet ended. Events without an end date keep accepting.
func eventOpen(event eventdomain.Event, now time.Time) bool {
	if event.Status != eventdomain.EventPublished {
		return false
	}
	if event.EndsAt != nil && now.After(*event.EndsAt) {
		return false
	}
	return true
}

// redeemableCodes picks the codes the commit will actually draw down.
func redeemableCodes(lines []engine.SponsorshipLine) []string {
	var codes []string
	for _, line := range lines {
		if line.Valid && line.Amount > 0 {
			codes = append(codes, line.Code)
		}
	}
	return codes
}

type restoreItem struct {
	recordID snowflake.ID
	amount   int64
}

// netConsumptions nets redemptions against compensating rows per record,
// preserving first-seen order so restores are deterministic.
func netConsumptions(rows []sponsorshipdomain.SponsorshipConsumption) []restoreItem {
	index := make(map[snowflake.ID]int, len(rows))
	items := make([]restoreItem, 0, len(rows))
	for _, row := range rows {
		pos, ok := index[row.RecordID]
		if !ok {
			pos = len(items)
			index[row.RecordID] = pos
			items = append(items, restoreItem{recordID: row.RecordID})
		}
		items[pos].amount += row.Amount
	}
	return items
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(addr.Address)), nil
}

func validCurrency(currency string) bool {
	if len(currency) != 3 {
		return false
	}
	for _, r := range currency {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
