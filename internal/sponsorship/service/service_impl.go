package service

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/eventra/internal/config"
	"github.com/smallbiznis/eventra/internal/orgcontext"
	"github.com/smallbiznis/eventra/internal/pricing/engine"
	"github.com/smallbiznis/eventra/internal/sponsorship/domain"
	"github.com/smallbiznis/eventra/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// codeAlphabet drops lookalike characters so codes survive being read aloud
// or retyped from print.
const (
	codeAlphabet      = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	defaultCodeLength = 8
	maxBatchSize      = 10000
)

var prefixPattern = regexp.MustCompile(`^[A-Z0-9]{2,10}$`)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Repo   domain.Repository
	Policy *config.RegistrationPolicyHolder `optional:"true"`
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	repo   domain.Repository
	policy *config.RegistrationPolicyHolder
}

func New(p Params) domain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("sponsorship.service"),
		genID:  p.GenID,
		repo:   p.Repo,
		policy: p.Policy,
	}
}

func (s *Service) codeLength() int {
	if length := s.policy.Get().SponsorshipCodeLength; length > 0 {
		return length
	}
	return defaultCodeLength
}

func (s *Service) CreateBatch(ctx context.Context, req domain.CreateBatchRequest) (domain.SponsorshipBatch, []domain.SponsorshipRecord, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.SponsorshipBatch{}, nil, domain.ErrInvalidOrganization
	}

	eventID, err := snowflake.ParseString(strings.TrimSpace(req.EventID))
	if err != nil {
		return domain.SponsorshipBatch{}, nil, domain.ErrInvalidEvent
	}

	var clientID *snowflake.ID
	if raw := strings.TrimSpace(req.ClientID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil {
			return domain.SponsorshipBatch{}, nil, domain.ErrInvalidClient
		}
		clientID = &id
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.SponsorshipBatch{}, nil, domain.ErrInvalidName
	}
	if req.Quantity <= 0 || req.Quantity > maxBatchSize {
		return domain.SponsorshipBatch{}, nil, domain.ErrInvalidQuantity
	}
	if req.AmountPerCode <= 0 {
		return domain.SponsorshipBatch{}, nil, domain.ErrInvalidAmount
	}

	coverage, err := normalizeCoverage(req.Coverage)
	if err != nil {
		return domain.SponsorshipBatch{}, nil, err
	}

	coveredIDs, err := encodeCoveredIDs(coverage, req.CoveredAddOnIDs)
	if err != nil {
		return domain.SponsorshipBatch{}, nil, err
	}

	prefix, err := normalizePrefix(req.CodePrefix, name)
	if err != nil {
		return domain.SponsorshipBatch{}, nil, err
	}

	now := time.Now().UTC()
	batch := domain.SponsorshipBatch{
		ID:              s.genID.Generate(),
		OrgID:           orgID,
		EventID:         eventID,
		ClientID:        clientID,
		Name:            name,
		CodePrefix:      prefix,
		Quantity:        req.Quantity,
		AmountPerCode:   req.AmountPerCode,
		Currency:        strings.ToUpper(strings.TrimSpace(req.Currency)),
		Coverage:        coverage,
		CoveredAddOnIDs: coveredIDs,
		ExpiresAt:       req.ExpiresAt,
		Notes:           strings.TrimSpace(req.Notes),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	records, err := s.generateRecords(&batch, now)
	if err != nil {
		return domain.SponsorshipBatch{}, nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertBatch(ctx, tx, &batch); err != nil {
			return err
		}
		return s.repo.BatchInsertRecords(ctx, tx, records)
	})
	if err != nil {
		return domain.SponsorshipBatch{}, nil, err
	}

	s.log.Info("sponsorship batch issued",
		zap.String("batch_id", batch.ID.String()),
		zap.String("event_id", eventID.String()),
		zap.Int("quantity", req.Quantity),
	)

	return batch, records, nil
}

func (s *Service) GetBatch(ctx context.Context, req domain.GetBatchRequest) (domain.BatchWithStats, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.BatchWithStats{}, domain.ErrInvalidOrganization
	}

	id, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil {
		return domain.BatchWithStats{}, domain.ErrInvalidID
	}

	batch, err := s.repo.FindBatchByID(ctx, s.db, orgID, id)
	if err != nil {
		return domain.BatchWithStats{}, err
	}
	if batch == nil {
		return domain.BatchWithStats{}, domain.ErrNotFound
	}
	return s.withStats(ctx, *batch)
}

func (s *Service) ListBatches(ctx context.Context, req domain.ListBatchRequest) ([]domain.BatchWithStats, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	var eventID, clientID snowflake.ID
	if raw := strings.TrimSpace(req.EventID); raw != "" {
		parsed, err := snowflake.ParseString(raw)
		if err != nil {
			return nil, domain.ErrInvalidEvent
		}
		eventID = parsed
	}
	if raw := strings.TrimSpace(req.ClientID); raw != "" {
		parsed, err := snowflake.ParseString(raw)
		if err != nil {
			return nil, domain.ErrInvalidClient
		}
		clientID = parsed
	}

	batches, err := s.repo.ListBatches(ctx, s.db, orgID, eventID, clientID)
	if err != nil {
		return nil, err
	}

	result := make([]domain.BatchWithStats, 0, len(batches))
	for _, batch := range batches {
		stats, err := s.withStats(ctx, batch)
		if err != nil {
			return nil, err
		}
		result = append(result, stats)
	}
	return result, nil
}

func (s *Service) ListRecords(ctx context.Context, req domain.ListRecordRequest) (domain.ListRecordResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ListRecordResponse{}, domain.ErrInvalidOrganization
	}

	filter := domain.ListRecordFilter{
		Status: engine.SponsorshipStatus(strings.ToUpper(strings.TrimSpace(req.Status))),
		Code:   strings.ToUpper(strings.TrimSpace(req.Code)),
	}
	if raw := strings.TrimSpace(req.BatchID); raw != "" {
		parsed, err := snowflake.ParseString(raw)
		if err != nil {
			return domain.ListRecordResponse{}, domain.ErrInvalidID
		}
		filter.BatchID = parsed
	}
	if raw := strings.TrimSpace(req.EventID); raw != "" {
		parsed, err := snowflake.ParseString(raw)
		if err != nil {
			return domain.ListRecordResponse{}, domain.ErrInvalidEvent
		}
		filter.EventID = parsed
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	records, err := s.repo.ListRecords(ctx, s.db, orgID, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListRecordResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(records, pageSize, func(record domain.SponsorshipRecord) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        record.ID.String(),
			CreatedAt: record.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(records) > int(pageSize) {
		records = records[:pageSize]
	}

	resp := domain.ListRecordResponse{Records: records}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) GetRecord(ctx context.Context, req domain.GetRecordRequest) (domain.SponsorshipRecord, error) {
	record, err := s.findRecord(ctx, req.ID)
	if err != nil {
		return domain.SponsorshipRecord{}, err
	}
	return *record, nil
}

func (s *Service) GetByCode(ctx context.Context, orgID, eventID snowflake.ID, code string) (domain.SponsorshipRecord, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if orgID == 0 || eventID == 0 || normalized == "" {
		return domain.SponsorshipRecord{}, domain.ErrNotFound
	}
	record, err := s.repo.FindRecordByCode(ctx, s.db, orgID, eventID, normalized)
	if err != nil {
		return domain.SponsorshipRecord{}, err
	}
	if record == nil {
		return domain.SponsorshipRecord{}, domain.ErrNotFound
	}
	return *record, nil
}

func (s *Service) ActivateRecord(ctx context.Context, req domain.GetRecordRequest) (domain.SponsorshipRecord, error) {
	return s.transitionRecord(ctx, req.ID, []engine.SponsorshipStatus{engine.SponsorshipPending}, engine.SponsorshipActive)
}

func (s *Service) CancelRecord(ctx context.Context, req domain.GetRecordRequest) (domain.SponsorshipRecord, error) {
	return s.transitionRecord(ctx, req.ID, []engine.SponsorshipStatus{engine.SponsorshipPending, engine.SponsorshipActive}, engine.SponsorshipCancelled)
}

func (s *Service) ActivateBatch(ctx context.Context, req domain.GetBatchRequest) (int64, error) {
	return s.transitionBatch(ctx, req.ID, []engine.SponsorshipStatus{engine.SponsorshipPending}, engine.SponsorshipActive)
}

func (s *Service) CancelBatch(ctx context.Context, req domain.GetBatchRequest) (int64, error) {
	return s.transitionBatch(ctx, req.ID, []engine.SponsorshipStatus{engine.SponsorshipPending, engine.SponsorshipActive}, engine.SponsorshipCancelled)
}

func (s *Service) ResolveForPricing(ctx context.Context, orgID, eventID snowflake.ID, code string) (*engine.Sponsorship, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if orgID == 0 || eventID == 0 || normalized == "" {
		return nil, nil
	}

	record, err := s.repo.FindRecordByCode(ctx, s.db, orgID, eventID, normalized)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}

	batch, err := s.repo.FindBatchByID(ctx, s.db, orgID, record.BatchID)
	if err != nil {
		return nil, err
	}

	status := record.Status
	// A lapsed expiry wins over a not-yet-swept status.
	if record.ExpiresAt != nil && !record.ExpiresAt.After(time.Now().UTC()) {
		if status == engine.SponsorshipPending || status == engine.SponsorshipActive {
			status = engine.SponsorshipExpired
		}
	}

	view := &engine.Sponsorship{
		ID:             record.ID.String(),
		Code:           record.Code,
		Status:         status,
		TotalAmount:    record.TotalAmount,
		ConsumedAmount: record.ConsumedAmount,
		Coverage:       engine.CoverageAll,
	}
	if batch != nil {
		view.Coverage = batch.Coverage
		view.CoveredAddOnIDs = batch.CoveredIDs()
	}
	return view, nil
}

func (s *Service) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	expired, err := s.repo.ExpireDue(ctx, s.db, now)
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		s.log.Info("sponsorship codes expired", zap.Int64("count", expired))
	}
	return expired, nil
}

func (s *Service) generateRecords(batch *domain.SponsorshipBatch, now time.Time) ([]domain.SponsorshipRecord, error) {
	records := make([]domain.SponsorshipRecord, 0, batch.Quantity)
	seen := make(map[string]bool, batch.Quantity)
	for len(records) < batch.Quantity {
		code, err := generateCode(batch.CodePrefix, s.codeLength())
		if err != nil {
			return nil, err
		}
		if seen[code] {
			continue
		}
		seen[code] = true
		records = append(records, domain.SponsorshipRecord{
			ID:          s.genID.Generate(),
			OrgID:       batch.OrgID,
			BatchID:     batch.ID,
			EventID:     batch.EventID,
			Code:        code,
			Status:      engine.SponsorshipPending,
			TotalAmount: batch.AmountPerCode,
			ExpiresAt:   batch.ExpiresAt,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return records, nil
}

func (s *Service) transitionRecord(ctx context.Context, rawID string, from []engine.SponsorshipStatus, to engine.SponsorshipStatus) (domain.SponsorshipRecord, error) {
	record, err := s.findRecord(ctx, rawID)
	if err != nil {
		return domain.SponsorshipRecord{}, err
	}

	ok, err := s.repo.TransitionRecord(ctx, s.db, record.OrgID, record.ID, from, to)
	if err != nil {
		return domain.SponsorshipRecord{}, err
	}
	if !ok {
		return domain.SponsorshipRecord{}, domain.ErrNotTransitionable
	}

	record.Status = to
	return *record, nil
}

func (s *Service) transitionBatch(ctx context.Context, rawID string, from []engine.SponsorshipStatus, to engine.SponsorshipStatus) (int64, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return 0, domain.ErrInvalidOrganization
	}

	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil {
		return 0, domain.ErrInvalidID
	}

	batch, err := s.repo.FindBatchByID(ctx, s.db, orgID, id)
	if err != nil {
		return 0, err
	}
	if batch == nil {
		return 0, domain.ErrNotFound
	}

	return s.repo.TransitionBatch(ctx, s.db, orgID, batch.ID, from, to)
}

func (s *Service) withStats(ctx context.Context, batch domain.SponsorshipBatch) (domain.BatchWithStats, error) {
	issued, consumed, totalAmount, consumedAmount, err := s.repo.BatchStats(ctx, s.db, batch.OrgID, batch.ID)
	if err != nil {
		return domain.BatchWithStats{}, err
	}
	return domain.BatchWithStats{
		SponsorshipBatch: batch,
		IssuedCount:      issued,
		ConsumedCount:    consumed,
		TotalAmount:      totalAmount,
		ConsumedAmount:   consumedAmount,
	}, nil
}

func (s *Service) findRecord(ctx context.Context, rawID string) (*domain.SponsorshipRecord, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	record, err := s.repo.FindRecordByID(ctx, s.db, orgID, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, domain.ErrNotFound
	}
	return record, nil
}

func generateCode(prefix string, length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return prefix + "-" + string(buf), nil
}

func normalizeCoverage(value string) (engine.Coverage, error) {
	coverage := engine.Coverage(strings.ToUpper(strings.TrimSpace(value)))
	switch coverage {
	case "":
		return engine.CoverageAll, nil
	case engine.CoverageAll, engine.CoverageBaseOnly, engine.CoverageAddOns:
		return coverage, nil
	}
	return "", domain.ErrInvalidCoverage
}

func encodeCoveredIDs(coverage engine.Coverage, ids []string) (datatypes.JSON, error) {
	cleaned := make([]string, 0, len(ids))
	for _, raw := range ids {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		if _, err := snowflake.ParseString(trimmed); err != nil {
			return nil, domain.ErrInvalidCoverage
		}
		cleaned = append(cleaned, trimmed)
	}
	if len(cleaned) == 0 {
		return nil, nil
	}
	if coverage != engine.CoverageAddOns {
		return nil, domain.ErrInvalidCoverage
	}
	raw, err := json.Marshal(cleaned)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func normalizePrefix(value, name string) (string, error) {
	prefix := strings.ToUpper(strings.TrimSpace(value))
	if prefix == "" {
		prefix = derivePrefix(name)
	}
	if !prefixPattern.MatchString(prefix) {
		return "", domain.ErrInvalidPrefix
	}
	return prefix, nil
}

// derivePrefix squeezes the batch name down to its letters and digits.
func derivePrefix(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			if b.Len() >= 6 {
				break
			}
		}
	}
	if b.Len() < 2 {
		return "SPONSOR"
	}
	return b.String()
}
