package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	addondomain "github.com/smallbiznis/eventra/internal/addon/domain"
	"github.com/smallbiznis/eventra/internal/cache"
	"github.com/smallbiznis/eventra/internal/cloudmetrics"
	"github.com/smallbiznis/eventra/internal/orgcontext"
	"github.com/smallbiznis/eventra/internal/pricing/domain"
	"github.com/smallbiznis/eventra/internal/pricing/engine"
	referencedomain "github.com/smallbiznis/eventra/internal/reference/domain"
	sponsorshipdomain "github.com/smallbiznis/eventra/internal/sponsorship/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Repo         domain.Repository
	AddOns       addondomain.Repository
	Sponsorships sponsorshipdomain.Service
	Snapshots    cache.SnapshotCache
	Ref          referencedomain.Repository
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	repo         domain.Repository
	addons       addondomain.Repository
	sponsorships sponsorshipdomain.Service
	snapshots    cache.SnapshotCache
	ref          referencedomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("pricing.service"),
		genID:        p.GenID,
		repo:         p.Repo,
		addons:       p.AddOns,
		sponsorships: p.Sponsorships,
		snapshots:    p.Snapshots,
		ref:          p.Ref,
	}
}

func (s *Service) Upsert(ctx context.Context, req domain.UpsertPricingRequest) (domain.EventPricing, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.EventPricing{}, domain.ErrInvalidOrganization
	}

	eventID, err := snowflake.ParseString(strings.TrimSpace(req.EventID))
	if err != nil {
		return domain.EventPricing{}, domain.ErrInvalidEvent
	}
	if req.BasePrice < 0 {
		return domain.EventPricing{}, domain.ErrInvalidPrice
	}
	currency, err := normalizeCurrency(req.Currency)
	if err != nil {
		return domain.EventPricing{}, err
	}
	known, err := s.currencyExists(ctx, currency)
	if err != nil {
		return domain.EventPricing{}, err
	}
	if !known {
		return domain.EventPricing{}, domain.ErrInvalidCurrency
	}

	existing, err := s.repo.FindPricingByEvent(ctx, s.db, orgID, eventID)
	if err != nil {
		return domain.EventPricing{}, err
	}

	now := time.Now().UTC()
	if existing == nil {
		pricing := domain.EventPricing{
			ID:        s.genID.Generate(),
			OrgID:     orgID,
			EventID:   eventID,
			BasePrice: req.BasePrice,
			Currency:  currency,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.InsertPricing(ctx, s.db, &pricing); err != nil {
			return domain.EventPricing{}, err
		}
		s.Invalidate(orgID, eventID)
		return pricing, nil
	}

	existing.BasePrice = req.BasePrice
	existing.Currency = currency
	existing.UpdatedAt = now
	if err := s.repo.UpdatePricing(ctx, s.db, existing); err != nil {
		return domain.EventPricing{}, err
	}
	s.Invalidate(orgID, eventID)
	return *existing, nil
}

func (s *Service) GetByEvent(ctx context.Context, req domain.GetPricingRequest) (domain.PricingWithRules, error) {
	orgID, eventID, err := s.resolveEvent(ctx, req.EventID)
	if err != nil {
		return domain.PricingWithRules{}, err
	}

	pricing, err := s.repo.FindPricingByEvent(ctx, s.db, orgID, eventID)
	if err != nil {
		return domain.PricingWithRules{}, err
	}
	if pricing == nil {
		return domain.PricingWithRules{}, domain.ErrNotFound
	}

	rules, err := s.repo.ListRules(ctx, s.db, orgID, pricing.ID)
	if err != nil {
		return domain.PricingWithRules{}, err
	}
	return domain.PricingWithRules{EventPricing: *pricing, Rules: rules}, nil
}

func (s *Service) AddRule(ctx context.Context, req domain.CreateRuleRequest) (domain.PricingRule, error) {
	orgID, eventID, err := s.resolveEvent(ctx, req.EventID)
	if err != nil {
		return domain.PricingRule{}, err
	}

	pricing, err := s.repo.FindPricingByEvent(ctx, s.db, orgID, eventID)
	if err != nil {
		return domain.PricingRule{}, err
	}
	if pricing == nil {
		return domain.PricingRule{}, domain.ErrNotFound
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.PricingRule{}, domain.ErrInvalidName
	}
	if req.Price < 0 {
		return domain.PricingRule{}, domain.ErrInvalidPrice
	}
	conditions, err := encodeConditions(req.Conditions)
	if err != nil {
		return domain.PricingRule{}, err
	}
	logic, err := normalizeLogic(req.ConditionLogic)
	if err != nil {
		return domain.PricingRule{}, err
	}

	existing, err := s.repo.ListRules(ctx, s.db, orgID, pricing.ID)
	if err != nil {
		return domain.PricingRule{}, err
	}

	now := time.Now().UTC()
	rule := domain.PricingRule{
		ID:             s.genID.Generate(),
		OrgID:          orgID,
		PricingID:      pricing.ID,
		Name:           name,
		Description:    strings.TrimSpace(req.Description),
		Price:          req.Price,
		Conditions:     conditions,
		ConditionLogic: logic,
		Priority:       req.Priority,
		Active:         true,
		Position:       len(existing),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.InsertRule(ctx, s.db, &rule); err != nil {
		return domain.PricingRule{}, err
	}
	s.Invalidate(orgID, eventID)
	return rule, nil
}

func (s *Service) UpdateRule(ctx context.Context, req domain.UpdateRuleRequest) (domain.PricingRule, error) {
	orgID, eventID, rule, err := s.findRule(ctx, req.EventID, req.RuleID)
	if err != nil {
		return domain.PricingRule{}, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.PricingRule{}, domain.ErrInvalidName
		}
		rule.Name = name
	}
	if req.Description != nil {
		rule.Description = strings.TrimSpace(*req.Description)
	}
	if req.Price != nil {
		if *req.Price < 0 {
			return domain.PricingRule{}, domain.ErrInvalidPrice
		}
		rule.Price = *req.Price
	}
	if req.Conditions != nil {
		conditions, err := encodeConditions(*req.Conditions)
		if err != nil {
			return domain.PricingRule{}, err
		}
		rule.Conditions = conditions
	}
	if req.ConditionLogic != nil {
		logic, err := normalizeLogic(*req.ConditionLogic)
		if err != nil {
			return domain.PricingRule{}, err
		}
		rule.ConditionLogic = logic
	}
	if req.Priority != nil {
		rule.Priority = *req.Priority
	}
	if req.Active != nil {
		rule.Active = *req.Active
	}

	if err := s.repo.UpdateRule(ctx, s.db, rule); err != nil {
		return domain.PricingRule{}, err
	}
	s.Invalidate(orgID, eventID)
	return *rule, nil
}

func (s *Service) RemoveRule(ctx context.Context, req domain.RuleRequest) error {
	orgID, eventID, rule, err := s.findRule(ctx, req.EventID, req.RuleID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteRule(ctx, s.db, orgID, rule.PricingID, rule.ID); err != nil {
		return err
	}
	s.Invalidate(orgID, eventID)
	return nil
}

func (s *Service) ReorderRules(ctx context.Context, req domain.ReorderRulesRequest) ([]domain.PricingRule, error) {
	orgID, eventID, err := s.resolveEvent(ctx, req.EventID)
	if err != nil {
		return nil, err
	}

	pricing, err := s.repo.FindPricingByEvent(ctx, s.db, orgID, eventID)
	if err != nil {
		return nil, err
	}
	if pricing == nil {
		return nil, domain.ErrNotFound
	}

	rules, err := s.repo.ListRules(ctx, s.db, orgID, pricing.ID)
	if err != nil {
		return nil, err
	}
	if len(req.RuleIDs) != len(rules) {
		return nil, domain.ErrInvalidReorder
	}

	known := make(map[snowflake.ID]bool, len(rules))
	for _, rule := range rules {
		known[rule.ID] = true
	}

	// The request must be an exact permutation of the current rule set.
	ordered := make([]snowflake.ID, 0, len(req.RuleIDs))
	seen := make(map[snowflake.ID]bool, len(req.RuleIDs))
	for _, raw := range req.RuleIDs {
		id, err := snowflake.ParseString(strings.TrimSpace(raw))
		if err != nil || !known[id] || seen[id] {
			return nil, domain.ErrInvalidReorder
		}
		seen[id] = true
		ordered = append(ordered, id)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for position, id := range ordered {
			if err := s.repo.UpdateRulePosition(ctx, tx, orgID, pricing.ID, id, position); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Invalidate(orgID, eventID)
	return s.repo.ListRules(ctx, s.db, orgID, pricing.ID)
}

func (s *Service) Preview(ctx context.Context, req domain.PreviewRequest) (engine.Breakdown, error) {
	orgID, eventID, err := s.resolveEvent(ctx, req.EventID)
	if err != nil {
		return engine.Breakdown{}, err
	}

	snapshot, err := s.Snapshot(ctx, orgID, eventID)
	if err != nil {
		return engine.Breakdown{}, err
	}

	breakdown, err := engine.Calculate(snapshot, s.lookupFunc(ctx, orgID, eventID), engine.Request{
		FormData:         req.FormData,
		SelectedAddOns:   req.SelectedAddOns,
		SponsorshipCodes: req.SponsorshipCodes,
	})
	if err != nil {
		cloudmetrics.RecordEngineError(orgID.String(), "preview")
		return engine.Breakdown{}, err
	}
	return breakdown, nil
}

func (s *Service) Snapshot(ctx context.Context, orgID, eventID snowflake.ID) (*engine.Snapshot, error) {
	if snapshot, ok := s.snapshots.Get(orgID.String(), eventID.String()); ok {
		return snapshot, nil
	}

	pricing, err := s.repo.FindPricingByEvent(ctx, s.db, orgID, eventID)
	if err != nil {
		return nil, err
	}
	if pricing == nil {
		return nil, nil
	}

	rules, err := s.repo.ListRules(ctx, s.db, orgID, pricing.ID)
	if err != nil {
		return nil, err
	}
	// Archived add-ons stay in the snapshot so selecting one reports
	// add_on_inactive instead of an unknown id.
	addOns, err := s.addons.ListByEvent(ctx, s.db, orgID, eventID, nil)
	if err != nil {
		return nil, err
	}

	snapshot := &engine.Snapshot{
		BasePrice: pricing.BasePrice,
		Currency:  pricing.Currency,
		Rules:     make([]engine.Rule, 0, len(rules)),
		AddOns:    make([]engine.AddOn, 0, len(addOns)),
	}
	for _, rule := range rules {
		snapshot.Rules = append(snapshot.Rules, rule.EngineRule())
	}
	for _, item := range addOns {
		snapshot.AddOns = append(snapshot.AddOns, item.EngineAddOn())
	}

	s.snapshots.Set(orgID.String(), eventID.String(), snapshot)
	return snapshot, nil
}

func (s *Service) Invalidate(orgID, eventID snowflake.ID) {
	s.snapshots.Invalidate(orgID.String(), eventID.String())
}

// lookupFunc binds sponsorship resolution for one event. Lookup failures
// degrade to a missing code, which the engine reports as an invalid line.
func (s *Service) lookupFunc(ctx context.Context, orgID, eventID snowflake.ID) engine.LookupFunc {
	return func(code string) *engine.Sponsorship {
		view, err := s.sponsorships.ResolveForPricing(ctx, orgID, eventID, code)
		if err != nil {
			s.log.Warn("sponsorship lookup failed",
				zap.String("event_id", eventID.String()),
				zap.Error(err),
			)
			return nil
		}
		return view
	}
}

func (s *Service) resolveEvent(ctx context.Context, rawEventID string) (snowflake.ID, snowflake.ID, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return 0, 0, domain.ErrInvalidOrganization
	}
	eventID, err := snowflake.ParseString(strings.TrimSpace(rawEventID))
	if err != nil {
		return 0, 0, domain.ErrInvalidEvent
	}
	return orgID, eventID, nil
}

func (s *Service) findRule(ctx context.Context, rawEventID, rawRuleID string) (snowflake.ID, snowflake.ID, *domain.PricingRule, error) {
	orgID, eventID, err := s.resolveEvent(ctx, rawEventID)
	if err != nil {
		return 0, 0, nil, err
	}

	ruleID, err := snowflake.ParseString(strings.TrimSpace(rawRuleID))
	if err != nil {
		return 0, 0, nil, domain.ErrInvalidID
	}

	pricing, err := s.repo.FindPricingByEvent(ctx, s.db, orgID, eventID)
	if err != nil {
		return 0, 0, nil, err
	}
	if pricing == nil {
		return 0, 0, nil, domain.ErrNotFound
	}

	rule, err := s.repo.FindRuleByID(ctx, s.db, orgID, pricing.ID, ruleID)
	if err != nil {
		return 0, 0, nil, err
	}
	if rule == nil {
		return 0, 0, nil, domain.ErrRuleNotFound
	}
	return orgID, eventID, rule, nil
}

func encodeConditions(conditions []engine.Condition) (datatypes.JSON, error) {
	if len(conditions) == 0 {
		return nil, nil
	}
	if err := engine.ValidateConditions(conditions); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(conditions)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func normalizeLogic(value string) (engine.Logic, error) {
	logic := engine.Logic(strings.ToUpper(strings.TrimSpace(value)))
	if logic == "" {
		return engine.LogicAnd, nil
	}
	if !logic.Valid() {
		return "", domain.ErrInvalidLogic
	}
	return logic, nil
}

func (s *Service) currencyExists(ctx context.Context, code string) (bool, error) {
	currencies, err := s.ref.ListCurrencies(ctx)
	if err != nil {
		return false, err
	}
	for _, currency := range currencies {
		if currency.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func normalizeCurrency(value string) (string, error) {
	currency := strings.ToUpper(strings.TrimSpace(value))
	if len(currency) != 3 {
		return "", domain.ErrInvalidCurrency
	}
	for _, r := range currency {
		if r < 'A' || r > 'Z' {
			return "", domain.ErrInvalidCurrency
		}
	}
	return currency, nil
}
