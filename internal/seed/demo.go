package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	addondomain "github.com/smallbiznis/eventra/internal/addon/domain"
	clientdomain "github.com/smallbiznis/eventra/internal/client/domain"
	eventdomain "github.com/smallbiznis/eventra/internal/event/domain"
	formdomain "github.com/smallbiznis/eventra/internal/form/domain"
	organizationdomain "github.com/smallbiznis/eventra/internal/organization/domain"
	pricingdomain "github.com/smallbiznis/eventra/internal/pricing/domain"
	"github.com/smallbiznis/eventra/internal/pricing/engine"
	sponsorshipdomain "github.com/smallbiznis/eventra/internal/sponsorship/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	demoEventSlug   = "devconf-demo"
	demoEventTitle  = "DevConf Demo"
	demoClientName  = "Globex Corporation"
	demoCodePrefix  = "GLOBEX"
	demoCodeAmount  = int64(5000)
	demoCodeCount   = 5
	demoBasePrice   = int64(15000)
	demoStudentRate = int64(7500)
)

// EnsureDemoData seeds a sample event under the default organization so a
// fresh install has something to click through: a published event with a
// registration form, pricing rules, add-ons and an active sponsorship batch.
// It is a no-op when the demo event already exists.
func EnsureDemoData(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var org organizationdomain.Organization
		if err := tx.WithContext(ctx).Where("slug = ?", defaultOrgSlug).First(&org).Error; err != nil {
			return fmt.Errorf("demo seed requires the default organization: %w", err)
		}

		var existing eventdomain.Event
		err := tx.WithContext(ctx).
			Where("org_id = ? AND slug = ?", org.ID, demoEventSlug).
			First(&existing).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return createDemoDataTx(ctx, tx, node, org.ID)
	})
}

func createDemoDataTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, orgID snowflake.ID) error {
	now := time.Now().UTC()

	client := clientdomain.Client{
		ID:           node.Generate(),
		OrgID:        orgID,
		Name:         demoClientName,
		ContactName:  "Hank Scorpio",
		ContactEmail: "sponsorships@globex.example",
		Active:       true,
		Metadata:     datatypes.JSONMap{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := tx.WithContext(ctx).Create(&client).Error; err != nil {
		return err
	}

	starts := now.AddDate(0, 0, 30).Truncate(time.Hour)
	ends := starts.Add(48 * time.Hour)
	capacity := int64(200)
	event := eventdomain.Event{
		ID:          node.Generate(),
		OrgID:       orgID,
		ClientID:    &client.ID,
		Title:       demoEventTitle,
		Slug:        demoEventSlug,
		Description: "Two-day developer conference seeded for evaluation.",
		Location:    "Online",
		Timezone:    "UTC",
		StartsAt:    &starts,
		EndsAt:      &ends,
		Status:      eventdomain.EventPublished,
		MaxCapacity: &capacity,
		Metadata:    datatypes.JSONMap{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.WithContext(ctx).Create(&event).Error; err != nil {
		return err
	}

	pricing := pricingdomain.EventPricing{
		ID:        node.Generate(),
		OrgID:     orgID,
		EventID:   event.ID,
		BasePrice: demoBasePrice,
		Currency:  defaultOrgCurrency,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(&pricing).Error; err != nil {
		return err
	}

	rules := []pricingdomain.PricingRule{
		{
			ID:          node.Generate(),
			OrgID:       orgID,
			PricingID:   pricing.ID,
			Name:        "Student rate",
			Description: "Discounted admission for students.",
			Price:       demoStudentRate,
			Conditions: mustConditionsJSON([]engine.Condition{
				{FieldID: "ticket_type", Operator: engine.OpEquals, Value: "student"},
			}),
			ConditionLogic: engine.LogicAnd,
			Priority:       10,
			Active:         true,
			Position:       0,
			CreatedAt:      now,
			UpdatedAt:      now,
		},
		{
			ID:          node.Generate(),
			OrgID:       orgID,
			PricingID:   pricing.ID,
			Name:        "Speaker pass",
			Description: "Speakers attend free of charge.",
			Price:       0,
			Conditions: mustConditionsJSON([]engine.Condition{
				{FieldID: "ticket_type", Operator: engine.OpEquals, Value: "speaker"},
			}),
			ConditionLogic: engine.LogicAnd,
			Priority:       20,
			Active:         true,
			Position:       1,
			CreatedAt:      now,
			UpdatedAt:      now,
		},
	}
	for i := range rules {
		if err := tx.WithContext(ctx).Create(&rules[i]).Error; err != nil {
			return err
		}
	}

	form := formdomain.RegistrationForm{
		ID:        node.Generate(),
		OrgID:     orgID,
		EventID:   event.ID,
		Title:     "Attendee details",
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(&form).Error; err != nil {
		return err
	}

	fields := []formdomain.FormField{
		{
			ID:        node.Generate(),
			OrgID:     orgID,
			FormID:    form.ID,
			Key:       "ticket_type",
			Label:     "Ticket type",
			Type:      formdomain.FieldSelect,
			Required:  true,
			Options:   mustStringsJSON([]string{"standard", "student", "speaker"}),
			Position:  0,
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:        node.Generate(),
			OrgID:     orgID,
			FormID:    form.ID,
			Key:       "company",
			Label:     "Company",
			Type:      formdomain.FieldText,
			HelpText:  "Shown on your badge.",
			Position:  1,
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:        node.Generate(),
			OrgID:     orgID,
			FormID:    form.ID,
			Key:       "dietary",
			Label:     "Dietary requirements",
			Type:      formdomain.FieldMultiSelect,
			Options:   mustStringsJSON([]string{"vegetarian", "vegan", "gluten_free"}),
			Position:  2,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	for i := range fields {
		if err := tx.WithContext(ctx).Create(&fields[i]).Error; err != nil {
			return err
		}
	}

	workshopCap := int64(50)
	addOns := []addondomain.AddOnItem{
		{
			ID:             node.Generate(),
			OrgID:          orgID,
			EventID:        event.ID,
			Name:           "Workshop pass",
			Description:    "Hands-on workshop track on day two.",
			UnitPrice:      4000,
			Currency:       defaultOrgCurrency,
			MaxCapacity:    &workshopCap,
			ConditionLogic: engine.LogicAnd,
			Active:         true,
			Position:       0,
			CreatedAt:      now,
			UpdatedAt:      now,
		},
		{
			ID:          node.Generate(),
			OrgID:       orgID,
			EventID:     event.ID,
			Name:        "Conference dinner",
			Description: "Seated dinner, not offered to speakers.",
			UnitPrice:   6000,
			Currency:    defaultOrgCurrency,
			Conditions: mustConditionsJSON([]engine.Condition{
				{FieldID: "ticket_type", Operator: engine.OpNotEquals, Value: "speaker"},
			}),
			ConditionLogic: engine.LogicAnd,
			Active:         true,
			Position:       1,
			CreatedAt:      now,
			UpdatedAt:      now,
		},
	}
	for i := range addOns {
		if err := tx.WithContext(ctx).Create(&addOns[i]).Error; err != nil {
			return err
		}
	}

	batch := sponsorshipdomain.SponsorshipBatch{
		ID:            node.Generate(),
		OrgID:         orgID,
		EventID:       event.ID,
		ClientID:      &client.ID,
		Name:          "Globex attendee sponsorship",
		CodePrefix:    demoCodePrefix,
		Quantity:      demoCodeCount,
		AmountPerCode: demoCodeAmount,
		Currency:      defaultOrgCurrency,
		Coverage:      engine.CoverageAll,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := tx.WithContext(ctx).Create(&batch).Error; err != nil {
		return err
	}

	for i := 0; i < demoCodeCount; i++ {
		record := sponsorshipdomain.SponsorshipRecord{
			ID:          node.Generate(),
			OrgID:       orgID,
			BatchID:     batch.ID,
			EventID:     event.ID,
			Code:        fmt.Sprintf("%s-DEMO%02d", demoCodePrefix, i+1),
			Status:      engine.SponsorshipActive,
			TotalAmount: demoCodeAmount,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.WithContext(ctx).Create(&record).Error; err != nil {
			return err
		}
	}

	return nil
}

func mustConditionsJSON(conditions []engine.Condition) datatypes.JSON {
	raw, err := json.Marshal(conditions)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

func mustStringsJSON(values []string) datatypes.JSON {
	raw, err := json.Marshal(values)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}
