// Package provisioning consumes organization.created outbox events and seeds
// the per-organization rows every other context expects to exist: the
// registration settings policy row and the current-year receipt counter.
package provisioning

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	organizationevent "github.com/smallbiznis/eventra/internal/organization/event"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	batchSize        = 50
	fallbackCurrency = "USD"
)

type Consumer struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func NewConsumer(db *gorm.DB, log *zap.Logger, genID *snowflake.Node) *Consumer {
	return &Consumer{
		db:    db,
		log:   log.Named("organization.provisioning"),
		genID: genID,
	}
}

type eventRow struct {
	ID      snowflake.ID   `gorm:"column:id"`
	OrgID   snowflake.ID   `gorm:"column:org_id"`
	Payload datatypes.JSON `gorm:"column:payload"`
}

type organizationCreatedPayload struct {
	OrganizationID  string `json:"organization_id"`
	OwnerUserID     string `json:"owner_user_id"`
	Slug            string `json:"slug"`
	CountryCode     string `json:"country_code"`
	TimezoneName    string `json:"timezone_name"`
	DefaultCurrency string `json:"default_currency"`
	CreatedAt       string `json:"created_at"`
}

// ProcessPending provisions organizations for unpublished outbox events and
// returns how many it published. A failed event stays unpublished and is
// retried on the next pass.
func (c *Consumer) ProcessPending(ctx context.Context) (int, error) {
	var events []eventRow
	err := c.db.WithContext(ctx).Raw(
		`SELECT id, org_id, payload FROM outbox_events
		 WHERE event_type = ? AND published = false
		 ORDER BY created_at ASC
		 LIMIT ?`,
		organizationevent.OrganizationCreatedTopic,
		batchSize,
	).Scan(&events).Error
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, event := range events {
		if err := c.processEvent(ctx, event); err != nil {
			c.log.Error("failed to provision organization", zap.Error(err), zap.String("organization_id", event.OrgID.String()))
			continue
		}
		processed++
	}

	return processed, nil
}

func (c *Consumer) processEvent(ctx context.Context, event eventRow) error {
	var payload organizationCreatedPayload
	if err := json.Unmarshal([]byte(event.Payload), &payload); err != nil {
		return err
	}

	if payload.OrganizationID == "" {
		return errors.New("missing organization_id")
	}

	orgID, err := snowflake.ParseString(payload.OrganizationID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		currency, err := c.resolveCurrency(ctx, tx, payload.DefaultCurrency)
		if err != nil {
			return err
		}

		settingsExist, err := c.registrationSettingsExist(ctx, tx, orgID)
		if err != nil {
			return err
		}
		if !settingsExist {
			if err := c.createRegistrationSettings(ctx, tx, orgID, currency, now); err != nil {
				return err
			}
		}

		if err := c.seedReceiptCounter(ctx, tx, orgID, now); err != nil {
			return err
		}

		return c.markPublished(ctx, tx, event.ID, now)
	})
}

// resolveCurrency verifies the requested currency against the reference
// table, falling back to USD when it is unknown or inactive.
func (c *Consumer) resolveCurrency(ctx context.Context, tx *gorm.DB, code string) (string, error) {
	if code == "" {
		return fallbackCurrency, nil
	}

	var count int64
	if err := tx.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM currencies WHERE code = ? AND is_active = true`,
		code,
	).Scan(&count).Error; err != nil {
		return "", err
	}
	if count == 0 {
		c.log.Warn("unknown default currency, falling back", zap.String("currency", code))
		return fallbackCurrency, nil
	}

	return code, nil
}

func (c *Consumer) registrationSettingsExist(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) (bool, error) {
	var count int64
	if err := tx.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM registration_settings WHERE org_id = ?`,
		orgID,
	).Scan(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (c *Consumer) createRegistrationSettings(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, currency string, now time.Time) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO registration_settings (org_id, require_review, waitlist_enabled, default_currency, created_at, updated_at)
		 VALUES (?, false, false, ?, ?, ?)`,
		orgID,
		currency,
		now,
		now,
	).Error
}

// seedReceiptCounter creates the current-year counter at zero. Issuing
// increments it on demand, so an existing row is left alone.
func (c *Consumer) seedReceiptCounter(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, now time.Time) error {
	year := now.Year()

	var count int64
	if err := tx.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM receipt_counters WHERE org_id = ? AND year = ?`,
		orgID,
		year,
	).Scan(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	return tx.WithContext(ctx).Exec(
		`INSERT INTO receipt_counters (org_id, year, value, updated_at)
		 VALUES (?, ?, 0, ?)`,
		orgID,
		year,
		now,
	).Error
}

func (c *Consumer) markPublished(ctx context.Context, tx *gorm.DB, eventID snowflake.ID, now time.Time) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE outbox_events SET published = true, published_at = ? WHERE id = ?`,
		now,
		eventID,
	).Error
}
