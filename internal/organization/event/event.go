// Package event writes organization lifecycle events to the outbox table so
// the provisioning consumer can pick them up after commit.
package event

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const OrganizationCreatedTopic = "organization.created"

// OutboxEvent is a transactional outbox row. Rows are inserted in the same
// transaction as the state change they describe and published asynchronously.
type OutboxEvent struct {
	ID          snowflake.ID   `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID   `gorm:"not null;index" json:"org_id"`
	EventType   string         `gorm:"type:text;not null;index" json:"event_type"`
	Payload     datatypes.JSON `gorm:"type:jsonb;not null" json:"payload"`
	Published   bool           `gorm:"not null;default:false;index" json:"published"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (OutboxEvent) TableName() string { return "outbox_events" }

type EventPublisher interface {
	// WithTx returns a publisher that writes through tx, so the outbox row
	// commits or rolls back with the caller's transaction.
	WithTx(tx *gorm.DB) EventPublisher
	Publish(ctx context.Context, topic string, payload []byte) error
}

type outboxPublisher struct {
	db    *gorm.DB
	genID *snowflake.Node
}

func NewOutboxPublisher(db *gorm.DB, genID *snowflake.Node) EventPublisher {
	return &outboxPublisher{
		db:    db,
		genID: genID,
	}
}

func (p *outboxPublisher) WithTx(tx *gorm.DB) EventPublisher {
	return &outboxPublisher{db: tx, genID: p.genID}
}

type organizationCreatedPayload struct {
	OrganizationID string `json:"organization_id"`
}

func (p *outboxPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	var parsed organizationCreatedPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return err
	}

	orgID := strings.TrimSpace(parsed.OrganizationID)
	if orgID == "" {
		return errors.New("missing organization_id")
	}

	parsedID, err := snowflake.ParseString(orgID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	return p.db.WithContext(ctx).Exec(
		`INSERT INTO outbox_events (id, org_id, event_type, payload, published, created_at)
		 VALUES (?, ?, ?, ?, false, ?)`,
		p.genID.Generate(),
		parsedID,
		topic,
		datatypes.JSON(payload),
		now,
	).Error
}
