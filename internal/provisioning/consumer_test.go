package provisioning

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	organizationevent "github.com/smallbiznis/eventra/internal/organization/event"
	receiptdomain "github.com/smallbiznis/eventra/internal/receipt/domain"
	referencedomain "github.com/smallbiznis/eventra/internal/reference/domain"
	registrationdomain "github.com/smallbiznis/eventra/internal/registration/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type provisioningFixture struct {
	consumer *Consumer
	db       *gorm.DB
	node     *snowflake.Node
}

func setupProvisioning(t *testing.T) *provisioningFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&organizationevent.OutboxEvent{},
		&referencedomain.Currency{},
		&registrationdomain.RegistrationSettings{},
		&receiptdomain.ReceiptCounter{},
	))

	require.NoError(t, db.Create(&referencedomain.Currency{Code: "USD", Name: "US Dollar", MinorUnit: 2, IsActive: true}).Error)
	require.NoError(t, db.Create(&referencedomain.Currency{Code: "EUR", Name: "Euro", MinorUnit: 2, IsActive: true}).Error)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return &provisioningFixture{
		consumer: NewConsumer(db, zap.NewNop(), node),
		db:       db,
		node:     node,
	}
}

func (f *provisioningFixture) enqueueCreated(t *testing.T, orgID snowflake.ID, currency string) snowflake.ID {
	t.Helper()

	payload, err := json.Marshal(map[string]string{
		"organization_id":  orgID.String(),
		"owner_user_id":    f.node.Generate().String(),
		"slug":             "org-" + orgID.String(),
		"country_code":     "US",
		"timezone_name":    "America/New_York",
		"default_currency": currency,
		"created_at":       time.Now().UTC().Format(time.RFC3339),
	})
	require.NoError(t, err)

	row := organizationevent.OutboxEvent{
		ID:        f.node.Generate(),
		OrgID:     orgID,
		EventType: organizationevent.OrganizationCreatedTopic,
		Payload:   datatypes.JSON(payload),
	}
	require.NoError(t, f.db.Create(&row).Error)
	return row.ID
}

func (f *provisioningFixture) loadEvent(t *testing.T, id snowflake.ID) organizationevent.OutboxEvent {
	t.Helper()
	var row organizationevent.OutboxEvent
	require.NoError(t, f.db.First(&row, "id = ?", id).Error)
	return row
}

func TestProcessPendingProvisionsOrganization(t *testing.T) {
	f := setupProvisioning(t)
	orgID := f.node.Generate()
	eventID := f.enqueueCreated(t, orgID, "EUR")

	processed, err := f.consumer.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	var settings registrationdomain.RegistrationSettings
	require.NoError(t, f.db.First(&settings, "org_id = ?", orgID).Error)
	assert.Equal(t, "EUR", settings.DefaultCurrency)
	assert.False(t, settings.RequireReview)
	assert.False(t, settings.WaitlistEnabled)

	var counter receiptdomain.ReceiptCounter
	require.NoError(t, f.db.First(&counter, "org_id = ?", orgID).Error)
	assert.Equal(t, time.Now().UTC().Year(), counter.Year)
	assert.EqualValues(t, 0, counter.Value)

	row := f.loadEvent(t, eventID)
	assert.True(t, row.Published)
	require.NotNil(t, row.PublishedAt)
}

func TestProcessPendingFallsBackToUSD(t *testing.T) {
	f := setupProvisioning(t)
	orgID := f.node.Generate()
	f.enqueueCreated(t, orgID, "XTS")

	processed, err := f.consumer.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	var settings registrationdomain.RegistrationSettings
	require.NoError(t, f.db.First(&settings, "org_id = ?", orgID).Error)
	assert.Equal(t, "USD", settings.DefaultCurrency)
}

func TestProcessPendingKeepsExistingRows(t *testing.T) {
	f := setupProvisioning(t)
	orgID := f.node.Generate()

	require.NoError(t, f.db.Create(&registrationdomain.RegistrationSettings{
		OrgID:           orgID,
		DefaultCurrency: "EUR",
	}).Error)
	require.NoError(t, f.db.Create(&receiptdomain.ReceiptCounter{
		OrgID: orgID,
		Year:  time.Now().UTC().Year(),
		Value: 7,
	}).Error)

	eventID := f.enqueueCreated(t, orgID, "USD")
	processed, err := f.consumer.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	var settingsCount int64
	require.NoError(t, f.db.Model(&registrationdomain.RegistrationSettings{}).Where("org_id = ?", orgID).Count(&settingsCount).Error)
	assert.EqualValues(t, 1, settingsCount)

	var settings registrationdomain.RegistrationSettings
	require.NoError(t, f.db.First(&settings, "org_id = ?", orgID).Error)
	assert.Equal(t, "EUR", settings.DefaultCurrency)

	var counter receiptdomain.ReceiptCounter
	require.NoError(t, f.db.First(&counter, "org_id = ?", orgID).Error)
	assert.EqualValues(t, 7, counter.Value)

	assert.True(t, f.loadEvent(t, eventID).Published)
}

func TestProcessPendingSkipsForeignAndPublished(t *testing.T) {
	f := setupProvisioning(t)

	foreign := organizationevent.OutboxEvent{
		ID:        f.node.Generate(),
		OrgID:     f.node.Generate(),
		EventType: "organization.renamed",
		Payload:   datatypes.JSON(`{}`),
	}
	require.NoError(t, f.db.Create(&foreign).Error)

	doneAt := time.Now().UTC()
	done := organizationevent.OutboxEvent{
		ID:          f.node.Generate(),
		OrgID:       f.node.Generate(),
		EventType:   organizationevent.OrganizationCreatedTopic,
		Payload:     datatypes.JSON(`{"organization_id":"` + f.node.Generate().String() + `"}`),
		Published:   true,
		PublishedAt: &doneAt,
	}
	require.NoError(t, f.db.Create(&done).Error)

	processed, err := f.consumer.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, processed)

	var settingsCount int64
	require.NoError(t, f.db.Model(&registrationdomain.RegistrationSettings{}).Count(&settingsCount).Error)
	assert.EqualValues(t, 0, settingsCount)

	assert.False(t, f.loadEvent(t, foreign.ID).Published)
}

func TestProcessPendingLeavesBadEventUnpublished(t *testing.T) {
	f := setupProvisioning(t)

	bad := organizationevent.OutboxEvent{
		ID:        f.node.Generate(),
		OrgID:     f.node.Generate(),
		EventType: organizationevent.OrganizationCreatedTopic,
		Payload:   datatypes.JSON(`{"organization_id":""}`),
	}
	require.NoError(t, f.db.Create(&bad).Error)

	goodOrg := f.node.Generate()
	goodID := f.enqueueCreated(t, goodOrg, "USD")

	processed, err := f.consumer.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	assert.False(t, f.loadEvent(t, bad.ID).Published)
	assert.True(t, f.loadEvent(t, goodID).Published)

	var settings registrationdomain.RegistrationSettings
	require.NoError(t, f.db.First(&settings, "org_id = ?", goodOrg).Error)
	assert.Equal(t, "USD", settings.DefaultCurrency)
}
