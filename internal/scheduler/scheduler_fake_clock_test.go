package scheduler

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	alertrepo "github.com/smallbiznis/eventra/internal/alert/repository"
	alertservice "github.com/smallbiznis/eventra/internal/alert/service"
	auditdomain "github.com/smallbiznis/eventra/internal/audit/domain"
	"github.com/smallbiznis/eventra/internal/clock"
	obsmetrics "github.com/smallbiznis/eventra/internal/observability/metrics"
	"github.com/smallbiznis/eventra/internal/pricing/engine"
	"github.com/smallbiznis/eventra/internal/provisioning"
	sponsorshiprepo "github.com/smallbiznis/eventra/internal/sponsorship/repository"
	sponsorshipservice "github.com/smallbiznis/eventra/internal/sponsorship/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Mocks for dependencies

type mockAuditSvc struct{}

func (m *mockAuditSvc) AuditLog(ctx context.Context, orgID *snowflake.ID, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error {
	return nil
}

func (m *mockAuditSvc) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return auditdomain.ListAuditLogResponse{}, nil
}

type mockAuthzSvc struct{}

func (m *mockAuthzSvc) Authorize(ctx context.Context, actor string, orgID string, object string, action string) error {
	return nil
}

// TestScheduler_RunOnce_FakeClock_14Days drives the maintenance sweeps over a
// simulated two-week window and checks every job leaves the right state behind.
func TestScheduler_RunOnce_FakeClock_14Days(t *testing.T) {
	// 1. Setup DB
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	// SQLite support hack: remove FOR UPDATE clauses
	db.Callback().Query().Before("gorm:query").Register("sqlite_skip_locked", func(d *gorm.DB) {
		sql := d.Statement.SQL.String()
		if strings.Contains(sql, "FOR UPDATE") {
			newSQL := strings.ReplaceAll(sql, "FOR UPDATE SKIP LOCKED", "")
			newSQL = strings.ReplaceAll(newSQL, "FOR UPDATE", "")
			d.Statement.SQL.Reset()
			d.Statement.SQL.WriteString(newSQL)
		}
	})
	db.Callback().Row().Before("gorm:row").Register("sqlite_skip_locked_row", func(d *gorm.DB) {
		sql := d.Statement.SQL.String()
		if strings.Contains(sql, "FOR UPDATE") {
			newSQL := strings.ReplaceAll(sql, "FOR UPDATE SKIP LOCKED", "")
			newSQL = strings.ReplaceAll(newSQL, "FOR UPDATE", "")
			d.Statement.SQL.Reset()
			d.Statement.SQL.WriteString(newSQL)
		}
	})

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	// Create tables touched by the scheduler jobs
	ddl := []string{
		`CREATE TABLE events (
			id INTEGER PRIMARY KEY,
			org_id INTEGER,
			title TEXT,
			status TEXT,
			max_capacity INTEGER,
			registered_count INTEGER
		)`,
		`CREATE TABLE capacity_alerts (
			id INTEGER PRIMARY KEY,
			org_id INTEGER,
			event_id INTEGER,
			threshold_pct REAL,
			max_capacity INTEGER,
			registered_count INTEGER,
			status TEXT,
			raised_at DATETIME,
			resolved_at DATETIME,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE sponsorship_records (
			id INTEGER PRIMARY KEY,
			org_id INTEGER,
			status TEXT,
			expires_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE sessions (
			id INTEGER PRIMARY KEY,
			expires_at DATETIME,
			revoked_at DATETIME
		)`,
		`CREATE TABLE outbox_events (
			id INTEGER PRIMARY KEY,
			org_id INTEGER,
			event_type TEXT,
			payload TEXT,
			published BOOLEAN,
			published_at DATETIME,
			created_at DATETIME
		)`,
		`CREATE TABLE registration_settings (
			org_id INTEGER PRIMARY KEY,
			require_review BOOLEAN,
			waitlist_enabled BOOLEAN,
			default_currency TEXT,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE receipt_counters (
			org_id INTEGER,
			year INTEGER,
			value INTEGER,
			updated_at DATETIME
		)`,
		`CREATE TABLE currencies (
			code TEXT PRIMARY KEY,
			is_active BOOLEAN
		)`,
	}
	for _, stmt := range ddl {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}

	// 2. Setup Dependencies
	node, _ := snowflake.NewNode(1)
	startTime := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	fakeClock := clock.NewFakeClock(startTime)

	registry := prometheus.NewRegistry()
	restore := swapPrometheusRegistry(registry)
	defer restore()
	obsmetrics.ResetSchedulerMetricsForTest()
	obsmetrics.SchedulerWithConfig(obsmetrics.Config{ServiceName: "eventra", Environment: "test"})

	log := zap.NewNop()
	sponsorshipSvc := sponsorshipservice.New(sponsorshipservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Repo:  sponsorshiprepo.Provide(),
	})
	alertSvc := alertservice.NewService(alertservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Repo:  alertrepo.Provide(),
	})

	scheduler, err := New(Params{
		DB:             db,
		Log:            log,
		SponsorshipSvc: sponsorshipSvc,
		AlertSvc:       alertSvc,
		AuditSvc:       &mockAuditSvc{},
		AuthzSvc:       &mockAuthzSvc{},
		Provisioning:   provisioning.NewConsumer(db, log, node),
		GenID:          node,
		Clock:          fakeClock,
		Config: Config{
			BatchSize:            10,
			CapacityThresholdPct: 80,
			SessionRetention:     7 * 24 * time.Hour,
			OutboxStallThreshold: 15 * time.Minute,
		},
	})
	if err != nil {
		t.Fatalf("New scheduler: %v", err)
	}

	// 3. Seed Initial Data
	testOrgID := node.Generate()
	eventID := node.Generate()

	if err := db.Exec(`INSERT INTO currencies (code, is_active) VALUES ('USD', true)`).Error; err != nil {
		t.Fatalf("seed currency: %v", err)
	}

	// A published event at half capacity, well under the 80% threshold.
	if err := db.Exec(`
		INSERT INTO events (id, org_id, title, status, max_capacity, registered_count)
		VALUES (?, ?, 'DevConf', 'PUBLISHED', 100, 50)
	`, eventID, testOrgID).Error; err != nil {
		t.Fatalf("seed event: %v", err)
	}

	// Sponsorship codes: one lapsing on day 2, one on day 10, one open-ended.
	shortCode := node.Generate()
	longCode := node.Generate()
	evergreenCode := node.Generate()
	sponsorships := []struct {
		ID        snowflake.ID
		Status    engine.SponsorshipStatus
		ExpiresAt *time.Time
	}{
		{shortCode, engine.SponsorshipPending, timePtr(startTime.AddDate(0, 0, 2))},
		{longCode, engine.SponsorshipActive, timePtr(startTime.AddDate(0, 0, 10))},
		{evergreenCode, engine.SponsorshipActive, nil},
	}
	for _, sp := range sponsorships {
		if err := db.Exec(`
			INSERT INTO sponsorship_records (id, org_id, status, expires_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
		`, sp.ID, testOrgID, sp.Status, sp.ExpiresAt, startTime).Error; err != nil {
			t.Fatalf("seed sponsorship: %v", err)
		}
	}

	// Sessions: one expiring day 3, one revoked day 1, one long-lived.
	deadSession := node.Generate()
	revokedSession := node.Generate()
	liveSession := node.Generate()
	if err := db.Exec(`
		INSERT INTO sessions (id, expires_at, revoked_at) VALUES
		(?, ?, NULL),
		(?, ?, ?),
		(?, ?, NULL)
	`,
		deadSession, startTime.AddDate(0, 0, 3),
		revokedSession, startTime.AddDate(1, 0, 0), startTime.AddDate(0, 0, 1),
		liveSession, startTime.AddDate(1, 0, 0),
	).Error; err != nil {
		t.Fatalf("seed sessions: %v", err)
	}

	// An unpublished organization.created event awaiting provisioning.
	payload := fmt.Sprintf(`{"organization_id":%q,"slug":"acme","default_currency":"USD"}`, testOrgID.String())
	if err := db.Exec(`
		INSERT INTO outbox_events (id, org_id, event_type, payload, published, created_at)
		VALUES (?, ?, 'organization.created', ?, false, ?)
	`, node.Generate(), testOrgID, payload, startTime).Error; err != nil {
		t.Fatalf("seed outbox: %v", err)
	}

	ctx := context.Background()

	// 4. Initial Run at day 0
	if err := scheduler.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce failed at start: %v", err)
	}

	// Provisioning drains the outbox on the first pass.
	var published int64
	db.Raw(`SELECT COUNT(1) FROM outbox_events WHERE published = true`).Scan(&published)
	if published != 1 {
		t.Fatalf("expected outbox event published on day 0, got %d", published)
	}
	var settingsCount int64
	db.Raw(`SELECT COUNT(1) FROM registration_settings WHERE org_id = ?`, testOrgID).Scan(&settingsCount)
	if settingsCount != 1 {
		t.Fatalf("expected registration settings seeded, got %d rows", settingsCount)
	}
	var counterCount int64
	db.Raw(`SELECT COUNT(1) FROM receipt_counters WHERE org_id = ?`, testOrgID).Scan(&counterCount)
	if counterCount != 1 {
		t.Fatalf("expected receipt counter seeded, got %d rows", counterCount)
	}

	// Nothing else is due yet.
	if got := sponsorshipStatus(t, db, shortCode); got != engine.SponsorshipPending {
		t.Fatalf("expected short code still PENDING on day 0, got %s", got)
	}
	var alertCount int64
	db.Raw(`SELECT COUNT(1) FROM capacity_alerts`).Scan(&alertCount)
	if alertCount != 0 {
		t.Fatalf("expected no capacity alert below threshold, got %d", alertCount)
	}

	// 5. Days 1-5: the short-lived code lapses.
	advanceDays(t, ctx, scheduler, fakeClock, 5)

	if got := sponsorshipStatus(t, db, shortCode); got != engine.SponsorshipExpired {
		t.Fatalf("expected short code EXPIRED by day 5, got %s", got)
	}
	if got := sponsorshipStatus(t, db, longCode); got != engine.SponsorshipActive {
		t.Fatalf("expected long code still ACTIVE on day 5, got %s", got)
	}

	// Registrations surge past the threshold; the next sweep must raise an alert.
	if err := db.Exec(`UPDATE events SET registered_count = 85 WHERE id = ?`, eventID).Error; err != nil {
		t.Fatalf("bump registrations: %v", err)
	}

	// 6. Days 6-9: alert raised exactly once, then registrations recover.
	advanceDays(t, ctx, scheduler, fakeClock, 4)

	var active int64
	db.Raw(`SELECT COUNT(1) FROM capacity_alerts WHERE event_id = ? AND status = 'ACTIVE'`, eventID).Scan(&active)
	if active != 1 {
		t.Fatalf("expected one active capacity alert on day 9, got %d", active)
	}
	db.Raw(`SELECT COUNT(1) FROM capacity_alerts WHERE event_id = ?`, eventID).Scan(&alertCount)
	if alertCount != 1 {
		t.Fatalf("expected repeated sweeps to not duplicate the alert, got %d rows", alertCount)
	}

	if err := db.Exec(`UPDATE events SET registered_count = 60 WHERE id = ?`, eventID).Error; err != nil {
		t.Fatalf("drop registrations: %v", err)
	}

	// 7. Days 10-14: alert resolves, long code lapses, dead sessions purged.
	advanceDays(t, ctx, scheduler, fakeClock, 5)

	var alertRow struct {
		Status     string     `gorm:"column:status"`
		ResolvedAt *time.Time `gorm:"column:resolved_at"`
	}
	if err := db.Raw(`SELECT status, resolved_at FROM capacity_alerts WHERE event_id = ?`, eventID).Scan(&alertRow).Error; err != nil {
		t.Fatalf("fetch alert: %v", err)
	}
	if alertRow.Status != "RESOLVED" {
		t.Errorf("expected alert RESOLVED by day 14, got %s", alertRow.Status)
	}
	if alertRow.ResolvedAt == nil {
		t.Error("expected resolved_at to be set")
	}

	if got := sponsorshipStatus(t, db, longCode); got != engine.SponsorshipExpired {
		t.Errorf("expected long code EXPIRED by day 14, got %s", got)
	}
	if got := sponsorshipStatus(t, db, evergreenCode); got != engine.SponsorshipActive {
		t.Errorf("expected evergreen code untouched, got %s", got)
	}

	// Retention is 7 days: the day-3 expiry and day-1 revocation are both
	// past the cutoff by day 14; the live session survives.
	var remaining []int64
	db.Raw(`SELECT id FROM sessions ORDER BY id`).Scan(&remaining)
	if len(remaining) != 1 || snowflake.ID(remaining[0]) != liveSession {
		t.Errorf("expected only the live session to remain, got %v", remaining)
	}

	// The expiry sweep reported both lapsed codes through batch metrics.
	batchLabels := map[string]string{
		"service":  "eventra",
		"env":      "test",
		"job":      "sponsorship_expiry",
		"resource": "sponsorship_records",
	}
	if got := getCounterValue(t, registry, "eventra_scheduler_batch_processed_total", batchLabels); got != 2 {
		t.Errorf("expected 2 sponsorship records processed, got %v", got)
	}
}

func advanceDays(t *testing.T, ctx context.Context, s *Scheduler, fakeClock *clock.FakeClock, days int) {
	t.Helper()
	for i := 0; i < days; i++ {
		fakeClock.Advance(24 * time.Hour)
		if err := s.RunOnce(ctx); err != nil {
			t.Fatalf("RunOnce failed at %v: %v", fakeClock.Now(), err)
		}
	}
}

func sponsorshipStatus(t *testing.T, db *gorm.DB, id snowflake.ID) engine.SponsorshipStatus {
	t.Helper()
	var status string
	if err := db.Raw(`SELECT status FROM sponsorship_records WHERE id = ?`, id).Scan(&status).Error; err != nil {
		t.Fatalf("fetch sponsorship status: %v", err)
	}
	return engine.SponsorshipStatus(status)
}

func timePtr(t time.Time) *time.Time {
	return &t
}
