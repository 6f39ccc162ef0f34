package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/eventra/internal/addon"
	"github.com/smallbiznis/eventra/internal/alert"
	"github.com/smallbiznis/eventra/internal/apikey"
	"github.com/smallbiznis/eventra/internal/audit"
	auditdomain "github.com/smallbiznis/eventra/internal/audit/domain"
	"github.com/smallbiznis/eventra/internal/auth"
	authlocal "github.com/smallbiznis/eventra/internal/auth/local"
	"github.com/smallbiznis/eventra/internal/auth/session"
	"github.com/smallbiznis/eventra/internal/authorization"
	"github.com/smallbiznis/eventra/internal/client"
	"github.com/smallbiznis/eventra/internal/clock"
	"github.com/smallbiznis/eventra/internal/cloudmetrics"
	"github.com/smallbiznis/eventra/internal/config"
	"github.com/smallbiznis/eventra/internal/dashboard"
	"github.com/smallbiznis/eventra/internal/event"
	"github.com/smallbiznis/eventra/internal/form"
	"github.com/smallbiznis/eventra/internal/migration"
	"github.com/smallbiznis/eventra/internal/observability"
	"github.com/smallbiznis/eventra/internal/organization"
	"github.com/smallbiznis/eventra/internal/pricing"
	"github.com/smallbiznis/eventra/internal/providers"
	"github.com/smallbiznis/eventra/internal/provisioning"
	"github.com/smallbiznis/eventra/internal/ratelimit"
	"github.com/smallbiznis/eventra/internal/receipt"
	"github.com/smallbiznis/eventra/internal/reference"
	"github.com/smallbiznis/eventra/internal/registration"
	"github.com/smallbiznis/eventra/internal/scheduler"
	"github.com/smallbiznis/eventra/internal/seed"
	"github.com/smallbiznis/eventra/internal/server"
	"github.com/smallbiznis/eventra/internal/signup"
	"github.com/smallbiznis/eventra/internal/sponsorship"
	"github.com/smallbiznis/eventra/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type testEnv struct {
	app       *fx.App
	server    *server.Server
	db        *gorm.DB
	baseURL   string
	scheduler *scheduler.Scheduler
	httpSrv   *httptest.Server
}

var env *testEnv

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	setDefaultEnv()

	var err error
	env, err = startEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to start test environment:", err)
		os.Exit(1)
	}

	code := m.Run()
	env.shutdown()
	os.Exit(code)
}

func TestE2E_HealthCheck(t *testing.T) {
	resetDatabase(t, env.db)

	resp, err := http.Get(env.baseURL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
}

func TestE2E_BootstrapDefaultOrgAndAdmin(t *testing.T) {
	resetDatabase(t, env.db)

	org := struct {
		ID        int64
		Name      string
		Slug      string
		IsDefault bool
	}{}
	if err := env.db.Raw(
		`SELECT id, name, slug, is_default FROM organizations WHERE slug = ?`,
		"main",
	).Scan(&org).Error; err != nil {
		t.Fatalf("query default org: %v", err)
	}
	if org.ID == 0 || !org.IsDefault {
		t.Fatalf("default org not found")
	}

	user := struct {
		ID        int64
		Email     string
		IsDefault bool
	}{}
	if err := env.db.Raw(
		`SELECT id, email, is_default FROM users WHERE email = ?`,
		"admin@eventra.cloud",
	).Scan(&user).Error; err != nil {
		t.Fatalf("query admin user: %v", err)
	}
	if user.ID == 0 || !user.IsDefault {
		t.Fatalf("default admin not found")
	}

	httpClient, orgID := loginAdmin(t)
	if orgID == "" {
		t.Fatalf("expected org id after login")
	}

	reqURL := env.baseURL + "/auth/user/orgs"
	resp, body := doJSON(t, httpClient, http.MethodGet, reqURL, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200 for orgs, got %d: %s", resp.StatusCode, string(body))
	}
}

func TestE2E_RegistrationLifecycle(t *testing.T) {
	resetDatabase(t, env.db)

	httpClient, orgID := loginAdmin(t)
	fixture := createEventFixture(t, httpClient, orgID, 10)

	// The public page exposes the published event, its active form and
	// the add-on catalog.
	resp, body := doJSON(t, newHTTPClient(), http.MethodGet, env.baseURL+"/public/v1/orgs/main/events/"+fixture.EventSlug, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("public event failed: %d: %s", resp.StatusCode, string(body))
	}
	var pagePayload struct {
		Data struct {
			RemainingCapacity int64 `json:"remaining_capacity"`
			Form              *struct {
				ID snowflake.ID `json:"id"`
			} `json:"form"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &pagePayload); err != nil {
		t.Fatalf("decode public event: %v", err)
	}
	if pagePayload.Data.RemainingCapacity != 10 {
		t.Fatalf("expected remaining capacity 10, got %d", pagePayload.Data.RemainingCapacity)
	}
	if pagePayload.Data.Form == nil {
		t.Fatalf("expected active form on public event")
	}

	previewReq := map[string]any{
		"form_data": map[string]any{"ticket_type": "student"},
		"selected_add_ons": []map[string]any{
			{"id": fixture.AddOnID, "quantity": 1},
		},
	}
	resp, body = doJSON(t, newHTTPClient(), http.MethodPost, env.baseURL+"/public/v1/orgs/main/events/"+fixture.EventSlug+"/pricing/preview", previewReq, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pricing preview failed: %d: %s", resp.StatusCode, string(body))
	}
	var previewPayload struct {
		Data breakdownView `json:"data"`
	}
	if err := json.Unmarshal(body, &previewPayload); err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if previewPayload.Data.CalculatedBasePrice != 5000 {
		t.Fatalf("expected student rate 5000, got %d", previewPayload.Data.CalculatedBasePrice)
	}
	if previewPayload.Data.AddOnTotal != 2000 {
		t.Fatalf("expected add-on total 2000, got %d", previewPayload.Data.AddOnTotal)
	}
	if previewPayload.Data.Total != 7000 {
		t.Fatalf("expected total 7000, got %d", previewPayload.Data.Total)
	}
	if countRows(t, env.db, "registrations", "event_id = ?", mustParseID(t, fixture.EventID)) != 0 {
		t.Fatalf("preview must not create registrations")
	}

	reg := submitRegistration(t, fixture.EventSlug, map[string]any{
		"attendee_name":  "Ada Lovelace",
		"attendee_email": "ada@example.com",
		"form_data":      map[string]any{"ticket_type": "student"},
		"selected_add_ons": []map[string]any{
			{"id": fixture.AddOnID, "quantity": 1},
		},
	})
	if reg.Status != "CONFIRMED" {
		t.Fatalf("expected status CONFIRMED, got %s", reg.Status)
	}
	if strings.TrimSpace(reg.ConfirmationCode) == "" {
		t.Fatalf("expected confirmation code")
	}
	if reg.TotalAmount != 7000 {
		t.Fatalf("expected total 7000, got %d", reg.TotalAmount)
	}
	if reg.ReceiptID == nil {
		t.Fatalf("expected receipt issued on confirmation")
	}
	if countRows(t, env.db, "receipts", "registration_id = ?", reg.ID) != 1 {
		t.Fatalf("expected one receipt row")
	}
	if got := eventRegisteredCount(t, fixture.EventID); got != 1 {
		t.Fatalf("expected registered_count 1, got %d", got)
	}

	headers := map[string]string{server.HeaderOrg: orgID}
	resp, body = doJSON(t, httpClient, http.MethodPost, env.baseURL+"/admin/v1/registrations/"+reg.ID.String()+"/cancel", nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel registration failed: %d: %s", resp.StatusCode, string(body))
	}
	var cancelPayload struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &cancelPayload); err != nil {
		t.Fatalf("decode cancel: %v", err)
	}
	if cancelPayload.Data.Status != "CANCELLED" {
		t.Fatalf("expected status CANCELLED, got %s", cancelPayload.Data.Status)
	}
	if got := eventRegisteredCount(t, fixture.EventID); got != 0 {
		t.Fatalf("expected capacity released, got registered_count %d", got)
	}
}

func TestE2E_SponsorshipRedemption(t *testing.T) {
	resetDatabase(t, env.db)

	httpClient, orgID := loginAdmin(t)
	fixture := createEventFixture(t, httpClient, orgID, 10)

	headers := map[string]string{server.HeaderOrg: orgID}

	batchReq := map[string]any{
		"event_id":        fixture.EventID,
		"name":            "Globex Sponsorship",
		"code_prefix":     "GLOBEX",
		"quantity":        1,
		"amount_per_code": 3000,
		"currency":        "USD",
	}
	resp, body := doJSON(t, httpClient, http.MethodPost, env.baseURL+"/admin/v1/sponsorships/batches", batchReq, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create sponsorship batch failed: %d: %s", resp.StatusCode, string(body))
	}
	var batchPayload struct {
		Data struct {
			Batch struct {
				ID snowflake.ID `json:"id"`
			} `json:"batch"`
			Records []struct {
				ID     snowflake.ID `json:"id"`
				Code   string       `json:"code"`
				Status string       `json:"status"`
			} `json:"records"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &batchPayload); err != nil {
		t.Fatalf("decode sponsorship batch: %v", err)
	}
	if len(batchPayload.Data.Records) != 1 {
		t.Fatalf("expected one sponsorship record, got %d", len(batchPayload.Data.Records))
	}
	record := batchPayload.Data.Records[0]
	if record.Status != "PENDING" {
		t.Fatalf("expected record status PENDING, got %s", record.Status)
	}

	// Codes are not redeemable until the batch is activated.
	resp, body = doJSON(t, newHTTPClient(), http.MethodPost, env.baseURL+"/public/v1/orgs/main/events/"+fixture.EventSlug+"/pricing/preview", map[string]any{
		"form_data":         map[string]any{"ticket_type": "standard"},
		"sponsorship_codes": []string{record.Code},
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("preview with pending code failed: %d: %s", resp.StatusCode, string(body))
	}
	var pendingPreview struct {
		Data breakdownView `json:"data"`
	}
	if err := json.Unmarshal(body, &pendingPreview); err != nil {
		t.Fatalf("decode pending preview: %v", err)
	}
	if pendingPreview.Data.SponsorshipTotal != 0 {
		t.Fatalf("expected pending code to apply nothing, got %d", pendingPreview.Data.SponsorshipTotal)
	}

	resp, body = doJSON(t, httpClient, http.MethodPost, env.baseURL+"/admin/v1/sponsorships/batches/"+batchPayload.Data.Batch.ID.String()+"/activate", nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("activate sponsorship batch failed: %d: %s", resp.StatusCode, string(body))
	}

	reg := submitRegistration(t, fixture.EventSlug, map[string]any{
		"attendee_name":     "Grace Hopper",
		"attendee_email":    "grace@example.com",
		"form_data":         map[string]any{"ticket_type": "standard"},
		"sponsorship_codes": []string{record.Code},
	})
	if reg.Status != "CONFIRMED" {
		t.Fatalf("expected status CONFIRMED, got %s", reg.Status)
	}
	if reg.TotalAmount != 7000 {
		t.Fatalf("expected total 7000 after sponsorship, got %d", reg.TotalAmount)
	}

	var consumed int64
	if err := env.db.Raw(
		`SELECT consumed_amount FROM sponsorship_records WHERE id = ?`,
		record.ID,
	).Scan(&consumed).Error; err != nil {
		t.Fatalf("query sponsorship record: %v", err)
	}
	if consumed != 3000 {
		t.Fatalf("expected consumed_amount 3000, got %d", consumed)
	}
	if countRows(t, env.db, "sponsorship_consumptions", "record_id = ?", record.ID) != 1 {
		t.Fatalf("expected one consumption ledger row")
	}
}

func TestE2E_APIKeyAuthentication(t *testing.T) {
	resetDatabase(t, env.db)

	httpClient, orgID := loginAdmin(t)
	createEventFixture(t, httpClient, orgID, 10)

	apiKey := createAPIKey(t, httpClient, orgID)

	headers := map[string]string{"Authorization": "Bearer " + apiKey}
	resp, body := doJSON(t, newHTTPClient(), http.MethodGet, env.baseURL+"/api/v1/events", nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200 for api key events, got %d: %s", resp.StatusCode, string(body))
	}

	resp, body = doJSON(t, newHTTPClient(), http.MethodGet, env.baseURL+"/api/v1/events", nil, map[string]string{
		"Authorization": "Bearer invalid",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected status 401 for invalid api key, got %d: %s", resp.StatusCode, string(body))
	}
}

func TestE2E_AuditLog(t *testing.T) {
	resetDatabase(t, env.db)

	httpClient, orgID := loginAdmin(t)
	createEventFixture(t, httpClient, orgID, 10)

	var adminID snowflake.ID
	if err := env.db.Raw(
		`SELECT id FROM users WHERE email = ?`,
		"admin@eventra.cloud",
	).Scan(&adminID).Error; err != nil {
		t.Fatalf("query admin id: %v", err)
	}
	if adminID == 0 {
		t.Fatalf("admin id not found")
	}

	logEntry := auditdomain.AuditLog{}
	if err := env.db.Raw(
		`SELECT id, actor_type, actor_id, action FROM audit_logs WHERE action = ? ORDER BY created_at DESC LIMIT 1`,
		"event.publish",
	).Scan(&logEntry).Error; err != nil {
		t.Fatalf("query audit log: %v", err)
	}
	if logEntry.ID == 0 {
		t.Fatalf("expected audit log entry")
	}
	if logEntry.ActorType != string(auditdomain.ActorTypeUser) {
		t.Fatalf("expected actor_type user, got %s", logEntry.ActorType)
	}
	adminIDString := adminID.String()
	if logEntry.ActorID == nil || *logEntry.ActorID != adminIDString {
		t.Fatalf("expected actor_id %s, got %v", adminIDString, logEntry.ActorID)
	}
}

func TestE2E_CapacityAlerts(t *testing.T) {
	resetDatabase(t, env.db)

	httpClient, orgID := loginAdmin(t)
	fixture := createEventFixture(t, httpClient, orgID, 1)

	submitRegistration(t, fixture.EventSlug, map[string]any{
		"attendee_name":  "Full House",
		"attendee_email": "full@example.com",
		"form_data":      map[string]any{"ticket_type": "standard"},
	})

	if err := env.scheduler.RunOnce(context.Background()); err != nil {
		t.Fatalf("scheduler run: %v", err)
	}

	if countRows(t, env.db, "capacity_alerts", "event_id = ?", mustParseID(t, fixture.EventID)) == 0 {
		t.Fatalf("expected capacity alert for full event")
	}

	if err := env.scheduler.RunOnce(context.Background()); err != nil {
		t.Fatalf("scheduler second run: %v", err)
	}
	if countRows(t, env.db, "capacity_alerts", "event_id = ?", mustParseID(t, fixture.EventID)) != 1 {
		t.Fatalf("expected alert to stay deduplicated")
	}
}

type eventFixture struct {
	ClientID  string
	EventID   string
	EventSlug string
	FormID    string
	AddOnID   string
}

type breakdownView struct {
	BasePrice           int64 `json:"base_price"`
	CalculatedBasePrice int64 `json:"calculated_base_price"`
	AddOnTotal          int64 `json:"add_on_total"`
	Subtotal            int64 `json:"subtotal"`
	SponsorshipTotal    int64 `json:"sponsorship_total"`
	Total               int64 `json:"total"`
}

type registrationView struct {
	ID               snowflake.ID  `json:"id"`
	Status           string        `json:"status"`
	ConfirmationCode string        `json:"confirmation_code"`
	TotalAmount      int64         `json:"total_amount"`
	ReceiptID        *snowflake.ID `json:"receipt_id"`
}

func startEnv() (*testEnv, error) {
	var (
		srv         *server.Server
		dbConn      *gorm.DB
		cfg         config.Config
		schedulerSv *scheduler.Scheduler
		httpSrv     *httptest.Server
	)

	app := fx.New(
		observability.Module,
		config.Module,
		db.Module,
		clock.Module,
		cloudmetrics.Module,
		authorization.Module,
		audit.Module,
		auth.Module,
		authlocal.Module,
		session.Module,
		apikey.Module,
		organization.Module,
		provisioning.Module,
		signup.Module,
		client.Module,
		event.Module,
		form.Module,
		addon.Module,
		pricing.Module,
		sponsorship.Module,
		registration.Module,
		receipt.Module,
		dashboard.Module,
		alert.Module,
		providers.Module,
		reference.Module,
		ratelimit.Module,
		migration.Module,
		fx.Provide(scheduler.New),
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		fx.Provide(server.NewEngine),
		fx.Provide(server.NewServer),
		fx.Populate(&srv, &dbConn, &cfg, &schedulerSv),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		return nil, err
	}

	if strings.ToLower(strings.TrimSpace(cfg.DBType)) != "postgres" {
		app.Stop(context.Background())
		return nil, fmt.Errorf("expected postgres db, got %s", cfg.DBType)
	}

	httpSrv = httptest.NewServer(srv.Engine())

	return &testEnv{
		app:       app,
		server:    srv,
		db:        dbConn,
		baseURL:   httpSrv.URL,
		scheduler: schedulerSv,
		httpSrv:   httpSrv,
	}, nil
}

func (e *testEnv) shutdown() {
	if e == nil {
		return
	}
	if e.httpSrv != nil {
		e.httpSrv.Close()
	}
	if e.app != nil {
		_ = e.app.Stop(context.Background())
	}
}

func setDefaultEnv() {
	setEnvIfEmpty("ENVIRONMENT", "test")
	setEnvIfEmpty("APP_MODE", "oss")
	setEnvIfEmpty("BOOTSTRAP_DEFAULT_ORG_AND_USER", "true")
	setEnvIfEmpty("AUTH_COOKIE_SECURE", "false")
	setEnvIfEmpty("LOG_LEVEL", "error")
}

func setEnvIfEmpty(key, value string) {
	if strings.TrimSpace(os.Getenv(key)) != "" {
		return
	}
	_ = os.Setenv(key, value)
}

func resetDatabase(t *testing.T, dbConn *gorm.DB) {
	t.Helper()
	if err := truncateAllTables(dbConn); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	if err := seed.EnsureMainOrgAndAdmin(dbConn); err != nil {
		t.Fatalf("seed default org and admin: %v", err)
	}
}

func truncateAllTables(dbConn *gorm.DB) error {
	type tableRow struct {
		Name string `gorm:"column:tablename"`
	}
	var rows []tableRow
	if err := dbConn.Raw(
		`SELECT tablename FROM pg_tables WHERE schemaname = 'public' AND tablename <> 'schema_migrations'`,
	).Scan(&rows).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	tables := make([]string, 0, len(rows))
	for _, row := range rows {
		if strings.TrimSpace(row.Name) == "" {
			continue
		}
		tables = append(tables, `"`+row.Name+`"`)
	}
	if len(tables) == 0 {
		return nil
	}

	stmt := fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", strings.Join(tables, ", "))
	return dbConn.Exec(stmt).Error
}

func loginAdmin(t *testing.T) (*http.Client, string) {
	t.Helper()
	httpClient := newHTTPClient()

	req := map[string]any{
		"email":    "admin@eventra.cloud",
		"password": "admin",
	}
	resp, body := doJSON(t, httpClient, http.MethodPost, env.baseURL+"/auth/login", req, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d: %s", resp.StatusCode, string(body))
	}

	baseURL, err := url.Parse(env.baseURL)
	if err == nil {
		cookies := httpClient.Jar.Cookies(baseURL)
		found := false
		for _, cookie := range cookies {
			if cookie.Name == "_sid" && strings.TrimSpace(cookie.Value) != "" {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("expected session cookie after login")
		}
	}

	reqURL := env.baseURL + "/auth/user/orgs"
	resp, body = doJSON(t, httpClient, http.MethodGet, reqURL, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list orgs failed: %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Orgs []struct {
			ID string `json:"id"`
		} `json:"orgs"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode orgs: %v", err)
	}
	if len(payload.Orgs) == 0 {
		t.Fatalf("no orgs returned")
	}
	return httpClient, strings.TrimSpace(payload.Orgs[0].ID)
}

// createEventFixture walks the full admin setup for a sellable event: a
// client, the event itself, base pricing with one conditional rule, an
// active form with a ticket type selector, one add-on, and a publish.
func createEventFixture(t *testing.T, httpClient *http.Client, orgID string, maxCapacity int64) eventFixture {
	t.Helper()

	headers := map[string]string{server.HeaderOrg: orgID}

	clientResp := struct {
		Data struct {
			ID snowflake.ID `json:"id"`
		} `json:"data"`
	}{}
	clientReq := map[string]any{
		"name":          "Acme Conferences",
		"contact_name":  "Road Runner",
		"contact_email": "events@acme.test",
	}
	resp, body := doJSON(t, httpClient, http.MethodPost, env.baseURL+"/admin/v1/clients", clientReq, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create client failed: %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, &clientResp); err != nil {
		t.Fatalf("decode client response: %v", err)
	}

	startsAt := time.Now().UTC().Add(30 * 24 * time.Hour)
	endsAt := startsAt.Add(8 * time.Hour)
	eventResp := struct {
		Data struct {
			ID    snowflake.ID `json:"id"`
			Title string       `json:"title"`
			Slug  string       `json:"slug"`
		} `json:"data"`
	}{}
	eventReq := map[string]any{
		"client_id":    clientResp.Data.ID.String(),
		"title":        fmt.Sprintf("DevConf %d", time.Now().UnixNano()),
		"description":  "Annual developer conference",
		"location":     "Jakarta",
		"timezone":     "UTC",
		"starts_at":    startsAt,
		"ends_at":      endsAt,
		"max_capacity": maxCapacity,
	}
	resp, body = doJSON(t, httpClient, http.MethodPost, env.baseURL+"/admin/v1/events", eventReq, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create event failed: %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, &eventResp); err != nil {
		t.Fatalf("decode event response: %v", err)
	}
	eventID := eventResp.Data.ID.String()

	pricingReq := map[string]any{
		"base_price": 10000,
		"currency":   "USD",
	}
	resp, body = doJSON(t, httpClient, http.MethodPut, env.baseURL+"/admin/v1/events/"+eventID+"/pricing", pricingReq, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upsert pricing failed: %d: %s", resp.StatusCode, string(body))
	}

	ruleReq := map[string]any{
		"name":  "Student rate",
		"price": 5000,
		"conditions": []map[string]any{
			{"field_id": "ticket_type", "operator": "equals", "value": "student"},
		},
		"condition_logic": "AND",
		"priority":        10,
	}
	resp, body = doJSON(t, httpClient, http.MethodPost, env.baseURL+"/admin/v1/events/"+eventID+"/pricing/rules", ruleReq, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create pricing rule failed: %d: %s", resp.StatusCode, string(body))
	}

	formResp := struct {
		Data struct {
			ID snowflake.ID `json:"id"`
		} `json:"data"`
	}{}
	formReq := map[string]any{
		"event_id": eventID,
		"title":    "Attendee details",
		"fields": []map[string]any{
			{
				"key":      "ticket_type",
				"label":    "Ticket type",
				"type":     "SELECT",
				"required": true,
				"options":  []string{"standard", "student"},
			},
		},
	}
	resp, body = doJSON(t, httpClient, http.MethodPost, env.baseURL+"/admin/v1/forms", formReq, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create form failed: %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, &formResp); err != nil {
		t.Fatalf("decode form response: %v", err)
	}
	formID := formResp.Data.ID.String()

	resp, body = doJSON(t, httpClient, http.MethodPost, env.baseURL+"/admin/v1/forms/"+formID+"/activate", nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("activate form failed: %d: %s", resp.StatusCode, string(body))
	}

	addOnResp := struct {
		Data struct {
			ID snowflake.ID `json:"id"`
		} `json:"data"`
	}{}
	addOnReq := map[string]any{
		"event_id":   eventID,
		"name":       "Workshop pass",
		"unit_price": 2000,
		"currency":   "USD",
	}
	resp, body = doJSON(t, httpClient, http.MethodPost, env.baseURL+"/admin/v1/add-ons", addOnReq, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create add-on failed: %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, &addOnResp); err != nil {
		t.Fatalf("decode add-on response: %v", err)
	}

	resp, body = doJSON(t, httpClient, http.MethodPost, env.baseURL+"/admin/v1/events/"+eventID+"/publish", nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("publish event failed: %d: %s", resp.StatusCode, string(body))
	}

	return eventFixture{
		ClientID:  clientResp.Data.ID.String(),
		EventID:   eventID,
		EventSlug: eventResp.Data.Slug,
		FormID:    formID,
		AddOnID:   addOnResp.Data.ID.String(),
	}
}

func submitRegistration(t *testing.T, eventSlug string, payload map[string]any) registrationView {
	t.Helper()

	resp, body := doJSON(t, newHTTPClient(), http.MethodPost, env.baseURL+"/public/v1/orgs/main/events/"+eventSlug+"/registrations", payload, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("submit registration failed: %d: %s", resp.StatusCode, string(body))
	}

	var wrapper struct {
		Data registrationView `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		t.Fatalf("decode registration: %v", err)
	}
	if wrapper.Data.ID == 0 {
		t.Fatalf("expected registration id")
	}
	return wrapper.Data
}

func createAPIKey(t *testing.T, httpClient *http.Client, orgID string) string {
	t.Helper()
	headers := map[string]string{server.HeaderOrg: orgID}
	req := map[string]any{
		"name":   "E2E Key",
		"scopes": []string{"event:view", "registration:view", "receipt:view"},
	}
	resp, body := doJSON(t, httpClient, http.MethodPost, env.baseURL+"/admin/v1/api-keys", req, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create api key failed: %d: %s", resp.StatusCode, string(body))
	}
	var payload struct {
		APIKey string `json:"api_key"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode api key response: %v", err)
	}
	if strings.TrimSpace(payload.APIKey) == "" {
		t.Fatalf("expected api key value")
	}
	return payload.APIKey
}

func eventRegisteredCount(t *testing.T, eventID string) int64 {
	t.Helper()
	var count int64
	if err := env.db.Raw(
		`SELECT registered_count FROM events WHERE id = ?`,
		mustParseID(t, eventID),
	).Scan(&count).Error; err != nil {
		t.Fatalf("query registered_count: %v", err)
	}
	return count
}

func countRows(t *testing.T, dbConn *gorm.DB, table string, where string, args ...any) int64 {
	t.Helper()
	var count int64
	if err := dbConn.Table(table).Where(where, args...).Count(&count).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return count
}

func mustParseID(t *testing.T, value string) snowflake.ID {
	t.Helper()
	parsed, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || parsed == 0 {
		t.Fatalf("invalid snowflake id: %s", value)
	}
	return parsed
}

func doJSON(t *testing.T, httpClient *http.Client, method, reqURL string, payload any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("encode json: %v", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, reqURL, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, data
}

func newHTTPClient() *http.Client {
	jar, _ := cookiejar.New(nil)
	return &http.Client{
		Timeout: 15 * time.Second,
		Jar:     jar,
	}
}
