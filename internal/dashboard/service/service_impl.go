package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	dashboard "github.com/smallbiznis/eventra/internal/dashboard/domain"
	eventdomain "github.com/smallbiznis/eventra/internal/event/domain"
	"github.com/smallbiznis/eventra/internal/orgcontext"
	registrationdomain "github.com/smallbiznis/eventra/internal/registration/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultTopAddOns = 5

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(p Params) dashboard.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("dashboard.service"),
	}
}

type overviewRow struct {
	Registrations      int64 `gorm:"column:registrations"`
	Confirmed          int64 `gorm:"column:confirmed"`
	Pending            int64 `gorm:"column:pending"`
	Cancelled          int64 `gorm:"column:cancelled"`
	Waitlisted         int64 `gorm:"column:waitlisted"`
	Revenue            int64 `gorm:"column:revenue"`
	SponsorshipApplied int64 `gorm:"column:sponsorship_applied"`
	AddOnUnits         int64 `gorm:"column:add_on_units"`
}

type eventCountRow struct {
	Events    int64 `gorm:"column:events"`
	Published int64 `gorm:"column:published"`
}

// Overview reads the rollup table, so its numbers are as fresh as the last
// rollup pass; the event counts come from the live events table.
func (s *Service) Overview(ctx context.Context) (dashboard.Overview, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return dashboard.Overview{}, dashboard.ErrInvalidOrganization
	}

	var totals overviewRow
	if err := s.db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(registrations), 0) AS registrations,
		        COALESCE(SUM(confirmed), 0) AS confirmed,
		        COALESCE(SUM(pending), 0) AS pending,
		        COALESCE(SUM(cancelled), 0) AS cancelled,
		        COALESCE(SUM(waitlisted), 0) AS waitlisted,
		        COALESCE(SUM(revenue), 0) AS revenue,
		        COALESCE(SUM(sponsorship_applied), 0) AS sponsorship_applied,
		        COALESCE(SUM(add_on_units), 0) AS add_on_units
		 FROM event_stat_rollups
		 WHERE org_id = ?`,
		orgID,
	).Scan(&totals).Error; err != nil {
		return dashboard.Overview{}, err
	}

	var counts eventCountRow
	if err := s.db.WithContext(ctx).Raw(
		`SELECT COUNT(1) AS events,
		        COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS published
		 FROM events
		 WHERE org_id = ?`,
		eventdomain.EventPublished,
		orgID,
	).Scan(&counts).Error; err != nil {
		return dashboard.Overview{}, err
	}

	return dashboard.Overview{
		Events:             counts.Events,
		PublishedEvents:    counts.Published,
		Registrations:      totals.Registrations,
		Confirmed:          totals.Confirmed,
		Pending:            totals.Pending,
		Cancelled:          totals.Cancelled,
		Waitlisted:         totals.Waitlisted,
		Revenue:            totals.Revenue,
		SponsorshipApplied: totals.SponsorshipApplied,
		AddOnUnits:         totals.AddOnUnits,
	}, nil
}

type seriesRow struct {
	Day                string `gorm:"column:day"`
	Registrations      int64  `gorm:"column:registrations"`
	Confirmed          int64  `gorm:"column:confirmed"`
	Cancelled          int64  `gorm:"column:cancelled"`
	Revenue            int64  `gorm:"column:revenue"`
	SponsorshipApplied int64  `gorm:"column:sponsorship_applied"`
	AddOnUnits         int64  `gorm:"column:add_on_units"`
}

func (s *Service) RegistrationSeries(ctx context.Context, req dashboard.SeriesRequest) ([]dashboard.SeriesPoint, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, dashboard.ErrInvalidOrganization
	}

	var eventID snowflake.ID
	if trimmed := strings.TrimSpace(req.EventID); trimmed != "" {
		parsed, err := snowflake.ParseString(trimmed)
		if err != nil || parsed == 0 {
			return nil, dashboard.ErrInvalidEvent
		}
		eventID = parsed
	}

	from, to := req.From, req.To
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}
	if from.After(to) {
		return nil, dashboard.ErrInvalidRange
	}

	args := []any{orgID, from.UTC().Format(dashboard.DayFormat), to.UTC().Format(dashboard.DayFormat)}
	query := `SELECT day,
	              SUM(registrations) AS registrations,
	              SUM(confirmed) AS confirmed,
	              SUM(cancelled) AS cancelled,
	              SUM(revenue) AS revenue,
	              SUM(sponsorship_applied) AS sponsorship_applied,
	              SUM(add_on_units) AS add_on_units
	       FROM event_stat_rollups
	       WHERE org_id = ? AND day >= ? AND day <= ?`
	if eventID != 0 {
		query += " AND event_id = ?"
		args = append(args, eventID)
	}
	query += " GROUP BY day ORDER BY day ASC"

	var rows []seriesRow
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}

	points := make([]dashboard.SeriesPoint, 0, len(rows))
	for _, row := range rows {
		points = append(points, dashboard.SeriesPoint{
			Day:                row.Day,
			Registrations:      row.Registrations,
			Confirmed:          row.Confirmed,
			Cancelled:          row.Cancelled,
			Revenue:            row.Revenue,
			SponsorshipApplied: row.SponsorshipApplied,
			AddOnUnits:         row.AddOnUnits,
		})
	}

	return points, nil
}

type addOnStatRow struct {
	AddOnID snowflake.ID `gorm:"column:add_on_id"`
	Name    string       `gorm:"column:name"`
	Units   int64        `gorm:"column:units"`
	Revenue int64        `gorm:"column:revenue"`
}

// TopAddOns aggregates the reserved add-on lines directly; the rollup table
// has no per-item axis. Cancelled registrations released their units, so
// their lines are skipped.
func (s *Service) TopAddOns(ctx context.Context, limit int) ([]dashboard.AddOnStat, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, dashboard.ErrInvalidOrganization
	}
	if limit <= 0 {
		limit = defaultTopAddOns
	}

	var rows []addOnStatRow
	if err := s.db.WithContext(ctx).Raw(
		`SELECT ra.add_on_id AS add_on_id,
		        ra.name AS name,
		        COALESCE(SUM(ra.quantity), 0) AS units,
		        COALESCE(SUM(ra.subtotal), 0) AS revenue
		 FROM registration_add_ons ra
		 JOIN registrations r ON r.id = ra.registration_id
		 WHERE ra.org_id = ? AND r.status <> ?
		 GROUP BY ra.add_on_id, ra.name
		 ORDER BY units DESC, revenue DESC
		 LIMIT ?`,
		orgID,
		registrationdomain.StatusCancelled,
		limit,
	).Scan(&rows).Error; err != nil {
		return nil, err
	}

	stats := make([]dashboard.AddOnStat, 0, len(rows))
	for _, row := range rows {
		stats = append(stats, dashboard.AddOnStat{
			AddOnID: row.AddOnID.String(),
			Name:    row.Name,
			Units:   row.Units,
			Revenue: row.Revenue,
		})
	}

	return stats, nil
}

type utilizationRow struct {
	BatchID        snowflake.ID `gorm:"column:batch_id"`
	Name           string       `gorm:"column:name"`
	Coverage       string       `gorm:"column:coverage"`
	Codes          int64        `gorm:"column:codes"`
	RedeemedCodes  int64        `gorm:"column:redeemed_codes"`
	TotalAmount    int64        `gorm:"column:total_amount"`
	ConsumedAmount int64        `gorm:"column:consumed_amount"`
}

func (s *Service) SponsorshipUtilization(ctx context.Context) ([]dashboard.BatchUtilization, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, dashboard.ErrInvalidOrganization
	}

	var rows []utilizationRow
	if err := s.db.WithContext(ctx).Raw(
		`SELECT b.id AS batch_id,
		        b.name AS name,
		        b.coverage AS coverage,
		        COUNT(r.id) AS codes,
		        COALESCE(SUM(CASE WHEN r.consumed_amount > 0 THEN 1 ELSE 0 END), 0) AS redeemed_codes,
		        COALESCE(SUM(r.total_amount), 0) AS total_amount,
		        COALESCE(SUM(r.consumed_amount), 0) AS consumed_amount
		 FROM sponsorship_batches b
		 LEFT JOIN sponsorship_records r ON r.batch_id = b.id
		 WHERE b.org_id = ?
		 GROUP BY b.id, b.name, b.coverage, b.created_at
		 ORDER BY b.created_at DESC, b.id DESC`,
		orgID,
	).Scan(&rows).Error; err != nil {
		return nil, err
	}

	batches := make([]dashboard.BatchUtilization, 0, len(rows))
	for _, row := range rows {
		utilization := 0.0
		if row.TotalAmount > 0 {
			utilization = float64(row.ConsumedAmount) / float64(row.TotalAmount)
		}
		batches = append(batches, dashboard.BatchUtilization{
			BatchID:        row.BatchID.String(),
			Name:           row.Name,
			Coverage:       row.Coverage,
			Codes:          row.Codes,
			RedeemedCodes:  row.RedeemedCodes,
			TotalAmount:    row.TotalAmount,
			ConsumedAmount: row.ConsumedAmount,
			Utilization:    utilization,
		})
	}

	return batches, nil
}
