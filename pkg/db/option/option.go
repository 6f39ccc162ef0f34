package option

import (
	"fmt"
	"strings"

	"github.com/smallbiznis/eventra/pkg/db/pagination"
	"gorm.io/gorm"
)

// Operator is a SQL comparison operator usable in query conditions.
type Operator string

const (
	EQ  Operator = "="
	NEQ Operator = "<>"
	GT  Operator = ">"
	GTE Operator = ">="
	LT  Operator = "<"
	LTE Operator = "<="
)

// QueryOption mutates a gorm statement before execution.
type QueryOption interface {
	Apply(*gorm.DB) *gorm.DB
}

type queryOptionFunc func(*gorm.DB) *gorm.DB

func (f queryOptionFunc) Apply(db *gorm.DB) *gorm.DB {
	return f(db)
}

// Condition expresses `field <operator> value`.
type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// ApplyOperator adds a comparison predicate to the statement.
func ApplyOperator(cond Condition) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		field := strings.TrimSpace(cond.Field)
		if field == "" {
			return db
		}
		op := cond.Operator
		if op == "" {
			op = EQ
		}
		return db.Where(fmt.Sprintf("%s %s ?", field, op), cond.Value)
	})
}

// QuerySortBy describes a sort request constrained to an allow-list of columns.
type QuerySortBy struct {
	SortBy  string
	OrderBy string
	Allow   map[string]bool
}

// WithQuerySortBy builds a QuerySortBy from raw request values.
func WithQuerySortBy(sortBy, orderBy string, allow map[string]bool) QuerySortBy {
	return QuerySortBy{
		SortBy:  strings.TrimSpace(sortBy),
		OrderBy: strings.TrimSpace(orderBy),
		Allow:   allow,
	}
}

// WithSortBy orders the statement by an allow-listed column. Unknown columns
// fall back to created_at, unknown directions to desc.
func WithSortBy(sort QuerySortBy) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		column := sort.SortBy
		if column == "" || (sort.Allow != nil && !sort.Allow[column]) {
			column = "created_at"
		}
		direction := strings.ToLower(sort.OrderBy)
		if direction != "asc" && direction != "desc" {
			direction = "desc"
		}
		return db.Order(fmt.Sprintf("%s %s, id %s", column, direction, direction))
	})
}

// ApplyPagination applies a cursor token and limit. It fetches one row beyond
// the page size so callers can detect another page via BuildCursorPageInfo.
func ApplyPagination(page pagination.Pagination) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		size := page.PageSize
		if size <= 0 {
			size = 10
		}
		if size > 250 {
			size = 250
		}

		if token := strings.TrimSpace(page.PageToken); token != "" {
			cursor, err := pagination.DecodeCursor(token)
			if err == nil && cursor != nil && cursor.CreatedAt != "" && cursor.ID != "" {
				db = db.Where(
					"(created_at < ? OR (created_at = ? AND id < ?))",
					cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
				)
			}
		}

		return db.Limit(size + 1)
	})
}
