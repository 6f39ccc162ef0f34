package domain

import (
	"context"
	"errors"
	"time"

	authdomain "github.com/smallbiznis/eventra/internal/auth/domain"
)

type Service interface {
	Signup(ctx context.Context, req Request) (*Result, error)
}

type Request struct {
	OrgName      string `json:"org_name"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	CountryCode  string `json:"country_code"`
	TimezoneName string `json:"timezone_name"`
	Currency     string `json:"currency"`
	UserAgent    string `json:"-"`
	IPAddress    string `json:"-"`
}

type Result struct {
	Session   *authdomain.SessionView
	RawToken  string
	ExpiresAt time.Time
	OrgID     string
	UserID    string
}

var ErrInvalidRequest = errors.New("invalid signup request")
