// Package signup composes account creation: the user record, the
// organization with its owner membership, and the first session. The
// organization service writes the provisioning outbox event inside its own
// transaction, so signup never has to.
package signup

import (
	"context"
	"strings"

	authdomain "github.com/smallbiznis/eventra/internal/auth/domain"
	orgdomain "github.com/smallbiznis/eventra/internal/organization/domain"
	"github.com/smallbiznis/eventra/internal/signup/domain"
)

type service struct {
	authsvc authdomain.Service
	orgsvc  orgdomain.Service
}

const (
	defaultCountryCode  = "ID"
	defaultTimezoneName = "Asia/Jakarta"
)

func NewService(authsvc authdomain.Service, orgsvc orgdomain.Service) domain.Service {
	return &service{
		authsvc: authsvc,
		orgsvc:  orgsvc,
	}
}

func (s *service) Signup(ctx context.Context, req domain.Request) (*domain.Result, error) {
	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Password) == "" {
		return nil, domain.ErrInvalidRequest
	}

	orgName := strings.TrimSpace(req.OrgName)
	if orgName == "" {
		orgName = strings.TrimSpace(req.Username)
	}

	if orgName == "" {
		return nil, domain.ErrInvalidRequest
	}

	countryCode := strings.TrimSpace(req.CountryCode)
	if countryCode == "" {
		countryCode = defaultCountryCode
	}

	timezoneName := strings.TrimSpace(req.TimezoneName)
	if timezoneName == "" {
		timezoneName = defaultTimezoneName
	}

	user, err := s.authsvc.CreateUser(ctx, authdomain.CreateUserRequest{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.Username,
	})
	if err != nil {
		return nil, err
	}

	org, err := s.orgsvc.Create(ctx, user.ID, orgdomain.CreateOrganizationRequest{
		Name:            orgName,
		CountryCode:     countryCode,
		TimezoneName:    timezoneName,
		DefaultCurrency: req.Currency,
	})
	if err != nil {
		return nil, err
	}

	session, err := s.authsvc.Login(ctx, authdomain.LoginRequest{
		Email:     req.Email,
		Password:  req.Password,
		UserAgent: req.UserAgent,
		IPAddress: req.IPAddress,
	})
	if err != nil {
		return nil, err
	}

	return &domain.Result{
		Session:   session.Session,
		RawToken:  session.RawToken,
		ExpiresAt: session.ExpiresAt,
		OrgID:     org.ID,
		UserID:    user.ID.String(),
	}, nil
}
