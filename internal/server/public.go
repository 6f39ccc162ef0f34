package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	addondomain "github.com/smallbiznis/eventra/internal/addon/domain"
	eventdomain "github.com/smallbiznis/eventra/internal/event/domain"
	formdomain "github.com/smallbiznis/eventra/internal/form/domain"
	"github.com/smallbiznis/eventra/internal/observability/logger"
	"github.com/smallbiznis/eventra/internal/orgcontext"
	registrationdomain "github.com/smallbiznis/eventra/internal/registration/domain"
	"go.uber.org/zap"
)

// resolvePublicEvent maps the public slug pair to a published event and
// binds the owning org into the request context. Everything downstream of
// it is org scoped the same way authenticated requests are.
func (s *Server) resolvePublicEvent(c *gin.Context) (snowflake.ID, eventdomain.Event, bool) {
	orgSlug := strings.TrimSpace(c.Param("orgSlug"))
	eventSlug := strings.TrimSpace(c.Param("eventSlug"))
	if orgSlug == "" || eventSlug == "" {
		AbortWithError(c, invalidRequestError())
		return 0, eventdomain.Event{}, false
	}

	org, err := s.organizationSvc.GetBySlug(c.Request.Context(), orgSlug)
	if err != nil {
		AbortWithError(c, ErrNotFound)
		return 0, eventdomain.Event{}, false
	}

	orgID, err := snowflake.ParseString(org.ID)
	if err != nil {
		AbortWithError(c, ErrNotFound)
		return 0, eventdomain.Event{}, false
	}

	ctx := orgcontext.WithOrgID(c.Request.Context(), int64(orgID))
	c.Request = c.Request.WithContext(ctx)

	event, err := s.eventSvc.GetPublishedBySlug(ctx, orgID, eventSlug)
	if err != nil {
		AbortWithError(c, err)
		return 0, eventdomain.Event{}, false
	}

	return orgID, event, true
}

func (s *Server) GetPublicEvent(c *gin.Context) {
	orgID, event, ok := s.resolvePublicEvent(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var form *formdomain.FormWithFields
	activeForm, err := s.formSvc.GetActiveByEvent(ctx, orgID, event.ID)
	switch {
	case err == nil:
		form = &activeForm
	case errors.Is(err, formdomain.ErrNoActiveForm):
		// an event without a published form still renders, just without fields
	default:
		AbortWithError(c, err)
		return
	}

	active := true
	addOns, err := s.addonSvc.List(ctx, addondomain.ListAddOnRequest{
		EventID: event.ID.String(),
		Active:  &active,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"event":              event,
		"remaining_capacity": event.Remaining(),
		"form":               form,
		"add_ons":            addOns,
	}})
}

func (s *Server) PreviewPublicPricing(c *gin.Context) {
	orgID, event, ok := s.resolvePublicEvent(c)
	if !ok {
		return
	}
	if !s.allowPublicPreview(c, orgID.String(), event.ID.String()) {
		return
	}

	var req registrationdomain.PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.EventID = event.ID.String()

	breakdown, err := s.registrationSvc.Preview(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": breakdown})
}

func (s *Server) SubmitPublicRegistration(c *gin.Context) {
	orgID, event, ok := s.resolvePublicEvent(c)
	if !ok {
		return
	}
	if !s.allowPublicSubmit(c, orgID.String()) {
		return
	}

	var req registrationdomain.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.EventID = event.ID.String()

	ctx := c.Request.Context()
	email := strings.ToLower(strings.TrimSpace(req.AttendeeEmail))
	if s.publicLimiter != nil && s.publicLimiter.Enabled() && email != "" {
		token, acquired, err := s.publicLimiter.TryLockSubmission(ctx, orgID.String(), event.ID.String(), email)
		if err != nil {
			logger.FromContext(ctx).Warn("submission lock failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !acquired {
			denyPublicRateLimit(c, normalizeRateLimitEndpoint(c), orgID.String(), rateLimitReasonSubmissionConcurrency, nil, s.obsMetrics)
			return
		}
		defer func() {
			if err := s.publicLimiter.ReleaseSubmission(ctx, orgID.String(), event.ID.String(), email, token); err != nil {
				logger.FromContext(ctx).Warn("submission unlock failed", zap.Error(err))
			}
		}()
	}

	registration, err := s.registrationSvc.Submit(ctx, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": registration})
}
