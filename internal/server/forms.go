package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	formdomain "github.com/smallbiznis/eventra/internal/form/domain"
)

type createFormRequest struct {
	EventID     string                 `json:"event_id"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Fields      []formdomain.FieldInput `json:"fields"`
}

type updateFormRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

type updateFormFieldRequest struct {
	Label    *string   `json:"label,omitempty"`
	Required *bool     `json:"required,omitempty"`
	Options  *[]string `json:"options,omitempty"`
	HelpText *string   `json:"help_text,omitempty"`
}

type reorderFormFieldsRequest struct {
	FieldIDs []string `json:"field_ids"`
}

func (s *Server) CreateForm(c *gin.Context) {
	var req createFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.formSvc.Create(c.Request.Context(), formdomain.CreateFormRequest{
		EventID:     strings.TrimSpace(req.EventID),
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Fields:      req.Fields,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		targetID := resp.ID.String()
		_ = s.auditSvc.AuditLog(c.Request.Context(), nil, "", nil, "form.create", "form", &targetID, map[string]any{
			"event_id": strings.TrimSpace(req.EventID),
			"title":    resp.Title,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListForms(c *gin.Context) {
	active, err := parseOptionalBool(c.Query("active"))
	if err != nil {
		AbortWithError(c, newValidationError("active", "invalid_active", "invalid active"))
		return
	}

	forms, err := s.formSvc.List(c.Request.Context(), formdomain.ListFormRequest{
		EventID: strings.TrimSpace(c.Query("event_id")),
		Active:  active,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": forms})
}

func (s *Server) GetFormByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.formSvc.GetByID(c.Request.Context(), formdomain.GetFormRequest{ID: id})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateForm(c *gin.Context) {
	var req updateFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.formSvc.Update(c.Request.Context(), formdomain.UpdateFormRequest{
		ID:          strings.TrimSpace(c.Param("id")),
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// ActivateForm makes this form the event's live form; any previously active
// form for the event is archived in the same transaction.
func (s *Server) ActivateForm(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.formSvc.Activate(c.Request.Context(), formdomain.GetFormRequest{ID: id})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		targetID := resp.ID.String()
		_ = s.auditSvc.AuditLog(c.Request.Context(), nil, "", nil, "form.activate", "form", &targetID, nil)
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ArchiveForm(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.formSvc.Archive(c.Request.Context(), formdomain.GetFormRequest{ID: id})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AddFormField(c *gin.Context) {
	var field formdomain.FieldInput
	if err := c.ShouldBindJSON(&field); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.formSvc.AddField(c.Request.Context(), formdomain.AddFieldRequest{
		FormID: strings.TrimSpace(c.Param("id")),
		Field:  field,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateFormField(c *gin.Context) {
	var req updateFormFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.formSvc.UpdateField(c.Request.Context(), formdomain.UpdateFieldRequest{
		FormID:   strings.TrimSpace(c.Param("id")),
		FieldID:  strings.TrimSpace(c.Param("fieldId")),
		Label:    req.Label,
		Required: req.Required,
		Options:  req.Options,
		HelpText: req.HelpText,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RemoveFormField(c *gin.Context) {
	err := s.formSvc.RemoveField(c.Request.Context(), formdomain.RemoveFieldRequest{
		FormID:  strings.TrimSpace(c.Param("id")),
		FieldID: strings.TrimSpace(c.Param("fieldId")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) ReorderFormFields(c *gin.Context) {
	var req reorderFormFieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	fields, err := s.formSvc.ReorderFields(c.Request.Context(), formdomain.ReorderFieldsRequest{
		FormID:   strings.TrimSpace(c.Param("id")),
		FieldIDs: req.FieldIDs,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": fields})
}

func isFormValidationError(err error) bool {
	switch err {
	case formdomain.ErrInvalidOrganization,
		formdomain.ErrInvalidEvent,
		formdomain.ErrInvalidTitle,
		formdomain.ErrInvalidID,
		formdomain.ErrInvalidFieldKey,
		formdomain.ErrDuplicateFieldKey,
		formdomain.ErrInvalidFieldType,
		formdomain.ErrOptionsRequired,
		formdomain.ErrInvalidReorder:
		return true
	default:
		return false
	}
}
