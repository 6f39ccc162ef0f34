package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/eventra/internal/form/domain"
	"github.com/smallbiznis/eventra/internal/form/repository"
	"github.com/smallbiznis/eventra/internal/orgcontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupFormService(t *testing.T) (domain.Service, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.RegistrationForm{}, &domain.FormField{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
	})
	return svc, node
}

func TestCreateFormWithFields(t *testing.T) {
	svc, node := setupFormService(t)
	ctx := orgcontext.WithOrgID(context.Background(), int64(node.Generate()))
	eventID := node.Generate()

	created, err := svc.Create(ctx, domain.CreateFormRequest{
		EventID: eventID.String(),
		Title:   "Attendee Details",
		Fields: []domain.FieldInput{
			{Key: "full_name", Label: "Full name", Type: domain.FieldText, Required: true},
			{Key: "ticket_type", Label: "Ticket", Type: domain.FieldSelect, Required: true, Options: []string{"standard", "vip"}},
		},
	})
	require.NoError(t, err)
	assert.False(t, created.Active)
	require.Len(t, created.Fields, 2)
	assert.Equal(t, 0, created.Fields[0].Position)
	assert.Equal(t, 1, created.Fields[1].Position)
	assert.Equal(t, []string{"standard", "vip"}, created.Fields[1].OptionValues())
}

func TestCreateFormFieldValidation(t *testing.T) {
	svc, node := setupFormService(t)
	ctx := orgcontext.WithOrgID(context.Background(), int64(node.Generate()))
	eventID := node.Generate().String()

	_, err := svc.Create(ctx, domain.CreateFormRequest{
		EventID: eventID,
		Title:   "Form",
		Fields:  []domain.FieldInput{{Key: "Full Name", Label: "Full name", Type: domain.FieldText}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidFieldKey)

	_, err = svc.Create(ctx, domain.CreateFormRequest{
		EventID: eventID,
		Title:   "Form",
		Fields:  []domain.FieldInput{{Key: "ticket", Label: "Ticket", Type: domain.FieldSelect}},
	})
	assert.ErrorIs(t, err, domain.ErrOptionsRequired)

	_, err = svc.Create(ctx, domain.CreateFormRequest{
		EventID: eventID,
		Title:   "Form",
		Fields: []domain.FieldInput{
			{Key: "name", Label: "Name", Type: domain.FieldText},
			{Key: "name", Label: "Name again", Type: domain.FieldText},
		},
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateFieldKey)

	_, err = svc.Create(ctx, domain.CreateFormRequest{
		EventID: eventID,
		Title:   "Form",
		Fields:  []domain.FieldInput{{Key: "name", Label: "Name", Type: "PASSWORD"}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidFieldType)
}

func TestActivateDemotesPreviousForm(t *testing.T) {
	svc, node := setupFormService(t)
	orgID := node.Generate()
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))
	eventID := node.Generate()

	first, err := svc.Create(ctx, domain.CreateFormRequest{EventID: eventID.String(), Title: "v1"})
	require.NoError(t, err)
	second, err := svc.Create(ctx, domain.CreateFormRequest{EventID: eventID.String(), Title: "v2"})
	require.NoError(t, err)

	_, err = svc.Activate(ctx, domain.GetFormRequest{ID: first.ID.String()})
	require.NoError(t, err)

	active, err := svc.GetActiveByEvent(ctx, orgID, eventID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.ID)

	_, err = svc.Activate(ctx, domain.GetFormRequest{ID: second.ID.String()})
	require.NoError(t, err)

	active, err = svc.GetActiveByEvent(ctx, orgID, eventID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)

	// Exactly one form remains active.
	forms, err := svc.List(ctx, domain.ListFormRequest{EventID: eventID.String()})
	require.NoError(t, err)
	activeCount := 0
	for _, f := range forms {
		if f.Active {
			activeCount++
		}
	}
	assert.Equal(t, 1, activeCount)
}

func TestGetActiveByEventWithoutActiveForm(t *testing.T) {
	svc, node := setupFormService(t)
	orgID := node.Generate()
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))
	eventID := node.Generate()

	_, err := svc.Create(ctx, domain.CreateFormRequest{EventID: eventID.String(), Title: "draft only"})
	require.NoError(t, err)

	_, err = svc.GetActiveByEvent(ctx, orgID, eventID)
	assert.ErrorIs(t, err, domain.ErrNoActiveForm)
}

func TestAddFieldRejectsDuplicateKey(t *testing.T) {
	svc, node := setupFormService(t)
	ctx := orgcontext.WithOrgID(context.Background(), int64(node.Generate()))
	eventID := node.Generate()

	form, err := svc.Create(ctx, domain.CreateFormRequest{
		EventID: eventID.String(),
		Title:   "Form",
		Fields:  []domain.FieldInput{{Key: "email", Label: "Email", Type: domain.FieldEmail, Required: true}},
	})
	require.NoError(t, err)

	_, err = svc.AddField(ctx, domain.AddFieldRequest{
		FormID: form.ID.String(),
		Field:  domain.FieldInput{Key: "email", Label: "Email again", Type: domain.FieldText},
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateFieldKey)

	added, err := svc.AddField(ctx, domain.AddFieldRequest{
		FormID: form.ID.String(),
		Field:  domain.FieldInput{Key: "company", Label: "Company", Type: domain.FieldText},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, added.Position)
}

func TestReorderFields(t *testing.T) {
	svc, node := setupFormService(t)
	ctx := orgcontext.WithOrgID(context.Background(), int64(node.Generate()))
	eventID := node.Generate()

	form, err := svc.Create(ctx, domain.CreateFormRequest{
		EventID: eventID.String(),
		Title:   "Form",
		Fields: []domain.FieldInput{
			{Key: "a", Label: "A", Type: domain.FieldText},
			{Key: "b", Label: "B", Type: domain.FieldText},
			{Key: "c", Label: "C", Type: domain.FieldText},
		},
	})
	require.NoError(t, err)

	ids := []string{
		form.Fields[2].ID.String(),
		form.Fields[0].ID.String(),
		form.Fields[1].ID.String(),
	}
	reordered, err := svc.ReorderFields(ctx, domain.ReorderFieldsRequest{FormID: form.ID.String(), FieldIDs: ids})
	require.NoError(t, err)
	require.Len(t, reordered, 3)
	assert.Equal(t, "c", reordered[0].Key)
	assert.Equal(t, "a", reordered[1].Key)
	assert.Equal(t, "b", reordered[2].Key)

	// Partial lists are rejected.
	_, err = svc.ReorderFields(ctx, domain.ReorderFieldsRequest{FormID: form.ID.String(), FieldIDs: ids[:2]})
	assert.ErrorIs(t, err, domain.ErrInvalidReorder)
}
