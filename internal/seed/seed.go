// Package seed bootstraps the default organization so a fresh install is
// usable without the provisioning consumer having run.
package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/eventra/internal/auth/domain"
	"github.com/smallbiznis/eventra/internal/auth/password"
	organizationdomain "github.com/smallbiznis/eventra/internal/organization/domain"
	receiptdomain "github.com/smallbiznis/eventra/internal/receipt/domain"
	registrationdomain "github.com/smallbiznis/eventra/internal/registration/domain"
	"gorm.io/gorm"
)

const (
	defaultOrgName       = "Main"
	defaultOrgSlug       = "main"
	defaultOrgCurrency   = "USD"
	defaultAdminEmail    = "admin@eventra.cloud"
	defaultAdminPassword = "admin"
	defaultAdminDisplay  = "Eventra Admin"
)

// EnsureMainOrg seeds the default organization for startup bootstrap.
func EnsureMainOrg(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		org, err := ensureMainOrgTx(ctx, tx, node)
		if err != nil {
			return err
		}
		return ensureOrgBaselineTx(ctx, tx, org.ID)
	})
}

// EnsureMainOrgWithID seeds the default organization under a pinned
// identifier so multi-node deployments agree on the default org.
func EnsureMainOrgWithID(db *gorm.DB, id int64) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if id == 0 {
		return EnsureMainOrg(db)
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		org, err := ensureMainOrgWithIDTx(ctx, tx, snowflake.ID(id))
		if err != nil {
			return err
		}
		return ensureOrgBaselineTx(ctx, tx, org.ID)
	})
}

// EnsureMainOrgAndAdmin seeds the default organization and admin user for
// standalone mode.
func EnsureMainOrgAndAdmin(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		org, err := ensureMainOrgTx(ctx, tx, node)
		if err != nil {
			return err
		}

		var user authdomain.User
		err = tx.WithContext(ctx).
			Where("provider = ? AND external_id = ?", "local", defaultAdminEmail).
			First(&user).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			hashed, err := password.Hash(defaultAdminPassword)
			if err != nil {
				return err
			}
			now := time.Now().UTC()
			user = authdomain.User{
				ID:           node.Generate(),
				ExternalID:   defaultAdminEmail,
				Provider:     "local",
				DisplayName:  defaultAdminDisplay,
				Email:        strings.ToLower(defaultAdminEmail),
				PasswordHash: &hashed,
				IsDefault:    true,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := tx.WithContext(ctx).Create(&user).Error; err != nil {
				return err
			}
		}

		var member organizationdomain.OrganizationMember
		err = tx.WithContext(ctx).
			Where("org_id = ? AND user_id = ?", org.ID, user.ID).
			First(&member).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			now := time.Now().UTC()
			member = organizationdomain.OrganizationMember{
				ID:        node.Generate(),
				OrgID:     org.ID,
				UserID:    user.ID,
				Role:      organizationdomain.RoleOwner,
				CreatedAt: now,
			}
			if err := tx.WithContext(ctx).Create(&member).Error; err != nil {
				return err
			}
		}

		return ensureOrgBaselineTx(ctx, tx, org.ID)
	})
}

func ensureMainOrgTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node) (organizationdomain.Organization, error) {
	var org organizationdomain.Organization
	err := tx.WithContext(ctx).Where("slug = ?", defaultOrgSlug).First(&org).Error
	if err == nil {
		return org, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return org, err
	}
	return createMainOrgTx(ctx, tx, node.Generate())
}

func ensureMainOrgWithIDTx(ctx context.Context, tx *gorm.DB, id snowflake.ID) (organizationdomain.Organization, error) {
	var org organizationdomain.Organization
	err := tx.WithContext(ctx).Where("id = ?", id).First(&org).Error
	if err == nil {
		return org, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return org, err
	}

	// An existing default org under another identifier is a config mismatch,
	// not something to paper over with a duplicate slug.
	err = tx.WithContext(ctx).Where("slug = ?", defaultOrgSlug).First(&org).Error
	if err == nil {
		return org, fmt.Errorf("organization %q already exists with id %s, configured id is %s", defaultOrgSlug, org.ID, id)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return org, err
	}
	return createMainOrgTx(ctx, tx, id)
}

func createMainOrgTx(ctx context.Context, tx *gorm.DB, id snowflake.ID) (organizationdomain.Organization, error) {
	now := time.Now().UTC()
	org := organizationdomain.Organization{
		ID:              id,
		Name:            defaultOrgName,
		Slug:            defaultOrgSlug,
		DefaultCurrency: defaultOrgCurrency,
		IsDefault:       true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := tx.WithContext(ctx).Create(&org).Error; err != nil {
		return org, err
	}
	return org, nil
}

// ensureOrgBaselineTx creates the per-org rows the registration and receipt
// contexts expect, matching what the provisioning consumer does for orgs
// created at runtime.
func ensureOrgBaselineTx(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) error {
	if err := ensureRegistrationSettingsTx(ctx, tx, orgID); err != nil {
		return err
	}
	return ensureReceiptCounterTx(ctx, tx, orgID)
}

func ensureRegistrationSettingsTx(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) error {
	var settings registrationdomain.RegistrationSettings
	err := tx.WithContext(ctx).Where("org_id = ?", orgID).First(&settings).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	now := time.Now().UTC()
	settings = registrationdomain.RegistrationSettings{
		OrgID:           orgID,
		DefaultCurrency: defaultOrgCurrency,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return tx.WithContext(ctx).Create(&settings).Error
}

func ensureReceiptCounterTx(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) error {
	year := time.Now().UTC().Year()

	var counter receiptdomain.ReceiptCounter
	err := tx.WithContext(ctx).Where("org_id = ? AND year = ?", orgID, year).First(&counter).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	counter = receiptdomain.ReceiptCounter{
		OrgID:     orgID,
		Year:      year,
		UpdatedAt: time.Now().UTC(),
	}
	return tx.WithContext(ctx).Create(&counter).Error
}
