package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// RegistrationPolicy carries deployment-level registration knobs that ops can
// tune without a restart. Per-organization settings live in the
// registration_settings table, not here.
type RegistrationPolicy struct {
	// SponsorshipCodeLength is the random suffix length of generated codes.
	SponsorshipCodeLength int `mapstructure:"sponsorshipCodeLength"`
	// PreviewRate and PreviewBurst bound public pricing previews per event.
	PreviewRate  float64 `mapstructure:"previewRate"`
	PreviewBurst int     `mapstructure:"previewBurst"`
	// ReceiptNumberPattern is the fallback template when an organization has
	// not configured its own.
	ReceiptNumberPattern string `mapstructure:"receiptNumberPattern"`
}

func DefaultRegistrationPolicy() RegistrationPolicy {
	return RegistrationPolicy{
		SponsorshipCodeLength: 8,
		PreviewRate:           20,
		PreviewBurst:          40,
		ReceiptNumberPattern:  "RCP-{YYYY}-{SEQ:6}",
	}
}

type RegistrationPolicyHolder struct {
	current atomic.Value // holds RegistrationPolicy
}

func NewRegistrationPolicyHolder() (*RegistrationPolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("registration")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/eventra/config") // Volume-mounted config
	v.AddConfigPath("/etc/eventra")            // System config
	v.AddConfigPath(".")                       // Current directory (dev mode)

	v.SetEnvPrefix("EVENTRA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultRegistrationPolicy()
		v.SetDefault("registration.sponsorshipCodeLength", defaults.SponsorshipCodeLength)
		v.SetDefault("registration.previewRate", defaults.PreviewRate)
		v.SetDefault("registration.previewBurst", defaults.PreviewBurst)
		v.SetDefault("registration.receiptNumberPattern", defaults.ReceiptNumberPattern)
	}

	var policy RegistrationPolicy
	if err := v.UnmarshalKey("registration", &policy); err != nil {
		return nil, err
	}
	if err := validateRegistrationPolicy(policy); err != nil {
		return nil, err
	}

	holder := &RegistrationPolicyHolder{}
	holder.current.Store(policy)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated RegistrationPolicy
		if err := v.UnmarshalKey("registration", &updated); err != nil {
			log.Printf("[registration-policy] reload failed: %v", err)
			return
		}
		if err := validateRegistrationPolicy(updated); err != nil {
			log.Printf("[registration-policy] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[registration-policy] reloaded from %s", e.Name)
	})

	return holder, nil
}

// Get returns the live policy. A zero holder hands back the defaults so
// callers never need a nil check around each field.
func (h *RegistrationPolicyHolder) Get() RegistrationPolicy {
	if h == nil {
		return DefaultRegistrationPolicy()
	}
	if policy, ok := h.current.Load().(RegistrationPolicy); ok {
		return policy
	}
	return DefaultRegistrationPolicy()
}

func validateRegistrationPolicy(policy RegistrationPolicy) error {
	if policy.SponsorshipCodeLength < 4 || policy.SponsorshipCodeLength > 32 {
		return errors.New("registration.sponsorshipCodeLength must be between 4 and 32")
	}
	if policy.PreviewRate <= 0 || policy.PreviewBurst <= 0 {
		return errors.New("registration.preview limits must be positive")
	}
	if strings.TrimSpace(policy.ReceiptNumberPattern) == "" {
		return errors.New("registration.receiptNumberPattern cannot be empty")
	}
	return nil
}
