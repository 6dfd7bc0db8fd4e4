package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/emarutian/recipesync/internal/models"
)

var (
	// ErrNoCronSecret is returned for scheduled triggers when CRON_SECRET is unset.
	ErrNoCronSecret = errors.New("scheduled trigger secret is not configured")

	// ErrBadSecret is returned when a scheduled trigger presents the wrong secret.
	ErrBadSecret = errors.New("scheduled trigger secret mismatch")
)

// TriggerAuthorizer decides which triggers may start a sync run.
type TriggerAuthorizer struct {
	config Config
}

// NewTriggerAuthorizer creates an authorizer over cfg.
func NewTriggerAuthorizer(cfg Config) *TriggerAuthorizer {
	return &TriggerAuthorizer{config: cfg}
}

// Authorize accepts scheduled triggers carrying the cron secret, manual
// triggers carrying either the cron secret or a valid admin token, and
// in-process triggers.
func (a *TriggerAuthorizer) Authorize(trigger models.Trigger) error {
	switch trigger.Kind {
	case models.TriggerScheduled:
		if a.config.CronSecret == "" {
			return ErrNoCronSecret
		}
		if !a.cronSecretMatches(trigger.Credential) {
			return ErrBadSecret
		}
		return nil
	case models.TriggerManual:
		if a.config.CronSecret != "" && a.cronSecretMatches(trigger.Credential) {
			return nil
		}
		if _, err := a.config.ValidateAdminToken(trigger.Credential); err != nil {
			return fmt.Errorf("manual trigger: %w", err)
		}
		return nil
	case models.TriggerInternal:
		return nil
	default:
		return fmt.Errorf("unknown trigger kind %q", trigger.Kind)
	}
}

func (a *TriggerAuthorizer) cronSecretMatches(credential string) bool {
	return subtle.ConstantTimeCompare([]byte(credential), []byte(a.config.CronSecret)) == 1
}
