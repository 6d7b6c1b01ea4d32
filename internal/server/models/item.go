// Package models defines the vaultkeeper domain records shared by the
// repositories, engines and HTTP layer.
package models

import "time"

type Criticality string

const (
	CriticalityHigh   Criticality = "high"
	CriticalityMedium Criticality = "medium"
	CriticalityLow    Criticality = "low"
)

type Environment string

const (
	EnvProd  Environment = "prod"
	EnvStage Environment = "stage"
)

// Item is a stored credential. EncryptedPayload is a cryptox blob and is
// never serialized to API responses.
type Item struct {
	ID               string            `json:"id"`
	VaultID          string            `json:"vault_id"`
	Kind             string            `json:"kind"`
	Title            string            `json:"title"`
	Login            string            `json:"login,omitempty"`
	LoginURL         string            `json:"login_url,omitempty"`
	EncryptedPayload []byte            `json:"-"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	Environment      Environment       `json:"environment"`
	Criticality      Criticality       `json:"criticality"`
	RequiresCheckout bool              `json:"requires_checkout"`
	NoCopy           bool              `json:"no_copy"`
	ExpiresAt        *time.Time        `json:"expires_at,omitempty"`
	CreatedBy        string            `json:"created_by"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// CheckoutLock marks an item as borrowed. At most one exists per item.
type CheckoutLock struct {
	ItemID     string    `json:"item_id"`
	HolderID   string    `json:"holder_id"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// SecretPayload is the plaintext sealed into Item.EncryptedPayload.
type SecretPayload struct {
	Secret string            `json:"secret"`
	Fields map[string]string `json:"fields,omitempty"`
}
