package models

import "time"

type VaultType string

const (
	VaultClient  VaultType = "client"
	VaultProduct VaultType = "product"
	VaultSquad   VaultType = "squad"
)

// Vault is a node in the vault tree. Path is the slash-joined list of
// ancestor names and is fixed at creation.
type Vault struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      VaultType `json:"type"`
	ParentID  *string   `json:"parent_id,omitempty"`
	Path      string    `json:"path"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}
