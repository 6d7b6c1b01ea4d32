package models

import "time"

type EventType string

const (
	EventItemCreated         EventType = "item_created"
	EventVaultCreated        EventType = "vault_created"
	EventItemRevealed        EventType = "item_revealed"
	EventRevealDenied        EventType = "reveal_denied"
	EventItemCheckedOut      EventType = "item_checked_out"
	EventItemCheckedIn       EventType = "item_checked_in"
	EventJITRequested        EventType = "jit_requested"
	EventJITApproved         EventType = "jit_approved"
	EventJITDenied           EventType = "jit_denied"
	EventJITExpired          EventType = "jit_expired"
	EventBreakGlassRequested EventType = "breakglass_requested"
	EventBreakGlassApproved  EventType = "breakglass_approved"
	EventBreakGlassRevoked   EventType = "breakglass_revoked"
	EventLinkCreated         EventType = "link_created"
	EventLinkConsumed        EventType = "link_consumed"
	EventLinkPurged          EventType = "link_purged"
	EventAlertFailed         EventType = "alert_failed"
	EventAuditExported       EventType = "audit_exported"
)

type SubjectType string

const (
	SubjectItem       SubjectType = "item"
	SubjectVault      SubjectType = "vault"
	SubjectJIT        SubjectType = "jit_request"
	SubjectBreakGlass SubjectType = "breakglass_request"
	SubjectLink       SubjectType = "onetime_link"
	SubjectAudit      SubjectType = "audit_log"
)

// AuditEntry is immutable once written. ID is assigned by the store from a
// monotonically increasing sequence.
type AuditEntry struct {
	ID          int64          `json:"id"`
	Timestamp   time.Time      `json:"timestamp"`
	ActorID     string         `json:"actor_id"`
	ActorEmail  string         `json:"actor_email,omitempty"`
	EventType   EventType      `json:"event_type"`
	SubjectType SubjectType    `json:"subject_type"`
	SubjectID   string         `json:"subject_id"`
	VaultID     string         `json:"vault_id,omitempty"`
	IPAddress   string         `json:"ip_address,omitempty"`
	UserAgent   string         `json:"user_agent,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
}

// AuditFilter narrows audit queries. Zero values mean "any".
type AuditFilter struct {
	EventType EventType
	ActorID   string
	SubjectID string
	VaultID   string
	From      time.Time
	To        time.Time
	Limit     int
}
