package models

import "time"

type JITStatus string

const (
	JITPending  JITStatus = "pending"
	JITApproved JITStatus = "approved"
	JITDenied   JITStatus = "denied"
	JITExpired  JITStatus = "expired"
)

// JITRequest is a time-bounded access request for one item.
type JITRequest struct {
	ID            string     `json:"id"`
	ItemID        string     `json:"item_id"`
	RequesterID   string     `json:"requester_id"`
	RequesterMail string     `json:"requester_email,omitempty"`
	Reason        string     `json:"reason"`
	DurationHours int        `json:"duration_hours"`
	Status        JITStatus  `json:"status"`
	ApproverID    *string    `json:"approver_id,omitempty"`
	DecidedAt     *time.Time `json:"decided_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

func (r *JITRequest) Duration() time.Duration {
	return time.Duration(r.DurationHours) * time.Hour
}

// EffectiveStatus is the status as of now. An approved grant past its
// expiry reads as expired whether or not the sweeper has persisted it.
// The grant is still valid at expires_at itself.
func (r *JITRequest) EffectiveStatus(now time.Time) JITStatus {
	if r.Status == JITApproved && r.ExpiresAt != nil && now.After(*r.ExpiresAt) {
		return JITExpired
	}
	return r.Status
}

// Active reports whether the grant authorizes access at now.
func (r *JITRequest) Active(now time.Time) bool {
	return r.EffectiveStatus(now) == JITApproved
}
