package models

import "time"

type BreakGlassStatus string

const (
	BreakGlassPending  BreakGlassStatus = "pending"
	BreakGlassApproved BreakGlassStatus = "approved"
	BreakGlassRevoked  BreakGlassStatus = "revoked"
)

// BreakGlassRequest grants access at creation; the two approvals are
// collected afterwards for accountability.
type BreakGlassRequest struct {
	ID            string           `json:"id"`
	ItemID        string           `json:"item_id"`
	RequesterID   string           `json:"requester_id"`
	RequesterMail string           `json:"requester_email,omitempty"`
	Reason        string           `json:"reason"`
	Status        BreakGlassStatus `json:"status"`
	Approver1ID   *string          `json:"approver1_id,omitempty"`
	Approver1At   *time.Time       `json:"approver1_at,omitempty"`
	Approver2ID   *string          `json:"approver2_id,omitempty"`
	Approver2At   *time.Time       `json:"approver2_at,omitempty"`
	RevokedBy     *string          `json:"revoked_by,omitempty"`
	RevokedAt     *time.Time       `json:"revoked_at,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// GrantsAccess is true until the request is revoked.
func (r *BreakGlassRequest) GrantsAccess() bool {
	return r.Status == BreakGlassPending || r.Status == BreakGlassApproved
}

// HasApproved reports whether principalID already approved this request.
func (r *BreakGlassRequest) HasApproved(principalID string) bool {
	return (r.Approver1ID != nil && *r.Approver1ID == principalID) ||
		(r.Approver2ID != nil && *r.Approver2ID == principalID)
}

// Approvals counts recorded approvals.
func (r *BreakGlassRequest) Approvals() int {
	n := 0
	if r.Approver1ID != nil {
		n++
	}
	if r.Approver2ID != nil {
		n++
	}
	return n
}
