package models

import "time"

// OneTimeLink is a single-use capability. Exactly one of ItemID and
// InlinePayload is set; InlinePayload holds ciphertext.
type OneTimeLink struct {
	Token         string     `json:"token"`
	ItemID        *string    `json:"item_id,omitempty"`
	InlinePayload []byte     `json:"-"`
	CreatedBy     string     `json:"created_by"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
	Consumed      bool       `json:"consumed"`
	ConsumedAt    *time.Time `json:"consumed_at,omitempty"`
}

// Usable reports whether the link can still be resolved at now.
func (l *OneTimeLink) Usable(now time.Time) bool {
	return !l.Consumed && now.Before(l.ExpiresAt)
}
