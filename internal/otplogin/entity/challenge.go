package entity

import "time"

// Challenge is the durable record behind one issued code. Verified flips to
// true at most once and ValidTill never changes after creation.
type Challenge struct {
	ID        string
	UserID    int64
	Secret    string
	ValidTill time.Time
	Verified  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the challenge can no longer be verified at now.
// A challenge is still valid at exactly ValidTill.
func (c Challenge) Expired(now time.Time) bool {
	return now.After(c.ValidTill)
}

// Reusable reports whether a cached pointer to this challenge may be handed
// out again instead of minting a new one.
func (c Challenge) Reusable(now time.Time) bool {
	return !c.Verified && c.ValidTill.After(now)
}

// PendingChallenge is the cached, per user view of the live challenge.
type PendingChallenge struct {
	Code           string     `json:"code"`
	RecordID       string     `json:"record_id"`
	ValidTill      time.Time  `json:"valid_till"`
	LastNotifiedAt *time.Time `json:"last_notified_at,omitempty"`
}

// ShouldNotify reports whether a delivery is due at now given the cooldown.
func (p PendingChallenge) ShouldNotify(now time.Time, cooldown time.Duration) bool {
	if p.LastNotifiedAt == nil {
		return true
	}
	return now.Sub(*p.LastNotifiedAt) >= cooldown
}
