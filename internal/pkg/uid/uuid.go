package uid

import "github.com/google/uuid"

// UUID generates RFC 9562 UUID strings.
type UUID struct {
	random bool
}

// NewUUID returns a generator of time ordered (v7) UUIDs.
func NewUUID() *UUID {
	return &UUID{}
}

// NewRandomUUID returns a generator of fully random (v4) UUIDs, used where the
// id is handed to clients and must not reveal its creation time.
func NewRandomUUID() *UUID {
	return &UUID{random: true}
}

func (u *UUID) Generate() string {
	if u.random {
		return uuid.NewString()
	}

	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// IsUUID reports whether s parses as a UUID.
func IsUUID(s string) bool {
	return uuid.Validate(s) == nil
}
