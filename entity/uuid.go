package entity

import "github.com/google/uuid"

// NewUUID returns a fresh random UUID string, used to stamp an object or
// extent's identity when a caller inserts one without supplying its own
// (spec §4.C: oid is the alive table's natural key and (uuid, version)
// the deprecated table's; the uuid stays with an object across rename
// and deprecation).
func NewUUID() string {
	return uuid.NewString()
}
