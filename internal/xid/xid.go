package xid

import "github.com/google/uuid"

// New returns a random identifier tagged with prefix, e.g. "evt-3f2c...".
func New(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
