package util

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewID generates a ULID string; ids sort by creation time.
func NewID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// migrationNS namespaces ids derived from legacy keys.
var migrationNS = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:restaurant-crm:legacy-migration"))

// StableID derives the same UUIDv5 for the same parts on every call.
func StableID(parts ...string) string {
	name := ""
	for i, p := range parts {
		if i > 0 {
			name += "/"
		}
		name += p
	}
	return uuid.NewSHA1(migrationNS, []byte(name)).String()
}
