package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// NewID returns a session id with a sortable timestamp prefix and a short
// random suffix, e.g. "20240115-143052-a1b2c3". Ids created in the same
// second stay distinct through the suffix.
func NewID() string {
	random := make([]byte, 3)
	rand.Read(random)
	return fmt.Sprintf("%s-%s",
		time.Now().Format("20060102-150405"),
		hex.EncodeToString(random),
	)
}

// ShortID trims a session id to YYMMDD-HHMM for display. Ids too short to
// carry the timestamp prefix come back unchanged.
func ShortID(id string) string {
	if len(id) < 15 {
		return id
	}
	return id[2:8] + "-" + id[9:13]
}
