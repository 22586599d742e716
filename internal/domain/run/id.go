package run

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const idTimeLayout = "20060102_150405"

var idPattern = regexp.MustCompile(`^run_\d{8}_\d{6}_[0-9a-f]{8}$`)

// NewID returns run_<YYYYMMDD>_<HHMMSS>_<8 hex>. The time part orders runs;
// the random suffix keeps IDs unique when runs start within the same second.
func NewID(t time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return "run_" + t.Format(idTimeLayout) + "_" + suffix
}

// ValidID reports whether id has the run ID shape. Callers use it to reject
// path-like input before touching the ledger directory.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}
