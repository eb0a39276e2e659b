package optimistic

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SpeculativePrefix starts every id minted by NewSpeculativeID. Confirming
// authorities must never return ids with this prefix, which keeps a diff by
// id between speculative and confirmed collections unambiguous.
const SpeculativePrefix = "optimistic-"

// NewSpeculativeID composes a millisecond timestamp with a 48-bit random
// suffix, e.g. "optimistic-1735787045123-3f9a0c7d21be".
func NewSpeculativeID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s%d-%s", SpeculativePrefix, now.UnixMilli(), suffix)
}

// IsSpeculativeID reports whether id was minted by NewSpeculativeID.
func IsSpeculativeID(id string) bool {
	return strings.HasPrefix(id, SpeculativePrefix)
}
