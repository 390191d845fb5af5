package crm

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
)

const idSuffixLen = 9

// NewID returns "<prefix>_<unix millis>_<9 base36 chars>".
func NewID(prefix string, now time.Time) string {
	u := uuid.New()
	suffix := new(big.Int).SetBytes(u[:]).Text(36)
	if len(suffix) < idSuffixLen {
		suffix = strings.Repeat("0", idSuffixLen-len(suffix)) + suffix
	}
	return fmt.Sprintf("%s_%d_%s", prefix, now.UnixMilli(), suffix[:idSuffixLen])
}
