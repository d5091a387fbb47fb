package privacy

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	pkgerrors "github.com/veilhq/veil-backend/internal/pkg/errors"
)

// handleLen is the number of hex characters kept from the HMAC output.
// 32 hex chars = 128 bits, plenty to avoid collisions inside one org+window.
const handleLen = 32

// RotationWindow buckets a timestamp into the daily handle-rotation window.
// Handles derived in different windows are intentionally unlinkable; do not
// cache handles across the boundary to "fix" that.
func RotationWindow(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// DeriveHandle maps a raw submitter identity to its pseudonymous handle for
// one org and one rotation window. Same inputs always give the same handle;
// a different window gives an unrelated one. The raw identity is never
// retained past this call.
func DeriveHandle(identity, orgSalt, window string) (string, error) {
	if strings.TrimSpace(orgSalt) == "" {
		return "", pkgerrors.ErrMissingOrgSalt
	}
	if strings.TrimSpace(identity) == "" {
		return "", pkgerrors.ErrInvalidArgument
	}
	mac := hmac.New(sha256.New, []byte(orgSalt+"|"+window))
	mac.Write([]byte(identity))
	sum := mac.Sum(nil)
	return hex.EncodeToString(sum)[:handleLen], nil
}
