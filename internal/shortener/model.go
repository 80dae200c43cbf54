package shortener

import (
	"time"

	"github.com/google/uuid"
)

// Link maps a short code to its destination URL.
//
// Password is stored in plain text, matching the behavior this service
// replaces. Do not expose the column beyond the admin listing if the
// deployment is anything more than a demo.
type Link struct {
	ID          uuid.UUID
	Code        string
	OriginalURL string
	Password    *string
	CreatedAt   time.Time
	ExpiresAt   *time.Time
}

// Expired reports whether the link's expiry, if set, is strictly before now.
// Links never expire unless ExpiresAt is set.
func (l Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}

// PasswordProtected reports whether resolving the link requires a password.
func (l Link) PasswordProtected() bool {
	return l.Password != nil && *l.Password != ""
}

// ClickEvent records one successful redirect through a short code.
// It holds the code, not a link ID, so events survive link deletion
// unless explicitly removed.
type ClickEvent struct {
	ID        uuid.UUID
	Code      string
	ClickedAt time.Time
}

// LinkStats is a Link joined with its click count, as returned by the
// admin listing.
type LinkStats struct {
	Link
	TotalClicks int64
}

// LinkAnalytics is the per-code analytics record.
type LinkAnalytics struct {
	Code        string
	OriginalURL string
	TotalClicks int64
}
