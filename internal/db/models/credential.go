package models

import "time"

// PlatformCredential stores OAuth tokens for one advertiser on one ad platform.
// At most one row exists per (advertiser, platform) pair; exchange and refresh
// both upsert on that key.
type PlatformCredential struct {
	ID             string `gorm:"primaryKey"` // UUID
	AdvertiserID   string `gorm:"uniqueIndex:idx_advertiser_platform;not null"`
	PlatformID     string `gorm:"uniqueIndex:idx_advertiser_platform;not null"` // e.g., "amazon_ads"
	ProfileID      string // provider sub-account id, set at exchange time
	AccessToken    string
	RefreshToken   string
	TokenExpiresAt time.Time
	IsActive       bool `gorm:"default:true"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Stale reports whether the access token is missing, expired, or expiring
// within the skew window.
func (c *PlatformCredential) Stale(now time.Time, skew time.Duration) bool {
	if c.TokenExpiresAt.IsZero() {
		return true
	}
	return c.TokenExpiresAt.Sub(now) < skew
}
