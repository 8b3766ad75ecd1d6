package models

import (
	"time"
)

// CachedPage stores a raw fetched source page so repeat reads within the TTL
// window skip the network. TTL is decided at read time from module state, not
// stored here.
type CachedPage struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	CacheKey  string    `json:"cache_key" gorm:"uniqueIndex;not null"`
	URL       string    `json:"url"`
	Body      string    `json:"body" gorm:"type:text"`
	FetchedAt time.Time `json:"fetched_at" gorm:"not null"`

	Timestamps
}
