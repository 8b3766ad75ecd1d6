package services

import (
	"crypto/md5"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fantasy-tournament-system/models"
	"fantasy-tournament-system/utils"
)

// FetchService retrieves result pages from external sources with a DB-backed
// cache. TTL is decided per read from the module's state: finalized results
// never change, freshly ended modules get corrections, mid-flight modules
// update constantly.
type FetchService struct {
	DB     *gorm.DB
	Client *http.Client
}

func NewFetchService(db *gorm.DB) *FetchService {
	return &FetchService{DB: db, Client: utils.HTTPClient}
}

// CacheTTL returns how long a cached page stays valid for the given module.
// A nil module gets the 1 hour default.
func CacheTTL(module *models.Module, now time.Time) time.Duration {
	if module == nil {
		return time.Hour
	}

	if module.IsCompleted && module.FinalizedAt != nil {
		return 365 * 24 * time.Hour
	}

	if module.EndDate != nil && module.EndDate.Before(now) {
		sinceEnd := now.Sub(*module.EndDate)
		switch {
		case sinceEnd < time.Hour:
			return 5 * time.Minute // corrections still landing
		case sinceEnd < 24*time.Hour:
			return 30 * time.Minute
		default:
			return time.Hour
		}
	}

	return 10 * time.Minute
}

// CacheKey builds a deterministic key from the URL's path and query.
func CacheKey(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Sprintf("%x", md5.Sum([]byte(rawURL)))[:16]
	}

	identifier := strings.ReplaceAll(strings.Trim(parsed.Path, "/"), "/", "_")
	if parsed.RawQuery != "" {
		query := parsed.RawQuery
		if len(query) > 50 {
			query = query[:50]
		}
		identifier += "__" + query
	}
	hash := fmt.Sprintf("%x", md5.Sum([]byte(rawURL)))[:12]
	return fmt.Sprintf("source:%s:%s", identifier, hash)
}

// Fetch returns the page body for url, from cache when fresh for the module's
// TTL tier, otherwise from the network. forceRefresh skips the cache read but
// still writes the fresh copy back.
func (f *FetchService) Fetch(rawURL string, module *models.Module, forceRefresh bool) (string, error) {
	if rawURL == "" {
		return "", fmt.Errorf("url cannot be empty")
	}

	key := CacheKey(rawURL)
	now := time.Now().UTC()

	if !forceRefresh {
		var page models.CachedPage
		err := f.DB.Where("cache_key = ?", key).First(&page).Error
		if err == nil && now.Sub(page.FetchedAt) < CacheTTL(module, now) {
			log.Printf("Cache HIT for %s", rawURL)
			return page.Body, nil
		}
		if err != nil && err != gorm.ErrRecordNotFound {
			return "", fmt.Errorf("cache lookup failed: %w", err)
		}
		log.Printf("Cache MISS for %s", rawURL)
	}

	body, err := f.fetchFromSource(rawURL)
	if err != nil {
		return "", err
	}

	page := models.CachedPage{
		ID:        uuid.New().String(),
		CacheKey:  key,
		URL:       rawURL,
		Body:      body,
		FetchedAt: now,
	}
	if err := f.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"url", "body", "fetched_at", "updated_at"}),
	}).Create(&page).Error; err != nil {
		log.Printf("⚠️ Failed to cache page for %s: %v", rawURL, err)
	}

	f.archiveSnapshot(key, body)

	return body, nil
}

// Invalidate drops the cached copy of a URL.
func (f *FetchService) Invalidate(rawURL string) error {
	return f.DB.Where("cache_key = ?", CacheKey(rawURL)).Delete(&models.CachedPage{}).Error
}

func (f *FetchService) fetchFromSource(rawURL string) (string, error) {
	log.Printf("Fetching URL: %s", rawURL)

	req, err := http.NewRequest("GET", rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json, text/html")

	resp, err := f.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("source returned status %d for %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response from %s: %w", rawURL, err)
	}

	log.Printf("✅ Fetched %s (%d bytes)", rawURL, len(body))
	return string(body), nil
}

// archiveSnapshot keeps a raw copy of every fetched page in R2 for audits and
// parser regression debugging. Best-effort only.
func (f *FetchService) archiveSnapshot(key, body string) {
	if !utils.R2Enabled() {
		return
	}
	objectKey := fmt.Sprintf("source-snapshots/%s/%s.json", time.Now().UTC().Format("2006-01-02"), key)
	if err := utils.ArchiveToR2(objectKey, []byte(body), "application/json"); err != nil {
		log.Printf("⚠️ Failed to archive snapshot %s to R2: %v", objectKey, err)
	}
}
