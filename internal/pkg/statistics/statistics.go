package statistics

import (
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/chouha-community/gatekeeper/app/models"
	"github.com/chouha-community/gatekeeper/internal/pkg/cache"
	"github.com/chouha-community/gatekeeper/internal/pkg/database"
)

const (
	CacheKeyVerifiedTotal = "statistics:verified:total"
	CacheKeyVerifiedToday = "statistics:verified:today"
	CacheExpiration       = 30 * time.Minute
)

// StatisticsData holds the landing page statistics.
type StatisticsData struct {
	TotalVerified int
	TodayVerified int
}

var (
	lastCacheUpdate     time.Time
	cacheUpdateMutex    sync.Mutex
	cacheUpdateInterval = 5 * time.Minute
)

// ShouldUpdateCache reports whether the cached values are due for a refresh.
func ShouldUpdateCache() bool {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()
	return time.Since(lastCacheUpdate) > cacheUpdateInterval
}

// UpdateCacheIfNeeded refreshes the statistics cache when the interval passed.
func UpdateCacheIfNeeded() {
	if !ShouldUpdateCache() {
		return
	}
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	if err := UpdateStatisticsCache(); err != nil {
		log.Printf("Failed to update statistics cache: %v", err)
		return
	}
	lastCacheUpdate = time.Now()
}

// UpdateStatisticsCache recounts the verification records and stores the
// totals in Redis. Requires the MySQL backend; other backends show no stats.
func UpdateStatisticsCache() error {
	db := database.GetDB()
	if db == nil {
		return nil
	}

	var totalVerified int64
	if err := db.Model(&models.VerifiedUser{}).Count(&totalVerified).Error; err != nil {
		return err
	}

	today := time.Now().UTC().Format("2006-01-02")
	todayStart, _ := time.Parse("2006-01-02", today)
	todayEnd := todayStart.Add(24 * time.Hour)

	var todayVerified int64
	if err := db.Model(&models.VerifiedUser{}).
		Where("verified_at BETWEEN ? AND ?", todayStart, todayEnd).
		Count(&todayVerified).Error; err != nil {
		return err
	}

	if err := cache.Set(CacheKeyVerifiedTotal, strconv.FormatInt(totalVerified, 10), CacheExpiration); err != nil {
		return err
	}
	return cache.Set(CacheKeyVerifiedToday, strconv.FormatInt(todayVerified, 10), CacheExpiration)
}

// GetStatisticsData returns the cached statistics, refreshing them when due.
func GetStatisticsData() StatisticsData {
	UpdateCacheIfNeeded()

	data := StatisticsData{}
	if v, err := cache.Get(CacheKeyVerifiedTotal); err == nil {
		data.TotalVerified, _ = strconv.Atoi(v)
	}
	if v, err := cache.Get(CacheKeyVerifiedToday); err == nil {
		data.TodayVerified, _ = strconv.Atoi(v)
	}
	return data
}
