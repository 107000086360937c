package counter

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chouha-community/gatekeeper/app/repository"
	"github.com/chouha-community/gatekeeper/internal/pkg/cache"
)

const (
	welcomesKey      = "onboarding:counters:welcomes"
	verificationsKey = "onboarding:counters:verifications"
	rolesKey         = "onboarding:counters:roles"
)

func today() string {
	return time.Now().UTC().Format("2006-01-02")
}

// AddWelcomeSent increments the pending welcome counter for today in Redis.
func AddWelcomeSent() error {
	return cache.GetClient().HIncrBy(context.Background(), welcomesKey, today(), 1).Err()
}

// AddVerification increments the pending verification counter for today in Redis.
func AddVerification() error {
	return cache.GetClient().HIncrBy(context.Background(), verificationsKey, today(), 1).Err()
}

// AddRoleGranted increments the pending role-grant counter for today in Redis.
func AddRoleGranted() error {
	return cache.GetClient().HIncrBy(context.Background(), rolesKey, today(), 1).Err()
}

// FlushAll drains all pending counters into the daily stats table.
func FlushAll() error {
	stats := repository.GetGlobalFactory().GetStatsRepository()

	if err := flushHash(welcomesKey, func(day string, inc int64) error {
		return stats.AddToDay(day, inc, 0, 0)
	}); err != nil {
		return err
	}
	if err := flushHash(verificationsKey, func(day string, inc int64) error {
		return stats.AddToDay(day, 0, inc, 0)
	}); err != nil {
		return err
	}
	return flushHash(rolesKey, func(day string, inc int64) error {
		return stats.AddToDay(day, 0, 0, inc)
	})
}

// flushHash drains a Redis hash atomically and applies the per-day increments.
// Uses RENAME to a temporary key so in-flight increments are never lost.
func flushHash(redisKey string, apply func(day string, inc int64) error) error {
	ctx := context.Background()
	rdb := cache.GetClient()

	tmpKey := fmt.Sprintf("%s:tmp:%d", redisKey, time.Now().UnixNano())
	if err := rdb.Do(ctx, "RENAME", redisKey, tmpKey).Err(); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "no such key") || err.Error() == "redis: nil" {
			return nil
		}
		return err
	}
	defer rdb.Del(ctx, tmpKey)

	data, err := rdb.HGetAll(ctx, tmpKey).Result()
	if err != nil {
		return err
	}

	for day, raw := range data {
		inc, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil || inc == 0 {
			continue
		}
		if err := apply(day, inc); err != nil {
			return err
		}
	}
	return nil
}
