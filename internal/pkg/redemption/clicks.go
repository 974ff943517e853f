package redemption

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/reelads/ReelAds/internal/pkg/cache"
)

const linkClicksKey = "redemption:counters:clicks"

// TrackClick increments the pending click counter for a link in Redis.
// Click tracking is best-effort analytics; a lost increment is acceptable
// and never blocks link visitation.
func (s *Service) TrackClick(linkID uint) {
	ctx := context.Background()
	field := strconv.FormatUint(uint64(linkID), 10)
	if err := cache.GetClient().HIncrBy(ctx, linkClicksKey, field, 1).Err(); err != nil {
		log.Printf("redemption: click tracking failed for link %d: %v", linkID, err)
	}
}

// FlushClicks drains the pending click counters and applies them to the
// links table. Uses RENAME to a temporary key so in-flight increments are
// not lost during the drain.
func (s *Service) FlushClicks() error {
	ctx := context.Background()
	rdb := cache.GetClient()

	tmpKey := fmt.Sprintf("%s:tmp:%d", linkClicksKey, time.Now().UnixNano())
	if err := rdb.Do(ctx, "RENAME", linkClicksKey, tmpKey).Err(); err != nil {
		// If key does not exist, nothing to flush
		if strings.Contains(strings.ToLower(err.Error()), "no such key") {
			return nil
		}
		if err.Error() == "redis: nil" {
			return nil
		}
		return err
	}
	defer rdb.Del(ctx, tmpKey)

	data, err := rdb.HGetAll(ctx, tmpKey).Result()
	if err != nil {
		return err
	}

	increments := make(map[uint]int64, len(data))
	for field, raw := range data {
		linkID, perr := strconv.ParseUint(field, 10, 64)
		if perr != nil {
			continue
		}
		delta, ierr := strconv.ParseInt(raw, 10, 64)
		if ierr != nil || delta == 0 {
			continue
		}
		increments[uint(linkID)] = delta
	}
	if len(increments) == 0 {
		return nil
	}
	return s.repo.AddClicks(increments)
}
