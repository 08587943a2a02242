package suggest

import (
	"fmt"
	"time"

	"github.com/sysu-ecnc-dev/roster-planner/backend/internal/domain"
)

func parseDate(value string) (time.Time, error) {
	return time.Parse(domain.DateLayout, value)
}

func isoWeekLabel(day time.Time) string {
	year, week := day.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

func metaString(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	if value, ok := meta[key].(string); ok {
		return value
	}
	return ""
}

func metaInt(meta map[string]any, key string) int {
	if meta == nil {
		return 0
	}
	switch value := meta[key].(type) {
	case int:
		return value
	case int64:
		return int(value)
	case float64:
		return int(value)
	}
	return 0
}

// firstExcessRun 返回第一段长度超过 limit 的连续日期中超出部分（第 limit+1 天起）
func firstExcessRun(sortedDays []string, limit int) []string {
	run := []string{}
	var prev *time.Time

	for _, ds := range sortedDays {
		day, err := parseDate(ds)
		if err != nil {
			continue
		}
		if prev != nil && day.Sub(*prev) == 24*time.Hour {
			run = append(run, ds)
		} else {
			if len(run) > limit {
				return run[limit:]
			}
			run = []string{ds}
		}
		d := day
		prev = &d
	}

	if len(run) > limit {
		return run[limit:]
	}
	return nil
}
