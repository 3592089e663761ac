package extractors

import (
	"sort"
	"time"

	"github.com/faultlinehq/faultline/internal/models"
	"github.com/faultlinehq/faultline/internal/utils"
	"github.com/faultlinehq/faultline/internal/windows"
)

const maxEventText = 1500

// ParseEvents converts a raw event stream into report items sorted by
// timestamp ascending, keeping at most limit of them. Events without a
// date_happened are dropped.
func ParseEvents(resp models.EventsResponse, limit int) []models.EventItem {
	items := []models.EventItem{}
	for _, event := range resp.Events {
		if event == nil {
			continue
		}
		ts, ok := event["date_happened"]
		if !ok || ts == nil {
			continue
		}

		item := models.EventItem{
			TS:   eventTimestamp(ts),
			Tags: []string{},
		}
		if v := event["title"]; truthy(v) {
			item.Title = safeString(v)
		}
		if v := event["text"]; truthy(v) {
			item.Text = utils.TruncateRunes(safeString(v), maxEventText)
		}
		if tags, ok := event["tags"].([]any); ok {
			for _, t := range tags {
				if s, ok := t.(string); ok {
					item.Tags = append(item.Tags, s)
				}
			}
		}
		if u, ok := event["url"].(string); ok {
			item.URL = &u
		}
		items = append(items, item)
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].TS < items[j].TS })
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

// eventTimestamp renders an epoch-seconds value as ISO-8601 UTC, falling
// back to the raw value as a string when it is not numeric.
func eventTimestamp(v any) string {
	if n, ok := safeInt64(v); ok {
		return windows.FormatISO(time.Unix(n, 0))
	}
	return safeString(v)
}
