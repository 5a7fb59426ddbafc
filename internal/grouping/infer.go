// Package grouping infers which consecutive messages were posted together as
// one media group. The export format drops the group id, so it is rebuilt
// from timestamps and media classes.
package grouping

import (
	"slices"
	"time"

	"tgblog/internal/constants"
	"tgblog/internal/models"
)

// Options controls group inference.
type Options struct {
	// Window is the maximum distance from the first message of a group.
	Window time.Duration
	// Excluded lists media classes that never join a group.
	Excluded []models.MediaClass
}

// DefaultOptions returns the 5 second window with stickers and videos excluded.
func DefaultOptions() Options {
	excluded := make([]models.MediaClass, 0, len(constants.DefaultExcludedGroupKinds))
	for _, k := range constants.DefaultExcludedGroupKinds {
		excluded = append(excluded, models.MediaClass(k))
	}
	return Options{
		Window:   time.Duration(constants.DefaultGroupWindowSec) * time.Second,
		Excluded: excluded,
	}
}

// Classify returns the media class used to match group members, or "" when
// the message carries no media.
func Classify(m *models.RawMessage) models.MediaClass {
	if m == nil || m.Media == nil {
		return ""
	}
	return m.Media.Kind
}

// Infer assigns GroupID to every message that belongs to a group of two or
// more. msgs must be ordered by id. Any GroupID left from an earlier pass is
// cleared first. It returns the number of groups formed.
//
// A message extends the current group when it has a groupable class equal to
// the group's class and lies within the window of the message that started
// the group. Extending tags both the previous message and the new one, so a
// group is only visible once its second member arrives.
func Infer(msgs []*models.RawMessage, opts Options) int {
	window := int64(opts.Window / time.Second)

	var (
		groupID   int64
		signature models.MediaClass
		reference int64
		formed    int
	)

	for _, m := range msgs {
		m.GroupID = nil
	}

	for i, m := range msgs {
		class := Classify(m)

		if i > 0 && class != "" && !slices.Contains(opts.Excluded, class) &&
			abs(m.Timestamp-reference) < window && class == signature {
			prev := msgs[i-1]
			if prev.GroupID == nil {
				formed++
			}
			prev.GroupID = idPtr(groupID)
			m.GroupID = idPtr(groupID)
			continue
		}

		groupID++
		signature = class
		reference = m.Timestamp
	}

	return formed
}

func idPtr(id int64) *int64 {
	return &id
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
