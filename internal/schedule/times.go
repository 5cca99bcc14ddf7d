package schedule

import (
	"fmt"
	"sort"
)

const minutesPerDay = 24 * 60

// ParseMinute converts a wall-clock string like "08:30" to minutes from
// midnight. Seconds are not accepted; the booking grid has minute precision.
func ParseMinute(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return h*60 + m, nil
}

// FormatMinute renders minutes from midnight as "HH:MM".
func FormatMinute(min int) string {
	return fmt.Sprintf("%02d:%02d", min/60, min%60)
}

// MergeRanges sorts ranges by start and coalesces overlapping or touching
// ones into a canonical non-overlapping ascending list. The input is not
// modified.
func MergeRanges(ranges []TimeRange) []TimeRange {
	if len(ranges) == 0 {
		return nil
	}

	sorted := make([]TimeRange, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	merged := []TimeRange{sorted[0]}
	for _, r := range sorted[1:] {
		last := &merged[len(merged)-1]
		if r.Start <= last.End {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// SubtractRanges removes every interval in removals from the (already
// merged) ranges, splitting ranges where a removal lands in the middle.
func SubtractRanges(ranges, removals []TimeRange) []TimeRange {
	if len(removals) == 0 {
		return ranges
	}
	removals = MergeRanges(removals)

	var out []TimeRange
	for _, r := range ranges {
		cur := r
		for _, cut := range removals {
			if cut.End <= cur.Start || cut.Start >= cur.End {
				continue
			}
			if cut.Start > cur.Start {
				out = append(out, TimeRange{Start: cur.Start, End: cut.Start})
			}
			if cut.End >= cur.End {
				cur.Start = cur.End // fully consumed
				break
			}
			cur.Start = cut.End
		}
		if cur.Start < cur.End {
			out = append(out, cur)
		}
	}
	return out
}

// SliceSlots cuts each range into consecutive slots of slotMinutes starting
// at the range start. A trailing remainder shorter than slotMinutes is
// discarded.
func SliceSlots(ranges []TimeRange, slotMinutes int) []TimeRange {
	var slots []TimeRange
	for _, r := range ranges {
		for start := r.Start; start+slotMinutes <= r.End; start += slotMinutes {
			slots = append(slots, TimeRange{Start: start, End: start + slotMinutes})
		}
	}
	return slots
}
