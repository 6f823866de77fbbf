// Package attendance decodes the weekly attendance bitmaps stored in the
// stats database and counts attended weeks over a trailing one-year window.
//
// The stats schema stores one row per member and year. Each row carries a
// 54-bit bitmap (one bit per week-of-year, Monday-based week numbering)
// split across two integer columns: first_half holds weeks 0-31 and
// last_half holds weeks 32-53.
package attendance

import (
	"math/bits"
	"time"
)

// weekBits is the number of week slots in a yearly bitmap. Week numbers
// run 0-53 under Monday-based numbering, so a year needs 54 bits.
const weekBits = 54

// Record is one receivers_record row: a member's attendance bitmap for a
// single year.
type Record struct {
	MemberID  int64
	Name      string
	Year      int
	FirstHalf uint32 // weeks 0-31
	LastHalf  uint32 // weeks 32-53
}

// Bitmap reassembles the full yearly bitmap from the two halves.
func (r Record) Bitmap() uint64 {
	return uint64(r.FirstHalf) | uint64(r.LastHalf)<<32
}

// MemberStats is a member's attendance aggregated over the trailing
// window ending at the as-of date.
type MemberStats struct {
	MemberID int64
	Name     string
	// Weeks is the number of attended weeks in the window.
	Weeks int
}

// WeekOfYear returns the Monday-based week number of t, 0-53, matching
// strftime's %W: days before the year's first Monday fall in week 0.
func WeekOfYear(t time.Time) int {
	yday := t.YearDay() - 1
	wday := int(t.Weekday()) // Sunday = 0
	monday := wday - 1
	if wday == 0 {
		monday = 6
	}
	return (yday + 7 - monday) / 7
}

// CountWindow counts attended weeks in the trailing window: weeks 0..week
// of the as-of year plus weeks week+1..53 of the previous year.
func CountWindow(endYear, prevYear uint64, week int) int {
	if week < 0 {
		week = 0
	}
	if week >= weekBits {
		week = weekBits - 1
	}
	full := uint64(1)<<weekBits - 1
	through := uint64(1)<<(week+1) - 1
	return bits.OnesCount64(endYear&through) + bits.OnesCount64(prevYear&full&^through)
}

// Aggregate groups yearly records by member and computes each member's
// attended-week count for the window ending at asOf. Rows for years other
// than asOf's year and the year before are ignored.
func Aggregate(records []Record, asOf time.Time) map[int64]MemberStats {
	endYear := asOf.Year()
	week := WeekOfYear(asOf)

	type bitmaps struct {
		name string
		end  uint64
		prev uint64
	}
	byMember := make(map[int64]*bitmaps)
	for _, rec := range records {
		b, ok := byMember[rec.MemberID]
		if !ok {
			b = &bitmaps{name: rec.Name}
			byMember[rec.MemberID] = b
		}
		switch rec.Year {
		case endYear:
			b.end = rec.Bitmap()
		case endYear - 1:
			b.prev = rec.Bitmap()
		}
	}

	stats := make(map[int64]MemberStats, len(byMember))
	for id, b := range byMember {
		stats[id] = MemberStats{
			MemberID: id,
			Name:     b.name,
			Weeks:    CountWindow(b.end, b.prev, week),
		}
	}
	return stats
}
