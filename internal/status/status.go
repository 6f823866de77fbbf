// Package status defines the presence status codes stored in the member
// directory and the policy that maps attendance counts to a status.
//
// The codes are single characters inherited from the upstream directory
// schema. They cannot be renamed without migrating every imports_person
// row, so new statuses get new codes and old codes stay valid forever.
package status

import "fmt"

// Status is a one-character presence code as stored in the
// imports_person.presence column.
type Status string

const (
	// Regular marks a member attending most weeks of the year.
	Regular Status = "a"
	// Occasional marks a member with at least some attendance.
	Occasional Status = "s"
	// Guest marks a member with no attendance in the window.
	Guest Status = "g"
	// Deceased is terminal: never reclassified.
	Deceased Status = "d"
	// Departed is terminal: the member left and is never reclassified.
	Departed Status = "x"

	// Legacy guest variants still present in old directory exports.
	// They are valid current statuses but are never assigned by
	// classification; a member carrying one is reclassified like any
	// other non-terminal member.
	GuestNew     Status = "n"
	GuestUnset   Status = ""
	GuestVisitor Status = "v"

	// NoData marks a member with no row in the stats database at all.
	// The upstream schema had no code for this case; "u" is ours.
	NoData Status = "u"
)

var names = map[Status]string{
	Regular:      "regular",
	Occasional:   "occasional",
	Guest:        "guest",
	Deceased:     "deceased",
	Departed:     "departed",
	GuestNew:     "guest_new",
	GuestUnset:   "guest_unset",
	GuestVisitor: "guest_visitor",
	NoData:       "no_data",
}

// Parse converts a raw presence column value into a Status.
// The empty string is a valid legacy code, not an absence of value.
func Parse(code string) (Status, error) {
	s := Status(code)
	if _, ok := names[s]; !ok {
		return "", fmt.Errorf("unknown presence code %q", code)
	}
	return s, nil
}

// Code returns the one-character database representation.
func (s Status) Code() string { return string(s) }

// Name returns the human-readable name used in reports and logs.
func (s Status) Name() string {
	if n, ok := names[s]; ok {
		return n
	}
	return fmt.Sprintf("invalid(%q)", string(s))
}

// Valid reports whether s is a known presence code.
func (s Status) Valid() bool {
	_, ok := names[s]
	return ok
}

// Terminal reports whether s is a terminal status that classification
// must never change (deceased, departed).
func (s Status) Terminal() bool {
	return s == Deceased || s == Departed
}

// Policy holds the attendance thresholds used to classify members.
//
// A member attending RegularMin or more weeks in the trailing window is
// Regular; at least OccasionalMin weeks is Occasional; fewer is Guest.
type Policy struct {
	RegularMin    int
	OccasionalMin int
}

// DefaultPolicy returns the thresholds used by the upstream system:
// roughly half the year for regular, any attendance at all for occasional.
func DefaultPolicy() Policy {
	return Policy{RegularMin: 27, OccasionalMin: 1}
}

// Validate checks that the thresholds are ordered and positive.
func (p Policy) Validate() error {
	if p.OccasionalMin < 1 {
		return fmt.Errorf("occasional-min must be at least 1 (got %d)", p.OccasionalMin)
	}
	if p.RegularMin <= p.OccasionalMin {
		return fmt.Errorf("regular-min must be greater than occasional-min (%d <= %d)",
			p.RegularMin, p.OccasionalMin)
	}
	return nil
}

// Target computes the status a member should carry.
//
// Terminal statuses are always preserved, whether or not stats exist:
// a deceased member whose stats rows were purged stays deceased.
// Otherwise, a member without stats becomes NoData, and a member with
// stats is classified by attendance count against the thresholds.
func (p Policy) Target(weeks int, hasStats bool, current Status) Status {
	if current.Terminal() {
		return current
	}
	if !hasStats {
		return NoData
	}
	switch {
	case weeks >= p.RegularMin:
		return Regular
	case weeks >= p.OccasionalMin:
		return Occasional
	default:
		return Guest
	}
}
