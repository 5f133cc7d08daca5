package scheduler

import "time"

// NewSpread controls how new cards interleave with reviews (spec section 4.5).
type NewSpread int

const (
	SpreadDistribute NewSpread = iota
	SpreadLast
	SpreadFirst
)

// Config carries every override spec section 6 names. Zero-value Config is
// not usable directly; use DefaultConfig and override selectively.
type Config struct {
	NewSpread         NewSpread
	NewCardsPerDay    int
	ReviewCardsPerDay int
	CollapseTime      int64 // seconds
	ReportLimit       int   // fill_lrn truncation, spec section 4.4
	NewSteps          []int // minutes
	LapseSteps        []int // minutes
	LapseMinIvl       int64
	LapseMult         float64
	LeechFails        int64
	InitialFactor     int64
	GraduatingIvl     int64
	EasyIvl           int64
	Location          *time.Location // day-cutoff timezone, default UTC
}

// DefaultConfig returns the defaults spec sections 4 and 6 state.
func DefaultConfig() Config {
	return Config{
		NewSpread:         SpreadDistribute,
		NewCardsPerDay:    20,
		ReviewCardsPerDay: 200,
		CollapseTime:      1200,
		ReportLimit:       1000,
		NewSteps:          []int{1, 10},
		LapseSteps:        []int{10},
		LapseMinIvl:       1,
		LapseMult:         0,
		LeechFails:        8,
		InitialFactor:     2500,
		GraduatingIvl:     1,
		EasyIvl:           4,
		Location:          time.UTC,
	}
}
