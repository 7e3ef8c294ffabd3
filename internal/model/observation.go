package model

import (
	"fmt"
	"time"
)

// DateLayout is the on-disk and on-wire calendar date format.
const DateLayout = "2006-01-02"

// Observation is one daily sentiment reading.
type Observation struct {
	Date  string `db:"date" json:"date"`
	Value int    `db:"value" json:"value"`
}

// Category returns the sentiment band of the observation.
func (o Observation) Category() Category {
	return CategoryOf(o.Value)
}

// Time parses the observation date in the given location.
func (o Observation) Time(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, o.Date, loc)
}

// Category is one of the five ordered sentiment bands.
type Category int

const (
	ExtremeFear Category = iota
	Fear
	Neutral
	Greed
	ExtremeGreed
)

// Band is a half-open value range [Low, High) mapped to a category.
type Band struct {
	Category Category
	Low      int
	High     int
	Name     string
	Label    string // localized display label
	Color    string
}

// Bands lists the category bands in ascending order. The upper band uses an
// exclusive bound of 101 so that 100 is included.
var Bands = []Band{
	{ExtremeFear, 0, 25, "Extreme Fear", "极度恐惧", "#EF4444"},
	{Fear, 25, 45, "Fear", "恐惧", "#F97316"},
	{Neutral, 45, 55, "Neutral", "中性", "#F59E0B"},
	{Greed, 55, 75, "Greed", "贪婪", "#10B981"},
	{ExtremeGreed, 75, 101, "Extreme Greed", "极度贪婪", "#059669"},
}

// CategoryOf maps a value to its band. Values above the range fall into
// Extreme Greed and values below it into Extreme Fear.
func CategoryOf(value int) Category {
	for _, b := range Bands {
		if value >= b.Low && value < b.High {
			return b.Category
		}
	}
	if value < 0 {
		return ExtremeFear
	}
	return ExtremeGreed
}

// Band returns the band definition for c.
func (c Category) Band() Band {
	if c < ExtremeFear || c > ExtremeGreed {
		return Band{Category: c, Name: fmt.Sprintf("Category(%d)", int(c))}
	}
	return Bands[c]
}

func (c Category) String() string { return c.Band().Name }

// Label returns the localized display label.
func (c Category) Label() string { return c.Band().Label }

// Color returns the hex color used in badges and reports.
func (c Category) Color() string { return c.Band().Color }

// ValidValue reports whether v satisfies the stored value range.
func ValidValue(v int) bool {
	return v >= 0 && v <= 100
}

// ParseDate parses a YYYY-MM-DD string in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate formats t as YYYY-MM-DD in its own location.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
