package pipeline

import (
	"fmt"
	"time"

	"github.com/ezoic/salesforecast/core/record"
	sfErrors "github.com/ezoic/salesforecast/pkg/errors"
)

// EngineeredColumns is the column layout of an Engineered record.
var EngineeredColumns = []string{
	"store", "date", "day", "month", "year", "week_of_year", "year_week", "customers",
	"day_of_week", "is_weekday", "state_holiday", "school_holiday", "store_type",
	"assortment", "competition_distance", "competition_open_since_month",
	"competition_open_since_year", "competition_since", "competition_since_month", "promo",
	"is_promo2", "promo2", "promo2_since", "promo2_since_week", "promo2_since_year",
	"promo2_time_week", "promo2_time_month",
}

// Engineered is a cleaned record plus the derived calendar and tenure features.
// StateHoliday and Assortment hold business labels, not codes.
type Engineered struct {
	Store         int
	Date          time.Time
	Day           int
	Month         int
	Year          int
	WeekOfYear    int
	YearWeek      string
	Customers     float64
	DayOfWeek     int
	IsWeekday     int
	StateHoliday  string
	SchoolHoliday int
	StoreType     string
	Assortment    string

	CompetitionDistance       float64
	CompetitionOpenSinceMonth int
	CompetitionOpenSinceYear  int
	CompetitionSince          time.Time
	CompetitionSinceMonth     int

	Promo           int
	IsPromo2        int
	Promo2          int
	Promo2Since     time.Time
	Promo2SinceWeek int
	Promo2SinceYear int
	Promo2TimeWeek  int
	Promo2TimeMonth int
}

// Values returns the fields in EngineeredColumns order.
func (e *Engineered) Values() []interface{} {
	return []interface{}{
		e.Store, e.Date, e.Day, e.Month, e.Year, e.WeekOfYear, e.YearWeek, e.Customers,
		e.DayOfWeek, e.IsWeekday, e.StateHoliday, e.SchoolHoliday, e.StoreType,
		e.Assortment, e.CompetitionDistance, e.CompetitionOpenSinceMonth,
		e.CompetitionOpenSinceYear, e.CompetitionSince, e.CompetitionSinceMonth, e.Promo,
		e.IsPromo2, e.Promo2, e.Promo2Since, e.Promo2SinceWeek, e.Promo2SinceYear,
		e.Promo2TimeWeek, e.Promo2TimeMonth,
	}
}

// Derive computes the engineered features of every cleaned record.
func Derive(cleaned []Cleaned) ([]Engineered, error) {
	out := make([]Engineered, len(cleaned))
	for i := range cleaned {
		e, err := deriveOne(i, &cleaned[i])
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func deriveOne(row int, c *Cleaned) (Engineered, error) {
	if c.CompetitionOpenSinceMonth < 1 || c.CompetitionOpenSinceMonth > 12 {
		return Engineered{}, sfErrors.NewSchemaError(row, record.ColCompetitionOpenSinceMonth,
			c.CompetitionOpenSinceMonth, "month must be in 1..12")
	}
	if c.CompetitionOpenSinceYear < 1 || c.CompetitionOpenSinceYear > 9999 {
		return Engineered{}, sfErrors.NewSchemaError(row, record.ColCompetitionOpenSinceYear,
			c.CompetitionOpenSinceYear, "year must be in 1..9999")
	}
	if c.Promo2SinceWeek < 0 || c.Promo2SinceWeek > 53 {
		return Engineered{}, sfErrors.NewSchemaError(row, record.ColPromo2SinceWeek,
			c.Promo2SinceWeek, "week must be in 0..53")
	}
	if c.Promo2SinceYear < 1 || c.Promo2SinceYear > 9999 {
		return Engineered{}, sfErrors.NewSchemaError(row, record.ColPromo2SinceYear,
			c.Promo2SinceYear, "year must be in 1..9999")
	}

	d := c.Date
	_, isoWeek := d.ISOWeek()
	competitionSince := time.Date(c.CompetitionOpenSinceYear, time.Month(c.CompetitionOpenSinceMonth), 1, 0, 0, 0, 0, time.UTC)
	promo2Since := mondayOfWeek(c.Promo2SinceYear, c.Promo2SinceWeek).AddDate(0, 0, -7)
	promoDays := daysBetween(promo2Since, d)

	e := Engineered{
		Store:         c.Store,
		Date:          d,
		Day:           d.Day(),
		Month:         int(d.Month()),
		Year:          d.Year(),
		WeekOfYear:    isoWeek,
		YearWeek:      fmt.Sprintf("%d-%02d", d.Year(), mondayWeekNumber(d)),
		Customers:     c.Customers,
		DayOfWeek:     c.DayOfWeek,
		IsWeekday:     isWeekday(d, c.StateHoliday),
		StateHoliday:  c.StateHoliday.Label(),
		SchoolHoliday: c.SchoolHoliday,
		StoreType:     string(c.StoreType),
		Assortment:    c.Assortment.Label(),

		CompetitionDistance:       c.CompetitionDistance,
		CompetitionOpenSinceMonth: c.CompetitionOpenSinceMonth,
		CompetitionOpenSinceYear:  c.CompetitionOpenSinceYear,
		CompetitionSince:          competitionSince,
		CompetitionSinceMonth:     floorDiv(daysBetween(competitionSince, d), 30),

		Promo:           c.Promo,
		IsPromo2:        c.IsPromo2Active,
		Promo2:          c.Promo2,
		Promo2Since:     promo2Since,
		Promo2SinceWeek: c.Promo2SinceWeek,
		Promo2SinceYear: c.Promo2SinceYear,
		Promo2TimeWeek:  floorDiv(promoDays, 7),
		Promo2TimeMonth: floorDiv(promoDays, 30),
	}
	return e, nil
}

// isWeekday is 1 on Monday to Friday and on any day without a state holiday.
func isWeekday(d time.Time, h record.StateHoliday) int {
	if wd := d.Weekday(); wd >= time.Monday && wd <= time.Friday {
		return 1
	}
	if h == record.NoHoliday {
		return 1
	}
	return 0
}

// mondayWeekNumber is the week of the year with weeks starting on Monday; days
// before the first Monday are in week 0 (strftime %W).
func mondayWeekNumber(d time.Time) int {
	yday := d.YearDay() - 1
	wday := (int(d.Weekday()) + 6) % 7
	return (yday + 7 - wday) / 7
}

// mondayOfWeek is the Monday of %W week `week` of year, the inverse of
// mondayWeekNumber. Week 0 may start in the previous year.
func mondayOfWeek(year, week int) time.Time {
	jan1 := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	first := (int(jan1.Weekday()) + 6) % 7
	if week == 0 {
		return jan1.AddDate(0, 0, -first)
	}
	week0 := (7 - first) % 7
	return jan1.AddDate(0, 0, week0+7*(week-1))
}

// daysBetween counts whole days between two UTC midnights. time.Duration saturates
// after ~292 years, so the count goes through Unix seconds.
func daysBetween(from, to time.Time) int {
	return int((to.Unix() - from.Unix()) / 86400)
}

// floorDiv rounds toward negative infinity.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
