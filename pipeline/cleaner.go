package pipeline

import (
	"math"
	"strings"
	"time"

	"github.com/ezoic/salesforecast/core/record"
	sfErrors "github.com/ezoic/salesforecast/pkg/errors"
)

// DefaultCompetitionDistance replaces a missing competition distance. It is far
// beyond any observed distance and reads as "no competitor nearby".
const DefaultCompetitionDistance = 100000.0

// NoPromoInterval marks a store that runs no recurring promotion.
const NoPromoInterval = "0"

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC3339Nano, // also accepts RFC 3339 without fractional seconds
}

// Cleaned is a record whose nulls are resolved. Only Customers may still be missing
// (NaN).
type Cleaned struct {
	Store         int
	DayOfWeek     int
	Date          time.Time
	Open          *int
	Promo         int
	StateHoliday  record.StateHoliday
	SchoolHoliday int
	Customers     float64

	StoreType                 record.StoreType
	Assortment                record.Assortment
	CompetitionDistance       float64
	CompetitionOpenSinceMonth int
	CompetitionOpenSinceYear  int
	Promo2                    int
	Promo2SinceWeek           int
	Promo2SinceYear           int
	PromoInterval             string
	IsPromo2Active            int
}

// ParseDate parses a record date. The clock part, if any, is dropped.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, sfErrors.Newf("unparseable date %q", s)
}

// Clean resolves the nulls of every record. A single unparseable date fails the
// whole table; rows are never dropped.
func Clean(raws []record.Raw) ([]Cleaned, error) {
	out := make([]Cleaned, len(raws))
	for i := range raws {
		c, err := cleanOne(i, &raws[i])
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

func cleanOne(row int, r *record.Raw) (Cleaned, error) {
	date, err := ParseDate(r.Date)
	if err != nil {
		return Cleaned{}, sfErrors.NewSchemaError(row, record.ColDate, r.Date, "unparseable date")
	}
	_, isoWeek := date.ISOWeek()

	c := Cleaned{
		Store:         r.Store,
		DayOfWeek:     r.DayOfWeek,
		Date:          date,
		Open:          r.Open,
		Promo:         r.Promo,
		StateHoliday:  r.StateHoliday,
		SchoolHoliday: r.SchoolHoliday,
		Customers:     math.NaN(),
		StoreType:     r.StoreType,
		Assortment:    r.Assortment,
		Promo2:        r.Promo2,

		CompetitionDistance:       orFloat(r.CompetitionDistance, DefaultCompetitionDistance),
		CompetitionOpenSinceMonth: orInt(r.CompetitionOpenSinceMonth, int(date.Month())),
		CompetitionOpenSinceYear:  orInt(r.CompetitionOpenSinceYear, date.Year()),
		Promo2SinceWeek:           orInt(r.Promo2SinceWeek, isoWeek),
		Promo2SinceYear:           orInt(r.Promo2SinceYear, date.Year()),
		PromoInterval:             NoPromoInterval,
	}
	if r.Customers != nil {
		c.Customers = *r.Customers
	}
	if r.PromoInterval != nil {
		c.PromoInterval = *r.PromoInterval
	}
	c.IsPromo2Active = promo2Active(c.PromoInterval, date.Month())
	return c, nil
}

// promo2Active reports whether month is one of the promotion restart months.
func promo2Active(interval string, month time.Month) int {
	if interval == NoPromoInterval {
		return 0
	}
	abbr := monthAbbr(month)
	for _, m := range strings.Split(interval, ",") {
		if strings.TrimSpace(m) == abbr {
			return 1
		}
	}
	return 0
}

func monthAbbr(m time.Month) string {
	return m.String()[:3]
}

func orFloat(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func orInt(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
