// Package record maps raw store/day records onto typed Go values.
//
// Input arrives either in the camelCase schema of the public dataset (Store,
// DayOfWeek, CompetitionOpenSinceMonth, ...) or already in canonical snake_case. Both
// are resolved through a fixed one-to-one table; anything else is a SchemaError. The
// original object is kept on the record so responses can echo it unchanged.
package record

// StateHoliday is the state holiday code of a day.
type StateHoliday string

const (
	NoHoliday     StateHoliday = "0"
	PublicHoliday StateHoliday = "a"
	Easter        StateHoliday = "b"
	Christmas     StateHoliday = "c"
)

// StateHolidayLabels lists the business labels in the order of the one-hot block.
var StateHolidayLabels = []string{"regular_day", "public_holiday", "easter", "christmas"}

// Label returns the business label. Unknown codes are regular days.
func (s StateHoliday) Label() string {
	switch s {
	case PublicHoliday:
		return "public_holiday"
	case Easter:
		return "easter"
	case Christmas:
		return "christmas"
	default:
		return "regular_day"
	}
}

// Assortment is the assortment level code of a store.
type Assortment string

const (
	Basic    Assortment = "a"
	Extra    Assortment = "b"
	Extended Assortment = "c"
)

// Label returns the business label. Unknown codes are extended.
func (a Assortment) Label() string {
	switch a {
	case Basic:
		return "basic"
	case Extra:
		return "extra"
	default:
		return "extended"
	}
}

// AssortmentOrdinal maps an assortment label to its ordinal code. Unknown labels map
// to extended.
func AssortmentOrdinal(label string) int {
	switch label {
	case "basic":
		return 1
	case "extra":
		return 2
	default:
		return 3
	}
}

// StoreType is an opaque store model code (a-d). It is only ever label encoded.
type StoreType string

// Raw is one input row for a (store, date) pair. Pointer fields are nullable.
type Raw struct {
	Store         int
	DayOfWeek     int
	Date          string
	Open          *int
	Promo         int
	StateHoliday  StateHoliday
	SchoolHoliday int
	Customers     *float64

	StoreType                 StoreType
	Assortment                Assortment
	CompetitionDistance       *float64
	CompetitionOpenSinceMonth *int
	CompetitionOpenSinceYear  *int
	Promo2                    int
	Promo2SinceWeek           *int
	Promo2SinceYear           *int
	PromoInterval             *string

	// Source is the original object, Keys its field order.
	Source map[string]interface{}
	Keys   []string
}

// Canonical column names.
const (
	ColStore                     = "store"
	ColDayOfWeek                 = "day_of_week"
	ColDate                      = "date"
	ColOpen                      = "open"
	ColPromo                     = "promo"
	ColStateHoliday              = "state_holiday"
	ColSchoolHoliday             = "school_holiday"
	ColCustomers                 = "customers"
	ColStoreType                 = "store_type"
	ColAssortment                = "assortment"
	ColCompetitionDistance       = "competition_distance"
	ColCompetitionOpenSinceMonth = "competition_open_since_month"
	ColCompetitionOpenSinceYear  = "competition_open_since_year"
	ColPromo2                    = "promo2"
	ColPromo2SinceWeek           = "promo2_since_week"
	ColPromo2SinceYear           = "promo2_since_year"
	ColPromoInterval             = "promo_interval"
)

// Renames is the fixed source-to-canonical column table.
var Renames = map[string]string{
	"Store":                     ColStore,
	"DayOfWeek":                 ColDayOfWeek,
	"Date":                      ColDate,
	"Open":                      ColOpen,
	"Promo":                     ColPromo,
	"StateHoliday":              ColStateHoliday,
	"SchoolHoliday":             ColSchoolHoliday,
	"Customers":                 ColCustomers,
	"StoreType":                 ColStoreType,
	"Assortment":                ColAssortment,
	"CompetitionDistance":       ColCompetitionDistance,
	"CompetitionOpenSinceMonth": ColCompetitionOpenSinceMonth,
	"CompetitionOpenSinceYear":  ColCompetitionOpenSinceYear,
	"Promo2":                    ColPromo2,
	"Promo2SinceWeek":           ColPromo2SinceWeek,
	"Promo2SinceYear":           ColPromo2SinceYear,
	"PromoInterval":             ColPromoInterval,
}

// Required lists the columns every record must carry with a non-null value.
var Required = []string{
	ColStore, ColDayOfWeek, ColDate, ColPromo, ColStateHoliday,
	ColSchoolHoliday, ColStoreType, ColAssortment, ColPromo2,
}

var canonical = func() map[string]bool {
	m := make(map[string]bool, len(Renames))
	for _, c := range Renames {
		m[c] = true
	}
	return m
}()

// Canonical resolves a source or canonical field name. ok is false for unknown names.
func Canonical(name string) (string, bool) {
	if c, ok := Renames[name]; ok {
		return c, true
	}
	if canonical[name] {
		return name, true
	}
	return "", false
}
