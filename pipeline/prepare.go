package pipeline

import (
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/salesforecast/core/record"
	"github.com/ezoic/salesforecast/pkg/errors"
	"github.com/ezoic/salesforecast/preprocessing"
)

// FeatureColumns is the model input layout. It does not depend on the batch.
var FeatureColumns = []string{
	"store", "customers", "is_weekday", "store_type", "assortment", "competition_distance",
	"competition_open_since_month_sin", "competition_open_since_month_cos",
	"competition_open_since_year", "competition_since_month", "promo", "promo2",
	"promo2_time_week", "promo2_time_month", "month_sin", "month_cos", "day_sin", "day_cos",
	"week_of_year_sin", "week_of_year_cos", "day_of_week_sin", "day_of_week_cos",
	"promo2_since_week_sin", "promo2_since_week_cos",
}

var (
	monthCycle     = preprocessing.Cyclical{Period: 12}
	dayCycle       = preprocessing.Cyclical{Period: 30}
	weekCycle      = preprocessing.Cyclical{Period: 52}
	dayOfWeekCycle = preprocessing.Cyclical{Period: 7}
)

// Prepared is the encoded batch. X is the model input; the other fields are computed
// alongside but are not fed to the model.
type Prepared struct {
	X *mat.Dense

	// Year is the min-max scaled calendar year.
	Year []float64

	// OneHot holds the state holiday block followed by the promo2 since year block,
	// named by OneHotColumns.
	OneHot        *mat.Dense
	OneHotColumns []string
}

// Preparer encodes engineered records into the model feature vector.
type Preparer struct {
	artifacts *Artifacts
	refit     bool
}

// NewPreparer creates a preparer that applies artifacts. With refit each batch is
// encoded by fresh copies of the scalers and label encoders fitted on that batch;
// artifacts is never modified.
func NewPreparer(artifacts *Artifacts, refit bool) *Preparer {
	return &Preparer{artifacts: artifacts, refit: refit}
}

// Prepare encodes rows. Row order is kept.
func (p *Preparer) Prepare(rows []Engineered) (*Prepared, error) {
	n := len(rows)
	if n == 0 {
		return nil, errors.ErrNoData
	}
	a := p.artifacts
	if p.refit {
		a = a.refitCopy()
	}

	column := func(f func(e *Engineered) float64) *mat.Dense {
		v := make([]float64, n)
		for i := range rows {
			v[i] = f(&rows[i])
		}
		return mat.NewDense(n, 1, v)
	}
	strs := func(f func(e *Engineered) string) []string {
		v := make([]string, n)
		for i := range rows {
			v[i] = f(&rows[i])
		}
		return v
	}

	promoWeek, err := p.scale("promo2_time_week", a.PromoTimeWeek,
		column(func(e *Engineered) float64 { return float64(e.Promo2TimeWeek) }))
	if err != nil {
		return nil, err
	}
	promoMonth, err := p.scale("promo2_time_month", a.PromoTimeMonth,
		column(func(e *Engineered) float64 { return float64(e.Promo2TimeMonth) }))
	if err != nil {
		return nil, err
	}
	customers, err := p.scale("customers", a.Customers,
		column(func(e *Engineered) float64 { return e.Customers }))
	if err != nil {
		return nil, err
	}
	competitionMonths, err := p.scale("competition_since_month", a.CompetitionSinceMonth,
		column(func(e *Engineered) float64 { return float64(e.CompetitionSinceMonth) }))
	if err != nil {
		return nil, err
	}
	distance, err := p.scale("competition_distance", a.CompetitionDistance,
		column(func(e *Engineered) float64 { return e.CompetitionDistance }))
	if err != nil {
		return nil, err
	}
	year, err := p.scale("year", a.Year,
		column(func(e *Engineered) float64 { return float64(e.Year) }))
	if err != nil {
		return nil, err
	}

	onehotIn := make([][]string, n)
	for i := range rows {
		onehotIn[i] = []string{rows[i].StateHoliday, strconv.Itoa(rows[i].Promo2SinceYear)}
	}
	onehot, err := a.OneHot.Transform(onehotIn)
	if err != nil {
		return nil, errors.Wrap(err, "one-hot state_holiday/promo2_since_year")
	}

	storeType, err := p.encode(a.StoreType,
		strs(func(e *Engineered) string { return e.StoreType }))
	if err != nil {
		return nil, err
	}
	openYear, err := p.encode(a.CompetitionOpenSinceYear,
		strs(func(e *Engineered) string { return strconv.Itoa(e.CompetitionOpenSinceYear) }))
	if err != nil {
		return nil, err
	}

	X := mat.NewDense(n, len(FeatureColumns), nil)
	row := make([]float64, len(FeatureColumns))
	for i := range rows {
		e := &rows[i]
		row[0] = float64(e.Store)
		row[1] = customers[i]
		row[2] = float64(e.IsWeekday)
		row[3] = storeType[i]
		row[4] = float64(record.AssortmentOrdinal(e.Assortment))
		row[5] = distance[i]
		row[6], row[7] = monthCycle.Encode(float64(e.CompetitionOpenSinceMonth))
		row[8] = openYear[i]
		row[9] = competitionMonths[i]
		row[10] = float64(e.Promo)
		row[11] = float64(e.Promo2)
		row[12] = promoWeek[i]
		row[13] = promoMonth[i]
		row[14], row[15] = monthCycle.Encode(float64(e.Month))
		row[16], row[17] = dayCycle.Encode(float64(e.Day))
		row[18], row[19] = weekCycle.Encode(float64(e.WeekOfYear))
		row[20], row[21] = dayOfWeekCycle.Encode(float64(e.DayOfWeek))
		row[22], row[23] = weekCycle.Encode(float64(e.Promo2SinceWeek))
		X.SetRow(i, row)
	}

	return &Prepared{
		X:             X,
		Year:          year,
		OneHot:        mat.DenseCopyOf(onehot),
		OneHotColumns: a.OneHot.GetFeatureNamesOut([]string{record.ColStateHoliday, record.ColPromo2SinceYear}),
	}, nil
}

// scale applies a single-column numeric transform, fitting it first in refit mode.
func (p *Preparer) scale(name string, t preprocessing.Transformer, X mat.Matrix) ([]float64, error) {
	if p.refit {
		if err := t.Fit(X); err != nil {
			return nil, errors.Wrapf(err, "refit %s", name)
		}
	}
	out, err := t.Transform(X)
	if err != nil {
		return nil, errors.Wrapf(err, "transform %s", name)
	}
	return mat.Col(nil, 0, out), nil
}

func (p *Preparer) encode(e *preprocessing.LabelEncoder, values []string) ([]float64, error) {
	if p.refit {
		if err := e.Fit(values); err != nil {
			return nil, errors.Wrapf(err, "refit %s", e.Feature)
		}
	}
	return e.Transform(values)
}
