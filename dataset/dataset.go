// Package dataset reads the Rossmann CSV files into gota data frames and turns them
// into pipeline records.
//
// The day files (test.csv, train.csv) carry one row per store and day; store.csv
// carries the static store attributes. Merge left-joins them on Store.
package dataset

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/ezoic/salesforecast/core/record"
	sfErrors "github.com/ezoic/salesforecast/pkg/errors"
)

// Column names of the CSV files.
const (
	ColID    = "Id"
	ColStore = "Store"
	ColOpen  = "Open"
	ColSales = "Sales"
)

// columnTypes pins the types of the known columns. Nullable integer columns are
// floats, as in the published files.
var columnTypes = map[string]series.Type{
	"Id":                        series.Int,
	"Store":                     series.Int,
	"DayOfWeek":                 series.Int,
	"Date":                      series.String,
	"Sales":                     series.Float,
	"Customers":                 series.Float,
	"Open":                      series.Float,
	"Promo":                     series.Int,
	"StateHoliday":              series.String,
	"SchoolHoliday":             series.Int,
	"StoreType":                 series.String,
	"Assortment":                series.String,
	"CompetitionDistance":       series.Float,
	"CompetitionOpenSinceMonth": series.Float,
	"CompetitionOpenSinceYear":  series.Float,
	"Promo2":                    series.Int,
	"Promo2SinceWeek":           series.Float,
	"Promo2SinceYear":           series.Float,
	"PromoInterval":             series.String,
}

var nanValues = []string{"", "NA", "NaN", "nan"}

// ReadCSV loads one CSV file.
func ReadCSV(path string) (dataframe.DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return dataframe.DataFrame{}, sfErrors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	df := dataframe.ReadCSV(f,
		dataframe.HasHeader(true),
		dataframe.WithTypes(columnTypes),
		dataframe.NaNValues(nanValues),
	)
	if df.Err != nil {
		return dataframe.DataFrame{}, sfErrors.Wrapf(df.Err, "read %s", path)
	}
	return df, nil
}

// Merge left-joins the store attributes onto the day rows.
func Merge(days, stores dataframe.DataFrame) (dataframe.DataFrame, error) {
	merged := days.LeftJoin(stores, ColStore)
	if merged.Err != nil {
		return dataframe.DataFrame{}, sfErrors.Wrap(merged.Err, "merge on Store")
	}
	return merged, nil
}

// ForStore keeps the rows of one store.
func ForStore(df dataframe.DataFrame, store int) dataframe.DataFrame {
	return df.Filter(dataframe.F{Colname: ColStore, Comparator: series.Eq, Comparando: store})
}

// ForStores keeps the rows of the given stores.
func ForStores(df dataframe.DataFrame, stores []int) dataframe.DataFrame {
	return df.Filter(dataframe.F{Colname: ColStore, Comparator: series.In, Comparando: stores})
}

// OpenDays removes closed days and days whose Open flag is unknown.
func OpenDays(df dataframe.DataFrame) dataframe.DataFrame {
	return df.Filter(dataframe.F{
		Colname:    ColOpen,
		Comparator: series.CompFunc,
		Comparando: func(el series.Element) bool {
			return !el.IsNA() && el.Float() != 0
		},
	})
}

// WithSales keeps the rows with positive sales.
func WithSales(df dataframe.DataFrame) dataframe.DataFrame {
	return df.Filter(dataframe.F{Colname: ColSales, Comparator: series.Greater, Comparando: 0.0})
}

// DropColumns removes the named columns that are present.
func DropColumns(df dataframe.DataFrame, names ...string) dataframe.DataFrame {
	present := make(map[string]bool, df.Ncol())
	for _, n := range df.Names() {
		present[n] = true
	}
	var drop []string
	for _, n := range names {
		if present[n] {
			drop = append(drop, n)
		}
	}
	if len(drop) == 0 {
		return df
	}
	return df.Drop(drop)
}

// Stores returns the distinct store ids, ascending.
func Stores(df dataframe.DataFrame) ([]int, error) {
	ids, err := df.Col(ColStore).Int()
	if err != nil {
		return nil, sfErrors.Wrap(err, "store column")
	}
	seen := make(map[int]bool)
	var out []int
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Ints(out)
	return out, nil
}

// Records maps every row onto a record. When label is not empty that column is
// removed from the records and returned separately.
func Records(df dataframe.DataFrame, label string) ([]record.Raw, []float64, error) {
	if df.Err != nil {
		return nil, nil, df.Err
	}
	names := df.Names()
	keys := make([]string, 0, len(names))
	for _, n := range names {
		if n != label {
			keys = append(keys, n)
		}
	}

	rows := df.Maps()
	raws := make([]record.Raw, len(rows))
	var labels []float64
	if label != "" {
		labels = make([]float64, len(rows))
	}
	for i, m := range rows {
		if label != "" {
			v, ok := m[label].(float64)
			if !ok {
				return nil, nil, sfErrors.NewSchemaError(i, label, m[label], "label must be a number")
			}
			labels[i] = v
			delete(m, label)
		}
		r, err := record.FromMap(i, m, keys)
		if err != nil {
			return nil, nil, err
		}
		raws[i] = r
	}
	return raws, labels, nil
}

// Payload renders the rows as the JSON array the prediction API takes. Missing
// values become null.
func Payload(df dataframe.DataFrame) ([]byte, error) {
	if df.Err != nil {
		return nil, df.Err
	}
	data, err := json.Marshal(df.Maps())
	if err != nil {
		return nil, sfErrors.Wrap(err, "encode payload")
	}
	return data, nil
}
