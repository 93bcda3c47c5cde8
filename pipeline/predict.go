package pipeline

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/salesforecast/core/record"
	"github.com/ezoic/salesforecast/pkg/errors"
)

// ISODateLayout renders the record date in responses.
const ISODateLayout = "2006-01-02T15:04:05.000Z"

// Regressor is a pretrained model scoring prepared feature vectors. Its output is on
// the log1p scale of sales.
type Regressor interface {
	Predict(X mat.Matrix) (mat.Matrix, error)
	NumFeatures() int
}

// Result is an input record enriched with its sales prediction.
type Result struct {
	Record     record.Raw
	Date       time.Time
	Prediction float64
}

// Predict scores X and attaches expm1 of every model output to the matching record.
func Predict(m Regressor, raws []record.Raw, cleaned []Cleaned, X mat.Matrix) ([]Result, error) {
	rows, cols := X.Dims()
	if cols != m.NumFeatures() {
		return nil, errors.NewInferenceError("feature count", m.NumFeatures(), cols, nil)
	}
	if rows != len(raws) || rows != len(cleaned) {
		return nil, errors.NewInferenceError("feature rows", len(raws), rows, nil)
	}

	out, err := m.Predict(X)
	if err != nil {
		return nil, errors.NewInferenceError("model", rows, rows, err)
	}
	outRows, outCols := out.Dims()
	if outRows != rows {
		return nil, errors.NewInferenceError("prediction rows", rows, outRows, nil)
	}
	if outCols != 1 {
		return nil, errors.NewInferenceError("prediction columns", 1, outCols, nil)
	}

	results := make([]Result, rows)
	for i := range results {
		score := out.At(i, 0)
		pred := math.Expm1(score)
		// scores above ~709.78 overflow expm1 and cannot be rendered as JSON
		if math.IsInf(pred, 0) || math.IsNaN(pred) {
			return nil, errors.NewInferenceError("non-finite prediction", rows, i,
				errors.Newf("row %d: model output %v", i, score))
		}
		results[i] = Result{
			Record:     raws[i],
			Date:       cleaned[i].Date,
			Prediction: pred,
		}
	}
	return results, nil
}

// MarshalJSON writes the original fields in their original order, the date in ISO
// 8601, then "prediction".
func (r Result) MarshalJSON() ([]byte, error) {
	keys := r.Record.Keys
	if len(keys) == 0 {
		keys = make([]string, 0, len(r.Record.Source))
		for k := range r.Record.Source {
			keys = append(keys, k)
		}
		sort.Strings(keys)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for _, k := range keys {
		if k == "prediction" {
			continue
		}
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')

		var v interface{} = r.Record.Source[k]
		if col, _ := record.Canonical(k); col == record.ColDate {
			v = r.Date.Format(ISODateLayout)
		} else if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			v = nil
		}
		val, err := json.Marshal(v)
		if err != nil {
			return nil, errors.Wrapf(err, "field %s", k)
		}
		buf.Write(val)
		buf.WriteByte(',')
	}
	buf.WriteString(`"prediction":`)
	pred, err := json.Marshal(r.Prediction)
	if err != nil {
		return nil, errors.Wrap(err, "prediction")
	}
	buf.Write(pred)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
