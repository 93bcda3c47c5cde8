package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	sfErrors "github.com/ezoic/salesforecast/pkg/errors"
)

// Decode parses a request body holding one JSON object or an array of objects.
// An empty body, null, {} and [] yield ErrNoData; invalid JSON yields
// ErrMalformedInput; a record that does not fit the schema yields a SchemaError.
func Decode(data []byte) ([]Raw, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, sfErrors.ErrNoData
	}
	if !json.Valid(data) {
		return nil, sfErrors.Wrap(sfErrors.ErrMalformedInput, "request body is not valid JSON")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, sfErrors.Wrap(sfErrors.ErrMalformedInput, err.Error())
	}

	switch tok {
	case nil:
		return nil, sfErrors.ErrNoData
	case json.Delim('{'):
		obj, keys, err := decodeObjectBody(dec)
		if err != nil {
			return nil, err
		}
		if len(keys) == 0 {
			return nil, sfErrors.ErrNoData
		}
		r, err := FromMap(0, obj, keys)
		if err != nil {
			return nil, err
		}
		return []Raw{r}, nil
	case json.Delim('['):
		var out []Raw
		for i := 0; dec.More(); i++ {
			t, err := dec.Token()
			if err != nil {
				return nil, sfErrors.Wrap(sfErrors.ErrMalformedInput, err.Error())
			}
			if t != json.Delim('{') {
				return nil, sfErrors.NewSchemaError(i, "", t, "array element is not an object")
			}
			obj, keys, err := decodeObjectBody(dec)
			if err != nil {
				return nil, err
			}
			r, err := FromMap(i, obj, keys)
			if err != nil {
				return nil, err
			}
			out = append(out, r)
		}
		if len(out) == 0 {
			return nil, sfErrors.ErrNoData
		}
		return out, nil
	default:
		return nil, sfErrors.NewSchemaError(0, "", tok, "body must be an object or an array of objects")
	}
}

// decodeObjectBody reads the members of an object whose '{' was consumed, keeping
// the member order.
func decodeObjectBody(dec *json.Decoder) (map[string]interface{}, []string, error) {
	obj := make(map[string]interface{})
	var keys []string
	for dec.More() {
		t, err := dec.Token()
		if err != nil {
			return nil, nil, sfErrors.Wrap(sfErrors.ErrMalformedInput, err.Error())
		}
		key, ok := t.(string)
		if !ok {
			return nil, nil, sfErrors.Wrap(sfErrors.ErrMalformedInput, "object key is not a string")
		}
		var v interface{}
		if err := dec.Decode(&v); err != nil {
			return nil, nil, sfErrors.Wrap(sfErrors.ErrMalformedInput, err.Error())
		}
		if _, dup := obj[key]; !dup {
			keys = append(keys, key)
		}
		obj[key] = v
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return nil, nil, sfErrors.Wrap(sfErrors.ErrMalformedInput, err.Error())
	}
	return obj, keys, nil
}

// FromMap maps one record. keys gives the original field order; callers without an
// order pass nil and responses fall back to sorted keys.
func FromMap(row int, m map[string]interface{}, keys []string) (Raw, error) {
	r := Raw{Source: m, Keys: keys}
	fields := make(map[string]interface{}, len(m))
	for name, v := range m {
		col, ok := Canonical(name)
		if !ok {
			return Raw{}, sfErrors.NewSchemaError(row, name, nil, "unknown field")
		}
		if _, dup := fields[col]; dup {
			return Raw{}, sfErrors.NewSchemaError(row, name, nil, "field given twice under different names")
		}
		fields[col] = v
	}
	for _, col := range Required {
		if isNull(fields[col]) {
			return Raw{}, sfErrors.NewSchemaError(row, col, nil, "required field is missing or null")
		}
	}

	p := parser{row: row, fields: fields}
	r.Store = p.int(ColStore)
	r.DayOfWeek = p.int(ColDayOfWeek)
	r.Date = p.str(ColDate)
	r.Open = p.optInt(ColOpen)
	r.Promo = p.int(ColPromo)
	r.StateHoliday = StateHoliday(p.code(ColStateHoliday))
	r.SchoolHoliday = p.int(ColSchoolHoliday)
	r.Customers = p.optFloat(ColCustomers)
	r.StoreType = StoreType(p.str(ColStoreType))
	r.Assortment = Assortment(p.str(ColAssortment))
	r.CompetitionDistance = p.optFloat(ColCompetitionDistance)
	r.CompetitionOpenSinceMonth = p.optInt(ColCompetitionOpenSinceMonth)
	r.CompetitionOpenSinceYear = p.optInt(ColCompetitionOpenSinceYear)
	r.Promo2 = p.int(ColPromo2)
	r.Promo2SinceWeek = p.optInt(ColPromo2SinceWeek)
	r.Promo2SinceYear = p.optInt(ColPromo2SinceYear)
	r.PromoInterval = p.optStr(ColPromoInterval)
	if p.err != nil {
		return Raw{}, p.err
	}

	if r.DayOfWeek < 1 || r.DayOfWeek > 7 {
		return Raw{}, sfErrors.NewSchemaError(row, ColDayOfWeek, r.DayOfWeek, "day of week must be in 1..7")
	}
	return r, nil
}

// parser converts loosely typed JSON values and keeps the first error.
type parser struct {
	row    int
	fields map[string]interface{}
	err    error
}

func (p *parser) fail(col string, v interface{}, reason string) {
	if p.err == nil {
		p.err = sfErrors.NewSchemaError(p.row, col, v, reason)
	}
}

func (p *parser) optFloat(col string) *float64 {
	v := p.fields[col]
	if isNull(v) {
		return nil
	}
	f, ok := toFloat(v)
	if !ok {
		p.fail(col, v, "expected a number")
		return nil
	}
	return &f
}

func (p *parser) optInt(col string) *int {
	f := p.optFloat(col)
	if f == nil {
		return nil
	}
	if *f != math.Trunc(*f) || math.Abs(*f) > math.MaxInt32 {
		p.fail(col, p.fields[col], "expected an integer")
		return nil
	}
	n := int(*f)
	return &n
}

func (p *parser) int(col string) int {
	if n := p.optInt(col); n != nil {
		return *n
	}
	return 0
}

func (p *parser) optStr(col string) *string {
	v := p.fields[col]
	if isNull(v) {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		p.fail(col, v, "expected a string")
		return nil
	}
	return &s
}

func (p *parser) str(col string) string {
	if s := p.optStr(col); s != nil {
		return *s
	}
	return ""
}

// code accepts a string code or an integral number (pandas may emit state holiday 0
// as a number).
func (p *parser) code(col string) string {
	v := p.fields[col]
	if s, ok := v.(string); ok {
		return s
	}
	if f, ok := toFloat(v); ok && f == math.Trunc(f) {
		return strconv.Itoa(int(f))
	}
	p.fail(col, v, "expected a code")
	return ""
}

func isNull(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		s := strings.TrimSpace(x)
		return s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "null")
	case float64:
		return math.IsNaN(x)
	}
	return false
}

func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil && !math.IsInf(f, 0)
	case bool:
		return 0, false
	}
	return 0, false
}

// String renders a record for logs.
func (r Raw) String() string {
	return fmt.Sprintf("Raw(store=%d, date=%s)", r.Store, r.Date)
}
