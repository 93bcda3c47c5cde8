package preprocessing_test

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/salesforecast/core/model"
	"github.com/ezoic/salesforecast/preprocessing"
)

// ExampleStandardScaler demonstrates basic usage of StandardScaler
func ExampleStandardScaler() {
	X := mat.NewDense(4, 2, []float64{
		1.0, 2.0,
		3.0, 4.0,
		5.0, 6.0,
		7.0, 8.0,
	})

	scaler := preprocessing.NewStandardScaler(true, true)
	scaled, err := scaler.FitTransform(X)
	if err != nil {
		return
	}

	fmt.Printf("Scaled first row: [%.2f, %.2f]\n", scaled.At(0, 0), scaled.At(0, 1))

	// Output: Scaled first row: [-1.34, -1.34]
}

// ExampleRobustScaler scales promo2 tenure in weeks with a pretrained median/IQR.
func ExampleRobustScaler() {
	a, err := model.LoadArtifactFromReader(strings.NewReader(
		`{"model_spec":{"name":"RobustScaler","format_version":"1.0"},"params":{"center":[10],"scale":[20]}}`))
	if err != nil {
		return
	}
	scaler := preprocessing.NewRobustScaler()
	if err := scaler.ImportArtifact(a); err != nil {
		return
	}

	weeks := mat.NewDense(3, 1, []float64{0, 10, 50})
	scaled, _ := scaler.Transform(weeks)
	fmt.Println(mat.Col(nil, 0, scaled))

	// Output: [-0.5 0 2]
}

// ExampleMinMaxScaler demonstrates basic MinMaxScaler usage
func ExampleMinMaxScaler() {
	years := mat.NewDense(3, 1, []float64{2013, 2014, 2015})

	scaler := preprocessing.NewMinMaxScalerDefault()
	scaled, err := scaler.FitTransform(years)
	if err != nil {
		return
	}

	fmt.Println(mat.Col(nil, 0, scaled))

	// Output: [0 0.5 1]
}

// ExampleOneHotEncoder encodes state holidays over a fixed universe.
func ExampleOneHotEncoder() {
	encoder, err := preprocessing.NewOneHotEncoderWithCategories([][]string{
		{"christmas", "easter", "public_holiday", "regular_day"},
	})
	if err != nil {
		return
	}

	encoded, _ := encoder.Transform([][]string{{"easter"}, {"regular_day"}})
	fmt.Println(encoder.GetFeatureNamesOut([]string{"state_holiday"}))
	fmt.Println(mat.Row(nil, 0, encoded), mat.Row(nil, 1, encoded))

	// Output: [state_holiday_christmas state_holiday_easter state_holiday_public_holiday state_holiday_regular_day]
	// [0 1 0 0] [0 0 0 1]
}

// ExampleLabelEncoder shows that unseen values are rejected.
func ExampleLabelEncoder() {
	encoder := preprocessing.NewLabelEncoder("store_type")
	_ = encoder.Fit([]string{"a", "b", "c", "d"})

	codes, _ := encoder.Transform([]string{"d", "a"})
	fmt.Println(codes)

	_, err := encoder.Transform([]string{"e"})
	fmt.Println(err)

	// Output: [3 0]
	// salesforecast: transform: field "store_type": value "e" not seen by the pretrained encoder
}

// ExampleCyclical encodes months so December sits next to January.
func ExampleCyclical() {
	month := preprocessing.Cyclical{Period: 12}
	for _, m := range []float64{1, 12} {
		sin, cos := month.Encode(m)
		fmt.Printf("month %2.0f: sin=%.3f cos=%.3f\n", m, sin, cos)
	}

	// Output: month  1: sin=0.500 cos=0.866
	// month 12: sin=-0.000 cos=1.000
}
