package model_test

import (
	"fmt"
	"os"
	"strings"

	"github.com/ezoic/salesforecast/core/model"
)

// ExampleBaseEstimator demonstrates BaseEstimator state management
func ExampleBaseEstimator() {
	estimator := &model.BaseEstimator{}
	fmt.Printf("Initially fitted: %t\n", estimator.IsFitted())

	estimator.SetFitted()
	fmt.Printf("After SetFitted: %t\n", estimator.IsFitted())

	clone := estimator.Unfitted()
	fmt.Printf("Clone fitted: %t\n", clone.IsFitted())

	estimator.Reset()
	fmt.Printf("After Reset: %t\n", estimator.IsFitted())

	// Output: Initially fitted: false
	// After SetFitted: true
	// Clone fitted: false
	// After Reset: false
}

// ExampleLoadArtifactFromReader shows how a pretrained scaler's parameters are read.
func ExampleLoadArtifactFromReader() {
	src := `{"model_spec":{"name":"MinMaxScaler","format_version":"1.0","feature":"year"},
	         "params":{"data_min":[2013],"data_max":[2015],"feature_range":[0,1]}}`

	a, err := model.LoadArtifactFromReader(strings.NewReader(src))
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	var params struct {
		DataMin []float64 `json:"data_min"`
		DataMax []float64 `json:"data_max"`
	}
	if err := a.DecodeParams("MinMaxScaler", &params); err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(a.ModelSpec.Feature, params.DataMin[0], params.DataMax[0])

	_ = model.ExportArtifact("MinMaxScaler", "year", params, os.Stdout)

	// Output: year 2013 2015
	// {
	//   "model_spec": {
	//     "name": "MinMaxScaler",
	//     "format_version": "1.0",
	//     "feature": "year"
	//   },
	//   "params": {
	//     "data_min": [
	//       2013
	//     ],
	//     "data_max": [
	//       2015
	//     ]
	//   }
	// }
}
