package metrics_test

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/salesforecast/metrics"
)

// ExampleMAE shows the average miss of a week of daily sales predictions
func ExampleMAE() {
	sales := mat.NewVecDense(4, []float64{5263, 6064, 8314, 13995})
	predicted := mat.NewVecDense(4, []float64{5100, 6300, 8314, 13500})

	mae, err := metrics.MAE(sales, predicted)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("MAE: %.2f\n", mae)

	// Output: MAE: 223.50
}

// ExampleRMSE demonstrates Root Mean Squared Error calculation
func ExampleRMSE() {
	yTrue := mat.NewVecDense(3, []float64{10.0, 20.0, 30.0})
	yPred := mat.NewVecDense(3, []float64{12.0, 18.0, 32.0})

	rmse, err := metrics.RMSE(yTrue, yPred)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("RMSE: %.2f\n", rmse)

	// Output: RMSE: 2.00
}

// ExampleMAPE skips days without sales
func ExampleMAPE() {
	sales := mat.NewVecDense(3, []float64{100, 0, 200})
	predicted := mat.NewVecDense(3, []float64{110, 50, 180})

	mape, err := metrics.MAPE(sales, predicted)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("MAPE: %.1f%%\n", mape*100)

	// Output: MAPE: 10.0%
}

func ExampleSummarize() {
	sales := mat.NewVecDense(4, []float64{1, 2, 3, 4})
	predicted := mat.NewVecDense(4, []float64{1, 2, 3, 5})

	report, err := metrics.Summarize(sales, predicted)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(report)

	// Output: n=4 MAE=0.25 MAPE=0.0625 RMSE=0.50 R2=0.8000
}
