// Package metrics scores sales predictions against observed sales.
//
// Regression metrics:
//   - MAE: mean absolute error, in currency units
//   - MAPE: mean absolute percentage error, rows with zero sales are skipped
//   - MSE / RMSE: mean squared error and its square root
//   - R2Score: coefficient of determination
//
// Summarize computes all of them at once for the evaluate command.
package metrics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	sfErrors "github.com/ezoic/salesforecast/pkg/errors"
)

// MSE returns the mean squared error between yTrue and yPred.
//
// Errors:
//   - ValueError: if the vectors are empty
//   - DimensionError: if the lengths differ
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	// MSE = (1/n) * Σ(yTrue - yPred)²
	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += diff * diff
	}
	return sum / float64(n), nil
}

// MSEMatrix is MSE for n×1 column matrices, the shape models return.
func MSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()
	if rTrue == 0 || cTrue == 0 {
		return 0, sfErrors.NewValueError("MSEMatrix", "empty matrix")
	}
	if rTrue != rPred || cTrue != cPred {
		return 0, sfErrors.NewDimensionError("MSEMatrix", rTrue, rPred, 0)
	}
	if cTrue != 1 {
		return 0, sfErrors.NewValueError("MSEMatrix", "must be a column vector (n×1 matrix)")
	}
	return MSE(mat.NewVecDense(rTrue, mat.Col(nil, 0, yTrue)),
		mat.NewVecDense(rPred, mat.Col(nil, 0, yPred)))
}

// RMSE is the square root of MSE, in the unit of the target.
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE returns the mean absolute error. It is less sensitive to outlier days than MSE.
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}
	return sum / float64(n), nil
}

// R2Score returns the coefficient of determination. 1 is a perfect fit, 0 is no
// better than predicting the mean.
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var yMean float64
	for i := 0; i < n; i++ {
		yMean += yTrue.AtVec(i)
	}
	yMean /= float64(n)

	var tss, rss float64
	for i := 0; i < n; i++ {
		t, p := yTrue.AtVec(i), yPred.AtVec(i)
		tss += (t - yMean) * (t - yMean)
		rss += (t - p) * (t - p)
	}
	if tss == 0 {
		return 0, sfErrors.NewValueError("R2Score", "total sum of squares is zero (no variance in yTrue)")
	}
	return 1 - rss/tss, nil
}

// MAPE returns the mean absolute percentage error, as a fraction (0.1 is 10%).
// Rows where yTrue is zero are skipped; if every row is zero MAPE fails.
func MAPE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MAPE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	valid := 0
	for i := 0; i < n; i++ {
		t := yTrue.AtVec(i)
		if t == 0 {
			continue
		}
		sum += math.Abs(t-yPred.AtVec(i)) / math.Abs(t)
		valid++
	}
	if valid == 0 {
		return 0, sfErrors.NewValueError("MAPE", "all yTrue values are zero")
	}
	return sum / float64(valid), nil
}

// Report holds the error of a set of predictions.
type Report struct {
	N    int
	MAE  float64
	MAPE float64
	RMSE float64
	R2   float64
}

// Summarize computes MAE, MAPE, RMSE and R² of yPred. R² is NaN when yTrue is
// constant.
func Summarize(yTrue, yPred *mat.VecDense) (Report, error) {
	n, err := checkPair("Summarize", yTrue, yPred)
	if err != nil {
		return Report{}, err
	}
	r := Report{N: n}
	if r.MAE, err = MAE(yTrue, yPred); err != nil {
		return Report{}, err
	}
	if r.MAPE, err = MAPE(yTrue, yPred); err != nil {
		return Report{}, err
	}
	if r.RMSE, err = RMSE(yTrue, yPred); err != nil {
		return Report{}, err
	}
	if r.R2, err = R2Score(yTrue, yPred); err != nil {
		r.R2 = math.NaN()
	}
	return r, nil
}

func (r Report) String() string {
	return fmt.Sprintf("n=%d MAE=%.2f MAPE=%.4f RMSE=%.2f R2=%.4f", r.N, r.MAE, r.MAPE, r.RMSE, r.R2)
}

func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, sfErrors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return 0, sfErrors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}
