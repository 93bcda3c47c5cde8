package pipeline

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/ezoic/salesforecast/core/model"
	"github.com/ezoic/salesforecast/core/record"
	"github.com/ezoic/salesforecast/pkg/errors"
	"github.com/ezoic/salesforecast/pkg/log"
	"github.com/ezoic/salesforecast/preprocessing"
	"github.com/ezoic/salesforecast/sklearn/lightgbm"
)

// Artifact file names inside the artifact directory.
const (
	PromoTimeWeekFile            = "promo_time_week_rs.json"
	PromoTimeMonthFile           = "promo_time_month_rs.json"
	CompetitionDistanceFile      = "competition_distance_yeojohn.json"
	CustomersFile                = "customers_yeojohn.json"
	CompetitionSinceMonthFile    = "competition_since_month_yeojohn.json"
	YearFile                     = "year_mms.json"
	StoreTypeFile                = "store_type_le.json"
	CompetitionOpenSinceYearFile = "competition_open_since_year_le.json"
	OneHotFile                   = "onehot_categories.json"
)

// DefaultPromo2SinceYears is the promo2_since_year universe used when no one-hot
// artifact is shipped.
var DefaultPromo2SinceYears = []string{"2009", "2010", "2011", "2012", "2013", "2014", "2015"}

// Artifacts is the fitted state the pipeline applies: the scalers, the power
// transforms, the encoders and the model. It is built once and only read afterwards.
type Artifacts struct {
	PromoTimeWeek  *preprocessing.RobustScaler
	PromoTimeMonth *preprocessing.RobustScaler

	CompetitionDistance   *preprocessing.PowerTransformer
	Customers             *preprocessing.PowerTransformer
	CompetitionSinceMonth *preprocessing.PowerTransformer

	Year *preprocessing.MinMaxScaler

	StoreType                *preprocessing.LabelEncoder
	CompetitionOpenSinceYear *preprocessing.LabelEncoder

	// OneHot has two features: state holiday label and promo2 since year.
	OneHot *preprocessing.OneHotEncoder

	Model Regressor
}

// LoadArtifacts reads every transform from dir and the model from modelPath.
func LoadArtifacts(dir, modelPath string) (*Artifacts, error) {
	logger := log.GetLoggerWithName("artifacts")
	a := &Artifacts{
		PromoTimeWeek:            preprocessing.NewRobustScaler(),
		PromoTimeMonth:           preprocessing.NewRobustScaler(),
		CompetitionDistance:      preprocessing.NewPowerTransformer(true),
		Customers:                preprocessing.NewPowerTransformer(true),
		CompetitionSinceMonth:    preprocessing.NewPowerTransformer(true),
		Year:                     preprocessing.NewMinMaxScalerDefault(),
		StoreType:                preprocessing.NewLabelEncoder(record.ColStoreType),
		CompetitionOpenSinceYear: preprocessing.NewLabelEncoder(record.ColCompetitionOpenSinceYear),
	}

	steps := []struct {
		file string
		dst  interface {
			ImportArtifact(*model.Artifact) error
		}
	}{
		{PromoTimeWeekFile, a.PromoTimeWeek},
		{PromoTimeMonthFile, a.PromoTimeMonth},
		{CompetitionDistanceFile, a.CompetitionDistance},
		{CustomersFile, a.Customers},
		{CompetitionSinceMonthFile, a.CompetitionSinceMonth},
		{YearFile, a.Year},
		{StoreTypeFile, a.StoreType},
		{CompetitionOpenSinceYearFile, a.CompetitionOpenSinceYear},
	}
	for _, s := range steps {
		path := filepath.Join(dir, s.file)
		art, err := model.LoadArtifactFromFile(path)
		if err != nil {
			return nil, err
		}
		if err := s.dst.ImportArtifact(art); err != nil {
			return nil, errors.Wrapf(err, "import %s", s.file)
		}
		logger.Debug("artifact loaded", "file", s.file, "name", art.ModelSpec.Name)
	}

	onehot, err := loadOneHot(filepath.Join(dir, OneHotFile))
	if err != nil {
		return nil, err
	}
	a.OneHot = onehot

	reg := lightgbm.NewLGBMRegressor()
	if err := reg.LoadModel(modelPath); err != nil {
		return nil, err
	}
	a.Model = reg

	if err := a.Validate(); err != nil {
		return nil, err
	}
	logger.Info("artifacts loaded", "dir", dir, "model", modelPath)
	return a, nil
}

func loadOneHot(path string) (*preprocessing.OneHotEncoder, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return preprocessing.NewOneHotEncoderWithCategories([][]string{
			record.StateHolidayLabels,
			DefaultPromo2SinceYears,
		})
	}
	art, err := model.LoadArtifactFromFile(path)
	if err != nil {
		return nil, err
	}
	enc := preprocessing.NewOneHotEncoder()
	if err := enc.ImportArtifact(art); err != nil {
		return nil, errors.Wrapf(err, "import %s", OneHotFile)
	}
	return enc, nil
}

// Validate checks that every transform is single-column and the model takes the
// prepared feature vector.
func (a *Artifacts) Validate() error {
	single := map[string]int{
		"promo_time_week":         a.PromoTimeWeek.NFeatures,
		"promo_time_month":        a.PromoTimeMonth.NFeatures,
		"competition_distance":    a.CompetitionDistance.NFeatures,
		"customers":               a.Customers.NFeatures,
		"competition_since_month": a.CompetitionSinceMonth.NFeatures,
		"year":                    a.Year.NFeatures,
	}
	for name, n := range single {
		if n != 1 {
			return errors.NewValidationError(name, "transform must have exactly one feature", n)
		}
	}
	if a.OneHot == nil || a.OneHot.NFeatures != 2 {
		return errors.NewValidationError("onehot", "encoder must have two features", a.OneHot)
	}
	if a.Model == nil {
		return errors.NewValidationError("model", "model is required", nil)
	}
	if n := a.Model.NumFeatures(); n != len(FeatureColumns) {
		return errors.NewInferenceError("model feature count", len(FeatureColumns), n, nil)
	}
	return nil
}

// refitCopy returns unfitted clones of the transforms that are refitted per batch.
// The one-hot universe and the model are shared.
func (a *Artifacts) refitCopy() *Artifacts {
	return &Artifacts{
		PromoTimeWeek:            a.PromoTimeWeek.Clone(),
		PromoTimeMonth:           a.PromoTimeMonth.Clone(),
		CompetitionDistance:      a.CompetitionDistance.Clone(),
		Customers:                a.Customers.Clone(),
		CompetitionSinceMonth:    a.CompetitionSinceMonth.Clone(),
		Year:                     a.Year.Clone(),
		StoreType:                a.StoreType.Clone(),
		CompetitionOpenSinceYear: a.CompetitionOpenSinceYear.Clone(),
		OneHot:                   a.OneHot,
		Model:                    a.Model,
	}
}

var (
	defaultOnce      sync.Once
	defaultArtifacts *Artifacts
	defaultErr       error
)

// DefaultArtifacts loads the process-wide artifact set on first use. Later calls
// return the same set (or the same error) whatever their arguments.
func DefaultArtifacts(dir, modelPath string) (*Artifacts, error) {
	defaultOnce.Do(func() {
		defaultArtifacts, defaultErr = LoadArtifacts(dir, modelPath)
	})
	return defaultArtifacts, defaultErr
}
