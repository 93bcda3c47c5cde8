package bot

import (
	"strconv"
	"sync"

	"github.com/go-gota/gota/dataframe"

	"github.com/ezoic/salesforecast/dataset"
	"github.com/ezoic/salesforecast/pkg/cache"
	sfErrors "github.com/ezoic/salesforecast/pkg/errors"
)

// ErrUnknownStore means the store has no open day to predict.
var ErrUnknownStore = sfErrors.New("no data for store")

// Loader builds the prediction payload of a store from test.csv and store.csv.
type Loader struct {
	testPath  string
	storePath string
	payloads  *cache.TTL[[]byte]

	mu     sync.Mutex
	days   dataframe.DataFrame
	stores dataframe.DataFrame
	loaded bool
}

// NewLoader creates a Loader caching payloads in c.
func NewLoader(testPath, storePath string, c *cache.TTL[[]byte]) *Loader {
	return &Loader{testPath: testPath, storePath: storePath, payloads: c}
}

// Payload returns the JSON records of the open days of store, without Id.
func (l *Loader) Payload(store int) ([]byte, error) {
	return l.payloads.GetOrLoad(strconv.Itoa(store), func() ([]byte, error) {
		days, stores, err := l.frames()
		if err != nil {
			return nil, err
		}
		merged, err := dataset.Merge(dataset.ForStore(days, store), dataset.ForStore(stores, store))
		if err != nil {
			return nil, err
		}
		if merged.Nrow() == 0 {
			return nil, sfErrors.Wrapf(ErrUnknownStore, "store %d", store)
		}
		open := dataset.DropColumns(dataset.OpenDays(merged), dataset.ColID)
		if open.Nrow() == 0 {
			return nil, sfErrors.Wrapf(ErrUnknownStore, "store %d has no open days", store)
		}
		return dataset.Payload(open)
	})
}

// frames reads both files on first use. A failed read is retried on the next call.
func (l *Loader) frames() (dataframe.DataFrame, dataframe.DataFrame, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loaded {
		return l.days, l.stores, nil
	}

	days, err := dataset.ReadCSV(l.testPath)
	if err != nil {
		return dataframe.DataFrame{}, dataframe.DataFrame{}, err
	}
	stores, err := dataset.ReadCSV(l.storePath)
	if err != nil {
		return dataframe.DataFrame{}, dataframe.DataFrame{}, err
	}
	l.days, l.stores, l.loaded = days, stores, true
	return days, stores, nil
}
