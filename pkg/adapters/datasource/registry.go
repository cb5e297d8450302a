package datasource

import (
	"context"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/genbi-engine/pkg/models"
)

// AdapterInfo describes a registered connector kind for UI discovery.
type AdapterInfo struct {
	Type        models.DataSourceType
	DisplayName string
	Description string
	Icon        string
}

// Delays are the artificial latencies of simulated connectors.
type Delays struct {
	Connect time.Duration
	File    time.Duration
	Probe   time.Duration
	Query   time.Duration
}

// FileSource resolves an uploaded file id to its metadata and content.
type FileSource interface {
	OpenUpload(ctx context.Context, fileID string) (*models.UploadedFile, io.ReadCloser, error)
}

// Options carry what a connector needs beyond its connection details.
type Options struct {
	// Name is the data source name. Single-table sources name their table after it.
	Name       string
	Delays     Delays
	Files      FileSource
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// TesterFactory, DiscovererFactory and ExecutorFactory build connectors
// from decoded connection details.
type (
	TesterFactory     func(ctx context.Context, details models.ConnectionDetails, opts Options) (ConnectionTester, error)
	DiscovererFactory func(ctx context.Context, details models.ConnectionDetails, opts Options) (SchemaDiscoverer, error)
	ExecutorFactory   func(ctx context.Context, details models.ConnectionDetails, opts Options) (QueryExecutor, error)
)

// Registration contains info + factories for one connector kind.
// Live registrations talk to real systems; the others are simulated.
type Registration struct {
	Info                    AdapterInfo
	Live                    bool
	Factory                 TesterFactory
	SchemaDiscovererFactory DiscovererFactory
	QueryExecutorFactory    ExecutorFactory
}

var (
	registryMu sync.RWMutex
	simulated  = make(map[models.DataSourceType]Registration)
	live       = make(map[models.DataSourceType]Registration)
)

// Register is called by each connector's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg Registration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if reg.Live {
		live[reg.Info.Type] = reg
		return
	}
	simulated[reg.Info.Type] = reg
}

// Lookup returns the registration for a type. When preferLive is set and a
// live registration exists it wins; otherwise the simulated one is used.
func Lookup(dsType models.DataSourceType, preferLive bool) (Registration, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if preferLive {
		if reg, ok := live[dsType]; ok {
			return reg, true
		}
	}
	reg, ok := simulated[dsType]
	return reg, ok
}

// RegisteredTypes returns info for every registered kind, sorted by type.
func RegisteredTypes() []models.DataSourceTypeInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	seen := make(map[models.DataSourceType]models.DataSourceTypeInfo)
	for t, reg := range simulated {
		seen[t] = typeInfo(reg.Info, false)
	}
	for t, reg := range live {
		info, ok := seen[t]
		if !ok {
			info = typeInfo(reg.Info, true)
		}
		info.Live = true
		seen[t] = info
	}

	result := make([]models.DataSourceTypeInfo, 0, len(seen))
	for _, info := range seen {
		result = append(result, info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

// IsRegistered checks if a connector kind is available.
func IsRegistered(dsType models.DataSourceType) bool {
	_, ok := Lookup(dsType, true)
	return ok
}

func typeInfo(info AdapterInfo, isLive bool) models.DataSourceTypeInfo {
	return models.DataSourceTypeInfo{
		Type:        info.Type,
		DisplayName: info.DisplayName,
		Description: info.Description,
		Icon:        info.Icon,
		Live:        isLive,
	}
}
