// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/IBM/ibmi-mcp-sub001/connectors/base"
	"github.com/IBM/ibmi-mcp-sub001/shared/logger"
)

var (
	// ErrPoolNotFound is returned for a handle the registry never issued or already released
	ErrPoolNotFound = errors.New("pool not found")
	// ErrPoolExpired is returned for a handle whose lifetime has passed
	ErrPoolExpired = errors.New("pool expired")
)

type entry struct {
	pool      base.Pool
	host      string
	createdAt time.Time
	expiresAt time.Time
}

// PoolInfo is the non-secret view of a registered pool
type PoolInfo struct {
	Handle    string    `json:"handle"`
	Host      string    `json:"host"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PoolRegistry maps opaque pool handles to live authenticated pools.
// Thread-safe for concurrent access
type PoolRegistry struct {
	pools  map[string]*entry
	mu     sync.RWMutex
	logger *logger.Logger
	now    func() time.Time
}

// NewPoolRegistry creates an empty registry
func NewPoolRegistry(log *logger.Logger) *PoolRegistry {
	if log == nil {
		log = logger.Nop()
	}
	return &PoolRegistry{
		pools:  make(map[string]*entry),
		logger: log,
		now:    time.Now,
	}
}

// SetClock replaces the registry's time source
func (r *PoolRegistry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Register stores a pool until expiresAt and returns its handle
func (r *PoolRegistry) Register(host string, pool base.Pool, expiresAt time.Time) string {
	handle := uuid.NewString()

	r.mu.Lock()
	r.pools[handle] = &entry{
		pool:      pool,
		host:      host,
		createdAt: r.now(),
		expiresAt: expiresAt,
	}
	r.mu.Unlock()

	r.logger.Debug("", "", "Registered pool", map[string]interface{}{
		"handle": handle,
		"host":   base.SanitizeLogString(host),
	})
	return handle
}

// Get returns the live pool for a handle
func (r *PoolRegistry) Get(handle string) (base.Pool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.pools[handle]
	if !exists {
		return nil, fmt.Errorf("pool '%s': %w", handle, ErrPoolNotFound)
	}
	if !r.now().Before(e.expiresAt) {
		return nil, fmt.Errorf("pool '%s': %w", handle, ErrPoolExpired)
	}
	return e.pool, nil
}

// Info returns metadata for a handle without exposing the pool
func (r *PoolRegistry) Info(handle string) (PoolInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.pools[handle]
	if !exists {
		return PoolInfo{}, fmt.Errorf("pool '%s': %w", handle, ErrPoolNotFound)
	}
	return PoolInfo{Handle: handle, Host: e.host, CreatedAt: e.createdAt, ExpiresAt: e.expiresAt}, nil
}

// Release closes and removes a pool
func (r *PoolRegistry) Release(handle string) error {
	r.mu.Lock()
	e, exists := r.pools[handle]
	delete(r.pools, handle)
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("pool '%s': %w", handle, ErrPoolNotFound)
	}
	if err := e.pool.Close(); err != nil {
		r.logger.Warn("", "", "Error closing pool", map[string]interface{}{"handle": handle, "error": err.Error()})
		return err
	}
	r.logger.Debug("", "", "Released pool", map[string]interface{}{"handle": handle})
	return nil
}

// Sweep closes and removes every expired pool and returns how many it removed
func (r *PoolRegistry) Sweep() int {
	r.mu.Lock()
	now := r.now()
	expired := make(map[string]*entry)
	for handle, e := range r.pools {
		if !now.Before(e.expiresAt) {
			expired[handle] = e
			delete(r.pools, handle)
		}
	}
	r.mu.Unlock()

	for handle, e := range expired {
		if err := e.pool.Close(); err != nil {
			r.logger.Warn("", "", "Error closing expired pool", map[string]interface{}{"handle": handle, "error": err.Error()})
		}
	}
	if len(expired) > 0 {
		r.logger.Info("", "", "Swept expired pools", map[string]interface{}{"count": len(expired)})
	}
	return len(expired)
}

// StartSweeper runs Sweep every interval until ctx is cancelled
func (r *PoolRegistry) StartSweeper(ctx context.Context, interval time.Duration) {
	r.logger.Info("", "", "Starting pool sweeper", map[string]interface{}{"interval": interval.String()})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				r.logger.Info("", "", "Stopping pool sweeper", nil)
				return
			case <-ticker.C:
				r.Sweep()
			}
		}
	}()
}

// HealthCheck performs health checks on all live pools
// Returns a map of handles to their health status
func (r *PoolRegistry) HealthCheck(ctx context.Context) map[string]*base.HealthStatus {
	r.mu.RLock()
	pools := make(map[string]base.Pool, len(r.pools))
	for handle, e := range r.pools {
		pools[handle] = e.pool
	}
	r.mu.RUnlock()

	results := make(map[string]*base.HealthStatus, len(pools))
	for handle, pool := range pools {
		status, err := pool.HealthCheck(ctx)
		if err != nil {
			status = &base.HealthStatus{Healthy: false, Error: err.Error(), Timestamp: time.Now()}
		}
		results[handle] = status
	}
	return results
}

// Count returns the number of registered pools
func (r *PoolRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pools)
}

// CloseAll closes every pool. Useful for graceful shutdown
func (r *PoolRegistry) CloseAll() {
	r.mu.Lock()
	pools := r.pools
	r.pools = make(map[string]*entry)
	r.mu.Unlock()

	for handle, e := range pools {
		if err := e.pool.Close(); err != nil {
			r.logger.Warn("", "", "Error closing pool", map[string]interface{}{"handle": handle, "error": err.Error()})
		}
	}
	r.logger.Info("", "", "All pools closed", map[string]interface{}{"count": len(pools)})
}
