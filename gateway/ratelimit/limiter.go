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

package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/IBM/ibmi-mcp-sub001/shared/logger"
)

// Limiter decides whether one more attempt under key is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// maxTrackedKeys triggers a purge of finished windows.
const maxTrackedKeys = 10000

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter allows limit attempts per key in each fixed window.
type MemoryLimiter struct {
	limit  int
	period time.Duration

	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

// NewMemoryLimiter creates an in-process limiter.
func NewMemoryLimiter(limit int, period time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		period:  period,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Allow counts one attempt for key.
func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok || !now.Before(w.resetAt) {
		if !ok && len(m.windows) >= maxTrackedKeys {
			m.purge(now)
		}
		m.windows[key] = &window{count: 1, resetAt: now.Add(m.period)}
		return true, nil
	}
	w.count++
	return w.count <= m.limit, nil
}

func (m *MemoryLimiter) purge(now time.Time) {
	for k, w := range m.windows {
		if !now.Before(w.resetAt) {
			delete(m.windows, k)
		}
	}
}

// Tracked returns the number of keys with a window in memory.
func (m *MemoryLimiter) Tracked() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

const redisKeyPrefix = "ratelimit:auth:"

// RedisLimiter allows limit attempts per key in any sliding period.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	period time.Duration
	logger *logger.Logger
	now    func() time.Time
}

// NewRedisLimiter shares attempt counts through client.
func NewRedisLimiter(client *redis.Client, limit int, period time.Duration, log *logger.Logger) *RedisLimiter {
	if log == nil {
		log = logger.Nop()
	}
	return &RedisLimiter{client: client, limit: limit, period: period, logger: log, now: time.Now}
}

// Allow records one attempt for key and reports whether the window still
// has room. Redis errors allow the attempt and are returned for logging.
func (r *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := r.now()
	rk := redisKeyPrefix + key

	pipe := r.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, rk, "0", strconv.FormatInt(now.Add(-r.period).UnixNano(), 10))
	card := pipe.ZCard(ctx, rk)
	pipe.ZAdd(ctx, rk, &redis.Z{Score: float64(now.UnixNano()), Member: uuid.NewString()})
	pipe.Expire(ctx, rk, 2*r.period)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Warn("", "", "Rate limit check failed, allowing attempt", map[string]interface{}{"error": err.Error()})
		return true, fmt.Errorf("redis rate limit: %w", err)
	}
	return card.Val() < int64(r.limit), nil
}
