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
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct{ t time.Time }

func (c *manualClock) now() time.Time          { return c.t }
func (c *manualClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestMemoryLimiter(t *testing.T) {
	clock := &manualClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := NewMemoryLimiter(3, time.Minute)
	l.now = clock.now
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok, "attempt %d", i+1)
	}
	ok, _ := l.Allow(ctx, "10.0.0.1")
	assert.False(t, ok)

	ok, _ = l.Allow(ctx, "10.0.0.2")
	assert.True(t, ok, "keys are independent")

	clock.advance(time.Minute)
	ok, _ = l.Allow(ctx, "10.0.0.1")
	assert.True(t, ok, "window resets")
}

func TestMemoryLimiter_PurgesFinishedWindows(t *testing.T) {
	clock := &manualClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := NewMemoryLimiter(1, time.Minute)
	l.now = clock.now
	ctx := context.Background()

	for i := 0; i < maxTrackedKeys; i++ {
		_, _ = l.Allow(ctx, fmt.Sprintf("k%d", i))
	}
	assert.Equal(t, maxTrackedKeys, l.Tracked())

	clock.advance(2 * time.Minute)
	_, _ = l.Allow(ctx, "fresh")
	assert.Equal(t, 1, l.Tracked())
}

func newRedisLimiter(t *testing.T, limit int) (*RedisLimiter, *miniredis.Miniredis, *manualClock) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := &manualClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := NewRedisLimiter(client, limit, time.Minute, nil)
	l.now = clock.now
	return l, mr, clock
}

func TestRedisLimiter_SlidingWindow(t *testing.T) {
	l, mr, clock := newRedisLimiter(t, 2)
	ctx := context.Background()

	ok, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)

	clock.advance(30 * time.Second)
	ok, _ = l.Allow(ctx, "10.0.0.1")
	assert.True(t, ok)
	ok, _ = l.Allow(ctx, "10.0.0.1")
	assert.False(t, ok)

	assert.True(t, mr.Exists(redisKeyPrefix+"10.0.0.1"))

	// The first attempt leaves the window; the two later ones remain.
	clock.advance(31 * time.Second)
	ok, _ = l.Allow(ctx, "10.0.0.1")
	assert.False(t, ok)

	clock.advance(61 * time.Second)
	ok, _ = l.Allow(ctx, "10.0.0.1")
	assert.True(t, ok)
}

func TestRedisLimiter_FailsOpen(t *testing.T) {
	l, mr, _ := newRedisLimiter(t, 1)
	mr.Close()

	ok, err := l.Allow(context.Background(), "10.0.0.1")
	assert.True(t, ok)
	assert.Error(t, err)
}
