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

package config

import (
	"sync"
	"testing"
	"time"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(ttl time.Duration) (*TTLCache[string], *manualClock) {
	clock := &manualClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewTTLCache[string](ttl)
	c.now = clock.Now
	return c, clock
}

func TestNewTTLCache_DefaultTTL(t *testing.T) {
	c := NewTTLCache[int](0)
	if c.ttl != 30*time.Second {
		t.Errorf("ttl = %v, want 30s", c.ttl)
	}
}

func TestTTLCache_GetSet(t *testing.T) {
	c, clock := newTestCache(time.Minute)

	if _, ok := c.Get("k"); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Set("k", "v")
	if v, ok := c.Get("k"); !ok || v != "v" {
		t.Fatalf("Get = %q, %v", v, ok)
	}

	clock.Advance(59 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Error("entry expired early")
	}

	clock.Advance(time.Second)
	if _, ok := c.Get("k"); ok {
		t.Error("entry should expire exactly at TTL")
	}

	stats := c.GetStats()
	if stats.Hits != 2 || stats.Misses != 2 {
		t.Errorf("stats = %+v, want 2 hits 2 misses", stats)
	}
	if rate := c.HitRate(); rate != 50 {
		t.Errorf("HitRate = %v, want 50", rate)
	}
}

func TestTTLCache_Invalidate(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")

	c.Invalidate("a")
	c.Invalidate("missing")
	if _, ok := c.Get("a"); ok {
		t.Error("a should be gone")
	}
	if c.GetStats().Evictions != 1 {
		t.Errorf("evictions = %d, want 1", c.GetStats().Evictions)
	}

	c.InvalidateAll()
	if c.Len() != 0 {
		t.Errorf("Len = %d after InvalidateAll", c.Len())
	}
	if c.GetStats().Evictions != 2 {
		t.Errorf("evictions = %d, want 2", c.GetStats().Evictions)
	}
}

func TestTTLCache_Cleanup(t *testing.T) {
	c, clock := newTestCache(time.Minute)
	c.Set("old", "1")
	clock.Advance(30 * time.Second)
	c.Set("new", "2")
	clock.Advance(45 * time.Second)

	if n := c.Cleanup(); n != 1 {
		t.Errorf("Cleanup = %d, want 1", n)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
	if _, ok := c.Get("new"); !ok {
		t.Error("new entry should survive")
	}
}

func TestTTLCache_HitRateEmpty(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	if c.HitRate() != 0 {
		t.Errorf("HitRate = %v, want 0", c.HitRate())
	}
}

func TestTTLCache_Concurrent(t *testing.T) {
	c := NewTTLCache[int](time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i))
			for j := 0; j < 100; j++ {
				c.Set(key, j)
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()
	if c.Len() != 10 {
		t.Errorf("Len = %d, want 10", c.Len())
	}
}
