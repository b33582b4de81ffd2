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

package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/ibmi-mcp-sub001/shared/logger"
)

// Reload outcomes passed to the OnReload hook.
const (
	OutcomeUpdated   = "updated"
	OutcomeUnchanged = "unchanged"
	OutcomeError     = "error"
)

// Reloader periodically fetches a catalog from a Source and swaps it into
// a Store. A fetch or compile failure keeps the previous catalog.
type Reloader struct {
	source   Source
	store    *Store
	interval time.Duration
	policy   Policy
	onReload func(outcome string)
	logger   *logger.Logger

	mu         sync.Mutex
	lastDigest string
}

// ReloaderOption configures a Reloader.
type ReloaderOption func(*Reloader)

// WithPolicyOverride forces the construction function policy of every
// loaded catalog, regardless of what the file declares.
func WithPolicyOverride(p Policy) ReloaderOption {
	return func(r *Reloader) {
		r.policy = p
	}
}

// WithOnReload registers a hook called with the outcome of every reload.
func WithOnReload(fn func(outcome string)) ReloaderOption {
	return func(r *Reloader) {
		r.onReload = fn
	}
}

// NewReloader creates a reloader. An interval of zero disables Run's loop;
// Reload can still be called directly.
func NewReloader(source Source, store *Store, interval time.Duration, log *logger.Logger, opts ...ReloaderOption) *Reloader {
	if log == nil {
		log = logger.Nop()
	}
	r := &Reloader{
		source:   source,
		store:    store,
		interval: interval,
		logger:   log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reload fetches and, if the content changed, compiles and installs the
// catalog. It reports whether a new catalog was installed.
func (r *Reloader) Reload(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := r.source.Fetch(ctx)
	if err != nil {
		r.report(OutcomeError)
		return false, fmt.Errorf("catalog source %s: %w", r.source.Name(), err)
	}

	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	if digest == r.lastDigest {
		r.report(OutcomeUnchanged)
		return false, nil
	}

	c, err := Parse(data)
	if err != nil {
		r.report(OutcomeError)
		return false, fmt.Errorf("catalog source %s: %w", r.source.Name(), err)
	}
	if r.policy != "" {
		c = c.WithPolicy(r.policy)
	}

	prev := r.store.Swap(c)
	r.lastDigest = digest
	r.report(OutcomeUpdated)

	fields := map[string]interface{}{
		"source":   r.source.Name(),
		"version":  c.Version(),
		"digest":   digest,
		"patterns": c.Patterns().Len(),
		"policy":   string(c.Policy()),
	}
	if prev != nil {
		fields["previous_version"] = prev.Version()
	}
	r.logger.Info("", "", "Catalog loaded", fields)
	return true, nil
}

// Run reloads every interval until ctx is cancelled. Errors are logged and
// the active catalog is left in place.
func (r *Reloader) Run(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Reload(ctx); err != nil {
				r.logger.Warn("", "", "Catalog reload failed, keeping active catalog", map[string]interface{}{
					"source": r.source.Name(),
					"error":  err.Error(),
				})
			}
		}
	}
}

func (r *Reloader) report(outcome string) {
	if r.onReload != nil {
		r.onReload(outcome)
	}
}
