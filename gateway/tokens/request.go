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

package tokens

import (
	"fmt"
	"strings"
	"time"
)

// AuthRequest is the caller's requested pool, recovered from the envelope.
// Omitted fields take the configured defaults.
type AuthRequest struct {
	Host      string `json:"host"`
	Duration  *int   `json:"duration,omitempty"`  // seconds
	PoolStart *int   `json:"poolstart,omitempty"` // idle connections
	PoolMax   *int   `json:"poolmax,omitempty"`   // max open connections
}

// AuthResponse is returned to the caller after a successful authentication.
type AuthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	ExpiresAt   string `json:"expires_at"`
}

// Limits bounds and defaults AuthRequest fields.
type Limits struct {
	DefaultDuration  int `yaml:"default_duration"`
	MinDuration      int `yaml:"min_duration"`
	MaxDuration      int `yaml:"max_duration"`
	DefaultPoolStart int `yaml:"default_poolstart"`
	DefaultPoolMax   int `yaml:"default_poolmax"`
	MaxPoolMax       int `yaml:"max_poolmax"`
}

// DefaultLimits returns the stock request bounds.
func DefaultLimits() Limits {
	return Limits{
		DefaultDuration:  3600,
		MinDuration:      60,
		MaxDuration:      86400,
		DefaultPoolStart: 2,
		DefaultPoolMax:   10,
		MaxPoolMax:       100,
	}
}

// ResolvedRequest is an AuthRequest with defaults applied and bounds checked.
type ResolvedRequest struct {
	Host      string
	Duration  time.Duration
	PoolStart int
	PoolMax   int
}

// InvalidRequestError describes why an AuthRequest was rejected. It is safe
// to show to the caller.
type InvalidRequestError struct {
	Field  string
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Resolve applies defaults from l and checks every bound.
func (r AuthRequest) Resolve(l Limits) (ResolvedRequest, error) {
	host := strings.TrimSpace(r.Host)
	if host == "" {
		return ResolvedRequest{}, &InvalidRequestError{Field: "host", Reason: "is required"}
	}

	duration := l.DefaultDuration
	if r.Duration != nil {
		duration = *r.Duration
	}
	if duration < l.MinDuration || duration > l.MaxDuration {
		return ResolvedRequest{}, &InvalidRequestError{
			Field:  "duration",
			Reason: fmt.Sprintf("must be between %d and %d seconds", l.MinDuration, l.MaxDuration),
		}
	}

	poolStart := l.DefaultPoolStart
	if r.PoolStart != nil {
		poolStart = *r.PoolStart
	}
	poolMax := l.DefaultPoolMax
	if r.PoolMax != nil {
		poolMax = *r.PoolMax
	}
	if poolMax < 1 || poolMax > l.MaxPoolMax {
		return ResolvedRequest{}, &InvalidRequestError{
			Field:  "poolmax",
			Reason: fmt.Sprintf("must be between 1 and %d", l.MaxPoolMax),
		}
	}
	if poolStart < 1 || poolStart > poolMax {
		// A caller that only lowers poolmax gets poolstart clamped down to it.
		if r.PoolStart == nil && poolStart > poolMax {
			poolStart = poolMax
		} else {
			return ResolvedRequest{}, &InvalidRequestError{
				Field:  "poolstart",
				Reason: fmt.Sprintf("must be between 1 and poolmax (%d)", poolMax),
			}
		}
	}

	return ResolvedRequest{
		Host:      host,
		Duration:  time.Duration(duration) * time.Second,
		PoolStart: poolStart,
		PoolMax:   poolMax,
	}, nil
}
