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

package gateway

import (
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/IBM/ibmi-mcp-sub001/gateway/validator"
)

// Prometheus metrics
var (
	promAuthAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ibmi_gateway_auth_attempts_total",
			Help: "Authentication attempts by outcome",
		},
		[]string{"outcome"},
	)
	promDecryptFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ibmi_gateway_decrypt_failures_total",
			Help: "Envelope decrypt failures by internal kind",
		},
		[]string{"kind"},
	)
	promTokensIssued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ibmi_gateway_tokens_issued_total",
			Help: "Bearer tokens issued",
		},
	)
	promValidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ibmi_gateway_validations_total",
			Help: "Statement validations by verdict and validation method",
		},
		[]string{"valid", "method"},
	)
	promViolations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ibmi_gateway_violations_total",
			Help: "Statement violations by kind",
		},
		[]string{"kind"},
	)
	promRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ibmi_gateway_request_duration_milliseconds",
			Help:    "Request duration in milliseconds",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
		},
		[]string{"route"},
	)
	promCatalogReloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ibmi_gateway_catalog_reloads_total",
			Help: "Catalog reload attempts by outcome",
		},
		[]string{"outcome"},
	)
	promPoolsUnhealthy = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ibmi_gateway_pools_unhealthy",
			Help: "Pools that failed their last health check",
		},
	)
)

func init() {
	prometheus.MustRegister(promAuthAttempts)
	prometheus.MustRegister(promDecryptFailures)
	prometheus.MustRegister(promTokensIssued)
	prometheus.MustRegister(promValidations)
	prometheus.MustRegister(promViolations)
	prometheus.MustRegister(promRequestDuration)
	prometheus.MustRegister(promCatalogReloads)
	prometheus.MustRegister(promPoolsUnhealthy)
}

// recordVerdict counts a validation and each of its violations by kind.
func recordVerdict(res *validator.Result) {
	promValidations.WithLabelValues(strconv.FormatBool(res.IsValid), string(res.Method)).Inc()
	for _, v := range res.Violations {
		promViolations.WithLabelValues(violationKind(v)).Inc()
	}
}

// violationKind returns the "Kind" prefix of a "Kind: detail" violation.
func violationKind(v string) string {
	kind, _, ok := strings.Cut(v, ":")
	if !ok {
		return "unknown"
	}
	return kind
}
