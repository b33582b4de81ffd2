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

package base

import (
	"context"
	"time"
)

// Credentials are the host user profile and password recovered from an
// authentication envelope. They live only for the duration of one
// Authenticate call and must never be logged.
type Credentials struct {
	Username string
	Password string
}

// PoolParams describes the connection pool a caller asked for.
type PoolParams struct {
	PoolStart int           // idle connections kept warm
	PoolMax   int           // hard cap on open connections
	Lifetime  time.Duration // how long the pool may live before it is swept
}

// PoolAuthenticator authenticates against a target host and, on success,
// returns a live connection pool bound to the supplied credentials.
type PoolAuthenticator interface {
	Authenticate(ctx context.Context, host string, creds Credentials, params PoolParams) (Pool, error)

	// Metadata
	Type() string // Driver type (postgres, mysql)
}

// Pool is an authenticated, read-only connection pool.
type Pool interface {
	Query(ctx context.Context, query *Query) (*QueryResult, error)
	HealthCheck(ctx context.Context) (*HealthStatus, error)
	Close() error
}

// Query represents a read operation against a pool
type Query struct {
	Statement  string                 `json:"statement"`  // SQL text, already validated
	Parameters map[string]interface{} `json:"parameters"` // Positional parameters, keyed "1", "2", ...
	Timeout    time.Duration          `json:"timeout"`    // Override default timeout
	Limit      int                    `json:"limit"`      // Result limit (optional)
}

// QueryResult contains the results of a Query operation
type QueryResult struct {
	Rows      []map[string]interface{} `json:"rows"`               // Result rows (key-value maps)
	RowCount  int                      `json:"row_count"`          // Number of rows returned
	Duration  time.Duration            `json:"duration"`           // Query execution time
	Truncated bool                     `json:"truncated"`          // Limit cut the result short
	Connector string                   `json:"connector"`          // Driver that executed the query
	Metadata  map[string]interface{}   `json:"metadata,omitempty"` // Additional metadata
}

// HealthStatus represents the health of a pool
type HealthStatus struct {
	Healthy   bool              `json:"healthy"`   // Overall health status
	Latency   time.Duration     `json:"latency"`   // Ping latency
	Details   map[string]string `json:"details"`   // Additional diagnostic info
	Timestamp time.Time         `json:"timestamp"` // When health check was performed
	Error     string            `json:"error"`     // Error message if unhealthy
}

// ConnectorError represents errors specific to pool operations
type ConnectorError struct {
	ConnectorName string
	Operation     string
	Message       string
	Cause         error
}

func (e *ConnectorError) Error() string {
	if e.Cause != nil {
		return e.ConnectorName + "." + e.Operation + ": " + e.Message + " (cause: " + e.Cause.Error() + ")"
	}
	return e.ConnectorName + "." + e.Operation + ": " + e.Message
}

func (e *ConnectorError) Unwrap() error {
	return e.Cause
}

// NewConnectorError creates a new ConnectorError
func NewConnectorError(connectorName, operation, message string, cause error) *ConnectorError {
	return &ConnectorError{
		ConnectorName: connectorName,
		Operation:     operation,
		Message:       message,
		Cause:         cause,
	}
}
