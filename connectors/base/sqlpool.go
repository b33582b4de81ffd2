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
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// DefaultQueryTimeout applies when neither the query nor the pool sets one.
const DefaultQueryTimeout = 30 * time.Second

// SQLPool is a Pool over database/sql. Every statement runs inside a
// read-only transaction that is always rolled back.
type SQLPool struct {
	name    string
	db      *sql.DB
	timeout time.Duration
}

// NewSQLPool wraps an opened and pinged *sql.DB.
func NewSQLPool(name string, db *sql.DB, timeout time.Duration) *SQLPool {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return &SQLPool{name: name, db: db, timeout: timeout}
}

// ConfigurePool maps the requested pool shape onto database/sql knobs.
func ConfigurePool(db *sql.DB, params PoolParams) {
	db.SetMaxOpenConns(params.PoolMax)
	db.SetMaxIdleConns(params.PoolStart)
	if params.Lifetime > 0 {
		db.SetConnMaxLifetime(params.Lifetime)
	}
}

// Query executes a SELECT and returns rows as column maps
func (p *SQLPool) Query(ctx context.Context, query *Query) (*QueryResult, error) {
	if p.db == nil {
		return nil, NewConnectorError(p.name, "Query", "pool is closed", nil)
	}

	timeout := query.Timeout
	if timeout == 0 {
		timeout = p.timeout
	}
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args, err := BuildArgs(query.Parameters)
	if err != nil {
		return nil, NewConnectorError(p.name, "Query", "failed to build query parameters", err)
	}

	start := time.Now()
	tx, err := p.db.BeginTx(queryCtx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, NewConnectorError(p.name, "Query", "failed to begin read-only transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(queryCtx, query.Statement, args...)
	if err != nil {
		return nil, NewConnectorError(p.name, "Query", "query execution failed", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, NewConnectorError(p.name, "Query", "failed to get columns", err)
	}

	results := make([]map[string]interface{}, 0)
	truncated := false
	for rows.Next() {
		if query.Limit > 0 && len(results) >= query.Limit {
			truncated = true
			break
		}

		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, NewConnectorError(p.name, "Query", "failed to scan row", err)
		}

		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			// CHAR/VARCHAR come back as []byte from most drivers
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, NewConnectorError(p.name, "Query", "error during row iteration", err)
	}

	return &QueryResult{
		Rows:      results,
		RowCount:  len(results),
		Duration:  time.Since(start),
		Truncated: truncated,
		Connector: p.name,
		Metadata:  map[string]interface{}{"columns": columns},
	}, nil
}

// HealthCheck pings the pool and reports connection stats
func (p *SQLPool) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	if p.db == nil {
		return &HealthStatus{Healthy: false, Error: "pool is closed", Timestamp: time.Now()}, nil
	}

	start := time.Now()
	err := p.db.PingContext(ctx)
	latency := time.Since(start)
	if err != nil {
		return &HealthStatus{
			Healthy:   false,
			Latency:   latency,
			Timestamp: time.Now(),
			Error:     err.Error(),
		}, nil
	}

	stats := p.db.Stats()
	return &HealthStatus{
		Healthy: true,
		Latency: latency,
		Details: map[string]string{
			"open_connections": strconv.Itoa(stats.OpenConnections),
			"in_use":           strconv.Itoa(stats.InUse),
			"idle":             strconv.Itoa(stats.Idle),
			"max_open":         strconv.Itoa(stats.MaxOpenConnections),
		},
		Timestamp: time.Now(),
	}, nil
}

// Close releases every connection in the pool. Closing twice is a no-op.
func (p *SQLPool) Close() error {
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	if err != nil {
		return NewConnectorError(p.name, "Close", "failed to close pool", err)
	}
	return nil
}

// BuildArgs converts a parameter map keyed "1", "2", ... into positional
// arguments. Keys must be a contiguous run starting at 1.
func BuildArgs(params map[string]interface{}) ([]interface{}, error) {
	if len(params) == 0 {
		return nil, nil
	}

	positions := make([]int, 0, len(params))
	keys := make(map[int]string, len(params))
	for key := range params {
		n, err := strconv.Atoi(key)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("parameter key %q is not a positive position", key)
		}
		if _, dup := keys[n]; dup {
			return nil, fmt.Errorf("parameter position %d given twice", n)
		}
		keys[n] = key
		positions = append(positions, n)
	}
	sort.Ints(positions)

	args := make([]interface{}, 0, len(positions))
	for i, n := range positions {
		if n != i+1 {
			return nil, fmt.Errorf("parameter positions must be contiguous from 1, missing %d", i+1)
		}
		args = append(args, params[keys[n]])
	}
	return args, nil
}
