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

// Package mysql authenticates callers against MySQL-protocol hosts and hands
// back read-only connection pools.
package mysql

import (
	"context"
	"database/sql"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/IBM/ibmi-mcp-sub001/connectors/base"
	"github.com/IBM/ibmi-mcp-sub001/shared/logger"
)

const (
	// DefaultPort is used when the host carries no port
	DefaultPort = 3306
	// DefaultPingTimeout bounds the authenticating ping
	DefaultPingTimeout = 10 * time.Second
	// DefaultConnMaxIdleTime is the default maximum idle time for connections
	DefaultConnMaxIdleTime = 5 * time.Minute
)

// Options configures how pools are opened.
type Options struct {
	Port         int
	Database     string
	TLSConfig    string // "true", "skip-verify", "preferred" or a registered name
	QueryTimeout time.Duration
	PingTimeout  time.Duration
}

// Authenticator implements base.PoolAuthenticator for MySQL-protocol hosts
type Authenticator struct {
	opts   Options
	logger *logger.Logger

	openDB func(driverName, dsn string) (*sql.DB, error)
}

// NewAuthenticator creates a MySQL pool authenticator
func NewAuthenticator(opts Options, log *logger.Logger) *Authenticator {
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	if opts.PingTimeout == 0 {
		opts.PingTimeout = DefaultPingTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Authenticator{opts: opts, logger: log, openDB: sql.Open}
}

// Type returns the driver type
func (a *Authenticator) Type() string {
	return "mysql"
}

// Authenticate opens a pool with the caller's credentials and pings it.
func (a *Authenticator) Authenticate(ctx context.Context, host string, creds base.Credentials, params base.PoolParams) (base.Pool, error) {
	if creds.Username == "" {
		return nil, base.NewConnectorError(a.Type(), "Authenticate", "username is required", nil)
	}

	db, err := a.openDB("mysql", a.buildDSN(host, creds))
	if err != nil {
		return nil, base.NewConnectorError(a.Type(), "Authenticate", "failed to open connection", err)
	}
	base.ConfigurePool(db, params)
	db.SetConnMaxIdleTime(DefaultConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, a.opts.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, base.NewConnectorError(a.Type(), "Authenticate", "failed to ping database", err)
	}

	a.logger.Info("", "", "MySQL pool opened", map[string]interface{}{
		"host":      base.SanitizeLogString(host),
		"user":      base.SanitizeLogString(creds.Username),
		"pool_max":  params.PoolMax,
		"pool_idle": params.PoolStart,
	})

	return base.NewSQLPool(a.Type(), db, a.opts.QueryTimeout), nil
}

// buildDSN lets the driver's Config format the DSN so credentials are escaped.
func (a *Authenticator) buildDSN(host string, creds base.Credentials) string {
	hostname, port := host, strconv.Itoa(a.opts.Port)
	if h, p, err := net.SplitHostPort(host); err == nil {
		hostname, port = h, p
	}

	cfg := mysql.NewConfig()
	cfg.User = creds.Username
	cfg.Passwd = creds.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(hostname, port)
	cfg.DBName = a.opts.Database
	cfg.Timeout = a.opts.PingTimeout
	cfg.ParseTime = true
	cfg.TLSConfig = a.opts.TLSConfig
	cfg.MultiStatements = false
	return cfg.FormatDSN()
}
