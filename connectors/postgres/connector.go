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

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/IBM/ibmi-mcp-sub001/connectors/base"
	"github.com/IBM/ibmi-mcp-sub001/shared/logger"
)

const (
	// DefaultPort is used when the host carries no port
	DefaultPort = 5432
	// DefaultPingTimeout bounds the authenticating ping
	DefaultPingTimeout = 10 * time.Second
)

// Options configures how pools are opened.
type Options struct {
	Port         int
	Database     string
	SSLMode      string // disable|require|verify-ca|verify-full
	QueryTimeout time.Duration
	PingTimeout  time.Duration
}

// Authenticator implements base.PoolAuthenticator for PostgreSQL-protocol hosts
type Authenticator struct {
	opts   Options
	logger *logger.Logger

	openDB func(driverName, dsn string) (*sql.DB, error)
}

// NewAuthenticator creates a PostgreSQL pool authenticator
func NewAuthenticator(opts Options, log *logger.Logger) *Authenticator {
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	if opts.SSLMode == "" {
		opts.SSLMode = "require"
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
	return "postgres"
}

// Authenticate opens a pool with the caller's credentials and pings it.
func (a *Authenticator) Authenticate(ctx context.Context, host string, creds base.Credentials, params base.PoolParams) (base.Pool, error) {
	if creds.Username == "" {
		return nil, base.NewConnectorError(a.Type(), "Authenticate", "username is required", nil)
	}

	dsn := a.buildDSN(host, creds)
	db, err := a.openDB("postgres", dsn)
	if err != nil {
		return nil, base.NewConnectorError(a.Type(), "Authenticate", "failed to open connection", err)
	}
	base.ConfigurePool(db, params)

	pingCtx, cancel := context.WithTimeout(ctx, a.opts.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, base.NewConnectorError(a.Type(), "Authenticate", "failed to ping database", err)
	}

	a.logger.Info("", "", "PostgreSQL pool opened", map[string]interface{}{
		"host":      base.SanitizeLogString(host),
		"user":      base.SanitizeLogString(creds.Username),
		"pool_max":  params.PoolMax,
		"pool_idle": params.PoolStart,
	})

	return base.NewSQLPool(a.Type(), db, a.opts.QueryTimeout), nil
}

// buildDSN renders a postgres:// URL. url.UserPassword escapes the password.
func (a *Authenticator) buildDSN(host string, creds base.Credentials) string {
	hostname, port := host, strconv.Itoa(a.opts.Port)
	if h, p, err := net.SplitHostPort(host); err == nil {
		hostname, port = h, p
	}

	q := url.Values{}
	q.Set("sslmode", a.opts.SSLMode)
	q.Set("connect_timeout", fmt.Sprintf("%d", int(a.opts.PingTimeout.Seconds())))

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(creds.Username, creds.Password),
		Host:     net.JoinHostPort(hostname, port),
		Path:     "/" + a.opts.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}
