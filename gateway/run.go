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
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/ibmi-mcp-sub001/connectors/base"
	"github.com/IBM/ibmi-mcp-sub001/connectors/config"
	"github.com/IBM/ibmi-mcp-sub001/connectors/mysql"
	"github.com/IBM/ibmi-mcp-sub001/connectors/postgres"
	"github.com/IBM/ibmi-mcp-sub001/connectors/registry"
	"github.com/IBM/ibmi-mcp-sub001/gateway/catalog"
	"github.com/IBM/ibmi-mcp-sub001/gateway/envelope"
	"github.com/IBM/ibmi-mcp-sub001/gateway/ratelimit"
	"github.com/IBM/ibmi-mcp-sub001/gateway/tokens"
	"github.com/IBM/ibmi-mcp-sub001/gateway/validator"
	"github.com/IBM/ibmi-mcp-sub001/shared/logger"
)

const shutdownTimeout = 15 * time.Second

// NewAuthenticator returns the pooled-connection authenticator for
// cfg.Driver.
func NewAuthenticator(cfg config.PoolConfig) (base.PoolAuthenticator, error) {
	switch cfg.Driver {
	case "postgres":
		return postgres.NewAuthenticator(postgres.Options{
			Port:         cfg.Port,
			Database:     cfg.Database,
			SSLMode:      cfg.SSLMode,
			QueryTimeout: cfg.QueryTimeout,
		}, logger.New("postgres")), nil
	case "mysql":
		return mysql.NewAuthenticator(mysql.Options{
			Port:         cfg.Port,
			Database:     cfg.Database,
			TLSConfig:    mysqlTLS(cfg.SSLMode),
			QueryTimeout: cfg.QueryTimeout,
		}, logger.New("mysql")), nil
	default:
		return nil, fmt.Errorf("unknown pool driver %q", cfg.Driver)
	}
}

// mysqlTLS maps a libpq-style sslmode onto the mysql driver's tls value.
func mysqlTLS(sslMode string) string {
	switch sslMode {
	case "disable":
		return "false"
	case "verify-ca", "verify-full":
		return "true"
	case "require":
		return "skip-verify"
	default:
		return "preferred"
	}
}

func newTokenStore(ctx context.Context, cfg config.AuthConfig) (tokens.Store, func() error, error) {
	if cfg.TokenStore != "redis" {
		return tokens.NewMemoryStore(), func() error { return nil }, nil
	}
	store, err := tokens.DialRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

// newAuthLimiter shares the token store's Redis client when there is one.
// A zero limit disables rate limiting.
func newAuthLimiter(cfg config.AuthConfig, store tokens.Store) ratelimit.Limiter {
	if cfg.RateLimit <= 0 {
		return nil
	}
	if rs, ok := store.(*tokens.RedisStore); ok {
		return ratelimit.NewRedisLimiter(rs.Client(), cfg.RateLimit, time.Minute, logger.New("ratelimit"))
	}
	return ratelimit.NewMemoryLimiter(cfg.RateLimit, time.Minute)
}

// Run starts the gateway described by cfg and blocks until ctx is
// cancelled or the listener fails. SIGHUP reloads the keyring and the
// catalog.
func Run(ctx context.Context, cfg *config.GatewayConfig) error {
	log := logger.New("gateway")
	if err := cfg.Validate(); err != nil {
		return err
	}

	secrets, err := config.NewSecretsManager(ctx, cfg.Secrets, logger.New("secrets"))
	if err != nil {
		return fmt.Errorf("secrets manager: %w", err)
	}
	kr, err := LoadKeyring(ctx, cfg.Keys, secrets)
	if err != nil {
		return fmt.Errorf("load keyring: %w", err)
	}
	keys := envelope.NewKeyringStore(kr)
	log.Info("", "", "Keyring loaded", map[string]interface{}{"active": kr.ActiveID(), "keys": kr.IDs()})

	source, err := NewCatalogSource(ctx, cfg.Catalog)
	if err != nil {
		return fmt.Errorf("catalog source: %w", err)
	}
	if c, ok := source.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}
	reloadOpts := []catalog.ReloaderOption{
		catalog.WithOnReload(func(outcome string) { promCatalogReloads.WithLabelValues(outcome).Inc() }),
	}
	if cfg.Catalog.ConstructionFunctionPolicy != "" {
		policy, err := catalog.ParsePolicy(cfg.Catalog.ConstructionFunctionPolicy)
		if err != nil {
			return err
		}
		reloadOpts = append(reloadOpts, catalog.WithPolicyOverride(policy))
	}
	catalogs := catalog.NewStore(nil)
	reloader := catalog.NewReloader(source, catalogs, cfg.Catalog.ReloadInterval, logger.New("catalog"), reloadOpts...)
	if _, err := reloader.Reload(ctx); err != nil {
		return fmt.Errorf("initial catalog load from %s: %w", source.Name(), err)
	}

	auth, err := NewAuthenticator(cfg.Pool)
	if err != nil {
		return err
	}
	pools := registry.NewPoolRegistry(logger.New("registry"))
	defer pools.CloseAll()

	store, closeStore, err := newTokenStore(ctx, cfg.Auth)
	if err != nil {
		return fmt.Errorf("token store: %w", err)
	}
	defer func() { _ = closeStore() }()

	issuer, err := tokens.NewIssuer(tokens.IssuerConfig{
		Secret: []byte(cfg.Auth.JWTSecret),
		Issuer: cfg.Auth.Issuer,
		Limits: tokens.Limits{
			DefaultDuration:  cfg.Auth.DefaultDuration,
			MinDuration:      cfg.Auth.MinDuration,
			MaxDuration:      cfg.Auth.MaxDuration,
			DefaultPoolStart: cfg.Auth.DefaultPoolStart,
			DefaultPoolMax:   cfg.Auth.DefaultPoolMax,
			MaxPoolMax:       cfg.Auth.MaxPoolMax,
		},
		HostPolicy: base.HostPolicy{
			AllowPrivateIPs:     cfg.Pool.AllowPrivateIPs,
			AllowedHosts:        cfg.Pool.AllowedHosts,
			AllowedHostSuffixes: cfg.Pool.AllowedHostSuffixes,
			BlockedHosts:        cfg.Pool.BlockedHosts,
		},
	}, auth, pools, store, logger.New("tokens"))
	if err != nil {
		return err
	}

	v := validator.New(catalogs, validator.WithAuditCallback(AuditLogger(logger.New("audit"))))

	srv, err := NewServer(Deps{
		Keys:               keys,
		Issuer:             issuer,
		Validator:          v,
		Pools:              pools,
		Catalogs:           catalogs,
		Logger:             log,
		AuthLimiter:        newAuthLimiter(cfg.Auth, store),
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		QueryTimeout:       cfg.Pool.QueryTimeout,
	})
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if cfg.Pool.SweepInterval > 0 {
		pools.StartSweeper(runCtx, cfg.Pool.SweepInterval)
	}
	go reloader.Run(runCtx)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()
	srv.SetReady(true)
	log.Info("", "", "Gateway listening", map[string]interface{}{
		"port":    cfg.Server.Port,
		"catalog": source.Name(),
		"driver":  auth.Type(),
	})

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			srv.SetReady(false)
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancelShutdown()
			log.Info("", "", "Shutting down", nil)
			return httpServer.Shutdown(shutdownCtx)
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-hup:
			reloadOnSignal(ctx, log, cfg.Keys, secrets, keys, reloader)
		}
	}
}

// reloadOnSignal swaps in a freshly loaded keyring and re-fetches the
// catalog. A failure keeps what is loaded.
func reloadOnSignal(ctx context.Context, log *logger.Logger, cfg config.KeysConfig, secrets config.SecretsManager, keys *envelope.KeyringStore, reloader *catalog.Reloader) {
	kr, err := LoadKeyring(ctx, cfg, secrets)
	if err != nil {
		log.Error("", "", "Keyring reload failed", map[string]interface{}{"error": err.Error()})
	} else {
		keys.Swap(kr)
		log.Info("", "", "Keyring reloaded", map[string]interface{}{"active": kr.ActiveID(), "keys": kr.IDs()})
	}
	if _, err := reloader.Reload(ctx); err != nil {
		log.Error("", "", "Catalog reload failed", map[string]interface{}{"error": err.Error()})
	}
}
