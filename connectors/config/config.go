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
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/IBM/ibmi-mcp-sub001/connectors/base"
)

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// splitList splits a comma separated list, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ApplyEnvOverrides overwrites cfg fields with environment variables that
// are set. Malformed numeric values are ignored and left for Validate to
// judge the file value.
func ApplyEnvOverrides(cfg *GatewayConfig) {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.CORSAllowedOrigins = splitList(v)
	}

	cfg.Auth.JWTSecret = getEnvOrDefault("JWT_SECRET", cfg.Auth.JWTSecret)
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Auth.RedisURL = v
		cfg.Auth.TokenStore = "redis"
	}
	cfg.Auth.TokenStore = getEnvOrDefault("TOKEN_STORE", cfg.Auth.TokenStore)
	if v := os.Getenv("AUTH_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Auth.RateLimit = n
		}
	}

	cfg.Keys.Dir = getEnvOrDefault("KEYS_DIR", cfg.Keys.Dir)
	cfg.Keys.Active = getEnvOrDefault("ACTIVE_KEY_ID", cfg.Keys.Active)

	cfg.Catalog.Source = getEnvOrDefault("CATALOG_SOURCE", cfg.Catalog.Source)
	cfg.Catalog.Location = getEnvOrDefault("CATALOG_LOCATION", cfg.Catalog.Location)
	cfg.Catalog.ConstructionFunctionPolicy = getEnvOrDefault("CONSTRUCTION_FUNCTION_POLICY", cfg.Catalog.ConstructionFunctionPolicy)
	if v := os.Getenv("CATALOG_RELOAD_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Catalog.ReloadInterval = d
		}
	}

	cfg.Pool.Driver = getEnvOrDefault("POOL_DRIVER", cfg.Pool.Driver)
	if v := os.Getenv("ALLOWED_HOSTS"); v != "" {
		cfg.Pool.AllowedHosts = splitList(v)
	}

	cfg.Secrets.Provider = getEnvOrDefault("SECRETS_PROVIDER", cfg.Secrets.Provider)
	cfg.Secrets.Region = getEnvOrDefault("AWS_REGION", cfg.Secrets.Region)
}

// MinJWTSecretLength is the shortest accepted signing secret.
const MinJWTSecretLength = 32

// Validate checks the whole configuration and reports every problem in a
// single joined error.
func (c *GatewayConfig) Validate() error {
	var errs []error
	add := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		add("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if len(c.Auth.JWTSecret) < MinJWTSecretLength {
		add("auth.jwt_secret must be at least %d characters", MinJWTSecretLength)
	}
	switch c.Auth.TokenStore {
	case "memory":
	case "redis":
		if c.Auth.RedisURL == "" {
			add("auth.redis_url is required when auth.token_store is redis")
		}
	default:
		add("auth.token_store must be memory or redis, got %q", c.Auth.TokenStore)
	}
	if c.Auth.MinDuration <= 0 || c.Auth.MinDuration > c.Auth.MaxDuration {
		add("auth.min_duration must be positive and not above auth.max_duration")
	}
	if c.Auth.DefaultDuration < c.Auth.MinDuration || c.Auth.DefaultDuration > c.Auth.MaxDuration {
		add("auth.default_duration must lie between auth.min_duration and auth.max_duration")
	}
	if c.Auth.RateLimit < 0 {
		add("auth.rate_limit_per_minute cannot be negative")
	}
	if c.Auth.MaxPoolMax <= 0 {
		add("auth.max_poolmax must be positive")
	}
	if c.Auth.DefaultPoolStart <= 0 || c.Auth.DefaultPoolStart > c.Auth.DefaultPoolMax || c.Auth.DefaultPoolMax > c.Auth.MaxPoolMax {
		add("auth pool defaults must satisfy 0 < default_poolstart <= default_poolmax <= max_poolmax")
	}

	if c.Keys.Active == "" {
		add("keys.active is required")
	}
	seen := make(map[string]bool)
	for i, k := range c.Keys.Entries {
		switch {
		case k.ID == "":
			add("keys.entries[%d].id is required", i)
		case seen[k.ID]:
			add("keys.entries[%d]: duplicate key id %q", i, k.ID)
		}
		seen[k.ID] = true
		if (k.Path == "") == (k.SecretRef == "") {
			add("keys.entries[%d]: exactly one of path or secret_ref is required", i)
		}
		if k.ID == c.Keys.Active && k.Retired {
			add("keys.entries[%d]: active key %q cannot be retired", i, k.ID)
		}
	}

	switch c.Catalog.Source {
	case "embedded":
	case "file", "s3", "gcs", "azureblob":
		if c.Catalog.Location == "" {
			add("catalog.location is required for source %q", c.Catalog.Source)
		}
	default:
		add("catalog.source must be one of file, s3, gcs, azureblob, embedded; got %q", c.Catalog.Source)
	}
	if c.Catalog.ReloadInterval < 0 {
		add("catalog.reload_interval cannot be negative")
	}
	switch strings.ToLower(c.Catalog.ConstructionFunctionPolicy) {
	case "", "warn", "block":
	default:
		add("catalog.construction_function_policy must be warn or block, got %q", c.Catalog.ConstructionFunctionPolicy)
	}

	switch c.Pool.Driver {
	case "postgres", "mysql":
	default:
		add("pool.driver must be postgres or mysql, got %q", c.Pool.Driver)
	}
	if c.Pool.Port < 0 || c.Pool.Port > 65535 {
		add("pool.port must be between 0 and 65535, got %d", c.Pool.Port)
	}
	if c.Pool.Database != "" {
		if err := base.ValidateSQLIdentifier(c.Pool.Database); err != nil {
			add("pool.database: %v", err)
		}
	}

	switch c.Secrets.Provider {
	case "aws", "env", "local":
	default:
		add("secrets.provider must be aws, env or local, got %q", c.Secrets.Provider)
	}

	return errors.Join(errs...)
}
