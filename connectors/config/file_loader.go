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
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// GatewayConfig is the root structure of the gateway configuration file.
type GatewayConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Auth    AuthConfig    `yaml:"auth"`
	Keys    KeysConfig    `yaml:"keys"`
	Catalog CatalogConfig `yaml:"catalog"`
	Pool    PoolConfig    `yaml:"pool"`
	Secrets SecretsConfig `yaml:"secrets"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port               int           `yaml:"port"`
	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins,omitempty"`
	ReadTimeout        time.Duration `yaml:"read_timeout,omitempty"`
	WriteTimeout       time.Duration `yaml:"write_timeout,omitempty"`
}

// AuthConfig configures token issuance. Durations are in seconds.
type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	Issuer           string `yaml:"issuer,omitempty"`
	TokenStore       string `yaml:"token_store,omitempty"` // memory|redis
	RedisURL         string `yaml:"redis_url,omitempty"`
	DefaultDuration  int    `yaml:"default_duration,omitempty"`
	MinDuration      int    `yaml:"min_duration,omitempty"`
	MaxDuration      int    `yaml:"max_duration,omitempty"`
	DefaultPoolStart int    `yaml:"default_poolstart,omitempty"`
	DefaultPoolMax   int    `yaml:"default_poolmax,omitempty"`
	MaxPoolMax       int    `yaml:"max_poolmax,omitempty"`
	RateLimit        int    `yaml:"rate_limit_per_minute"` // per client address, 0 disables
}

// KeysConfig lists the envelope private keys.
type KeysConfig struct {
	Active  string      `yaml:"active"`
	Dir     string      `yaml:"dir,omitempty"`
	Entries []KeyConfig `yaml:"entries,omitempty"`
}

// KeyConfig locates one private key, either on disk or in a secrets manager.
type KeyConfig struct {
	ID          string `yaml:"id"`
	Path        string `yaml:"path,omitempty"`
	SecretRef   string `yaml:"secret_ref,omitempty"`
	SecretField string `yaml:"secret_field,omitempty"`
	Retired     bool   `yaml:"retired,omitempty"`
}

// CatalogConfig selects where the dangerous-construct catalog comes from.
type CatalogConfig struct {
	Source                     string        `yaml:"source"` // file|s3|gcs|azureblob|embedded
	Location                   string        `yaml:"location,omitempty"`
	ReloadInterval             time.Duration `yaml:"reload_interval,omitempty"`
	ConstructionFunctionPolicy string        `yaml:"construction_function_policy,omitempty"` // overrides the catalog file when set
	Region                     string        `yaml:"region,omitempty"`
	Endpoint                   string        `yaml:"endpoint,omitempty"`
	CredentialsFile            string        `yaml:"credentials_file,omitempty"`
	ConnectionString           string        `yaml:"connection_string,omitempty"`
	AccountURL                 string        `yaml:"account_url,omitempty"`
}

// PoolConfig configures the pooled-connection authenticator.
type PoolConfig struct {
	Driver              string        `yaml:"driver"` // postgres|mysql
	Port                int           `yaml:"port,omitempty"`
	Database            string        `yaml:"database,omitempty"`
	SSLMode             string        `yaml:"ssl_mode,omitempty"`
	QueryTimeout        time.Duration `yaml:"query_timeout,omitempty"`
	SweepInterval       time.Duration `yaml:"sweep_interval,omitempty"`
	AllowPrivateIPs     bool          `yaml:"allow_private_ips"`
	AllowedHosts        []string      `yaml:"allowed_hosts,omitempty"`
	AllowedHostSuffixes []string      `yaml:"allowed_host_suffixes,omitempty"`
	BlockedHosts        []string      `yaml:"blocked_hosts,omitempty"`
}

// SecretsConfig selects the secrets manager used for secret_ref keys.
type SecretsConfig struct {
	Provider string        `yaml:"provider,omitempty"` // aws|env|local
	Region   string        `yaml:"region,omitempty"`
	CacheTTL time.Duration `yaml:"cache_ttl,omitempty"`
}

// DefaultGatewayConfig returns the configuration used for every unset field.
func DefaultGatewayConfig() *GatewayConfig {
	return &GatewayConfig{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Auth: AuthConfig{
			Issuer:           "ibmi-gateway",
			TokenStore:       "memory",
			DefaultDuration:  3600,
			MinDuration:      60,
			MaxDuration:      86400,
			DefaultPoolStart: 2,
			DefaultPoolMax:   10,
			MaxPoolMax:       100,
			RateLimit:        30,
		},
		Keys: KeysConfig{Dir: "keys"},
		Catalog: CatalogConfig{
			Source:         "embedded",
			ReloadInterval: time.Minute,
		},
		Pool: PoolConfig{
			Driver:          "postgres",
			SSLMode:         "require",
			QueryTimeout:    30 * time.Second,
			SweepInterval:   time.Minute,
			AllowPrivateIPs: true,
		},
		Secrets: SecretsConfig{
			Provider: "env",
			CacheTTL: 5 * time.Minute,
		},
	}
}

// LoadGatewayConfig reads a YAML file over the defaults, then applies
// environment overrides. ${VAR} and ${VAR:-default} references in the file
// are expanded before parsing. An empty path skips the file.
func LoadGatewayConfig(path string) (*GatewayConfig, error) {
	cfg := DefaultGatewayConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := ParseGatewayConfig(data, cfg); err != nil {
			return nil, err
		}
	}
	ApplyEnvOverrides(cfg)
	return cfg, nil
}

// ParseGatewayConfig expands environment references in data and decodes it
// into cfg. Fields absent from data keep their current values.
func ParseGatewayConfig(data []byte, cfg *GatewayConfig) error {
	expanded := expandEnvVars(string(data))
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// envVarRegex matches ${VAR_NAME} or $VAR_NAME patterns
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars expands environment variable references in the string.
// Supports ${VAR_NAME}, ${VAR_NAME:-default} and $VAR_NAME. Undefined
// variables without a default expand to the empty string.
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		defaultVal := ""
		if idx := strings.Index(varName, ":-"); idx != -1 {
			defaultVal = varName[idx+2:]
			varName = varName[:idx]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultVal
	})
}

// GenerateExampleConfig returns an annotated example configuration file.
func GenerateExampleConfig() string {
	return `# IBM i gateway configuration
# Environment variables can be referenced using ${VAR_NAME} or ${VAR_NAME:-default}

server:
  port: ${PORT:-8080}
  cors_allowed_origins: []
  read_timeout: 30s
  write_timeout: 60s

auth:
  jwt_secret: ${JWT_SECRET}
  issuer: ibmi-gateway
  token_store: ${TOKEN_STORE:-memory}   # memory or redis
  redis_url: ${REDIS_URL}
  default_duration: 3600
  max_duration: 86400
  default_poolstart: 2
  default_poolmax: 10
  rate_limit_per_minute: 30             # auth attempts per client address; 0 disables

keys:
  active: ${ACTIVE_KEY_ID:-gateway-2025-01}
  dir: ${KEYS_DIR:-keys}
  entries:
    - id: gateway-2025-01
      path: gateway-2025-01.pem          # relative to dir
    # - id: gateway-2024-07
    #   secret_ref: arn:aws:secretsmanager:us-east-1:123456789012:secret:gateway-2024-07
    #   secret_field: private_key
    #   retired: true

catalog:
  source: ${CATALOG_SOURCE:-embedded}   # file, s3, gcs, azureblob or embedded
  location: ${CATALOG_LOCATION}          # path, s3://bucket/key, gs://bucket/object, container/blob
  reload_interval: 1m
  construction_function_policy: ${CONSTRUCTION_FUNCTION_POLICY}   # warn or block; empty keeps the catalog's own

pool:
  driver: ${POOL_DRIVER:-postgres}       # postgres or mysql
  port: 0                                # 0 uses the driver default
  ssl_mode: require
  query_timeout: 30s
  allow_private_ips: true
  allowed_host_suffixes: []

secrets:
  provider: ${SECRETS_PROVIDER:-env}     # aws, env or local
  region: ${AWS_REGION:-us-east-1}
  cache_ttl: 5m
`
}
