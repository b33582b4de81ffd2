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
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/IBM/ibmi-mcp-sub001/shared/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretsManager resolves a secret reference to its key/value fields.
type SecretsManager interface {
	GetSecret(ctx context.Context, secretRef string) (map[string]string, error)
}

// secretsAPI is the part of the AWS Secrets Manager client the gateway uses.
type secretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSecretsManager implements SecretsManager using AWS Secrets Manager
type AWSSecretsManager struct {
	client secretsAPI
	cache  *TTLCache[map[string]string]
	logger *logger.Logger
}

// AWSSecretsManagerOptions holds options for creating an AWSSecretsManager
type AWSSecretsManagerOptions struct {
	Region   string
	CacheTTL time.Duration
	Logger   *logger.Logger
}

// NewAWSSecretsManager creates a new AWS Secrets Manager client
func NewAWSSecretsManager(ctx context.Context, opts AWSSecretsManagerOptions) (*AWSSecretsManager, error) {
	cfgOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		cfgOpts = append(cfgOpts, awsconfig.WithRegion(opts.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, cfgOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return newAWSSecretsManager(secretsmanager.NewFromConfig(cfg), opts), nil
}

func newAWSSecretsManager(client secretsAPI, opts AWSSecretsManagerOptions) *AWSSecretsManager {
	log := opts.Logger
	if log == nil {
		log = logger.New("secrets-manager")
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &AWSSecretsManager{
		client: client,
		cache:  NewTTLCache[map[string]string](ttl),
		logger: log,
	}
}

// GetSecret retrieves a secret from AWS Secrets Manager.
// A JSON object value is returned field by field; any other value is
// returned under the "value" key.
func (s *AWSSecretsManager) GetSecret(ctx context.Context, secretARN string) (map[string]string, error) {
	if v, ok := s.cache.Get(secretARN); ok {
		s.logger.Debug("", "", "Secret cache hit", map[string]interface{}{"secret": maskARN(secretARN)})
		return v, nil
	}

	result, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretARN),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret %s: %w", maskARN(secretARN), err)
	}
	if result.SecretString == nil {
		return nil, fmt.Errorf("secret %s has no string value", maskARN(secretARN))
	}

	var fields map[string]string
	if err := json.Unmarshal([]byte(*result.SecretString), &fields); err != nil {
		fields = map[string]string{"value": *result.SecretString}
	}

	s.cache.Set(secretARN, fields)
	s.logger.Info("", "", "Retrieved secret", map[string]interface{}{
		"secret": maskARN(secretARN),
		"fields": len(fields),
	})
	return fields, nil
}

// InvalidateSecret removes a secret from the cache
func (s *AWSSecretsManager) InvalidateSecret(secretARN string) {
	s.cache.Invalidate(secretARN)
}

// InvalidateAll clears the entire secret cache
func (s *AWSSecretsManager) InvalidateAll() {
	s.cache.InvalidateAll()
}

// maskARN masks the secret ARN for logging (shows only last 8 characters)
func maskARN(arn string) string {
	if len(arn) <= 12 {
		return "***"
	}
	return "..." + arn[len(arn)-8:]
}

// LocalSecretsManager keeps secrets in memory. Used in development and tests.
type LocalSecretsManager struct {
	secrets map[string]map[string]string
	mu      sync.RWMutex
}

// NewLocalSecretsManager creates an empty local secrets manager
func NewLocalSecretsManager() *LocalSecretsManager {
	return &LocalSecretsManager{
		secrets: make(map[string]map[string]string),
	}
}

// GetSecret retrieves a secret from local storage
func (s *LocalSecretsManager) GetSecret(ctx context.Context, ref string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if secret, exists := s.secrets[ref]; exists {
		return secret, nil
	}
	return nil, fmt.Errorf("secret %s not found in local secrets manager", ref)
}

// SetSecret stores a secret locally
func (s *LocalSecretsManager) SetSecret(ref string, value map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[ref] = value
}

// EnvSecretsManager implements SecretsManager using environment variables.
// The reference is a variable name prefix: "GATEWAY_KEY_2025" reads
// GATEWAY_KEY_2025_PRIVATE_KEY, GATEWAY_KEY_2025_USERNAME and so on.
type EnvSecretsManager struct{}

// NewEnvSecretsManager creates a secrets manager that reads from environment variables
func NewEnvSecretsManager() *EnvSecretsManager {
	return &EnvSecretsManager{}
}

var envSecretFields = []string{"PRIVATE_KEY", "PASSWORD", "USERNAME", "TOKEN", "SECRET_KEY", "VALUE"}

// GetSecret retrieves fields from environment variables
func (s *EnvSecretsManager) GetSecret(ctx context.Context, prefix string) (map[string]string, error) {
	fields := make(map[string]string)
	for _, field := range envSecretFields {
		if value := os.Getenv(prefix + "_" + field); value != "" {
			fields[strings.ToLower(field)] = value
		}
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("no secret fields found for prefix %s", prefix)
	}
	return fields, nil
}

// NewSecretsManager builds the manager selected by cfg.Provider.
func NewSecretsManager(ctx context.Context, cfg SecretsConfig, log *logger.Logger) (SecretsManager, error) {
	switch cfg.Provider {
	case "aws":
		return NewAWSSecretsManager(ctx, AWSSecretsManagerOptions{
			Region:   cfg.Region,
			CacheTTL: cfg.CacheTTL,
			Logger:   log,
		})
	case "", "env":
		return NewEnvSecretsManager(), nil
	case "local":
		return NewLocalSecretsManager(), nil
	default:
		return nil, fmt.Errorf("unknown secrets provider %q", cfg.Provider)
	}
}

// SecretField fetches ref and returns one field. An empty field selects
// "private_key", falling back to "value" for plain-string secrets.
func SecretField(ctx context.Context, sm SecretsManager, ref, field string) (string, error) {
	fields, err := sm.GetSecret(ctx, ref)
	if err != nil {
		return "", err
	}
	if field != "" {
		if v, ok := fields[field]; ok && v != "" {
			return v, nil
		}
		return "", fmt.Errorf("secret %s has no field %q", maskARN(ref), field)
	}
	for _, f := range []string{"private_key", "value"} {
		if v, ok := fields[f]; ok && v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("secret %s has no private_key or value field", maskARN(ref))
}
