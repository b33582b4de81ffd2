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

/*
Package config loads the gateway configuration and resolves secrets.

# Sources

Configuration is layered: DefaultGatewayConfig, then an optional YAML file,
then environment variables. The file may reference the environment with
${VAR} or ${VAR:-default}; unknown keys are rejected.

	cfg, err := config.LoadGatewayConfig("/etc/ibmi-gateway/gateway.yaml")
	if err != nil {
	    log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
	    log.Fatalf("Invalid config: %v", err)
	}

# Environment Overrides

	PORT, CORS_ALLOWED_ORIGINS
	JWT_SECRET, TOKEN_STORE, REDIS_URL
	KEYS_DIR, ACTIVE_KEY_ID
	CATALOG_SOURCE, CATALOG_LOCATION, CATALOG_RELOAD_INTERVAL
	CONSTRUCTION_FUNCTION_POLICY
	POOL_DRIVER, ALLOWED_HOSTS
	SECRETS_PROVIDER, AWS_REGION

# Secrets

Private keys may live in a secrets manager instead of on disk. The aws
provider reads AWS Secrets Manager with a TTL cache; env reads
<REF>_PRIVATE_KEY style variables; local is in-memory for tests.

	pem, err := config.SecretField(ctx, sm, "arn:aws:secretsmanager:...", "private_key")

# Thread Safety

TTLCache and every SecretsManager are safe for concurrent use.
*/
package config
