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
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IBM/ibmi-mcp-sub001/connectors/config"
	"github.com/IBM/ibmi-mcp-sub001/gateway/ratelimit"
	"github.com/IBM/ibmi-mcp-sub001/gateway/tokens"
)

func TestNewAuthenticator(t *testing.T) {
	for _, driver := range []string{"postgres", "mysql"} {
		auth, err := NewAuthenticator(config.PoolConfig{Driver: driver, SSLMode: "require"})
		require.NoError(t, err)
		assert.Equal(t, driver, auth.Type())
	}

	_, err := NewAuthenticator(config.PoolConfig{Driver: "db2"})
	assert.ErrorContains(t, err, `unknown pool driver "db2"`)
}

func TestMySQLTLS(t *testing.T) {
	tests := map[string]string{
		"disable":     "false",
		"require":     "skip-verify",
		"verify-ca":   "true",
		"verify-full": "true",
		"prefer":      "preferred",
		"":            "preferred",
	}
	for mode, want := range tests {
		assert.Equal(t, want, mysqlTLS(mode), mode)
	}
}

func TestNewTokenStore(t *testing.T) {
	ctx := context.Background()

	store, closeFn, err := newTokenStore(ctx, config.AuthConfig{TokenStore: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &tokens.MemoryStore{}, store)
	assert.NoError(t, closeFn())

	mr := miniredis.RunT(t)
	store, closeFn, err = newTokenStore(ctx, config.AuthConfig{TokenStore: "redis", RedisURL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	assert.IsType(t, &tokens.RedisStore{}, store)
	assert.NoError(t, closeFn())

	_, _, err = newTokenStore(ctx, config.AuthConfig{TokenStore: "redis", RedisURL: "not a url"})
	assert.Error(t, err)
}

func TestNewAuthLimiter(t *testing.T) {
	assert.Nil(t, newAuthLimiter(config.AuthConfig{RateLimit: 0}, tokens.NewMemoryStore()))

	assert.IsType(t, &ratelimit.MemoryLimiter{},
		newAuthLimiter(config.AuthConfig{RateLimit: 10}, tokens.NewMemoryStore()))

	mr := miniredis.RunT(t)
	store, err := tokens.DialRedis(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	defer store.Close()
	assert.IsType(t, &ratelimit.RedisLimiter{}, newAuthLimiter(config.AuthConfig{RateLimit: 10}, store))
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := config.DefaultGatewayConfig()
	err := Run(context.Background(), cfg)
	require.Error(t, err)
}

func TestRun_MissingKeys(t *testing.T) {
	cfg := config.DefaultGatewayConfig()
	cfg.Auth.JWTSecret = "0123456789abcdef0123456789abcdef"
	cfg.Keys.Active = "k1"
	cfg.Keys.Dir = filepath.Join(t.TempDir(), "absent")

	err := Run(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load keyring")
}
