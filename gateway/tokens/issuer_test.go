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

package tokens

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IBM/ibmi-mcp-sub001/connectors/base"
	"github.com/IBM/ibmi-mcp-sub001/connectors/registry"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type fakePool struct {
	mu     sync.Mutex
	closed bool
}

func (p *fakePool) Query(context.Context, *base.Query) (*base.QueryResult, error) {
	return &base.QueryResult{}, nil
}

func (p *fakePool) HealthCheck(context.Context) (*base.HealthStatus, error) {
	return &base.HealthStatus{Healthy: true}, nil
}

func (p *fakePool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

type fakeAuthenticator struct {
	err        error
	lastHost   string
	lastParams base.PoolParams
	pools      []*fakePool
}

func (f *fakeAuthenticator) Type() string { return "fake" }

func (f *fakeAuthenticator) Authenticate(_ context.Context, host string, creds base.Credentials, params base.PoolParams) (base.Pool, error) {
	f.lastHost = host
	f.lastParams = params
	if f.err != nil {
		return nil, f.err
	}
	p := &fakePool{}
	f.pools = append(f.pools, p)
	return p, nil
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type issuerFixture struct {
	issuer *Issuer
	auth   *fakeAuthenticator
	pools  *registry.PoolRegistry
	store  *MemoryStore
	clock  *testClock
}

func newIssuerFixture(t *testing.T) *issuerFixture {
	t.Helper()
	clock := &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 500, time.UTC)}
	auth := &fakeAuthenticator{}
	pools := registry.NewPoolRegistry(nil)
	pools.SetClock(clock.now)
	store := NewMemoryStore()
	store.now = clock.now

	issuer, err := NewIssuer(IssuerConfig{
		Secret:     testSecret,
		HostPolicy: base.HostPolicy{AllowPrivateIPs: true},
	}, auth, pools, store, nil)
	require.NoError(t, err)
	issuer.SetClock(clock.now)

	return &issuerFixture{issuer: issuer, auth: auth, pools: pools, store: store, clock: clock}
}

func intp(v int) *int { return &v }

var testCreds = base.Credentials{Username: "QUSER", Password: "secret"}

func TestNewIssuer_Validation(t *testing.T) {
	pools := registry.NewPoolRegistry(nil)
	_, err := NewIssuer(IssuerConfig{Secret: []byte("short")}, &fakeAuthenticator{}, pools, NewMemoryStore(), nil)
	assert.Error(t, err)

	_, err = NewIssuer(IssuerConfig{Secret: testSecret}, nil, pools, NewMemoryStore(), nil)
	assert.Error(t, err)

	issuer, err := NewIssuer(IssuerConfig{Secret: testSecret}, &fakeAuthenticator{}, pools, NewMemoryStore(), nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultLimits(), issuer.Limits())
}

func TestIssueToken_Success(t *testing.T) {
	f := newIssuerFixture(t)

	resp, err := f.issuer.IssueToken(context.Background(), AuthRequest{Host: "lpar1.example.com"}, testCreds)
	require.NoError(t, err)

	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, 3600, resp.ExpiresIn)
	assert.Equal(t, "2025-06-01T13:00:00Z", resp.ExpiresAt)
	assert.Equal(t, 3, len(strings.Split(resp.AccessToken, ".")))

	assert.Equal(t, "lpar1.example.com", f.auth.lastHost)
	assert.Equal(t, base.PoolParams{PoolStart: 2, PoolMax: 10, Lifetime: time.Hour}, f.auth.lastParams)
	assert.Equal(t, 1, f.pools.Count())
	assert.Equal(t, 1, f.store.Len())
}

func TestIssueToken_ExpiresAtMatchesExpiresIn(t *testing.T) {
	f := newIssuerFixture(t)

	resp, err := f.issuer.IssueToken(context.Background(), AuthRequest{Host: "h", Duration: intp(120)}, testCreds)
	require.NoError(t, err)

	expiresAt, err := time.Parse(time.RFC3339, resp.ExpiresAt)
	require.NoError(t, err)
	issued := f.clock.now().Truncate(time.Second)
	assert.Equal(t, issued.Add(time.Duration(resp.ExpiresIn)*time.Second), expiresAt)
}

func TestIssueToken_DistinctTokensOverTime(t *testing.T) {
	f := newIssuerFixture(t)

	first, err := f.issuer.IssueToken(context.Background(), AuthRequest{Host: "h"}, testCreds)
	require.NoError(t, err)
	f.clock.advance(2 * time.Second)
	second, err := f.issuer.IssueToken(context.Background(), AuthRequest{Host: "h"}, testCreds)
	require.NoError(t, err)

	assert.NotEqual(t, first.AccessToken, second.AccessToken)

	a, _ := time.Parse(time.RFC3339, first.ExpiresAt)
	b, _ := time.Parse(time.RFC3339, second.ExpiresAt)
	assert.False(t, b.Before(a), "expires_at must not go backwards")
}

func TestIssueToken_SameInstantStillDistinct(t *testing.T) {
	f := newIssuerFixture(t)

	first, err := f.issuer.IssueToken(context.Background(), AuthRequest{Host: "h"}, testCreds)
	require.NoError(t, err)
	second, err := f.issuer.IssueToken(context.Background(), AuthRequest{Host: "h"}, testCreds)
	require.NoError(t, err)

	assert.NotEqual(t, first.AccessToken, second.AccessToken)
}

func TestIssueToken_AuthenticationFailure(t *testing.T) {
	f := newIssuerFixture(t)
	f.auth.err = base.NewConnectorError("fake", "Authenticate", "failed to ping database", errors.New("CPF2204 user profile not found"))

	resp, err := f.issuer.IssueToken(context.Background(), AuthRequest{Host: "h"}, testCreds)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
	assert.NotContains(t, err.Error(), "CPF2204", "driver detail must not reach the caller")
	assert.Equal(t, 0, f.pools.Count())
}

func TestIssueToken_HostPolicy(t *testing.T) {
	f := newIssuerFixture(t)
	f.issuer.cfg.HostPolicy = base.HostPolicy{AllowPrivateIPs: true, AllowedHosts: []string{"lpar1"}}

	_, err := f.issuer.IssueToken(context.Background(), AuthRequest{Host: "lpar2"}, testCreds)
	assert.ErrorIs(t, err, ErrHostNotAllowed)
	assert.Empty(t, f.auth.lastHost, "authenticator must not be called")
}

func TestIssueToken_InvalidRequest(t *testing.T) {
	f := newIssuerFixture(t)

	_, err := f.issuer.IssueToken(context.Background(), AuthRequest{Host: "h", Duration: intp(5)}, testCreds)
	var invalid *InvalidRequestError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "duration", invalid.Field)
}

func TestVerify(t *testing.T) {
	f := newIssuerFixture(t)
	resp, err := f.issuer.IssueToken(context.Background(), AuthRequest{Host: "lpar1", Duration: intp(600)}, testCreds)
	require.NoError(t, err)

	session, err := f.issuer.Verify(context.Background(), resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "lpar1", session.Host)
	assert.Equal(t, "QUSER", session.Username)

	pool, err := f.pools.Get(session.PoolHandle)
	require.NoError(t, err)
	assert.NotNil(t, pool)

	t.Run("expired", func(t *testing.T) {
		f.clock.advance(601 * time.Second)
		defer f.clock.advance(-601 * time.Second)
		_, err := f.issuer.Verify(context.Background(), resp.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := f.issuer.Verify(context.Background(), "not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		forged := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
			Pool: session.PoolHandle,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "ibmi-gateway",
				ID:        session.ID,
				ExpiresAt: jwt.NewNumericDate(f.clock.now().Add(time.Hour)),
			},
		})
		s, err := forged.SignedString([]byte("another-secret-another-secret-xx"))
		require.NoError(t, err)
		_, err = f.issuer.Verify(context.Background(), s)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("alg none rejected", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
			Pool: session.PoolHandle,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "ibmi-gateway",
				ID:        session.ID,
				ExpiresAt: jwt.NewNumericDate(f.clock.now().Add(time.Hour)),
			},
		})
		s, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = f.issuer.Verify(context.Background(), s)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestRevoke(t *testing.T) {
	f := newIssuerFixture(t)
	resp, err := f.issuer.IssueToken(context.Background(), AuthRequest{Host: "h"}, testCreds)
	require.NoError(t, err)

	require.NoError(t, f.issuer.Revoke(context.Background(), resp.AccessToken))

	_, err = f.issuer.Verify(context.Background(), resp.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Equal(t, 0, f.pools.Count())
	assert.True(t, f.auth.pools[0].closed)

	assert.ErrorIs(t, f.issuer.Revoke(context.Background(), resp.AccessToken), ErrInvalidToken)
}
