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
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IBM/ibmi-mcp-sub001/connectors/base"
	"github.com/IBM/ibmi-mcp-sub001/connectors/registry"
	"github.com/IBM/ibmi-mcp-sub001/gateway/catalog"
	"github.com/IBM/ibmi-mcp-sub001/gateway/envelope"
	"github.com/IBM/ibmi-mcp-sub001/gateway/ratelimit"
	"github.com/IBM/ibmi-mcp-sub001/gateway/tokens"
	"github.com/IBM/ibmi-mcp-sub001/gateway/validator"
)

const testKeyID = "gw-test"

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

func sharedTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	testKeyOnce.Do(func() {
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = k
	})
	return testKey
}

type fakePool struct {
	mu        sync.Mutex
	queries   []*base.Query
	err       error
	closed    bool
	unhealthy bool
}

func (p *fakePool) Query(_ context.Context, q *base.Query) (*base.QueryResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries = append(p.queries, q)
	if p.err != nil {
		return nil, p.err
	}
	return &base.QueryResult{
		Rows:     []map[string]interface{}{{"ID": 1, "NAME": "Ada"}},
		RowCount: 1,
		Duration: 3 * time.Millisecond,
	}, nil
}

func (p *fakePool) HealthCheck(context.Context) (*base.HealthStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unhealthy {
		return &base.HealthStatus{Healthy: false, Error: "connection reset"}, nil
	}
	return &base.HealthStatus{Healthy: true}, nil
}

func (p *fakePool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePool) lastQuery() *base.Query {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queries) == 0 {
		return nil
	}
	return p.queries[len(p.queries)-1]
}

type fakeAuthenticator struct {
	mu    sync.Mutex
	pool  *fakePool
	creds base.Credentials
	fail  bool
}

func (f *fakeAuthenticator) Type() string { return "fake" }

func (f *fakeAuthenticator) Authenticate(_ context.Context, _ string, creds base.Credentials, _ base.PoolParams) (base.Pool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creds = creds
	if f.fail || creds.Password != "secret" {
		return nil, errors.New("SQLSTATE 28000: password incorrect")
	}
	return f.pool, nil
}

type testEnv struct {
	server *Server
	auth   *fakeAuthenticator
	pool   *fakePool
	pools  *registry.PoolRegistry
	pub    *rsa.PublicKey
}

func newTestEnv(t *testing.T, opts ...func(*Deps)) *testEnv {
	t.Helper()
	key := sharedTestKey(t)
	kr, err := envelope.NewKeyring(testKeyID, envelope.Key{ID: testKeyID, Private: key})
	require.NoError(t, err)

	pool := &fakePool{}
	auth := &fakeAuthenticator{pool: pool}
	pools := registry.NewPoolRegistry(nil)
	issuer, err := tokens.NewIssuer(tokens.IssuerConfig{
		Secret:     []byte("0123456789abcdef0123456789abcdef"),
		HostPolicy: base.HostPolicy{AllowPrivateIPs: true, BlockedHosts: []string{"blocked.example"}},
	}, auth, pools, tokens.NewMemoryStore(), nil)
	require.NoError(t, err)

	store := catalog.NewStore(nil)
	deps := Deps{
		Keys:      envelope.NewKeyringStore(kr),
		Issuer:    issuer,
		Validator: validator.New(store),
		Pools:     pools,
		Catalogs:  store,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	srv, err := NewServer(deps)
	require.NoError(t, err)

	return &testEnv{server: srv, auth: auth, pool: pool, pools: pools, pub: &key.PublicKey}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case string:
		rdr = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) seal(t *testing.T, password string, request string) *envelope.Envelope {
	t.Helper()
	env, err := envelope.Seal(e.pub, testKeyID,
		envelope.Credentials{Username: "QUSER", Password: password},
		json.RawMessage(request))
	require.NoError(t, err)
	return env
}

func (e *testEnv) login(t *testing.T) string {
	t.Helper()
	rec := e.do(t, "POST", "/api/v1/auth", "", e.seal(t, "secret", `{"host":"ibmi.example"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp tokens.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.AccessToken
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func TestNewServer_RequiresDeps(t *testing.T) {
	_, err := NewServer(Deps{})
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	body := decode(t, env.do(t, "GET", "/health", "", nil))
	assert.Equal(t, "starting", body["status"])
	assert.Equal(t, ServiceName, body["service"])
	assert.Equal(t, catalog.Default().Version(), body["catalog_version"])
	assert.Equal(t, testKeyID, body["active_key"])

	env.server.SetReady(true)
	body = decode(t, env.do(t, "GET", "/health", "", nil))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(0), body["pools"])
	assert.Equal(t, float64(0), body["pools_unhealthy"])
}

func TestHealth_ReportsUnhealthyPools(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)
	env.pool.mu.Lock()
	env.pool.unhealthy = true
	env.pool.mu.Unlock()

	body := decode(t, env.do(t, "GET", "/health", "", nil))
	assert.Equal(t, float64(1), body["pools"])
	assert.Equal(t, float64(1), body["pools_unhealthy"])
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "GET", "/health", "", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Request-ID", "trace-123")
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "trace-123", rec.Header().Get("X-Request-ID"))
}

func TestPublicKeys(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "GET", "/api/v1/auth/keys", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Keys []envelope.PublicKeyInfo `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Keys, 1)
	assert.Equal(t, testKeyID, body.Keys[0].KeyID)
	assert.True(t, body.Keys[0].Active)
	assert.Equal(t, envelope.Algorithm, body.Keys[0].Algorithm)

	pub, err := envelope.ParsePublicKeyPEM([]byte(body.Keys[0].PublicKey))
	require.NoError(t, err)
	assert.True(t, pub.Equal(env.pub))
}

func TestAuth_Success(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "POST", "/api/v1/auth", "", env.seal(t, "secret", `{"host":"ibmi.example","duration":600}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var resp tokens.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, 600, resp.ExpiresIn)
	assert.NotEmpty(t, resp.AccessToken)

	expiresAt, err := time.Parse(time.RFC3339, resp.ExpiresAt)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(600*time.Second), expiresAt, 5*time.Second)

	assert.Equal(t, "QUSER", env.auth.creds.Username)
	assert.Equal(t, 1, env.pools.Count())
}

func TestAuth_FailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)

	tamper := func(s string) string {
		raw, _ := base64.StdEncoding.DecodeString(s)
		raw[0] ^= 0xff
		return base64.StdEncoding.EncodeToString(raw)
	}

	tests := []struct {
		name   string
		mutate func(*envelope.Envelope)
		pass   string
	}{
		{"unknown key id", func(e *envelope.Envelope) { e.KeyID = "retired-long-ago" }, "secret"},
		{"tampered session key", func(e *envelope.Envelope) { e.EncryptedSessionKey = tamper(e.EncryptedSessionKey) }, "secret"},
		{"tampered ciphertext", func(e *envelope.Envelope) { e.Ciphertext = tamper(e.Ciphertext) }, "secret"},
		{"tampered tag", func(e *envelope.Envelope) { e.AuthTag = tamper(e.AuthTag) }, "secret"},
		{"bad iv encoding", func(e *envelope.Envelope) { e.IV = "***" }, "secret"},
		{"wrong password", func(*envelope.Envelope) {}, "hunter2"},
	}

	var bodies []string
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed := env.seal(t, tt.pass, `{"host":"ibmi.example"}`)
			tt.mutate(sealed)
			rec := env.do(t, "POST", "/api/v1/auth", "", sealed)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			bodies = append(bodies, rec.Body.String())
		})
	}

	require.NotEmpty(t, bodies)
	for _, b := range bodies {
		assert.JSONEq(t, `{"error_code":"authentication_failed","error_message":"Authentication failed"}`, b)
	}
	assert.Zero(t, env.pools.Count())
}

func TestAuth_MalformedPayloadIsOpaque(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "POST", "/api/v1/auth", "", env.seal(t, "secret", `{"host":42}`))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, CodeAuthenticationFailed, decode(t, rec)["error_code"])
}

func TestAuth_BadRequests(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name     string
		body     interface{}
		wantCode int
		wantErr  string
	}{
		{"not json", "keyId=abc", http.StatusBadRequest, CodeInvalidRequest},
		{"unknown field", `{"keyId":"x","extra":1}`, http.StatusBadRequest, CodeInvalidRequest},
		{"duration out of range", env.seal(t, "secret", `{"host":"ibmi.example","duration":5}`), http.StatusBadRequest, CodeInvalidRequest},
		{"poolmax out of range", env.seal(t, "secret", `{"host":"ibmi.example","poolmax":1000}`), http.StatusBadRequest, CodeInvalidRequest},
		{"blocked host", env.seal(t, "secret", `{"host":"blocked.example"}`), http.StatusForbidden, CodeHostNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, "POST", "/api/v1/auth", "", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantErr, decode(t, rec)["error_code"])
		})
	}
}

func TestAuth_RateLimited(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.AuthLimiter = ratelimit.NewMemoryLimiter(2, time.Minute) })

	for i := 0; i < 2; i++ {
		rec := env.do(t, "POST", "/api/v1/auth", "", env.seal(t, "wrong", `{"host":"ibmi.example"}`))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := env.do(t, "POST", "/api/v1/auth", "", env.seal(t, "secret", `{"host":"ibmi.example"}`))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, CodeRateLimited, decode(t, rec)["error_code"])
	assert.Zero(t, env.pools.Count())

	// Other routes are not limited.
	assert.Equal(t, http.StatusOK, env.do(t, "GET", "/api/v1/auth/keys", "", nil).Code)
}

func TestBearerRequired(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/api/v1/sql/validate", "/api/v1/sql/execute"} {
		rec := env.do(t, "POST", path, "", StatementRequest{Statement: "SELECT 1 FROM SYSIBM.SYSDUMMY1"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")

		rec = env.do(t, "POST", path, "not.a.jwt", StatementRequest{Statement: "SELECT 1 FROM SYSIBM.SYSDUMMY1"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Equal(t, CodeInvalidToken, decode(t, rec)["error_code"])
	}
}

func TestValidateEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	tests := []struct {
		name       string
		statement  string
		wantValid  bool
		wantMethod string
	}{
		{"read only", "SELECT id, name FROM employees WHERE dept = 'eng'", true, "both"},
		{"blocked keyword", "DROP TABLE foo", false, "ast"},
		{"dynamic sql assembly", "SELECT CONCAT('DR','OP TABLE foo') FROM SYSIBM.SYSDUMMY1", false, "regex"},
		{"parse failure", "SELECT * FROM (", false, "ast"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, "POST", "/api/v1/sql/validate", token, StatementRequest{Statement: tt.statement})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			body := decode(t, rec)
			assert.Equal(t, tt.wantValid, body["isValid"])
			assert.Equal(t, tt.wantMethod, body["validationMethod"])
			violations, _ := body["violations"].([]interface{})
			if tt.wantValid {
				assert.Empty(t, violations)
			} else {
				assert.NotEmpty(t, violations)
			}
		})
	}

	rec := env.do(t, "POST", "/api/v1/sql/validate", token, StatementRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, env.pool.lastQuery(), "validate never executes")
}

func TestExecuteEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	rec := env.do(t, "POST", "/api/v1/sql/execute", token, StatementRequest{
		Statement: "  SELECT id, name FROM employees  \n",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ExecuteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.RowCount)
	assert.True(t, resp.Validation.IsValid)

	q := env.pool.lastQuery()
	require.NotNil(t, q)
	assert.Equal(t, "SELECT id, name FROM employees", q.Statement)
	assert.Equal(t, DefaultRowLimit, q.Limit)

	rec = env.do(t, "POST", "/api/v1/sql/execute", token, StatementRequest{
		Statement: "SELECT id FROM employees", Limit: MaxRowLimit * 10,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MaxRowLimit, env.pool.lastQuery().Limit)
}

func TestExecuteEndpoint_RejectsInvalidStatement(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	rec := env.do(t, "POST", "/api/v1/sql/execute", token, StatementRequest{
		Statement: "SELECT * FROM t; DELETE FROM t",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)

	var resp RejectedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, CodeStatementRejected, resp.ErrorCode)
	require.NotNil(t, resp.Validation)
	assert.False(t, resp.Validation.IsValid)
	assert.NotEmpty(t, resp.Validation.Violations)
	assert.Nil(t, env.pool.lastQuery())
}

func TestExecuteEndpoint_QueryError(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)
	env.pool.err = errors.New("SQL0204N EMPLOYEES not found")

	rec := env.do(t, "POST", "/api/v1/sql/execute", token, StatementRequest{Statement: "SELECT id FROM employees"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, CodeQueryFailed, body["error_code"])
	assert.Contains(t, body["error_message"], "SQL0204N")
}

func TestExecuteEndpoint_PoolGone(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)
	env.pools.CloseAll()

	rec := env.do(t, "POST", "/api/v1/sql/execute", token, StatementRequest{Statement: "SELECT id FROM employees"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, CodeSessionExpired, decode(t, rec)["error_code"])
}

func TestSessionEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	rec := env.do(t, "GET", "/api/v1/session", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ibmi.example", resp.Host)
	assert.Equal(t, "QUSER", resp.Username)
	assert.Equal(t, "ibmi.example", resp.Pool.Host)
	assert.NotEmpty(t, resp.Pool.Handle)
	assert.True(t, resp.Pool.ExpiresAt.After(resp.Pool.CreatedAt))
	require.NotNil(t, resp.Health)
	assert.True(t, resp.Health.Healthy)
}

func TestSessionEndpoint_PoolGone(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)
	env.pools.CloseAll()

	rec := env.do(t, "GET", "/api/v1/session", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, CodeSessionExpired, decode(t, rec)["error_code"])
}

func TestRevoke(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	rec := env.do(t, "DELETE", "/api/v1/auth", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, env.pool.closed)

	rec = env.do(t, "POST", "/api/v1/sql/validate", token, StatementRequest{Statement: "SELECT 1 FROM SYSIBM.SYSDUMMY1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, "DELETE", "/api/v1/auth", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCatalogEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)

	rec := env.do(t, "GET", "/api/v1/catalog", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary catalog.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, catalog.Default().Version(), summary.Version)
	assert.Contains(t, summary.AllowedStatements, "SELECT")
	assert.Positive(t, summary.BlockedPatterns)
}

func TestPrometheusEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)
	env.do(t, "POST", "/api/v1/sql/validate", token, StatementRequest{Statement: "DROP TABLE foo"})

	rec := env.do(t, "GET", "/prometheus", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	text := rec.Body.String()
	for _, name := range []string{
		"ibmi_gateway_auth_attempts_total",
		"ibmi_gateway_tokens_issued_total",
		"ibmi_gateway_validations_total",
		"ibmi_gateway_violations_total",
		"ibmi_gateway_request_duration_milliseconds",
		"ibmi_gateway_pools_unhealthy",
	} {
		assert.True(t, strings.Contains(text, name), "missing %s", name)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		reqHeaders string
		wantOrigin string
	}{
		{"lowercase header allowed", "authorization", "*"},
		{"lowercase list allowed", "authorization,content-type", "*"},
		{"mixed case header refused", "Authorization", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("OPTIONS", "/api/v1/sql/validate", nil)
			req.Header.Set("Origin", "https://console.example")
			req.Header.Set("Access-Control-Request-Method", "POST")
			req.Header.Set("Access-Control-Request-Headers", tt.reqHeaders)
			rec := httptest.NewRecorder()
			env.server.Handler().ServeHTTP(rec, req)

			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}
