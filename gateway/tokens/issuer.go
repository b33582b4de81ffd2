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
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/IBM/ibmi-mcp-sub001/connectors/base"
	"github.com/IBM/ibmi-mcp-sub001/connectors/registry"
	"github.com/IBM/ibmi-mcp-sub001/shared/logger"
)

var (
	// ErrAuthenticationFailed means the target host rejected the credentials
	// or could not be reached. The cause is logged, never returned to callers.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrHostNotAllowed means the host failed the gateway's host policy
	ErrHostNotAllowed = errors.New("host not allowed")
	// ErrInvalidToken covers bad signatures, expiry, and revoked sessions
	ErrInvalidToken = errors.New("invalid token")
)

// MinSecretLength is the shortest accepted HS256 signing secret.
const MinSecretLength = 32

// Claims are carried in every bearer token.
type Claims struct {
	Pool string `json:"pool"`
	jwt.RegisteredClaims
}

// IssuerConfig configures token minting.
type IssuerConfig struct {
	Secret     []byte
	Issuer     string
	Limits     Limits
	HostPolicy base.HostPolicy
}

// Issuer authenticates callers against their target host and mints bearer
// tokens bound to the resulting pool.
type Issuer struct {
	cfg    IssuerConfig
	auth   base.PoolAuthenticator
	pools  *registry.PoolRegistry
	store  Store
	logger *logger.Logger
	now    func() time.Time
}

// NewIssuer validates cfg and wires the collaborators.
func NewIssuer(cfg IssuerConfig, auth base.PoolAuthenticator, pools *registry.PoolRegistry, store Store, log *logger.Logger) (*Issuer, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("token secret must be at least %d bytes", MinSecretLength)
	}
	if auth == nil || pools == nil || store == nil {
		return nil, errors.New("issuer needs an authenticator, a pool registry and a store")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "ibmi-gateway"
	}
	if cfg.Limits == (Limits{}) {
		cfg.Limits = DefaultLimits()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Issuer{cfg: cfg, auth: auth, pools: pools, store: store, logger: log, now: time.Now}, nil
}

// SetClock replaces the issuer's time source
func (i *Issuer) SetClock(now func() time.Time) {
	i.now = now
}

// Limits returns the request bounds in force.
func (i *Issuer) Limits() Limits {
	return i.cfg.Limits
}

// IssueToken authenticates creds against req.Host, registers the pool and
// returns a bearer token for it.
func (i *Issuer) IssueToken(ctx context.Context, req AuthRequest, creds base.Credentials) (*AuthResponse, error) {
	resolved, err := req.Resolve(i.cfg.Limits)
	if err != nil {
		return nil, err
	}
	if err := base.ValidateHost(resolved.Host, i.cfg.HostPolicy); err != nil {
		i.logger.Warn("", "", "Host rejected by policy", map[string]interface{}{"reason": err.Error()})
		return nil, fmt.Errorf("%w: %s", ErrHostNotAllowed, resolved.Host)
	}

	// JWT times have second precision; keep expires_at == iat + expires_in exactly.
	issuedAt := i.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(resolved.Duration)

	pool, err := i.auth.Authenticate(ctx, resolved.Host, creds, base.PoolParams{
		PoolStart: resolved.PoolStart,
		PoolMax:   resolved.PoolMax,
		Lifetime:  resolved.Duration,
	})
	if err != nil {
		i.logger.Warn("", "", "Host authentication failed", map[string]interface{}{
			"host":  base.SanitizeLogString(resolved.Host),
			"user":  base.SanitizeLogString(creds.Username),
			"error": err.Error(),
		})
		return nil, ErrAuthenticationFailed
	}
	handle := i.pools.Register(resolved.Host, pool, expiresAt)

	session := Session{
		ID:         uuid.NewString(),
		Host:       resolved.Host,
		Username:   creds.Username,
		PoolHandle: handle,
		IssuedAt:   issuedAt,
		ExpiresAt:  expiresAt,
	}
	token, err := i.sign(session)
	if err != nil {
		_ = i.pools.Release(handle)
		return nil, fmt.Errorf("sign token: %w", err)
	}
	if err := i.store.Save(ctx, session, resolved.Duration); err != nil {
		_ = i.pools.Release(handle)
		return nil, fmt.Errorf("save session: %w", err)
	}

	i.logger.Info("", session.ID, "Token issued", map[string]interface{}{
		"host":       base.SanitizeLogString(resolved.Host),
		"user":       base.SanitizeLogString(creds.Username),
		"expires_in": int(resolved.Duration.Seconds()),
		"pool_max":   resolved.PoolMax,
	})

	return &AuthResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(resolved.Duration.Seconds()),
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (i *Issuer) sign(s Session) (string, error) {
	claims := Claims{
		Pool: s.PoolHandle,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.cfg.Issuer,
			Subject:   s.Host,
			ID:        s.ID,
			IssuedAt:  jwt.NewNumericDate(s.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.cfg.Secret)
}

// Verify checks the token signature and expiry, then requires its session to
// still be in the store.
func (i *Issuer) Verify(ctx context.Context, tokenString string) (*Session, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return i.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	session, err := i.store.Get(ctx, claims.ID)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, fmt.Errorf("%w: session revoked or expired", ErrInvalidToken)
	}
	if err != nil {
		return nil, err
	}
	if session.PoolHandle != claims.Pool || !i.now().Before(session.ExpiresAt) {
		return nil, fmt.Errorf("%w: session mismatch", ErrInvalidToken)
	}
	return session, nil
}

// Revoke ends the session behind token and closes its pool.
func (i *Issuer) Revoke(ctx context.Context, tokenString string) error {
	session, err := i.Verify(ctx, tokenString)
	if err != nil {
		return err
	}
	if err := i.store.Delete(ctx, session.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if err := i.pools.Release(session.PoolHandle); err != nil && !errors.Is(err, registry.ErrPoolNotFound) {
		i.logger.Warn("", session.ID, "Pool release failed", map[string]interface{}{"error": err.Error()})
	}
	i.logger.Info("", session.ID, "Token revoked", nil)
	return nil
}
