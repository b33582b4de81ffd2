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
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/IBM/ibmi-mcp-sub001/connectors/registry"
	"github.com/IBM/ibmi-mcp-sub001/gateway/catalog"
	"github.com/IBM/ibmi-mcp-sub001/gateway/envelope"
	"github.com/IBM/ibmi-mcp-sub001/gateway/ratelimit"
	"github.com/IBM/ibmi-mcp-sub001/gateway/tokens"
	"github.com/IBM/ibmi-mcp-sub001/gateway/validator"
	"github.com/IBM/ibmi-mcp-sub001/shared/logger"
)

const (
	// ServiceName is reported by /health.
	ServiceName = "ibmi-gateway"
	// Version is reported by /health.
	Version = "1.0.0"

	// DefaultRowLimit applies when an execute request sets no limit.
	DefaultRowLimit = 1000
	// MaxRowLimit caps the limit an execute request may ask for.
	MaxRowLimit = 10000

	maxAuthBodyBytes  = 64 << 10
	poolHealthTimeout = 2 * time.Second
)

// Deps are the collaborators a Server routes requests to.
type Deps struct {
	Keys      *envelope.KeyringStore
	Issuer    *tokens.Issuer
	Validator *validator.Validator
	Pools     *registry.PoolRegistry
	Catalogs  *catalog.Store
	Logger    *logger.Logger

	// AuthLimiter caps authentication attempts per client address. Nil
	// disables the cap.
	AuthLimiter ratelimit.Limiter

	CORSAllowedOrigins []string
	QueryTimeout       time.Duration
}

// Server is the gateway's HTTP surface.
type Server struct {
	keys      *envelope.KeyringStore
	decrypter *envelope.Decrypter
	issuer    *tokens.Issuer
	validator *validator.Validator
	pools     *registry.PoolRegistry
	catalogs  *catalog.Store
	logger    *logger.Logger
	limiter   ratelimit.Limiter

	queryTimeout time.Duration
	maxSQLBody   int64

	router  *mux.Router
	handler http.Handler
	ready   atomic.Bool
}

// NewServer wires the routes. The server reports "starting" on /health
// until SetReady(true).
func NewServer(d Deps) (*Server, error) {
	if d.Keys == nil || d.Issuer == nil || d.Validator == nil || d.Pools == nil || d.Catalogs == nil {
		return nil, errors.New("server needs a keyring, an issuer, a validator, a pool registry and a catalog store")
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}

	s := &Server{
		keys:         d.Keys,
		decrypter:    envelope.NewDecrypter(d.Keys),
		issuer:       d.Issuer,
		validator:    d.Validator,
		pools:        d.Pools,
		catalogs:     d.Catalogs,
		logger:       d.Logger,
		limiter:      d.AuthLimiter,
		queryTimeout: d.QueryTimeout,
		maxSQLBody:   validator.DefaultMaxLength + 64<<10,
		router:       mux.NewRouter(),
	}

	s.router.Use(s.requestMiddleware)
	s.router.HandleFunc("/health", s.healthHandler).Methods("GET")
	s.router.Handle("/prometheus", promhttp.Handler()).Methods("GET")

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/auth/keys", s.publicKeysHandler).Methods("GET")
	api.HandleFunc("/auth", s.authHandler).Methods("POST")

	api.Handle("/auth", s.bearer(s.revokeHandler)).Methods("DELETE")
	api.Handle("/sql/validate", s.bearer(s.validateHandler)).Methods("POST")
	api.Handle("/sql/execute", s.bearer(s.executeHandler)).Methods("POST")
	api.Handle("/catalog", s.bearer(s.catalogHandler)).Methods("GET")
	api.Handle("/session", s.bearer(s.sessionHandler)).Methods("GET")

	origins := d.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
	})
	s.handler = c.Handler(s.router)
	return s, nil
}

// Handler returns the CORS-wrapped router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// SetReady flips /health between "starting" and "healthy".
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

type ctxKey int

const (
	requestIDKey ctxKey = iota
	sessionKey
)

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func sessionFrom(ctx context.Context) *tokens.Session {
	s, _ := ctx.Value(sessionKey).(*tokens.Session)
	return s
}

// requestMiddleware assigns a request id and records the route duration.
func (s *Server) requestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey, requestID))

		next.ServeHTTP(w, r)

		route := "unmatched"
		if cr := mux.CurrentRoute(r); cr != nil {
			if tpl, err := cr.GetPathTemplate(); err == nil {
				route = r.Method + " " + tpl
			}
		}
		promRequestDuration.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
	})
}

// bearer requires a valid, unrevoked bearer token before calling next.
func (s *Server) bearer(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="`+ServiceName+`"`)
			writeError(w, s.logger, http.StatusUnauthorized, CodeInvalidToken, "Bearer token required")
			return
		}
		session, err := s.issuer.Verify(r.Context(), token)
		if err != nil {
			if !errors.Is(err, tokens.ErrInvalidToken) {
				s.logger.Error("", requestIDFrom(r.Context()), "Session lookup failed", map[string]interface{}{"error": err.Error()})
			}
			w.Header().Set("WWW-Authenticate", `Bearer realm="`+ServiceName+`", error="invalid_token"`)
			writeError(w, s.logger, http.StatusUnauthorized, CodeInvalidToken, "Invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, session)))
	})
}

// clientAddr is the peer address without its port.
func clientAddr(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
