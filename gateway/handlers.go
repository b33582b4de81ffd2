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
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/IBM/ibmi-mcp-sub001/connectors/base"
	"github.com/IBM/ibmi-mcp-sub001/connectors/registry"
	"github.com/IBM/ibmi-mcp-sub001/gateway/envelope"
	"github.com/IBM/ibmi-mcp-sub001/gateway/tokens"
	"github.com/IBM/ibmi-mcp-sub001/gateway/validator"
)

// StatementRequest is the body of /sql/validate and /sql/execute.
type StatementRequest struct {
	Statement  string                 `json:"statement"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	Limit      int                    `json:"limit,omitempty"`
}

// ExecuteResponse is returned by /sql/execute.
type ExecuteResponse struct {
	Rows       []map[string]interface{} `json:"rows"`
	RowCount   int                      `json:"row_count"`
	Truncated  bool                     `json:"truncated"`
	DurationMS int64                    `json:"duration_ms"`
	Validation *validator.Result        `json:"validation"`
}

// RejectedResponse is returned with 403 when a statement fails validation.
type RejectedResponse struct {
	ErrorResponse
	Validation *validator.Result `json:"validation"`
}

// SessionResponse is returned by GET /api/v1/session.
type SessionResponse struct {
	Host      string             `json:"host"`
	Username  string             `json:"username"`
	ExpiresAt time.Time          `json:"expires_at"`
	Pool      registry.PoolInfo  `json:"pool"`
	Health    *base.HealthStatus `json:"health"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "starting"
	if s.ready.Load() {
		status = "healthy"
	}

	ctx, cancel := context.WithTimeout(r.Context(), poolHealthTimeout)
	defer cancel()
	unhealthy := 0
	for handle, h := range s.pools.HealthCheck(ctx) {
		if !h.Healthy {
			unhealthy++
			s.logger.Debug("", requestIDFrom(r.Context()), "Pool unhealthy", map[string]interface{}{
				"handle": handle,
				"error":  base.SanitizeLogString(h.Error),
			})
		}
	}
	promPoolsUnhealthy.Set(float64(unhealthy))
	writeJSON(w, s.logger, http.StatusOK, map[string]interface{}{
		"status":          status,
		"service":         ServiceName,
		"version":         Version,
		"timestamp":       time.Now().UTC(),
		"catalog_version": s.catalogs.Load().Version(),
		"active_key":      s.keys.Load().ActiveID(),
		"pools":           s.pools.Count(),
		"pools_unhealthy": unhealthy,
	})
}

func (s *Server) publicKeysHandler(w http.ResponseWriter, r *http.Request) {
	keys, err := s.keys.Load().PublicKeys()
	if err != nil {
		s.logger.Error("", requestIDFrom(r.Context()), "Failed to encode public keys", map[string]interface{}{"error": err.Error()})
		writeError(w, s.logger, http.StatusInternalServerError, CodeInternal, "Public keys unavailable")
		return
	}
	writeJSON(w, s.logger, http.StatusOK, map[string]interface{}{"keys": keys})
}

// authHandler decrypts an envelope, authenticates against the requested
// host and returns a bearer token. Every decrypt failure and every host
// authentication failure produce the same 401 body.
func (s *Server) authHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestIDFrom(ctx)

	if s.limiter != nil {
		// Limiter errors fail open; the limiter logs them.
		if ok, _ := s.limiter.Allow(ctx, clientAddr(r)); !ok {
			promAuthAttempts.WithLabelValues("rate_limited").Inc()
			w.Header().Set("Retry-After", "60")
			writeError(w, s.logger, http.StatusTooManyRequests, CodeRateLimited, "Too many authentication attempts")
			return
		}
	}

	var env envelope.Envelope
	if err := decodeBody(w, r, maxAuthBodyBytes, &env); err != nil {
		promAuthAttempts.WithLabelValues("invalid_request").Inc()
		writeError(w, s.logger, http.StatusBadRequest, CodeInvalidRequest, "Request body must be an encrypted envelope")
		return
	}

	payload, err := s.decrypter.Decrypt(&env)
	if err == nil {
		var req tokens.AuthRequest
		if uerr := json.Unmarshal(payload.Request, &req); uerr != nil {
			err = &envelope.Error{Kind: envelope.KindMalformedPayload, Err: uerr}
		} else {
			s.issue(w, r, req, payload.Credentials)
			return
		}
	}

	kind := envelope.KindOf(err)
	promDecryptFailures.WithLabelValues(string(kind)).Inc()
	promAuthAttempts.WithLabelValues("authentication_failed").Inc()
	s.logger.Warn("", requestID, "Envelope rejected", map[string]interface{}{
		"kind":   string(kind),
		"key_id": base.SanitizeLogString(env.KeyID),
	})
	writeError(w, s.logger, http.StatusUnauthorized, CodeAuthenticationFailed, authFailedMessage)
}

func (s *Server) issue(w http.ResponseWriter, r *http.Request, req tokens.AuthRequest, creds envelope.Credentials) {
	resp, err := s.issuer.IssueToken(r.Context(), req, base.Credentials{
		Username: creds.Username,
		Password: creds.Password,
	})
	if err != nil {
		var invalid *tokens.InvalidRequestError
		switch {
		case errors.As(err, &invalid):
			promAuthAttempts.WithLabelValues("invalid_request").Inc()
			writeError(w, s.logger, http.StatusBadRequest, CodeInvalidRequest, invalid.Error())
		case errors.Is(err, tokens.ErrHostNotAllowed):
			promAuthAttempts.WithLabelValues("host_not_allowed").Inc()
			writeError(w, s.logger, http.StatusForbidden, CodeHostNotAllowed, "Host is not permitted by gateway policy")
		case errors.Is(err, tokens.ErrAuthenticationFailed):
			promAuthAttempts.WithLabelValues("authentication_failed").Inc()
			writeError(w, s.logger, http.StatusUnauthorized, CodeAuthenticationFailed, authFailedMessage)
		default:
			promAuthAttempts.WithLabelValues("error").Inc()
			s.logger.ErrorWithCode("", requestIDFrom(r.Context()), "Token issuance failed", http.StatusInternalServerError, err, nil)
			writeError(w, s.logger, http.StatusInternalServerError, CodeInternal, "Token issuance failed")
		}
		return
	}

	promAuthAttempts.WithLabelValues("success").Inc()
	promTokensIssued.Inc()
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, s.logger, http.StatusOK, resp)
}

func (s *Server) revokeHandler(w http.ResponseWriter, r *http.Request) {
	token, _ := bearerToken(r)
	if err := s.issuer.Revoke(r.Context(), token); err != nil {
		if errors.Is(err, tokens.ErrInvalidToken) {
			writeError(w, s.logger, http.StatusUnauthorized, CodeInvalidToken, "Invalid or expired token")
			return
		}
		s.logger.ErrorWithCode("", requestIDFrom(r.Context()), "Token revocation failed", http.StatusInternalServerError, err, nil)
		writeError(w, s.logger, http.StatusInternalServerError, CodeInternal, "Token revocation failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// screen validates the request statement, counting the verdict. It writes
// the error response itself and returns nil when the request is unusable.
func (s *Server) screen(w http.ResponseWriter, r *http.Request) (*StatementRequest, *validator.Result) {
	var req StatementRequest
	if err := decodeBody(w, r, s.maxSQLBody, &req); err != nil {
		writeError(w, s.logger, http.StatusBadRequest, CodeInvalidRequest, "Request body must be a JSON object with a statement")
		return nil, nil
	}
	if req.Statement == "" {
		writeError(w, s.logger, http.StatusBadRequest, CodeInvalidRequest, "statement is required")
		return nil, nil
	}

	session := sessionFrom(r.Context())
	ctx := validator.WithAuditInfo(r.Context(), session.Username+"@"+session.Host, requestIDFrom(r.Context()))
	res := s.validator.Validate(ctx, req.Statement)
	recordVerdict(res)
	return &req, res
}

func (s *Server) validateHandler(w http.ResponseWriter, r *http.Request) {
	_, res := s.screen(w, r)
	if res == nil {
		return
	}
	writeJSON(w, s.logger, http.StatusOK, res)
}

// executeHandler validates the statement and, only when it is valid, runs
// the normalized text on the caller's pool.
func (s *Server) executeHandler(w http.ResponseWriter, r *http.Request) {
	req, res := s.screen(w, r)
	if res == nil {
		return
	}
	if !res.IsValid {
		writeJSON(w, s.logger, http.StatusForbidden, RejectedResponse{
			ErrorResponse: ErrorResponse{ErrorCode: CodeStatementRejected, ErrorMessage: "Statement failed security validation"},
			Validation:    res,
		})
		return
	}

	limit := req.Limit
	switch {
	case limit <= 0:
		limit = DefaultRowLimit
	case limit > MaxRowLimit:
		limit = MaxRowLimit
	}

	ctx := r.Context()
	session := sessionFrom(ctx)
	pool, err := s.pools.Get(session.PoolHandle)
	if err != nil {
		if errors.Is(err, registry.ErrPoolNotFound) || errors.Is(err, registry.ErrPoolExpired) {
			writeError(w, s.logger, http.StatusUnauthorized, CodeSessionExpired, "Connection pool is no longer available; authenticate again")
			return
		}
		writeError(w, s.logger, http.StatusInternalServerError, CodeInternal, "Connection pool lookup failed")
		return
	}

	result, err := pool.Query(ctx, &base.Query{
		Statement:  res.Statement,
		Parameters: req.Parameters,
		Timeout:    s.queryTimeout,
		Limit:      limit,
	})
	if err != nil {
		s.logger.Warn(session.Username, requestIDFrom(ctx), "Query failed", map[string]interface{}{
			"host":  base.SanitizeLogString(session.Host),
			"error": err.Error(),
		})
		writeError(w, s.logger, http.StatusBadGateway, CodeQueryFailed, base.SanitizeLogString(err.Error()))
		return
	}

	writeJSON(w, s.logger, http.StatusOK, ExecuteResponse{
		Rows:       result.Rows,
		RowCount:   result.RowCount,
		Truncated:  result.Truncated,
		DurationMS: result.Duration.Milliseconds(),
		Validation: res,
	})
}

// sessionHandler describes the caller's session and pings its pool.
func (s *Server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	info, err := s.pools.Info(session.PoolHandle)
	if err != nil {
		writeError(w, s.logger, http.StatusUnauthorized, CodeSessionExpired, "Connection pool is no longer available; authenticate again")
		return
	}
	pool, err := s.pools.Get(session.PoolHandle)
	if err != nil {
		writeError(w, s.logger, http.StatusUnauthorized, CodeSessionExpired, "Connection pool is no longer available; authenticate again")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), poolHealthTimeout)
	defer cancel()
	health, err := pool.HealthCheck(ctx)
	if err != nil {
		health = &base.HealthStatus{Healthy: false, Error: base.SanitizeLogString(err.Error()), Timestamp: time.Now()}
	}

	writeJSON(w, s.logger, http.StatusOK, SessionResponse{
		Host:      session.Host,
		Username:  session.Username,
		ExpiresAt: session.ExpiresAt,
		Pool:      info,
		Health:    health,
	})
}

func (s *Server) catalogHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, s.catalogs.Load().Summary())
}
