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
	"encoding/json"
	"errors"
	"net/http"

	"github.com/IBM/ibmi-mcp-sub001/shared/logger"
)

// Error codes returned in ErrorResponse.ErrorCode.
const (
	CodeInvalidRequest       = "invalid_request"
	CodeAuthenticationFailed = "authentication_failed"
	CodeHostNotAllowed       = "host_not_allowed"
	CodeInvalidToken         = "invalid_token"
	CodeStatementRejected    = "statement_rejected"
	CodeSessionExpired       = "session_expired"
	CodeQueryFailed          = "query_failed"
	CodeInternal             = "internal_error"
	CodeRateLimited          = "rate_limited"
)

// authFailedMessage is the only message a caller sees for any decrypt or
// host authentication failure.
const authFailedMessage = "Authentication failed"

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

func writeJSON(w http.ResponseWriter, log *logger.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error("", "", "Error encoding response", map[string]interface{}{"error": err.Error()})
	}
}

func writeError(w http.ResponseWriter, log *logger.Logger, status int, code, message string) {
	writeJSON(w, log, status, ErrorResponse{ErrorCode: code, ErrorMessage: message})
}

var errTrailingData = errors.New("unexpected data after JSON body")

// decodeBody decodes a JSON body of at most limit bytes, rejecting unknown
// fields and trailing data.
func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errTrailingData
	}
	return nil
}
