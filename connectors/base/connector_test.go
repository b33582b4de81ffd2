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

package base

import (
	"errors"
	"fmt"
	"testing"
)

func TestConnectorError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *ConnectorError
		wantMsg string
	}{
		{
			name: "with cause",
			err: &ConnectorError{
				ConnectorName: "postgres",
				Operation:     "Authenticate",
				Message:       "ping failed",
				Cause:         errors.New("network timeout"),
			},
			wantMsg: "postgres.Authenticate: ping failed (cause: network timeout)",
		},
		{
			name: "without cause",
			err: &ConnectorError{
				ConnectorName: "mysql",
				Operation:     "Query",
				Message:       "read failed",
			},
			wantMsg: "mysql.Query: read failed",
		},
		{
			name:    "empty fields",
			err:     &ConnectorError{Message: "error"},
			wantMsg: ".: error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			if got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestConnectorError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewConnectorError("postgres", "Authenticate", "failed", cause)

	if err.Unwrap() != cause {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), cause)
	}
	if NewConnectorError("postgres", "Authenticate", "failed", nil).Unwrap() != nil {
		t.Error("Unwrap() should return nil when Cause is nil")
	}
}

func TestConnectorError_ErrorsAs(t *testing.T) {
	cause := errors.New("specific error")
	wrapped := fmt.Errorf("issue token: %w", NewConnectorError("postgres", "Query", "failed", cause))

	if !errors.Is(wrapped, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
	var connErr *ConnectorError
	if !errors.As(wrapped, &connErr) {
		t.Fatal("expected errors.As to find the ConnectorError")
	}
	if connErr.Operation != "Query" {
		t.Errorf("Operation = %q, want %q", connErr.Operation, "Query")
	}
}
