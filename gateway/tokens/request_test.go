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
	"testing"
	"time"
)

func TestAuthRequest_Resolve(t *testing.T) {
	limits := DefaultLimits()

	tests := []struct {
		name      string
		req       AuthRequest
		want      ResolvedRequest
		wantField string
	}{
		{
			name: "defaults",
			req:  AuthRequest{Host: "lpar1"},
			want: ResolvedRequest{Host: "lpar1", Duration: time.Hour, PoolStart: 2, PoolMax: 10},
		},
		{
			name: "explicit values",
			req:  AuthRequest{Host: " lpar1 ", Duration: intp(600), PoolStart: intp(5), PoolMax: intp(50)},
			want: ResolvedRequest{Host: "lpar1", Duration: 10 * time.Minute, PoolStart: 5, PoolMax: 50},
		},
		{
			name: "bounds inclusive",
			req:  AuthRequest{Host: "h", Duration: intp(86400), PoolStart: intp(100), PoolMax: intp(100)},
			want: ResolvedRequest{Host: "h", Duration: 24 * time.Hour, PoolStart: 100, PoolMax: 100},
		},
		{
			name: "poolmax below default poolstart clamps poolstart",
			req:  AuthRequest{Host: "h", PoolMax: intp(1)},
			want: ResolvedRequest{Host: "h", Duration: time.Hour, PoolStart: 1, PoolMax: 1},
		},
		{name: "missing host", req: AuthRequest{}, wantField: "host"},
		{name: "duration too short", req: AuthRequest{Host: "h", Duration: intp(59)}, wantField: "duration"},
		{name: "duration too long", req: AuthRequest{Host: "h", Duration: intp(86401)}, wantField: "duration"},
		{name: "poolmax zero", req: AuthRequest{Host: "h", PoolMax: intp(0)}, wantField: "poolmax"},
		{name: "poolmax too large", req: AuthRequest{Host: "h", PoolMax: intp(101)}, wantField: "poolmax"},
		{name: "poolstart above poolmax", req: AuthRequest{Host: "h", PoolStart: intp(11), PoolMax: intp(10)}, wantField: "poolstart"},
		{name: "poolstart zero", req: AuthRequest{Host: "h", PoolStart: intp(0)}, wantField: "poolstart"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.req.Resolve(limits)
			if tt.wantField != "" {
				invalid, ok := err.(*InvalidRequestError)
				if !ok {
					t.Fatalf("Resolve() error = %v, want *InvalidRequestError", err)
				}
				if invalid.Field != tt.wantField {
					t.Errorf("Field = %q, want %q", invalid.Field, tt.wantField)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
