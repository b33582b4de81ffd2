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

package envelope

import (
	"errors"
)

// Kind classifies a decrypt failure for internal diagnostics. Callers must
// collapse every kind into one opaque authentication failure before replying.
type Kind string

const (
	KindUnknownKey       Kind = "unknown_key"
	KindKeyUnwrap        Kind = "key_unwrap"
	KindIntegrity        Kind = "integrity"
	KindMalformedPayload Kind = "malformed_payload"
)

// Error is returned by Decrypt. Match kinds with errors.Is against the
// sentinels below.
type Error struct {
	Kind Kind
	Err  error
}

var (
	ErrUnknownKey       = &Error{Kind: KindUnknownKey}
	ErrKeyUnwrap        = &Error{Kind: KindKeyUnwrap}
	ErrIntegrity        = &Error{Kind: KindIntegrity}
	ErrMalformedPayload = &Error{Kind: KindMalformedPayload}
)

func (e *Error) Error() string {
	if e.Err != nil {
		return "envelope " + string(e.Kind) + ": " + e.Err.Error()
	}
	return "envelope " + string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind when target is a bare sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Err == nil && t.Kind == e.Kind
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Err: errors.New(msg)}
}

// KindOf reports the failure kind of err, or "" when err is not an envelope error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
