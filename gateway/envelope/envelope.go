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
	"encoding/json"
)

// Envelope is the wire form of a hybrid-encrypted authentication payload.
// Every binary field is standard, padded base64.
type Envelope struct {
	KeyID               string `json:"keyId"`
	EncryptedSessionKey string `json:"encryptedSessionKey"`
	IV                  string `json:"iv"`
	AuthTag             string `json:"authTag"`
	Ciphertext          string `json:"ciphertext"`
}

// Credentials are the host user profile and password. They are held in memory
// only for one decrypt-then-authenticate operation.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// String keeps passwords out of %v and %+v output.
func (c Credentials) String() string {
	return "{username:" + c.Username + " password:[REDACTED]}"
}

// Payload is the recovered plaintext: the caller's original request and the
// credentials needed to satisfy it. Request is left opaque here.
type Payload struct {
	Credentials Credentials     `json:"credentials"`
	Request     json.RawMessage `json:"request"`
}

const (
	// SessionKeySize is the AES-256 key length carried in encryptedSessionKey
	SessionKeySize = 32
	// IVSize is the GCM nonce length
	IVSize = 12
	// TagSize is the GCM authentication tag length
	TagSize = 16
	// MinRSABits is the smallest accepted RSA modulus
	MinRSABits = 2048
)
