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
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Seal builds an envelope for pub, the client-side inverse of Decrypt.
// request must be a JSON value.
func Seal(pub *rsa.PublicKey, keyID string, creds Credentials, request json.RawMessage) (*Envelope, error) {
	return SealWithRand(rand.Reader, pub, keyID, creds, request)
}

// SealWithRand is Seal with an explicit entropy source.
func SealWithRand(random io.Reader, pub *rsa.PublicKey, keyID string, creds Credentials, request json.RawMessage) (*Envelope, error) {
	if pub == nil {
		return nil, errors.New("public key is required")
	}
	if keyID == "" {
		return nil, errors.New("key id is required")
	}
	if !json.Valid(request) {
		return nil, errors.New("request must be valid JSON")
	}

	plaintext, err := json.Marshal(Payload{Credentials: creds, Request: request})
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	defer clear(plaintext)

	sessionKey := make([]byte, SessionKeySize)
	if _, err := io.ReadFull(random, sessionKey); err != nil {
		return nil, fmt.Errorf("generating session key: %w", err)
	}
	defer clear(sessionKey)

	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(random, iv); err != nil {
		return nil, fmt.Errorf("generating iv: %w", err)
	}

	block, err := aes.NewCipher(sessionKey)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithTagSize(block, TagSize)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	sealed := gcm.Seal(nil, iv, plaintext, nil)
	ciphertext, tag := sealed[:len(sealed)-TagSize], sealed[len(sealed)-TagSize:]

	wrapped, err := rsa.EncryptOAEP(sha256.New(), random, pub, sessionKey, nil)
	if err != nil {
		return nil, fmt.Errorf("wrapping session key: %w", err)
	}

	return &Envelope{
		KeyID:               keyID,
		EncryptedSessionKey: base64.StdEncoding.EncodeToString(wrapped),
		IV:                  base64.StdEncoding.EncodeToString(iv),
		AuthTag:             base64.StdEncoding.EncodeToString(tag),
		Ciphertext:          base64.StdEncoding.EncodeToString(ciphertext),
	}, nil
}
