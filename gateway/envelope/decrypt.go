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
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// KeyLookup resolves a key id to private key material.
type KeyLookup interface {
	Lookup(id string) (*rsa.PrivateKey, bool)
}

// Decrypter opens authentication envelopes. It holds no per-call state and
// is safe for concurrent use.
type Decrypter struct {
	keys KeyLookup

	newAEAD func(key []byte) (cipher.AEAD, error)
}

// NewDecrypter returns a Decrypter resolving key ids through keys.
func NewDecrypter(keys KeyLookup) *Decrypter {
	return &Decrypter{keys: keys, newAEAD: newGCM}
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithTagSize(block, TagSize)
}

// Decrypt recovers the credentials and request sealed in env.
//
// The key id is resolved before anything is decoded, so an unknown key never
// reaches the symmetric cipher. The GCM tag is verified inside Open; on
// failure no plaintext is returned.
func (d *Decrypter) Decrypt(env *Envelope) (*Payload, error) {
	if env == nil || env.KeyID == "" {
		return nil, newError(KindUnknownKey, "key id is empty")
	}
	priv, ok := d.keys.Lookup(env.KeyID)
	if !ok {
		return nil, newError(KindUnknownKey, fmt.Sprintf("no key registered under %q", env.KeyID))
	}

	wrapped, err := base64.StdEncoding.DecodeString(env.EncryptedSessionKey)
	if err != nil {
		return nil, newError(KindKeyUnwrap, "encryptedSessionKey is not valid base64")
	}
	sessionKey, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, wrapped, nil)
	if err != nil {
		return nil, &Error{Kind: KindKeyUnwrap, Err: err}
	}
	defer clear(sessionKey)
	if len(sessionKey) != SessionKeySize {
		return nil, newError(KindKeyUnwrap, fmt.Sprintf("session key is %d bytes, want %d", len(sessionKey), SessionKeySize))
	}

	iv, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil || len(iv) != IVSize {
		return nil, newError(KindIntegrity, "iv must be 12 bytes of base64")
	}
	tag, err := base64.StdEncoding.DecodeString(env.AuthTag)
	if err != nil || len(tag) != TagSize {
		return nil, newError(KindIntegrity, "authTag must be 16 bytes of base64")
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, newError(KindIntegrity, "ciphertext is not valid base64")
	}

	aead, err := d.newAEAD(sessionKey)
	if err != nil {
		return nil, &Error{Kind: KindKeyUnwrap, Err: err}
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	plaintext, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, newError(KindIntegrity, "authentication tag mismatch")
	}
	defer clear(plaintext)

	return parsePayload(plaintext)
}

func parsePayload(plaintext []byte) (*Payload, error) {
	var p Payload
	dec := json.NewDecoder(bytes.NewReader(plaintext))
	if err := dec.Decode(&p); err != nil {
		return nil, newError(KindMalformedPayload, "plaintext is not a JSON payload")
	}
	if dec.More() {
		return nil, newError(KindMalformedPayload, "trailing data after payload")
	}
	if p.Credentials.Username == "" || p.Credentials.Password == "" {
		return nil, newError(KindMalformedPayload, "credentials need username and password")
	}
	if len(p.Request) == 0 || bytes.Equal(bytes.TrimSpace(p.Request), []byte("null")) {
		return nil, newError(KindMalformedPayload, "request is missing")
	}
	return &p, nil
}
