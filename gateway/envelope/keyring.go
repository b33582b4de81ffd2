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
	"crypto/rsa"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
)

// Key is one RSA keypair registered under an id.
type Key struct {
	ID      string
	Private *rsa.PrivateKey
	// Retired keys still decrypt but are no longer advertised to clients.
	Retired bool
}

// PublicKeyInfo is what clients fetch to build envelopes.
type PublicKeyInfo struct {
	KeyID     string `json:"keyId"`
	Algorithm string `json:"algorithm"`
	PublicKey string `json:"publicKey"` // PEM, PKIX
	Active    bool   `json:"active"`
}

// Algorithm names the scheme clients must use with an advertised key.
const Algorithm = "RSA-OAEP-256+A256GCM"

// Keyring is an immutable id → key mapping. Build a new one to rotate keys.
type Keyring struct {
	keys   map[string]Key
	active string
}

// NewKeyring validates keys and returns a keyring. active names the key new
// clients should use and must not be retired.
func NewKeyring(active string, keys ...Key) (*Keyring, error) {
	if len(keys) == 0 {
		return nil, errors.New("keyring needs at least one key")
	}

	m := make(map[string]Key, len(keys))
	for _, k := range keys {
		if k.ID == "" {
			return nil, errors.New("key id cannot be empty")
		}
		if k.Private == nil {
			return nil, fmt.Errorf("key %q has no private key", k.ID)
		}
		if bits := k.Private.N.BitLen(); bits < MinRSABits {
			return nil, fmt.Errorf("key %q is %d bits, need at least %d", k.ID, bits, MinRSABits)
		}
		if _, dup := m[k.ID]; dup {
			return nil, fmt.Errorf("duplicate key id %q", k.ID)
		}
		m[k.ID] = k
	}

	if active == "" {
		return nil, errors.New("active key id cannot be empty")
	}
	ak, ok := m[active]
	if !ok {
		return nil, fmt.Errorf("active key %q is not in the keyring", active)
	}
	if ak.Retired {
		return nil, fmt.Errorf("active key %q is retired", active)
	}

	return &Keyring{keys: m, active: active}, nil
}

// Lookup returns the private key registered under id.
func (k *Keyring) Lookup(id string) (*rsa.PrivateKey, bool) {
	key, ok := k.keys[id]
	if !ok {
		return nil, false
	}
	return key.Private, true
}

// ActiveID returns the id clients should encrypt to.
func (k *Keyring) ActiveID() string {
	return k.active
}

// IDs returns every registered id, sorted.
func (k *Keyring) IDs() []string {
	ids := make([]string, 0, len(k.keys))
	for id := range k.keys {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// PublicKeys lists the non-retired public keys, active key first.
func (k *Keyring) PublicKeys() ([]PublicKeyInfo, error) {
	out := make([]PublicKeyInfo, 0, len(k.keys))
	for _, id := range k.IDs() {
		key := k.keys[id]
		if key.Retired {
			continue
		}
		pemText, err := MarshalPublicKeyPEM(&key.Private.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("encode public key %q: %w", id, err)
		}
		info := PublicKeyInfo{KeyID: id, Algorithm: Algorithm, PublicKey: string(pemText), Active: id == k.active}
		if info.Active {
			out = append([]PublicKeyInfo{info}, out...)
		} else {
			out = append(out, info)
		}
	}
	return out, nil
}

// KeyringStore publishes a Keyring to concurrent readers. A swap replaces the
// whole keyring; readers see either the old or the new one.
type KeyringStore struct {
	current atomic.Pointer[Keyring]
}

// NewKeyringStore returns a store holding kr.
func NewKeyringStore(kr *Keyring) *KeyringStore {
	s := &KeyringStore{}
	s.current.Store(kr)
	return s
}

// Load returns the current keyring.
func (s *KeyringStore) Load() *Keyring {
	return s.current.Load()
}

// Swap installs kr and returns the previous keyring.
func (s *KeyringStore) Swap(kr *Keyring) *Keyring {
	return s.current.Swap(kr)
}

// Lookup resolves id against the current keyring.
func (s *KeyringStore) Lookup(id string) (*rsa.PrivateKey, bool) {
	kr := s.current.Load()
	if kr == nil {
		return nil, false
	}
	return kr.Lookup(id)
}
