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
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKeyring_Validation(t *testing.T) {
	small, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)

	tests := []struct {
		name    string
		active  string
		keys    []Key
		wantErr string
	}{
		{name: "no keys", active: "k1", wantErr: "at least one key"},
		{name: "empty id", active: "k1", keys: []Key{{Private: testKey(t, 0)}}, wantErr: "id cannot be empty"},
		{name: "nil key", active: "k1", keys: []Key{{ID: "k1"}}, wantErr: "no private key"},
		{name: "short modulus", active: "k1", keys: []Key{{ID: "k1", Private: small}}, wantErr: "at least 2048"},
		{name: "duplicate id", active: "k1", keys: []Key{{ID: "k1", Private: testKey(t, 0)}, {ID: "k1", Private: testKey(t, 1)}}, wantErr: "duplicate"},
		{name: "missing active", active: "k9", keys: []Key{{ID: "k1", Private: testKey(t, 0)}}, wantErr: "not in the keyring"},
		{name: "retired active", active: "k1", keys: []Key{{ID: "k1", Private: testKey(t, 0), Retired: true}}, wantErr: "retired"},
		{name: "empty active", active: "", keys: []Key{{ID: "k1", Private: testKey(t, 0)}}, wantErr: "active key id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewKeyring(tt.active, tt.keys...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestKeyring_PublicKeys(t *testing.T) {
	kr, err := NewKeyring("2025-06",
		Key{ID: "2025-01", Private: testKey(t, 0), Retired: true},
		Key{ID: "2025-06", Private: testKey(t, 1)},
	)
	require.NoError(t, err)

	infos, err := kr.PublicKeys()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "2025-06", infos[0].KeyID)
	assert.True(t, infos[0].Active)
	assert.Equal(t, Algorithm, infos[0].Algorithm)

	pub, err := ParsePublicKeyPEM([]byte(infos[0].PublicKey))
	require.NoError(t, err)
	assert.True(t, pub.Equal(&testKey(t, 1).PublicKey))

	assert.Equal(t, []string{"2025-01", "2025-06"}, kr.IDs())
	_, ok := kr.Lookup("2025-01")
	assert.True(t, ok, "retired keys still resolve")
}

func TestKeyringStore_Rotation(t *testing.T) {
	oldKR, err := NewKeyring("old", Key{ID: "old", Private: testKey(t, 0)})
	require.NoError(t, err)
	store := NewKeyringStore(oldKR)
	d := NewDecrypter(store)

	fromOldClient, err := Seal(&testKey(t, 0).PublicKey, "old", Credentials{Username: "u", Password: "p"}, testRequest)
	require.NoError(t, err)

	// Rotate: new key active, old key retired but still accepted.
	rotated, err := NewKeyring("new",
		Key{ID: "old", Private: testKey(t, 0), Retired: true},
		Key{ID: "new", Private: testKey(t, 1)},
	)
	require.NoError(t, err)
	prev := store.Swap(rotated)
	assert.Same(t, oldKR, prev)
	assert.Equal(t, "new", store.Load().ActiveID())

	_, err = d.Decrypt(fromOldClient)
	assert.NoError(t, err)

	// Remove the old key entirely.
	final, err := NewKeyring("new", Key{ID: "new", Private: testKey(t, 1)})
	require.NoError(t, err)
	store.Swap(final)

	_, err = d.Decrypt(fromOldClient)
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestKeyringStore_Empty(t *testing.T) {
	store := &KeyringStore{}
	_, ok := store.Lookup("k1")
	assert.False(t, ok)
}

func TestPEM_RoundTrip(t *testing.T) {
	key := testKey(t, 0)

	pkcs8, err := MarshalPrivateKeyPEM(key)
	require.NoError(t, err)
	parsed, err := ParsePrivateKeyPEM(pkcs8)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(key))

	pkcs1 := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	parsed, err = ParsePrivateKeyPEM(pkcs1)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(key))

	pubPEM, err := MarshalPublicKeyPEM(&key.PublicKey)
	require.NoError(t, err)
	pub, err := ParsePublicKeyPEM(pubPEM)
	require.NoError(t, err)
	assert.True(t, pub.Equal(&key.PublicKey))

	pkcs1Pub := pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: x509.MarshalPKCS1PublicKey(&key.PublicKey)})
	pub, err = ParsePublicKeyPEM(pkcs1Pub)
	require.NoError(t, err)
	assert.True(t, pub.Equal(&key.PublicKey))
}

func TestPEM_Errors(t *testing.T) {
	_, err := ParsePrivateKeyPEM([]byte("not pem"))
	assert.Error(t, err)

	_, err = ParsePrivateKeyPEM(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte{1}}))
	assert.Error(t, err)

	_, err = ParsePublicKeyPEM(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: []byte{1, 2, 3}}))
	assert.Error(t, err)
}

func TestLoadPrivateKeyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "k1.pem")
	data, err := MarshalPrivateKeyPEM(testKey(t, 0))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	key, err := LoadPrivateKeyFile(path)
	require.NoError(t, err)
	assert.True(t, key.Equal(testKey(t, 0)))

	_, err = LoadPrivateKeyFile(filepath.Join(dir, "missing.pem"))
	assert.Error(t, err)
}
