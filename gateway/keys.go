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
	"crypto/rsa"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/IBM/ibmi-mcp-sub001/connectors/config"
	"github.com/IBM/ibmi-mcp-sub001/gateway/envelope"
)

// LoadKeyring builds the envelope keyring described by cfg. Entries are
// read from a file path (relative paths resolve against cfg.Dir) or from
// the secrets manager. With no entries, every "<id>.pem" in cfg.Dir is
// loaded, skipping "*.pub.pem".
func LoadKeyring(ctx context.Context, cfg config.KeysConfig, secrets config.SecretsManager) (*envelope.Keyring, error) {
	entries := cfg.Entries
	if len(entries) == 0 {
		var err error
		if entries, err = scanKeyDir(cfg.Dir); err != nil {
			return nil, err
		}
	}

	keys := make([]envelope.Key, 0, len(entries))
	for _, e := range entries {
		priv, err := loadPrivateKey(ctx, cfg.Dir, e, secrets)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", e.ID, err)
		}
		keys = append(keys, envelope.Key{ID: e.ID, Private: priv, Retired: e.Retired})
	}
	return envelope.NewKeyring(cfg.Active, keys...)
}

func loadPrivateKey(ctx context.Context, dir string, e config.KeyConfig, secrets config.SecretsManager) (*rsa.PrivateKey, error) {
	switch {
	case e.Path != "":
		path := e.Path
		if !filepath.IsAbs(path) && dir != "" {
			path = filepath.Join(dir, path)
		}
		return envelope.LoadPrivateKeyFile(path)
	case e.SecretRef != "":
		if secrets == nil {
			return nil, fmt.Errorf("secret_ref set but no secrets manager configured")
		}
		pemText, err := config.SecretField(ctx, secrets, e.SecretRef, e.SecretField)
		if err != nil {
			return nil, err
		}
		return envelope.ParsePrivateKeyPEM([]byte(pemText))
	default:
		return nil, fmt.Errorf("no path or secret_ref")
	}
}

func scanKeyDir(dir string) ([]config.KeyConfig, error) {
	if dir == "" {
		return nil, fmt.Errorf("no key entries and no key directory configured")
	}
	names, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read key directory %s: %w", dir, err)
	}

	var entries []config.KeyConfig
	for _, de := range names {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, ".pem") || strings.HasSuffix(name, ".pub.pem") {
			continue
		}
		entries = append(entries, config.KeyConfig{
			ID:   strings.TrimSuffix(name, ".pem"),
			Path: name,
		})
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no private keys found in %s", dir)
	}
	return entries, nil
}
