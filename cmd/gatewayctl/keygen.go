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

package main

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/IBM/ibmi-mcp-sub001/gateway/envelope"
)

// keygenCmd returns the command that writes a new envelope key pair.
func keygenCmd() *cobra.Command {
	var id string
	var bits int
	var out string
	var force bool

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an envelope key pair",
		Long: `Generate an RSA key pair for credential envelopes.

Writes <id>.pem (PKCS#8 private key, mode 0600) and <id>.pub.pem into the
output directory. Point keys.dir at that directory and set keys.active to
the id to start using it.

Examples:
  gatewayctl keygen --id gateway-2025-01 --out ./keys
  gatewayctl keygen --id gateway-2025-07 --bits 4096 --out /etc/gateway/keys`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id is required")
			}
			if filepath.Base(id) != id {
				return fmt.Errorf("invalid key id: %s", id)
			}
			if bits < envelope.MinRSABits {
				return fmt.Errorf("--bits must be at least %d", envelope.MinRSABits)
			}

			privPath := filepath.Join(out, id+".pem")
			pubPath := filepath.Join(out, id+".pub.pem")
			if !force {
				for _, p := range []string{privPath, pubPath} {
					if _, err := os.Stat(p); err == nil {
						return fmt.Errorf("%s already exists (use --force to overwrite)", p)
					}
				}
			}

			key, err := rsa.GenerateKey(rand.Reader, bits)
			if err != nil {
				return fmt.Errorf("failed to generate key: %w", err)
			}
			privPEM, err := envelope.MarshalPrivateKeyPEM(key)
			if err != nil {
				return err
			}
			pubPEM, err := envelope.MarshalPublicKeyPEM(&key.PublicKey)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(out, 0o700); err != nil {
				return fmt.Errorf("failed to create %s: %w", out, err)
			}
			if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
				return fmt.Errorf("failed to write private key: %w", err)
			}
			if err := os.WriteFile(pubPath, pubPEM, 0o644); err != nil {
				return fmt.Errorf("failed to write public key: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bits)\n", privPath, bits)
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", pubPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Key id (required)")
	cmd.Flags().IntVar(&bits, "bits", 3072, "RSA modulus size")
	cmd.Flags().StringVar(&out, "out", ".", "Output directory")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")

	return cmd
}
