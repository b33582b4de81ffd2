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
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/IBM/ibmi-mcp-sub001/gateway/envelope"
	"github.com/IBM/ibmi-mcp-sub001/gateway/tokens"
)

// sealCmd returns the command that builds an authentication envelope.
func sealCmd() *cobra.Command {
	var publicKey string
	var keyID string
	var host string
	var user string
	var duration int
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "seal",
		Short: "Seal credentials into an authentication envelope",
		Long: `Encrypt a user profile and password for POST /api/v1/auth.

The password is read from the terminal without echo, or from the first line
of stdin with --password-stdin. The envelope JSON is printed to stdout.

Examples:
  gatewayctl seal --public-key keys/gateway-2025-01.pub.pem --key-id gateway-2025-01 \
      --host ibmi.example.com --user QUSER
  echo "$PASSWORD" | gatewayctl seal --public-key pub.pem --key-id k1 \
      --host ibmi.example.com --user QUSER --password-stdin | curl -d @- ...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case publicKey == "":
				return fmt.Errorf("--public-key is required")
			case keyID == "":
				return fmt.Errorf("--key-id is required")
			case host == "":
				return fmt.Errorf("--host is required")
			case user == "":
				return fmt.Errorf("--user is required")
			}

			pemData, err := os.ReadFile(publicKey)
			if err != nil {
				return fmt.Errorf("failed to read public key: %w", err)
			}
			pub, err := envelope.ParsePublicKeyPEM(pemData)
			if err != nil {
				return err
			}

			password, err := readPassword(cmd, passwordStdin)
			if err != nil {
				return err
			}

			req := tokens.AuthRequest{Host: host}
			if cmd.Flags().Changed("duration") {
				req.Duration = &duration
			}
			request, err := json.Marshal(req)
			if err != nil {
				return err
			}

			env, err := envelope.Seal(pub, keyID, envelope.Credentials{Username: user, Password: password}, request)
			if err != nil {
				return fmt.Errorf("failed to seal envelope: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(env)
		},
	}

	cmd.Flags().StringVar(&publicKey, "public-key", "", "PEM public key file (required)")
	cmd.Flags().StringVar(&keyID, "key-id", "", "Key id the public key is published under (required)")
	cmd.Flags().StringVar(&host, "host", "", "IBM i host to authenticate against (required)")
	cmd.Flags().StringVar(&user, "user", "", "User profile (required)")
	cmd.Flags().IntVar(&duration, "duration", 0, "Requested token lifetime in seconds")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")

	return cmd
}

func readPassword(cmd *cobra.Command, fromStdin bool) (string, error) {
	if fromStdin {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("reading password: %w", err)
		}
		password := strings.TrimRight(line, "\r\n")
		if password == "" {
			return "", fmt.Errorf("empty password on stdin")
		}
		return password, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal; use --password-stdin")
	}
	fmt.Fprint(os.Stderr, "Password: ")
	passBytes, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(passBytes), nil
}
