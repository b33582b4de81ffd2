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

// Command gatewayctl is the operator CLI for the IBM i gateway: it
// generates envelope keys, seals test envelopes and validates statements
// offline against a catalog.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "1.0.0"

// errStatementInvalid makes validate exit 1 without printing usage.
var errStatementInvalid = errors.New("statement rejected")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errStatementInvalid) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "gatewayctl",
		Short:         "IBM i gateway CLI tool",
		Long:          `gatewayctl manages envelope keys and checks statements for the IBM i gateway.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(keygenCmd())
	rootCmd.AddCommand(sealCmd())
	rootCmd.AddCommand(validateCmd())

	return rootCmd
}
