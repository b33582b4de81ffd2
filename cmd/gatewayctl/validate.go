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
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/IBM/ibmi-mcp-sub001/gateway/catalog"
	"github.com/IBM/ibmi-mcp-sub001/gateway/validator"
)

// validateCmd returns the command that checks a statement offline.
func validateCmd() *cobra.Command {
	var catalogPath string
	var policy string

	cmd := &cobra.Command{
		Use:   "validate <sql>",
		Short: "Check a statement against the catalog",
		Long: `Run the gateway's statement validator locally and print the verdict.

Uses the built-in catalog unless --catalog names a catalog file. Exits 1
when the statement is rejected.

Examples:
  gatewayctl validate "SELECT * FROM QSYS2.SYSTABLES FETCH FIRST 5 ROWS ONLY"
  gatewayctl validate --catalog catalog.yaml --policy block "SELECT CHAR(65) FROM SYSIBM.SYSDUMMY1"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := catalog.Default()
			if catalogPath != "" {
				data, err := os.ReadFile(catalogPath)
				if err != nil {
					return fmt.Errorf("failed to read catalog: %w", err)
				}
				if c, err = catalog.Parse(data); err != nil {
					return err
				}
			}
			if policy != "" {
				p, err := catalog.ParsePolicy(policy)
				if err != nil {
					return err
				}
				c = c.WithPolicy(p)
			}

			res := validator.New(catalog.NewStore(c)).Validate(context.Background(), strings.Join(args, " "))

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
			if !res.IsValid {
				return errStatementInvalid
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&catalogPath, "catalog", "", "Catalog YAML file (default: built-in)")
	cmd.Flags().StringVar(&policy, "policy", "", "Construction function policy: warn or block")

	return cmd
}
