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

// Command gateway runs the IBM i credential and statement gateway.
//
// Usage:
//
//	gateway [-config gateway.yaml]
//	gateway -example-config > gateway.yaml
//
// The config path may also be given as GATEWAY_CONFIG. Environment
// variables such as PORT, JWT_SECRET, REDIS_URL and CATALOG_SOURCE override
// the file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/IBM/ibmi-mcp-sub001/connectors/config"
	"github.com/IBM/ibmi-mcp-sub001/gateway"
	"github.com/IBM/ibmi-mcp-sub001/shared/logger"
)

func main() {
	configPath := flag.String("config", os.Getenv("GATEWAY_CONFIG"), "path to the gateway YAML config")
	example := flag.Bool("example-config", false, "print an example config and exit")
	flag.Parse()

	if *example {
		fmt.Print(config.GenerateExampleConfig())
		return
	}

	log := logger.New("gateway")
	cfg, err := config.LoadGatewayConfig(*configPath)
	if err != nil {
		log.Error("", "", "Failed to load configuration", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := gateway.Run(ctx, cfg); err != nil {
		log.Error("", "", "Gateway stopped", map[string]interface{}{"error": err.Error()})
		stop()
		os.Exit(1)
	}
}
