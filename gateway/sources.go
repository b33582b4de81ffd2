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
	"fmt"

	"github.com/IBM/ibmi-mcp-sub001/connectors/azureblob"
	"github.com/IBM/ibmi-mcp-sub001/connectors/config"
	"github.com/IBM/ibmi-mcp-sub001/connectors/gcs"
	"github.com/IBM/ibmi-mcp-sub001/connectors/s3"
	"github.com/IBM/ibmi-mcp-sub001/gateway/catalog"
	"github.com/IBM/ibmi-mcp-sub001/gateway/sqli"
	"github.com/IBM/ibmi-mcp-sub001/shared/logger"
)

// NewCatalogSource returns the catalog source selected by cfg.Source.
func NewCatalogSource(ctx context.Context, cfg config.CatalogConfig) (catalog.Source, error) {
	switch cfg.Source {
	case "", "embedded":
		return catalog.EmbeddedSource{}, nil
	case "file":
		return catalog.NewFileSource(cfg.Location), nil
	case "s3":
		src, err := s3.NewCatalogSource(ctx, cfg.Location, s3.Options{
			Region:         cfg.Region,
			Endpoint:       cfg.Endpoint,
			ForcePathStyle: cfg.Endpoint != "",
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	case "gcs":
		src, err := gcs.NewCatalogSource(ctx, cfg.Location, gcs.Options{
			CredentialsFile: cfg.CredentialsFile,
			Endpoint:        cfg.Endpoint,
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	case "azureblob":
		src, err := azureblob.NewCatalogSource(cfg.Location, azureblob.Options{
			ConnectionString: cfg.ConnectionString,
			AccountURL:       cfg.AccountURL,
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unknown catalog source %q", cfg.Source)
	}
}

// AuditLogger returns a validator audit callback that writes every
// rejected statement to log.
func AuditLogger(log *logger.Logger) sqli.AuditCallback {
	return func(ev *sqli.AuditEvent) {
		log.Warn(ev.Subject, ev.RequestID, "Statement rejected", ev.ToAuditDetails())
	}
}
