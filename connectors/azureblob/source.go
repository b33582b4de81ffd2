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

package azureblob

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/IBM/ibmi-mcp-sub001/connectors/base"
)

const connectorName = "azureblob"

// blobAPI is the subset of *azblob.Client used by CatalogSource.
type blobAPI interface {
	DownloadStream(ctx context.Context, containerName, blobName string, o *azblob.DownloadStreamOptions) (azblob.DownloadStreamResponse, error)
}

// Options selects the authentication method. ConnectionString wins over
// AccountURL; AccountURL authenticates with DefaultAzureCredential
// (managed identity, workload identity, Azure CLI).
type Options struct {
	ConnectionString string
	AccountURL       string
}

// CatalogSource reads a document from one blob.
type CatalogSource struct {
	client    blobAPI
	container string
	blob      string
}

// ParseLocation splits "container/path/to/blob" into container and blob.
func ParseLocation(location string) (container, blob string, err error) {
	container, blob, _ = strings.Cut(strings.TrimPrefix(location, "/"), "/")
	if container == "" || blob == "" {
		return "", "", fmt.Errorf("azure blob location must be container/blob, got %q", location)
	}
	return container, blob, nil
}

// NewCatalogSource creates a source for location.
func NewCatalogSource(location string, opts Options) (*CatalogSource, error) {
	container, blob, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}

	var client *azblob.Client
	switch {
	case opts.ConnectionString != "":
		client, err = azblob.NewClientFromConnectionString(opts.ConnectionString, nil)
		if err != nil {
			return nil, base.NewConnectorError(connectorName, "Connect", "failed to create client from connection string", err)
		}
	case opts.AccountURL != "":
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, base.NewConnectorError(connectorName, "Connect", "failed to create Azure credential", err)
		}
		client, err = azblob.NewClient(opts.AccountURL, cred, nil)
		if err != nil {
			return nil, base.NewConnectorError(connectorName, "Connect", "failed to create client", err)
		}
	default:
		return nil, base.NewConnectorError(connectorName, "Connect", "connection string or account URL is required", nil)
	}

	return newCatalogSource(client, container, blob), nil
}

func newCatalogSource(client blobAPI, container, blob string) *CatalogSource {
	return &CatalogSource{client: client, container: container, blob: blob}
}

// Name returns "azureblob:container/blob".
func (s *CatalogSource) Name() string {
	return "azureblob:" + s.container + "/" + s.blob
}

// Fetch downloads the blob.
func (s *CatalogSource) Fetch(ctx context.Context) ([]byte, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, s.blob, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, base.NewConnectorError(connectorName, "Fetch", fmt.Sprintf("blob not found: %s/%s", s.container, s.blob), err)
		}
		return nil, base.NewConnectorError(connectorName, "Fetch", fmt.Sprintf("failed to download blob: %s", s.blob), err)
	}
	defer resp.Body.Close()

	return base.ReadDocument(connectorName, resp.Body)
}
