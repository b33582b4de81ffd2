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

package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/IBM/ibmi-mcp-sub001/connectors/base"
)

const connectorName = "gcs"

// objectOpener opens an object for reading.
type objectOpener func(ctx context.Context, bucket, object string) (io.ReadCloser, error)

// Options configures the GCS client. With no credentials the client uses
// Application Default Credentials.
type Options struct {
	CredentialsFile string
	CredentialsJSON []byte
	Endpoint        string // emulator or private endpoint
	Anonymous       bool
}

// CatalogSource reads a document from one GCS object.
type CatalogSource struct {
	open   objectOpener
	close  func() error
	bucket string
	object string
}

// ParseLocation splits "gs://bucket/object" into its bucket and object.
func ParseLocation(location string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(location, "gs://")
	if !ok {
		return "", "", fmt.Errorf("gcs location must start with gs://, got %q", location)
	}
	bucket, object, _ = strings.Cut(rest, "/")
	if bucket == "" || object == "" {
		return "", "", fmt.Errorf("gcs location must name a bucket and object, got %q", location)
	}
	return bucket, object, nil
}

// ClientOptions converts opts into storage client options.
func (o Options) ClientOptions() []option.ClientOption {
	var opts []option.ClientOption
	switch {
	case o.Anonymous:
		opts = append(opts, option.WithoutAuthentication())
	case o.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(o.CredentialsFile))
	case len(o.CredentialsJSON) > 0:
		opts = append(opts, option.WithCredentialsJSON(o.CredentialsJSON))
	}
	if o.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(o.Endpoint))
	}
	return opts
}

// NewCatalogSource creates a source for location. Close releases the client.
func NewCatalogSource(ctx context.Context, location string, opts Options) (*CatalogSource, error) {
	bucket, object, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx, opts.ClientOptions()...)
	if err != nil {
		return nil, base.NewConnectorError(connectorName, "Connect", "failed to create GCS client", err)
	}

	open := func(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
		return client.Bucket(bucket).Object(object).NewReader(ctx)
	}
	src := newCatalogSource(open, bucket, object)
	src.close = client.Close
	return src, nil
}

func newCatalogSource(open objectOpener, bucket, object string) *CatalogSource {
	return &CatalogSource{open: open, bucket: bucket, object: object}
}

// Name returns the gs:// location.
func (s *CatalogSource) Name() string {
	return "gs://" + s.bucket + "/" + s.object
}

// Fetch downloads the object.
func (s *CatalogSource) Fetch(ctx context.Context) ([]byte, error) {
	reader, err := s.open(ctx, s.bucket, s.object)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return nil, base.NewConnectorError(connectorName, "Fetch", fmt.Sprintf("object not found: %s", s.Name()), err)
		}
		return nil, base.NewConnectorError(connectorName, "Fetch", fmt.Sprintf("failed to open object: %s", s.object), err)
	}
	defer reader.Close()

	return base.ReadDocument(connectorName, reader)
}

// Close releases the underlying client.
func (s *CatalogSource) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}
