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

package s3

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/IBM/ibmi-mcp-sub001/connectors/base"
)

const connectorName = "s3"

// objectAPI is the subset of *s3.Client used by CatalogSource.
type objectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Options configures the S3 client.
type Options struct {
	Region          string
	Endpoint        string // S3-compatible services such as MinIO
	ForcePathStyle  bool
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// CatalogSource reads a document from one S3 object.
type CatalogSource struct {
	client objectAPI
	bucket string
	key    string

	mu   sync.Mutex
	etag string
}

// ParseLocation splits "s3://bucket/key" into its bucket and key.
func ParseLocation(location string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(location, "s3://")
	if !ok {
		return "", "", fmt.Errorf("s3 location must start with s3://, got %q", location)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 location must name a bucket and key, got %q", location)
	}
	return bucket, key, nil
}

// NewCatalogSource creates a source for location. Explicit access keys take
// precedence over the default AWS credential chain.
func NewCatalogSource(ctx context.Context, location string, opts Options) (*CatalogSource, error) {
	bucket, key, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}

	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}
	optFns := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, opts.SessionToken)
		optFns = append(optFns, config.WithCredentialsProvider(creds))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, base.NewConnectorError(connectorName, "Connect", "failed to load AWS config", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.ForcePathStyle
	})
	return newCatalogSource(client, bucket, key), nil
}

func newCatalogSource(client objectAPI, bucket, key string) *CatalogSource {
	return &CatalogSource{client: client, bucket: bucket, key: key}
}

// Name returns the s3:// location.
func (s *CatalogSource) Name() string {
	return "s3://" + s.bucket + "/" + s.key
}

// ETag returns the entity tag of the last successful fetch.
func (s *CatalogSource) ETag() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.etag
}

// Fetch downloads the object.
func (s *CatalogSource) Fetch(ctx context.Context) ([]byte, error) {
	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, base.NewConnectorError(connectorName, "Fetch", fmt.Sprintf("object not found: %s", s.Name()), err)
		}
		return nil, base.NewConnectorError(connectorName, "Fetch", fmt.Sprintf("failed to get object: %s", s.key), err)
	}
	defer output.Body.Close()

	data, err := base.ReadDocument(connectorName, output.Body)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.etag = strings.Trim(aws.ToString(output.ETag), "\"")
	s.mu.Unlock()
	return data, nil
}
