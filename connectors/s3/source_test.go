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
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IBM/ibmi-mcp-sub001/connectors/base"
)

type fakeObjectAPI struct {
	body  string
	etag  string
	err   error
	input *s3.GetObjectInput
}

func (f *fakeObjectAPI) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(strings.NewReader(f.body)),
		ETag: aws.String(f.etag),
	}, nil
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		location   string
		wantBucket string
		wantKey    string
		wantErr    bool
	}{
		{"s3://catalogs/ibmi/catalog.yaml", "catalogs", "ibmi/catalog.yaml", false},
		{"s3://catalogs/c.yaml", "catalogs", "c.yaml", false},
		{"s3://catalogs", "", "", true},
		{"s3://catalogs/", "", "", true},
		{"s3:///key", "", "", true},
		{"gs://bucket/key", "", "", true},
		{"catalogs/key", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			bucket, key, err := ParseLocation(tt.location)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBucket, bucket)
			assert.Equal(t, tt.wantKey, key)
		})
	}
}

func TestCatalogSource_Fetch(t *testing.T) {
	api := &fakeObjectAPI{body: "version: \"2025.2\"\n", etag: `"abc123"`}
	src := newCatalogSource(api, "catalogs", "ibmi.yaml")

	assert.Equal(t, "s3://catalogs/ibmi.yaml", src.Name())

	data, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "version: \"2025.2\"\n", string(data))
	assert.Equal(t, "catalogs", aws.ToString(api.input.Bucket))
	assert.Equal(t, "ibmi.yaml", aws.ToString(api.input.Key))
	assert.Equal(t, "abc123", src.ETag())
}

func TestCatalogSource_FetchErrors(t *testing.T) {
	t.Run("missing object", func(t *testing.T) {
		src := newCatalogSource(&fakeObjectAPI{err: &types.NoSuchKey{}}, "b", "k")
		_, err := src.Fetch(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "object not found")
		var noKey *types.NoSuchKey
		assert.ErrorAs(t, err, &noKey)
	})

	t.Run("transport error", func(t *testing.T) {
		src := newCatalogSource(&fakeObjectAPI{err: errors.New("dial tcp: timeout")}, "b", "k")
		_, err := src.Fetch(context.Background())
		var connErr *base.ConnectorError
		require.ErrorAs(t, err, &connErr)
		assert.Equal(t, "Fetch", connErr.Operation)
	})

	t.Run("oversized object", func(t *testing.T) {
		src := newCatalogSource(&fakeObjectAPI{body: strings.Repeat("x", base.MaxDocumentSize+1)}, "b", "k")
		_, err := src.Fetch(context.Background())
		assert.Error(t, err)
		assert.Empty(t, src.ETag())
	})
}

func TestNewCatalogSource(t *testing.T) {
	_, err := NewCatalogSource(context.Background(), "not-a-location", Options{})
	assert.Error(t, err)

	src, err := NewCatalogSource(context.Background(), "s3://catalogs/ibmi.yaml", Options{
		Region:          "us-west-2",
		Endpoint:        "http://localhost:9000",
		ForcePathStyle:  true,
		AccessKeyID:     "minioadmin",
		SecretAccessKey: "minioadmin",
	})
	require.NoError(t, err)
	assert.Equal(t, "s3://catalogs/ibmi.yaml", src.Name())
}
