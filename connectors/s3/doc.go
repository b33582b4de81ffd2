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

/*
Package s3 loads documents from Amazon S3 and S3-compatible storage
(MinIO, Cloudflare R2 and similar).

CatalogSource fetches one object named by an s3://bucket/key location and
satisfies the gateway's catalog source contract, so the statement catalog
can be published to a bucket and picked up on the next reload.

# Authentication

Explicit AccessKeyID and SecretAccessKey are used when both are set;
otherwise the default AWS credential chain applies (environment, shared
config, IAM role).

# Usage Example

	src, err := s3.NewCatalogSource(ctx, "s3://gateway-config/catalog.yaml", s3.Options{
		Region: "us-west-2",
	})
	if err != nil {
		return err
	}
	data, err := src.Fetch(ctx)

Objects larger than base.MaxDocumentSize are rejected.
*/
package s3
