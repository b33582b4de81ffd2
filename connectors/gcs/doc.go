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
Package gcs loads documents from Google Cloud Storage.

CatalogSource fetches one object named by a gs://bucket/object location.
Credentials come from a service account file or JSON when given,
otherwise from Application Default Credentials. Set Endpoint and Anonymous
to use the fake-gcs-server emulator.

	src, err := gcs.NewCatalogSource(ctx, "gs://gateway-config/catalog.yaml", gcs.Options{})
	if err != nil {
		return err
	}
	defer src.Close()
*/
package gcs
