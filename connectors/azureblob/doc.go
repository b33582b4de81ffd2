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
Package azureblob loads documents from Azure Blob Storage.

CatalogSource fetches one blob named by a container/blob location.
Authenticate with a storage connection string, or with an account URL
and DefaultAzureCredential (managed identity, workload identity or the
Azure CLI login).

	src, err := azureblob.NewCatalogSource("gateway/catalog.yaml", azureblob.Options{
		AccountURL: "https://gatewaycfg.blob.core.windows.net/",
	})
*/
package azureblob
