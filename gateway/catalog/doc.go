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

// Package catalog holds the dangerous-construct catalogs that drive
// statement validation: the statements allowed to lead, the keywords and
// functions that are blocked, the construction functions governed by a
// warn/block policy, and the blocked regular expression patterns.
//
// Catalogs are YAML data, never code. A Catalog is compiled once and never
// mutated; the active one lives in a Store and is replaced as a whole with
// Store.Swap. A Reloader polls a Source (file, object storage, or the
// embedded default) and swaps in each new version that compiles cleanly.
// A catalog with any invalid entry is rejected whole.
package catalog
