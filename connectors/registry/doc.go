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

// Package registry tracks the connection pools opened on behalf of
// authenticated callers. Each pool is addressed by an opaque handle that the
// token issuer embeds in the bearer token; pools past their lifetime are
// refused by Get and closed by Sweep.
package registry
