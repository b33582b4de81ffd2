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

// Package tokens issues and verifies the bearer tokens handed out after a
// successful envelope authentication.
//
// A token is an HS256 JWT whose jti names a Session kept in a Store (in
// memory, or Redis when several gateway replicas share state) and whose pool
// claim names the connection pool opened for the caller. Deleting the session
// revokes the token even before it expires.
package tokens
