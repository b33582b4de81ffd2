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

// Package ratelimit caps how often one caller may attempt authentication.
//
// MemoryLimiter counts in fixed windows inside one process. RedisLimiter
// keeps a sliding window in a sorted set per key so that every gateway
// replica shares the same budget. RedisLimiter fails open: when Redis is
// unreachable the attempt is allowed and the error is logged, since the
// envelope and host checks still apply.
package ratelimit
