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
Package logger provides structured logging for the IBM i gateway components.

Each entry carries the component name, the deployment instance id
(INSTANCE_ID), the container hostname, a client id and an optional request id.
Output is JSON on stdout by default, backed by zap.

	log := logger.New("gateway")
	log.Info("client-123", "req-456", "token issued", map[string]interface{}{
	    "host": "ibmi.example.com",
	})

Set LOG_LEVEL (debug, info, warn, error) and LOG_FORMAT (json, console) to
change the backend configuration.

Never pass credentials, private keys or bearer tokens in fields.
*/
package logger
