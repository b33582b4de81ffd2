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
Package gateway serves the IBM i credential and statement gateway over HTTP.

Clients fetch the active RSA public key, seal their host credentials into an
envelope (RSA-OAEP-256 wrapped AES-256-GCM) and exchange it for a bearer
token backed by a pooled host connection. Statements sent with that token
are screened by the validator before anything reaches the host.

# Routes

	GET    /health                 liveness and readiness
	GET    /prometheus             Prometheus metrics
	GET    /api/v1/auth/keys       public keys for sealing envelopes
	POST   /api/v1/auth            envelope in, bearer token out
	DELETE /api/v1/auth            revoke the caller's token and close its pool
	POST   /api/v1/sql/validate    verdict only
	POST   /api/v1/sql/execute     verdict, then rows when valid
	GET    /api/v1/catalog         active catalog summary
	GET    /api/v1/session         the caller's session and pool health

Every envelope or host authentication failure answers 401 with the same
body; the failure kind is only visible in logs and the
ibmi_gateway_decrypt_failures_total counter.

/health also pings every registered pool and reports how many failed.

# Reloading

SIGHUP re-reads the keyring and the catalog. The catalog is also polled on
catalog.reload_interval. A keyring or catalog that fails to load leaves the
previous one in place.
*/
package gateway
