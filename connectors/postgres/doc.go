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
Package postgres authenticates callers against PostgreSQL-protocol hosts and
hands back read-only connection pools.

# Overview

Authenticator.Authenticate builds a DSN from the target host and the caller's
credentials, opens a database/sql pool with lib/pq, sizes it from the
requested pool parameters and pings it. A failed ping means the credentials
were rejected (or the host is unreachable) and the pool is closed again.

# Configuration

	auth := postgres.NewAuthenticator(postgres.Options{
	    Port:         5432,
	    Database:     "ibmi",
	    SSLMode:      "require",
	    QueryTimeout: 30 * time.Second,
	}, log)

The host may carry its own port ("lpar1.example.com:6543"), which wins over
Options.Port.

# Security

Passwords are placed into the DSN with url.UserPassword so special characters
cannot change the connection options, and are never logged.
*/
package postgres
