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
Package base defines the collaborator contracts the gateway uses to reach a
target database host.

# Pool Authenticators

A PoolAuthenticator opens a connection pool to a host using credentials
recovered from an authentication envelope. A successful ping is the proof
that the credentials are good:

	pool, err := auth.Authenticate(ctx, "ibmi01.corp.example.com", base.Credentials{
	    Username: "QUSER",
	    Password: password,
	}, base.PoolParams{PoolStart: 2, PoolMax: 10, Lifetime: time.Hour})
	if err != nil {
	    return err
	}
	defer pool.Close()

Implementations live in the postgres and mysql packages.

# Query Operations

Pools are read-only. Statements reaching Query have already been passed by
the statement validator:

	result, err := pool.Query(ctx, &base.Query{
	    Statement: "SELECT * FROM employees WHERE dept = $1",
	    Parameters: map[string]interface{}{"1": "eng"},
	    Limit:     100,
	})

# Host Validation

ValidateHost screens the requested host before any credentials leave the
gateway: format checks, allow and block lists, and optional private-address
blocking.

# Error Handling

Pool operations return *ConnectorError, which wraps the driver cause:

	var connErr *base.ConnectorError
	if errors.As(err, &connErr) {
	    log.Printf("%s failed during %s", connErr.ConnectorName, connErr.Operation)
	}

Passwords never appear in a ConnectorError message.
*/
package base
