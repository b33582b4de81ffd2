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
Package envelope implements the credential envelope used to submit host
credentials to the gateway.

# Scheme

A client generates a random 32-byte AES-256 session key and a 12-byte IV,
encrypts the JSON payload

	{"credentials":{"username":"...","password":"..."},"request":{...}}

with AES-256-GCM, and wraps the session key with RSA-OAEP (SHA-256) under
one of the gateway's advertised public keys. The 16-byte GCM tag travels in
authTag, separate from the ciphertext. All binary fields are base64.

# Keys

Keys are addressed by id so they can be rotated: a Keyring is immutable and
a KeyringStore swaps whole keyrings. Retired keys keep decrypting until they
are removed but are no longer advertised.

# Errors

Decrypt fails with an *Error whose kind is one of unknown_key, key_unwrap,
integrity or malformed_payload. The kinds are for logs and metrics only; the
HTTP layer answers every one of them with the same authentication failure.
*/
package envelope
