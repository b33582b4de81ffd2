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

// Package validator decides whether a SQL statement may run under
// read-only enforcement.
//
// Every statement goes through Normalize and then two independent checks.
// The structural check parses the statement with sqlast and compares the
// leading keyword, the keywords and the called functions with the active
// catalog; a statement that does not parse is rejected. The pattern check
// runs the catalog's blocked patterns over the text to catch obfuscation
// the parser cannot see. A statement is valid only if neither check
// reports a violation.
//
//	v := validator.New(store, validator.WithAuditCallback(onReject))
//	res := v.Validate(ctx, "SELECT id FROM employees")
//	if !res.IsValid {
//	    // refuse to execute; res.Violations says why
//	}
//
// Violations are listed structural first, pattern second, each prefixed with
// its kind (ParseFailure, BlockedKeyword, BlockedFunction, BlockedPattern,
// MultipleStatements). Result.Method is ast or regex when only one check
// contributed and both otherwise.
package validator
