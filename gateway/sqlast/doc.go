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

// Package sqlast extracts the minimal structure of a SQL statement needed
// for read-only screening: the leading keyword, the statement a WITH clause
// introduces, the words used as keywords, the functions called and whether
// several statements were chained with semicolons.
//
// It is not a full SQL parser. It accepts the lexical grammar of Db2 for i
// (including $, # and @ in names, nested block comments and host variables)
// and checks only the shape it needs; anything it cannot tokenize or whose
// parentheses or WITH clause do not balance is a *ParseError.
package sqlast
