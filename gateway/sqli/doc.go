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

// Package sqli provides the pattern pass of statement validation.
//
// Patterns are regular expressions loaded from a catalog, each tagged with a
// category and a severity. A Scanner runs every pattern in a PatternSet and
// reports all matches, not just the first:
//
//	p, err := sqli.NewPattern("stacked_statement", sqli.CategoryStackedQueries,
//	    `;\s*\w`, "statement chained after a semicolon", 9)
//	ps, err := sqli.NewPatternSet(p)
//	res := sqli.NewScanner(ps).ScanAll(ctx, stmt)
//	if res.Detected {
//	    for _, m := range res.Matches { ... }
//	}
//
// # Pattern limits
//
// Catalog patterns are untrusted configuration. CompileRegex rejects empty
// patterns, patterns longer than MaxPatternLength, patterns with more than
// MaxCaptureGroups groups, invalid RE2 syntax and nested unbounded
// quantifiers.
//
// # Audit
//
// NewAuditEvent turns a rejection into an AuditEvent that the gateway hands
// to its AuditCallback.
package sqli
