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

package sqli

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// Match records one pattern that fired against a statement.
type Match struct {
	Pattern     string   `json:"pattern"`
	Category    Category `json:"category"`
	Description string   `json:"description"`
	Severity    int      `json:"severity"`
}

// Result is the outcome of scanning one statement.
type Result struct {
	// Detected is true when at least one pattern matched.
	Detected bool

	// Matches lists every pattern that matched, in pattern-set order.
	Matches []Match

	// Input is a sanitized snippet of the scanned text, safe to log.
	Input string

	// Truncated is true when the input exceeded the scan limit.
	Truncated bool

	// Duration is the time taken to scan.
	Duration time.Duration
}

// Scanner runs a PatternSet against statements. It is safe for concurrent use.
type Scanner struct {
	patterns    *PatternSet
	maxInputLen int
}

// ScannerOption is a functional option for configuring Scanner.
type ScannerOption func(*Scanner)

// WithMaxInputLength sets the maximum input length to scan.
func WithMaxInputLength(maxLen int) ScannerOption {
	return func(s *Scanner) {
		if maxLen > 0 {
			s.maxInputLen = maxLen
		}
	}
}

// DefaultMaxInputLength bounds how much of a statement is scanned.
const DefaultMaxInputLength = 1 << 20

const snippetLength = 100

// NewScanner creates a scanner over ps.
func NewScanner(ps *PatternSet, opts ...ScannerOption) *Scanner {
	if ps == nil {
		ps = &PatternSet{}
	}
	s := &Scanner{
		patterns:    ps,
		maxInputLen: DefaultMaxInputLength,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScanAll checks content against every pattern and reports all matches.
// A cancelled context stops the scan early with the matches found so far.
func (s *Scanner) ScanAll(ctx context.Context, content string) *Result {
	start := time.Now()
	res := &Result{}

	if len(content) > s.maxInputLen {
		content = content[:s.maxInputLen]
		res.Truncated = true
	}

	for _, p := range s.patterns.Patterns() {
		if ctx.Err() != nil {
			break
		}
		if p.Regex.MatchString(content) {
			res.Matches = append(res.Matches, Match{
				Pattern:     p.Name,
				Category:    p.Category,
				Description: p.Description,
				Severity:    p.Severity,
			})
		}
	}

	res.Detected = len(res.Matches) > 0
	if res.Detected {
		res.Input = snippet(content, snippetLength)
	}
	res.Duration = time.Since(start)
	return res
}

// MaxSeverity returns the highest severity among the matches, or 0.
func (r *Result) MaxSeverity() int {
	max := 0
	for _, m := range r.Matches {
		if m.Severity > max {
			max = m.Severity
		}
	}
	return max
}

var (
	passwordMaskRegex = regexp.MustCompile(`(?i)(password|passwd|pwd)\s*[=:]\s*['"]?[^'"\s]+['"]?`)
	apiKeyMaskRegex   = regexp.MustCompile(`(?i)(api[_-]?key|apikey|secret[_-]?key)\s*[=:]\s*['"]?[^'"\s]+['"]?`)
	tokenMaskRegex    = regexp.MustCompile(`(?i)(token|bearer)\s*[=:]\s*['"]?[^'"\s]+['"]?`)
)

// SanitizeForLog flattens newlines and masks credentials in statement text.
func SanitizeForLog(input string) string {
	input = strings.NewReplacer("\r", " ", "\n", " ").Replace(input)
	input = passwordMaskRegex.ReplaceAllString(input, "[REDACTED_PASSWORD]")
	input = apiKeyMaskRegex.ReplaceAllString(input, "[REDACTED_KEY]")
	input = tokenMaskRegex.ReplaceAllString(input, "[REDACTED_TOKEN]")
	return input
}
