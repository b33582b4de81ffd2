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
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Category classifies what a pattern detects.
type Category string

const (
	// CategoryStackedQueries represents a second statement chained after the first.
	CategoryStackedQueries Category = "stacked_queries"

	// CategoryCommentInjection represents comments used to split keywords or hide a tail.
	CategoryCommentInjection Category = "comment_injection"

	// CategoryUnionBased represents UNION-based extraction after a closed literal.
	CategoryUnionBased Category = "union_based"

	// CategoryDynamicSQL represents statement text assembled at run time
	// (literal concatenation, CHAR() sequences, hex, EXECUTE IMMEDIATE).
	CategoryDynamicSQL Category = "dynamic_sql"

	// CategoryTimeBased represents delay functions used for blind probing.
	CategoryTimeBased Category = "time_based"

	// CategoryBooleanBlind represents always-true or always-false predicates.
	CategoryBooleanBlind Category = "boolean_blind"

	// CategoryDangerousQuery represents DDL, DML and privilege operations.
	CategoryDangerousQuery Category = "dangerous_query"

	// CategoryGeneric represents anything else.
	CategoryGeneric Category = "generic"
)

// ValidCategories returns every known category.
func ValidCategories() []Category {
	return []Category{
		CategoryStackedQueries, CategoryCommentInjection, CategoryUnionBased, CategoryDynamicSQL,
		CategoryTimeBased, CategoryBooleanBlind, CategoryDangerousQuery, CategoryGeneric,
	}
}

// IsValid checks if the category is known.
func (c Category) IsValid() bool {
	for _, v := range ValidCategories() {
		if c == v {
			return true
		}
	}
	return false
}

// Pattern represents a blocked textual pattern.
type Pattern struct {
	// Name is a unique identifier for the pattern.
	Name string

	// Category classifies the pattern.
	Category Category

	// Regex is the compiled regular expression.
	Regex *regexp.Regexp

	// Description explains what this pattern detects.
	Description string

	// Severity indicates the risk level (1-10).
	Severity int
}

// Pattern safety limits
const (
	// MaxPatternLength is the maximum allowed length for a regex pattern.
	MaxPatternLength = 1000

	// MaxCaptureGroups is the maximum number of capture groups allowed.
	MaxCaptureGroups = 10
)

// Pattern compilation errors
var (
	ErrPatternEmpty            = errors.New("pattern cannot be empty")
	ErrPatternTooLong          = errors.New("pattern exceeds maximum length")
	ErrPatternInvalidSyntax    = errors.New("pattern has invalid RE2 syntax")
	ErrPatternTooManyGroups    = errors.New("pattern has too many capture groups")
	ErrPatternDangerousNesting = errors.New("pattern contains nested unbounded quantifiers")
)

// nestedQuantifier finds (.*)+, (.+)+, (.*)* and (.+)* in pattern source.
var nestedQuantifier = regexp.MustCompile(`\(\.[*+]\)[*+]`)

// CompileRegex compiles expr after checking the pattern safety limits.
func CompileRegex(expr string) (*regexp.Regexp, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, ErrPatternEmpty
	}
	if len(expr) > MaxPatternLength {
		return nil, ErrPatternTooLong
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPatternInvalidSyntax, err)
	}
	if re.NumSubexp() > MaxCaptureGroups {
		return nil, ErrPatternTooManyGroups
	}
	if nestedQuantifier.MatchString(expr) {
		return nil, ErrPatternDangerousNesting
	}
	return re, nil
}

// NewPattern builds a checked pattern. Severity outside 1..10 defaults to 5.
func NewPattern(name string, category Category, expr, description string, severity int) (*Pattern, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("pattern name cannot be empty")
	}
	if !category.IsValid() {
		return nil, fmt.Errorf("pattern %q: unknown category %q", name, category)
	}
	re, err := CompileRegex(expr)
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %w", name, err)
	}
	if severity < 1 || severity > 10 {
		severity = 5
	}
	return &Pattern{Name: name, Category: category, Regex: re, Description: description, Severity: severity}, nil
}

// PatternSet holds an ordered, immutable collection of patterns.
type PatternSet struct {
	patterns []*Pattern
}

// NewPatternSet creates a set from patterns. Names must be unique.
func NewPatternSet(patterns ...*Pattern) (*PatternSet, error) {
	seen := make(map[string]bool, len(patterns))
	for _, p := range patterns {
		if p == nil || p.Regex == nil {
			return nil, errors.New("pattern set contains an uncompiled pattern")
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("duplicate pattern name %q", p.Name)
		}
		seen[p.Name] = true
	}
	return &PatternSet{patterns: append([]*Pattern(nil), patterns...)}, nil
}

// Patterns returns all patterns in the set.
func (ps *PatternSet) Patterns() []*Pattern {
	return ps.patterns
}

// Len returns the number of patterns.
func (ps *PatternSet) Len() int {
	return len(ps.patterns)
}

// PatternsByCategory returns patterns filtered by category.
func (ps *PatternSet) PatternsByCategory(category Category) []*Pattern {
	var result []*Pattern
	for _, p := range ps.patterns {
		if p.Category == category {
			result = append(result, p)
		}
	}
	return result
}
