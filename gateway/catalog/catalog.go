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

package catalog

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/IBM/ibmi-mcp-sub001/gateway/sqlast"
	"github.com/IBM/ibmi-mcp-sub001/gateway/sqli"

	"gopkg.in/yaml.v3"
)

//go:embed default_catalog.yaml
var defaultCatalogYAML []byte

// Policy decides how construction functions are treated.
type Policy string

const (
	// PolicyWarn reports construction functions as warnings and allows the statement.
	PolicyWarn Policy = "warn"

	// PolicyBlock reports construction functions as violations.
	PolicyBlock Policy = "block"
)

// ParsePolicy parses a policy name. An empty string yields PolicyWarn.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyWarn:
		return PolicyWarn, nil
	case PolicyBlock:
		return PolicyBlock, nil
	default:
		return "", fmt.Errorf("invalid construction function policy %q (want warn or block)", s)
	}
}

// File is the YAML layout of a catalog.
type File struct {
	Version                    string        `yaml:"version"`
	AllowedStatements          []string      `yaml:"allowed_statements"`
	BlockedKeywords            []string      `yaml:"blocked_keywords"`
	BlockedFunctions           []string      `yaml:"blocked_functions"`
	ConstructionFunctions      []string      `yaml:"construction_functions,omitempty"`
	ConstructionFunctionPolicy string        `yaml:"construction_function_policy,omitempty"`
	BlockedPatterns            []PatternSpec `yaml:"blocked_patterns"`
}

// PatternSpec is one blocked pattern as written in a catalog file.
type PatternSpec struct {
	Name        string `yaml:"name"`
	Category    string `yaml:"category"`
	Regex       string `yaml:"regex"`
	Description string `yaml:"description,omitempty"`
	Severity    int    `yaml:"severity,omitempty"`
}

// Catalog is a compiled, immutable set of dangerous constructs.
type Catalog struct {
	version      string
	digest       string
	allowed      map[string]bool
	keywords     map[string]bool
	functions    map[string]bool
	construction map[string]bool
	policy       Policy
	patterns     *sqli.PatternSet
}

var (
	keywordName  = regexp.MustCompile(`^[A-Z_][A-Z0-9_]*$`)
	functionName = regexp.MustCompile(`^([A-Z_$#@][A-Z0-9_$#@]*\.)?[A-Z_$#@][A-Z0-9_$#@]*$`)
)

// Parse decodes and compiles a YAML catalog. Unknown fields are rejected.
func Parse(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("catalog is empty")
		}
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	c, err := Compile(&f)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	c.digest = hex.EncodeToString(sum[:])
	return c, nil
}

// Compile validates f and builds a Catalog. Every problem found is reported
// in one joined error; nothing is compiled if any entry is invalid.
func Compile(f *File) (*Catalog, error) {
	var errs []error

	c := &Catalog{version: f.Version}

	c.allowed = nameSet("allowed_statements", f.AllowedStatements, keywordName, &errs)
	if len(c.allowed) == 0 {
		errs = append(errs, errors.New("allowed_statements must list at least one keyword"))
	}
	c.keywords = nameSet("blocked_keywords", f.BlockedKeywords, keywordName, &errs)
	c.functions = nameSet("blocked_functions", f.BlockedFunctions, functionName, &errs)
	c.construction = nameSet("construction_functions", f.ConstructionFunctions, functionName, &errs)

	for kw := range c.allowed {
		if c.keywords[kw] {
			errs = append(errs, fmt.Errorf("keyword %s is both allowed and blocked", kw))
		}
	}

	policy, err := ParsePolicy(f.ConstructionFunctionPolicy)
	if err != nil {
		errs = append(errs, err)
	}
	c.policy = policy

	patterns := make([]*sqli.Pattern, 0, len(f.BlockedPatterns))
	for i, spec := range f.BlockedPatterns {
		p, err := sqli.NewPattern(spec.Name, sqli.Category(spec.Category), spec.Regex, spec.Description, spec.Severity)
		if err != nil {
			errs = append(errs, fmt.Errorf("blocked_patterns[%d]: %w", i, err))
			continue
		}
		patterns = append(patterns, p)
	}
	if len(errs) == 0 {
		ps, err := sqli.NewPatternSet(patterns...)
		if err != nil {
			errs = append(errs, fmt.Errorf("blocked_patterns: %w", err))
		}
		c.patterns = ps
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid catalog: %w", errors.Join(errs...))
	}
	return c, nil
}

func nameSet(field string, names []string, valid *regexp.Regexp, errs *[]error) map[string]bool {
	set := make(map[string]bool, len(names))
	for i, n := range names {
		n = strings.ToUpper(strings.TrimSpace(n))
		if !valid.MatchString(n) {
			*errs = append(*errs, fmt.Errorf("%s[%d]: invalid name %q", field, i, names[i]))
			continue
		}
		set[n] = true
	}
	return set
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the catalog compiled from the embedded default file.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(defaultCatalogYAML)
		if err != nil {
			panic(fmt.Sprintf("embedded catalog: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// DefaultYAML returns a copy of the embedded default catalog file.
func DefaultYAML() []byte {
	return append([]byte(nil), defaultCatalogYAML...)
}

// Version returns the catalog's declared version.
func (c *Catalog) Version() string { return c.version }

// Digest returns the sha256 of the source bytes, or "" for catalogs built
// with Compile.
func (c *Catalog) Digest() string { return c.digest }

// Policy returns the construction function policy.
func (c *Catalog) Policy() Policy { return c.policy }

// Patterns returns the compiled blocked patterns.
func (c *Catalog) Patterns() *sqli.PatternSet { return c.patterns }

// WithPolicy returns a copy of c using policy p. The maps and patterns are
// shared, which is safe since neither is ever mutated.
func (c *Catalog) WithPolicy(p Policy) *Catalog {
	cp := *c
	cp.policy = p
	return &cp
}

// IsAllowedStatement reports whether a statement may begin with kw.
func (c *Catalog) IsAllowedStatement(kw string) bool {
	return c.allowed[strings.ToUpper(kw)]
}

// IsBlockedKeyword reports whether kw is a blocked keyword.
func (c *Catalog) IsBlockedKeyword(kw string) bool {
	return c.keywords[strings.ToUpper(kw)]
}

// IsBlockedFunction reports whether the call matches a blocked function,
// either by bare name or by its qualified name.
func (c *Catalog) IsBlockedFunction(f sqlast.FunctionCall) bool {
	return matchFunction(c.functions, f)
}

// IsConstructionFunction reports whether the call matches a construction function.
func (c *Catalog) IsConstructionFunction(f sqlast.FunctionCall) bool {
	return matchFunction(c.construction, f)
}

func matchFunction(set map[string]bool, f sqlast.FunctionCall) bool {
	name := strings.ToUpper(f.Name)
	if set[name] {
		return true
	}
	if f.Schema == "" {
		return false
	}
	return set[strings.ToUpper(f.Schema)+"."+name]
}

// Summary describes a catalog's contents for logs and the health endpoint.
type Summary struct {
	Version               string   `json:"version"`
	Digest                string   `json:"digest,omitempty"`
	AllowedStatements     []string `json:"allowed_statements"`
	BlockedKeywords       int      `json:"blocked_keywords"`
	BlockedFunctions      int      `json:"blocked_functions"`
	ConstructionFunctions int      `json:"construction_functions"`
	BlockedPatterns       int      `json:"blocked_patterns"`
	Policy                Policy   `json:"construction_function_policy"`
}

// Summary returns counts and identifiers for c.
func (c *Catalog) Summary() Summary {
	allowed := make([]string, 0, len(c.allowed))
	for kw := range c.allowed {
		allowed = append(allowed, kw)
	}
	sort.Strings(allowed)
	return Summary{
		Version:               c.version,
		Digest:                c.digest,
		AllowedStatements:     allowed,
		BlockedKeywords:       len(c.keywords),
		BlockedFunctions:      len(c.functions),
		ConstructionFunctions: len(c.construction),
		BlockedPatterns:       c.patterns.Len(),
		Policy:                c.policy,
	}
}
