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

package validator

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/ibmi-mcp-sub001/gateway/catalog"
	"github.com/IBM/ibmi-mcp-sub001/gateway/sqlast"
	"github.com/IBM/ibmi-mcp-sub001/gateway/sqli"
)

// Method records which detection path contributed to a verdict.
type Method string

const (
	MethodAST   Method = "ast"
	MethodRegex Method = "regex"
	MethodBoth  Method = "both"
)

// Violation kinds prefix every violation string.
const (
	KindParseFailure       = "ParseFailure"
	KindBlockedKeyword     = "BlockedKeyword"
	KindBlockedFunction    = "BlockedFunction"
	KindBlockedPattern     = "BlockedPattern"
	KindMultipleStatements = "MultipleStatements"

	// KindConstructionFunction prefixes warnings for construction functions
	// allowed under the warn policy.
	KindConstructionFunction = "ConstructionFunction"
)

// DefaultMaxLength is the longest statement accepted, in bytes.
const DefaultMaxLength = 1 << 20

// Result is the validator's verdict on one statement.
type Result struct {
	IsValid    bool     `json:"isValid"`
	Violations []string `json:"violations"`
	Warnings   []string `json:"warnings"`
	Method     Method   `json:"validationMethod"`

	// Statement is the normalized text that was validated. Callers that go
	// on to execute should run this text.
	Statement string `json:"-"`

	// CatalogVersion identifies the catalog the verdict was reached with.
	CatalogVersion string `json:"catalogVersion,omitempty"`

	// Duration is the time taken to validate.
	Duration time.Duration `json:"-"`
}

// CatalogProvider returns the catalog to validate against. *catalog.Store
// implements it.
type CatalogProvider interface {
	Load() *catalog.Catalog
}

// Validator classifies statements against the active catalog. It holds no
// per-call state and is safe for concurrent use.
type Validator struct {
	catalogs  CatalogProvider
	maxLength int
	audit     sqli.AuditCallback
}

// Option configures a Validator.
type Option func(*Validator)

// WithMaxLength sets the longest statement accepted.
func WithMaxLength(n int) Option {
	return func(v *Validator) {
		if n > 0 {
			v.maxLength = n
		}
	}
}

// WithAuditCallback registers a callback for rejected statements.
func WithAuditCallback(cb sqli.AuditCallback) Option {
	return func(v *Validator) {
		v.audit = cb
	}
}

// New creates a validator reading catalogs from provider.
func New(provider CatalogProvider, opts ...Option) *Validator {
	v := &Validator{
		catalogs:  provider,
		maxLength: DefaultMaxLength,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

type auditInfoKey struct{}

type auditInfo struct {
	subject   string
	requestID string
}

// WithAuditInfo attaches the subject and request id reported in audit events.
func WithAuditInfo(ctx context.Context, subject, requestID string) context.Context {
	return context.WithValue(ctx, auditInfoKey{}, auditInfo{subject: subject, requestID: requestID})
}

// Validate classifies statement. It never panics and never returns a valid
// verdict when something goes wrong internally.
func (v *Validator) Validate(ctx context.Context, statement string) (res *Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = &Result{
				Violations: []string{fmt.Sprintf("%s: internal validator error", KindParseFailure)},
				Warnings:   []string{},
				Method:     MethodBoth,
			}
		}
		res.Duration = time.Since(start)
	}()

	var cat *catalog.Catalog
	if v.catalogs != nil {
		cat = v.catalogs.Load()
	}
	if cat == nil {
		return &Result{
			Violations: []string{fmt.Sprintf("%s: no catalog loaded", KindParseFailure)},
			Warnings:   []string{},
			Method:     MethodBoth,
		}
	}

	res = &Result{
		Violations:     []string{},
		Warnings:       []string{},
		CatalogVersion: cat.Version(),
	}

	if len(statement) > v.maxLength {
		res.Violations = append(res.Violations,
			fmt.Sprintf("%s: statement is %d bytes, limit is %d", KindParseFailure, len(statement), v.maxLength))
		res.Method = MethodAST
		v.emit(ctx, statement, res, nil)
		return res
	}

	text, err := Normalize(statement)
	var structural []string
	if err != nil {
		structural = []string{fmt.Sprintf("%s: %v", KindParseFailure, err)}
		text = statement
	} else {
		res.Statement = text
		structural, res.Warnings = structuralCheck(cat, text)
	}

	scan := sqli.NewScanner(cat.Patterns(), sqli.WithMaxInputLength(v.maxLength)).ScanAll(ctx, text)
	pattern := make([]string, 0, len(scan.Matches))
	for _, m := range scan.Matches {
		pattern = append(pattern, fmt.Sprintf("%s: %s (%s)", KindBlockedPattern, m.Pattern, m.Description))
	}

	res.Violations = append(append(res.Violations, structural...), pattern...)
	res.Method = combine(len(structural) > 0, len(pattern) > 0)
	res.IsValid = len(res.Violations) == 0

	if !res.IsValid {
		v.emit(ctx, statement, res, scan)
	}
	return res
}

// combine names the contributing path. When neither or both contributed
// the method is both, since both paths always run.
func combine(structural, pattern bool) Method {
	switch {
	case structural && !pattern:
		return MethodAST
	case pattern && !structural:
		return MethodRegex
	default:
		return MethodBoth
	}
}

func (v *Validator) emit(ctx context.Context, statement string, res *Result, scan *sqli.Result) {
	if v.audit == nil {
		return
	}
	event := sqli.NewAuditEvent(statement, string(res.Method), res.Violations, scan)
	if event == nil {
		return
	}
	if info, ok := ctx.Value(auditInfoKey{}).(auditInfo); ok {
		event.WithSubject(info.subject).WithRequestID(info.requestID)
	}
	v.audit(event)
}

// structuralCheck parses text and checks its keywords and functions against
// cat. It returns violations and warnings.
func structuralCheck(cat *catalog.Catalog, text string) (violations, warnings []string) {
	warnings = []string{}

	script, err := sqlast.Parse(text)
	if err != nil {
		return []string{fmt.Sprintf("%s: %v", KindParseFailure, err)}, warnings
	}

	if script.Chained() {
		violations = append(violations, fmt.Sprintf("%s: %d statements chained with ';'",
			KindMultipleStatements, len(script.Statements)))
	}

	seen := make(map[string]bool)
	add := func(list *[]string, msg string) {
		if !seen[msg] {
			seen[msg] = true
			*list = append(*list, msg)
		}
	}
	blockedKeyword := func(kw string) string {
		return fmt.Sprintf("%s: %s", KindBlockedKeyword, kw)
	}

	for _, st := range script.Statements {
		switch {
		case cat.IsBlockedKeyword(st.Keyword):
			add(&violations, blockedKeyword(st.Keyword))
		case !cat.IsAllowedStatement(st.Keyword):
			add(&violations, fmt.Sprintf("%s: %s statements are not allowed", KindBlockedKeyword, st.Keyword))
		}

		if st.Keyword == "WITH" {
			switch {
			case cat.IsBlockedKeyword(st.BodyKeyword):
				add(&violations, blockedKeyword(st.BodyKeyword))
			case st.BodyKeyword == "WITH" || !cat.IsAllowedStatement(st.BodyKeyword):
				add(&violations, fmt.Sprintf("%s: WITH clause introduces a %s statement", KindBlockedKeyword, st.BodyKeyword))
			}
		}

		for _, kw := range st.Keywords {
			if cat.IsBlockedKeyword(kw) {
				add(&violations, blockedKeyword(kw))
			}
		}

		for _, fn := range st.Functions {
			name := fn.QualifiedName()
			switch {
			case cat.IsBlockedFunction(fn):
				add(&violations, fmt.Sprintf("%s: %s", KindBlockedFunction, name))
			case cat.IsConstructionFunction(fn) && cat.Policy() == catalog.PolicyBlock:
				add(&violations, fmt.Sprintf("%s: %s can assemble dynamic SQL", KindBlockedFunction, name))
			case cat.IsConstructionFunction(fn):
				add(&warnings, fmt.Sprintf("%s: %s can assemble dynamic SQL", KindConstructionFunction, name))
			}
		}
	}
	return violations, warnings
}
