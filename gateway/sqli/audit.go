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
	"time"
)

// AuditEvent records a rejected statement for the audit log.
type AuditEvent struct {
	// Type identifies this as a statement rejection event
	Type string `json:"type"`

	// Timestamp when the rejection occurred (UTC)
	Timestamp time.Time `json:"timestamp"`

	// Severity of the rejection (critical, high, medium, low)
	Severity string `json:"severity"`

	// Subject is the authenticated host the statement was aimed at, if known
	Subject string `json:"subject,omitempty"`

	// RequestID for tracing (if available)
	RequestID string `json:"request_id,omitempty"`

	// Method records which detection path(s) produced the verdict
	Method string `json:"method"`

	// Violations are the verdict's violation strings
	Violations []string `json:"violations"`

	// Matches lists the patterns that fired
	Matches []Match `json:"matches,omitempty"`

	// PatternSeverity is the highest numeric severity among Matches
	PatternSeverity int `json:"pattern_severity,omitempty"`

	// ScanDuration of the pattern pass
	ScanDuration time.Duration `json:"scan_duration_ns"`

	// InputSnippet is a sanitized snippet of the statement
	InputSnippet string `json:"input_snippet,omitempty"`
}

// AuditEventType is the type string for statement rejection events.
const AuditEventType = "statement_rejected"

// Severity levels
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

var severityRank = map[string]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// CategorySeverity maps pattern categories to severity levels.
func CategorySeverity(category Category) string {
	switch category {
	case CategoryStackedQueries, CategoryDangerousQuery:
		return SeverityCritical
	case CategoryUnionBased, CategoryTimeBased, CategoryDynamicSQL:
		return SeverityHigh
	case CategoryBooleanBlind, CategoryCommentInjection:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// NewAuditEvent builds an event for a rejected statement. scan may be nil
// when the pattern pass did not run. Structural violations without any
// pattern match are rated high.
func NewAuditEvent(statement, method string, violations []string, scan *Result) *AuditEvent {
	if len(violations) == 0 {
		return nil
	}

	e := &AuditEvent{
		Type:         AuditEventType,
		Timestamp:    time.Now().UTC(),
		Severity:     SeverityHigh,
		Method:       method,
		Violations:   append([]string(nil), violations...),
		InputSnippet: snippet(statement, snippetLength),
	}

	if scan != nil && len(scan.Matches) > 0 {
		e.Matches = append([]Match(nil), scan.Matches...)
		e.ScanDuration = scan.Duration
		e.PatternSeverity = scan.MaxSeverity()
		best := SeverityLow
		for _, m := range scan.Matches {
			if s := CategorySeverity(m.Category); severityRank[s] > severityRank[best] {
				best = s
			}
		}
		if severityRank[best] > severityRank[e.Severity] {
			e.Severity = best
		}
	}
	return e
}

// WithSubject sets the host the statement targeted.
func (e *AuditEvent) WithSubject(subject string) *AuditEvent {
	e.Subject = subject
	return e
}

// WithRequestID adds a request ID for tracing.
func (e *AuditEvent) WithRequestID(requestID string) *AuditEvent {
	e.RequestID = requestID
	return e
}

// ToAuditDetails converts the event to a map suitable for structured logging.
func (e *AuditEvent) ToAuditDetails() map[string]interface{} {
	patterns := make([]string, 0, len(e.Matches))
	for _, m := range e.Matches {
		patterns = append(patterns, m.Pattern)
	}
	return map[string]interface{}{
		"type":          e.Type,
		"severity":      e.Severity,
		"subject":       e.Subject,
		"method":        e.Method,
		"violations":    e.Violations,
		"patterns":      patterns,
		"pattern_max":   e.PatternSeverity,
		"scan_duration": e.ScanDuration.String(),
		"request_id":    e.RequestID,
		"input_snippet": e.InputSnippet,
	}
}

// AuditCallback receives rejection events.
type AuditCallback func(event *AuditEvent)

func snippet(s string, n int) string {
	if len(s) <= n {
		return SanitizeForLog(s)
	}
	return SanitizeForLog(s[:n]) + "..."
}
