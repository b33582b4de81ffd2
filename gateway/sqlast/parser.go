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

package sqlast

import (
	"strings"
)

// FunctionCall is a name applied to a parenthesised argument list.
type FunctionCall struct {
	Schema string
	Name   string
	Pos    int
}

// QualifiedName returns SCHEMA.NAME, or NAME when unqualified.
func (f FunctionCall) QualifiedName() string {
	if f.Schema == "" {
		return f.Name
	}
	return f.Schema + "." + f.Name
}

// Statement is the structure extracted from one SQL statement.
type Statement struct {
	// Keyword is the leading statement keyword (SELECT, WITH, DROP, ...).
	Keyword string

	// BodyKeyword is the keyword of the statement a WITH clause introduces.
	// For statements without a WITH clause it equals Keyword.
	BodyKeyword string

	// Keywords lists every bare word in keyword position, in order of first
	// appearance. Words used as function names or qualified names are left out.
	Keywords []string

	// Functions lists every function call in source order.
	Functions []FunctionCall

	// Pos is the offset of the first token.
	Pos int
}

// Script is a parsed input of one or more statements.
type Script struct {
	Statements []*Statement
}

// Chained reports whether the input held more than one statement.
func (s *Script) Chained() bool {
	return len(s.Statements) > 1
}

// notFunctions are words that may be directly followed by "(" without being
// a function call.
var notFunctions = map[string]bool{
	"ALL": true, "AND": true, "ANY": true, "AS": true, "BETWEEN": true, "BY": true,
	"CASE": true, "DISTINCT": true, "ELSE": true, "EXCEPT": true, "EXISTS": true,
	"FILTER": true, "FROM": true, "GROUP": true, "HAVING": true, "IN": true,
	"INTERSECT": true, "INTO": true, "IS": true, "JOIN": true, "KEY": true,
	"LATERAL": true, "LIKE": true, "MINUS": true, "NOT": true, "ON": true,
	"OR": true, "OVER": true, "PARTITION": true, "RECURSIVE": true, "SELECT": true,
	"SOME": true, "TABLE": true, "THEN": true, "UNION": true, "UNIQUE": true,
	"USING": true, "VALUES": true, "WHEN": true, "WHERE": true, "WITH": true,
	"WITHIN": true,
}

type parser struct {
	toks []Token
	pos  int
}

// Parse tokenizes sql and extracts its statement structure. The input must
// hold at least one statement. Statements are separated by top-level
// semicolons; a single trailing semicolon is allowed.
func Parse(sql string) (*Script, error) {
	toks, err := Tokenize(sql)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, errorf(0, "empty statement")
	}

	var script Script
	start := 0
	depth := 0
	for i, tok := range toks {
		if tok.Kind != TokenPunct {
			continue
		}
		switch tok.Text {
		case "(":
			depth++
		case ")":
			depth--
			if depth < 0 {
				return nil, errorf(tok.Pos, "unbalanced ')'")
			}
		case ";":
			if depth != 0 {
				return nil, errorf(tok.Pos, "';' inside parentheses")
			}
			if i == start {
				return nil, errorf(tok.Pos, "empty statement before ';'")
			}
			stmt, err := parseStatement(toks[start:i])
			if err != nil {
				return nil, err
			}
			script.Statements = append(script.Statements, stmt)
			start = i + 1
		}
	}
	if depth != 0 {
		return nil, errorf(len(sql), "unbalanced '('")
	}
	if start < len(toks) {
		stmt, err := parseStatement(toks[start:])
		if err != nil {
			return nil, err
		}
		script.Statements = append(script.Statements, stmt)
	}
	return &script, nil
}

func parseStatement(toks []Token) (*Statement, error) {
	p := &parser{toks: toks}

	// A query may be wrapped in parentheses: (SELECT 1) UNION (SELECT 2).
	for p.peek().Kind == TokenPunct && p.peek().Text == "(" {
		p.pos++
	}
	lead := p.peek()
	if lead.Kind != TokenWord {
		return nil, errorf(lead.Pos, "statement must begin with a keyword, found %s", lead.Kind)
	}

	stmt := &Statement{Keyword: lead.Text, BodyKeyword: lead.Text, Pos: toks[0].Pos}
	if lead.Text == "WITH" {
		body, err := p.withBody()
		if err != nil {
			return nil, err
		}
		stmt.BodyKeyword = body
	}

	collect(toks, stmt)
	return stmt, nil
}

func (p *parser) peek() Token {
	if p.pos >= len(p.toks) {
		pos := 0
		if n := len(p.toks); n > 0 {
			pos = p.toks[n-1].Pos
		}
		return Token{Kind: TokenEOF, Pos: pos}
	}
	return p.toks[p.pos]
}

func (p *parser) isPunct(s string) bool {
	t := p.peek()
	return t.Kind == TokenPunct && t.Text == s
}

func (p *parser) isWord(s string) bool {
	t := p.peek()
	return t.Kind == TokenWord && t.Text == s
}

// skipParens consumes a balanced parenthesised group starting at "(".
func (p *parser) skipParens() error {
	open := p.peek()
	depth := 0
	for p.pos < len(p.toks) {
		t := p.toks[p.pos]
		p.pos++
		if t.Kind != TokenPunct {
			continue
		}
		switch t.Text {
		case "(":
			depth++
		case ")":
			depth--
			if depth == 0 {
				return nil
			}
		}
	}
	return errorf(open.Pos, "unbalanced '('")
}

// withBody walks WITH [RECURSIVE] name [(cols)] AS (query) [, ...] and
// returns the keyword that follows the common table expressions.
func (p *parser) withBody() (string, error) {
	p.pos++ // WITH
	if p.isWord("RECURSIVE") {
		p.pos++
	}
	for {
		name := p.peek()
		if name.Kind != TokenWord && name.Kind != TokenQuotedIdent {
			return "", errorf(name.Pos, "expected common table expression name, found %s", name.Kind)
		}
		p.pos++
		if p.isPunct("(") {
			if err := p.skipParens(); err != nil {
				return "", err
			}
		}
		if !p.isWord("AS") {
			return "", errorf(p.peek().Pos, "expected AS after common table expression name")
		}
		p.pos++
		if !p.isPunct("(") {
			return "", errorf(p.peek().Pos, "expected '(' after AS")
		}
		if err := p.skipParens(); err != nil {
			return "", err
		}
		if !p.isPunct(",") {
			break
		}
		p.pos++
	}
	for p.isPunct("(") {
		p.pos++
	}
	body := p.peek()
	if body.Kind != TokenWord {
		return "", errorf(body.Pos, "expected statement after WITH clause")
	}
	return body.Text, nil
}

// collect records keywords and function calls over the whole statement.
func collect(toks []Token, stmt *Statement) {
	seen := make(map[string]bool)
	for i, t := range toks {
		if t.Kind != TokenWord && t.Kind != TokenQuotedIdent {
			continue
		}
		prevDot := i > 0 && toks[i-1].Kind == TokenPunct && toks[i-1].Text == "."
		nextDot := i+1 < len(toks) && toks[i+1].Kind == TokenPunct && toks[i+1].Text == "."
		nextParen := i+1 < len(toks) && toks[i+1].Kind == TokenPunct && toks[i+1].Text == "("
		// AS introduces an alias or, inside CAST, a data type.
		prevAs := i > 0 && toks[i-1].Kind == TokenWord && toks[i-1].Text == "AS"
		if prevAs {
			continue
		}

		if nextParen && !(t.Kind == TokenWord && notFunctions[t.Text]) {
			call := FunctionCall{Name: strings.ToUpper(t.Text), Pos: t.Pos}
			if prevDot && i >= 2 && (toks[i-2].Kind == TokenWord || toks[i-2].Kind == TokenQuotedIdent) {
				call.Schema = strings.ToUpper(toks[i-2].Text)
			}
			stmt.Functions = append(stmt.Functions, call)
			continue
		}
		if t.Kind != TokenWord || prevDot || nextDot {
			continue
		}
		if !seen[t.Text] {
			seen[t.Text] = true
			stmt.Keywords = append(stmt.Keywords, t.Text)
		}
	}
}
