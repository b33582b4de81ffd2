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
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenKind classifies a lexical token.
type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenWord
	TokenQuotedIdent
	TokenString
	TokenNumber
	TokenParam
	TokenPunct
	TokenOperator
)

func (k TokenKind) String() string {
	switch k {
	case TokenEOF:
		return "EOF"
	case TokenWord:
		return "word"
	case TokenQuotedIdent:
		return "quoted identifier"
	case TokenString:
		return "string"
	case TokenNumber:
		return "number"
	case TokenParam:
		return "parameter"
	case TokenPunct:
		return "punctuation"
	case TokenOperator:
		return "operator"
	default:
		return fmt.Sprintf("TokenKind(%d)", int(k))
	}
}

// Token is one lexical unit. Text holds the source text, except for words,
// which are upper-cased, and quoted identifiers, which hold the unquoted name.
type Token struct {
	Kind TokenKind
	Text string
	Pos  int
}

// ParseError reports where and why a statement could not be parsed.
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("at offset %d: %s", e.Pos, e.Msg)
}

func errorf(pos int, format string, args ...interface{}) *ParseError {
	return &ParseError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

const operatorChars = "=<>!^|&~+-*/%"

type lexer struct {
	src string
	pos int
}

// Tokenize splits sql into tokens. Comments and whitespace are dropped.
// Unterminated literals, quoted identifiers and block comments are errors,
// as is any character outside the SQL character set.
func Tokenize(sql string) ([]Token, error) {
	if !utf8.ValidString(sql) {
		return nil, errorf(0, "statement is not valid UTF-8")
	}
	lx := &lexer{src: sql}
	var toks []Token
	for {
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == TokenEOF {
			return toks, nil
		}
		toks = append(toks, tok)
	}
}

func (lx *lexer) peekRune(off int) rune {
	if lx.pos+off >= len(lx.src) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(lx.src[lx.pos+off:])
	return r
}

func (lx *lexer) next() (Token, error) {
	if err := lx.skipSpaceAndComments(); err != nil {
		return Token{}, err
	}
	if lx.pos >= len(lx.src) {
		return Token{Kind: TokenEOF, Pos: lx.pos}, nil
	}

	start := lx.pos
	r, size := utf8.DecodeRuneInString(lx.src[lx.pos:])

	switch {
	case r == '\'':
		return lx.quoted(start, '\'', TokenString)
	case r == '"':
		return lx.quoted(start, '"', TokenQuotedIdent)
	case isIdentStart(r):
		lx.pos += size
		for lx.pos < len(lx.src) {
			r, size = utf8.DecodeRuneInString(lx.src[lx.pos:])
			if !isIdentPart(r) {
				break
			}
			lx.pos += size
		}
		return Token{Kind: TokenWord, Text: strings.ToUpper(lx.src[start:lx.pos]), Pos: start}, nil
	case isDigit(r) || (r == '.' && isDigit(lx.peekRune(1))):
		return lx.number(start), nil
	case r == '?':
		lx.pos++
		return Token{Kind: TokenParam, Text: "?", Pos: start}, nil
	case r == ':' && isIdentStart(lx.peekRune(1)):
		lx.pos++
		for lx.pos < len(lx.src) {
			r, size = utf8.DecodeRuneInString(lx.src[lx.pos:])
			if !isIdentPart(r) {
				break
			}
			lx.pos += size
		}
		return Token{Kind: TokenParam, Text: lx.src[start:lx.pos], Pos: start}, nil
	case strings.ContainsRune("(),;.[]{}:", r):
		lx.pos++
		return Token{Kind: TokenPunct, Text: string(r), Pos: start}, nil
	case strings.ContainsRune(operatorChars, r):
		for lx.pos < len(lx.src) && strings.IndexByte(operatorChars, lx.src[lx.pos]) >= 0 {
			// "--" and "/*" start comments even directly after an operator.
			if lx.pos > start && (strings.HasPrefix(lx.src[lx.pos:], "--") || strings.HasPrefix(lx.src[lx.pos:], "/*")) {
				break
			}
			lx.pos++
		}
		return Token{Kind: TokenOperator, Text: lx.src[start:lx.pos], Pos: start}, nil
	}

	return Token{}, errorf(start, "unexpected character %q", r)
}

func (lx *lexer) skipSpaceAndComments() error {
	for lx.pos < len(lx.src) {
		r, size := utf8.DecodeRuneInString(lx.src[lx.pos:])
		switch {
		case unicode.IsSpace(r):
			lx.pos += size
		case strings.HasPrefix(lx.src[lx.pos:], "--"):
			end := strings.IndexByte(lx.src[lx.pos:], '\n')
			if end < 0 {
				lx.pos = len(lx.src)
			} else {
				lx.pos += end + 1
			}
		case strings.HasPrefix(lx.src[lx.pos:], "/*"):
			if err := lx.blockComment(); err != nil {
				return err
			}
		default:
			return nil
		}
	}
	return nil
}

// blockComment consumes a possibly nested /* ... */ comment.
func (lx *lexer) blockComment() error {
	start := lx.pos
	depth := 0
	for lx.pos < len(lx.src) {
		switch {
		case strings.HasPrefix(lx.src[lx.pos:], "/*"):
			depth++
			lx.pos += 2
		case strings.HasPrefix(lx.src[lx.pos:], "*/"):
			depth--
			lx.pos += 2
			if depth == 0 {
				return nil
			}
		default:
			lx.pos++
		}
	}
	return errorf(start, "unterminated block comment")
}

// quoted consumes a literal delimited by q, where a doubled q is an escaped q.
func (lx *lexer) quoted(start int, q byte, kind TokenKind) (Token, error) {
	var b strings.Builder
	lx.pos++
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		if c == q {
			if lx.pos+1 < len(lx.src) && lx.src[lx.pos+1] == q {
				b.WriteByte(q)
				lx.pos += 2
				continue
			}
			lx.pos++
			if kind == TokenQuotedIdent {
				if b.Len() == 0 {
					return Token{}, errorf(start, "empty quoted identifier")
				}
				return Token{Kind: kind, Text: b.String(), Pos: start}, nil
			}
			return Token{Kind: kind, Text: lx.src[start:lx.pos], Pos: start}, nil
		}
		b.WriteByte(c)
		lx.pos++
	}
	if kind == TokenQuotedIdent {
		return Token{}, errorf(start, "unterminated quoted identifier")
	}
	return Token{}, errorf(start, "unterminated string literal")
}

func (lx *lexer) number(start int) Token {
	seenDot, seenExp := false, false
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch {
		case c >= '0' && c <= '9':
			lx.pos++
		case c == '.' && !seenDot && !seenExp:
			seenDot = true
			lx.pos++
		case (c == 'e' || c == 'E') && !seenExp:
			next := byte(0)
			if lx.pos+1 < len(lx.src) {
				next = lx.src[lx.pos+1]
			}
			if next == '+' || next == '-' {
				if lx.pos+2 < len(lx.src) && isDigit(rune(lx.src[lx.pos+2])) {
					seenExp = true
					lx.pos += 2
					continue
				}
				return Token{Kind: TokenNumber, Text: lx.src[start:lx.pos], Pos: start}
			}
			if !isDigit(rune(next)) {
				return Token{Kind: TokenNumber, Text: lx.src[start:lx.pos], Pos: start}
			}
			seenExp = true
			lx.pos++
		default:
			return Token{Kind: TokenNumber, Text: lx.src[start:lx.pos], Pos: start}
		}
	}
	return Token{Kind: TokenNumber, Text: lx.src[start:lx.pos], Pos: start}
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// IBM i object names may contain $, # and @.
func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || r == '#' || r == '@' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}
