// Package lexer tokenizes contract source. The language is ASCII only, so
// the lexer works byte by byte.
package lexer

import "strings"

// Lexer scans one source text.
type Lexer struct {
	input        string
	position     int
	readPosition int
	ch           byte
	line         int
	column       int
}

// New prepares a lexer positioned on the first character.
func New(input string) *Lexer {
	l := &Lexer{input: input, line: 1}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
	if l.ch == '\n' {
		l.line++
		l.column = 0
	} else {
		l.column++
	}
}

func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

// NextToken scans and returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	tok := Token{Line: l.line, Column: l.column}

	switch {
	case l.ch == 0:
		tok.Type = EOF
	case l.ch == '(':
		tok.Type = LPAREN
		tok.Literal = "("
		l.readChar()
	case l.ch == ')':
		tok.Type = RPAREN
		tok.Literal = ")"
		l.readChar()
	case l.ch == '"':
		return l.readString(tok)
	case l.ch == '\'':
		return l.readPrincipal(tok)
	case l.ch == '.' && isContractNameChar(l.peekChar()):
		return l.readSugared(tok)
	case l.ch == '0' && l.peekChar() == 'x':
		return l.readBuffer(tok)
	case isDigit(l.ch) || (l.ch == '-' && isDigit(l.peekChar())):
		return l.readInt(tok)
	case l.ch == 'u' && isDigit(l.peekChar()):
		return l.readUint(tok)
	case l.ch == '<' && isLetter(l.peekChar()):
		return l.readTraitRef(tok)
	case isAtomChar(l.ch):
		return l.readAtom(tok)
	default:
		tok.Type = ILLEGAL
		tok.Literal = "unexpected character " + string(l.ch)
		l.readChar()
	}
	return tok
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		switch l.ch {
		case ' ', '\t', '\n', '\r':
			l.readChar()
		case ';':
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
		default:
			return
		}
	}
}

func (l *Lexer) readString(tok Token) Token {
	l.readChar()
	var sb strings.Builder
	for l.ch != '"' {
		switch {
		case l.ch == 0 || l.ch == '\n':
			return illegal(tok, "unterminated string literal")
		case l.ch == '\\':
			l.readChar()
			switch l.ch {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '\\':
				sb.WriteByte('\\')
			case '"':
				sb.WriteByte('"')
			default:
				return illegal(tok, "unknown escape sequence in string literal")
			}
		case l.ch < 0x20 || l.ch > 0x7e:
			return illegal(tok, "string literals must be printable ASCII")
		default:
			sb.WriteByte(l.ch)
		}
		l.readChar()
	}
	l.readChar()
	tok.Type = STRING
	tok.Literal = sb.String()
	return tok
}

// readPrincipal scans 'ADDRESS with up to two dotted lowercase segments:
// a contract name and optionally a trait name.
func (l *Lexer) readPrincipal(tok Token) Token {
	l.readChar()
	start := l.position
	if !isAddressChar(l.ch) {
		return illegal(tok, "principal literal missing address")
	}
	for isAddressChar(l.ch) {
		l.readChar()
	}
	for seg := 0; seg < 2 && l.ch == '.'; seg++ {
		if !isContractNameChar(l.peekChar()) {
			return illegal(tok, "principal literal has an empty name segment")
		}
		l.readChar()
		for isContractNameChar(l.ch) {
			l.readChar()
		}
	}
	if !l.atDelimiter() {
		return illegal(tok, "malformed principal literal")
	}
	tok.Type = PRINCIPAL
	tok.Literal = l.input[start:l.position]
	return tok
}

func (l *Lexer) readSugared(tok Token) Token {
	start := l.position
	l.readChar()
	for isContractNameChar(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isContractNameChar(l.peekChar()) {
		l.readChar()
		for isContractNameChar(l.ch) {
			l.readChar()
		}
	}
	if !l.atDelimiter() {
		return illegal(tok, "malformed contract reference")
	}
	tok.Type = SUGARED
	tok.Literal = l.input[start:l.position]
	return tok
}

func (l *Lexer) readBuffer(tok Token) Token {
	l.readChar()
	l.readChar()
	start := l.position
	for isHexDigit(l.ch) {
		l.readChar()
	}
	literal := l.input[start:l.position]
	if len(literal)%2 != 0 {
		return illegal(tok, "buffer literal has an odd number of hex digits")
	}
	if !l.atDelimiter() {
		return illegal(tok, "malformed buffer literal")
	}
	tok.Type = BUFFER
	tok.Literal = literal
	return tok
}

func (l *Lexer) readInt(tok Token) Token {
	start := l.position
	if l.ch == '-' {
		l.readChar()
	}
	for isDigit(l.ch) {
		l.readChar()
	}
	if !l.atDelimiter() {
		return illegal(tok, "malformed integer literal")
	}
	tok.Type = INT
	tok.Literal = l.input[start:l.position]
	return tok
}

func (l *Lexer) readUint(tok Token) Token {
	l.readChar()
	start := l.position
	for isDigit(l.ch) {
		l.readChar()
	}
	if !l.atDelimiter() {
		return illegal(tok, "malformed integer literal")
	}
	tok.Type = UINT
	tok.Literal = l.input[start:l.position]
	return tok
}

func (l *Lexer) readTraitRef(tok Token) Token {
	l.readChar()
	start := l.position
	for isAtomChar(l.ch) && l.ch != '<' && l.ch != '>' {
		l.readChar()
	}
	if l.ch != '>' {
		return illegal(tok, "unterminated trait reference")
	}
	literal := l.input[start:l.position]
	l.readChar()
	if !l.atDelimiter() {
		return illegal(tok, "malformed trait reference")
	}
	tok.Type = TRAITREF
	tok.Literal = literal
	return tok
}

func (l *Lexer) readAtom(tok Token) Token {
	start := l.position
	for isAtomChar(l.ch) {
		l.readChar()
	}
	tok.Type = ATOM
	tok.Literal = l.input[start:l.position]
	return tok
}

func (l *Lexer) atDelimiter() bool {
	switch l.ch {
	case 0, ' ', '\t', '\n', '\r', '(', ')', ';':
		return true
	}
	return false
}

func illegal(tok Token, reason string) Token {
	tok.Type = ILLEGAL
	tok.Literal = reason
	return tok
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isHexDigit(ch byte) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

func isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isAddressChar(ch byte) bool {
	return (ch >= 'A' && ch <= 'Z') || isDigit(ch)
}

func isContractNameChar(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || isDigit(ch) || ch == '-'
}

func isAtomChar(ch byte) bool {
	if isLetter(ch) || isDigit(ch) {
		return true
	}
	switch ch {
	case '+', '-', '*', '/', '<', '>', '=', '!', '?', '_':
		return true
	}
	return false
}
