package lexer

// TokenType identifies the lexical class of a token.
type TokenType string

const (
	// ILLEGAL marks input the lexer cannot tokenize. The literal carries
	// the reason.
	ILLEGAL TokenType = "ILLEGAL"
	EOF     TokenType = "EOF"

	LPAREN TokenType = "("
	RPAREN TokenType = ")"

	// ATOM is a bare name such as define-public, my-var or +.
	ATOM TokenType = "ATOM"

	// INT and UINT carry the digits, without the u prefix for UINT.
	INT  TokenType = "INT"
	UINT TokenType = "UINT"

	// BUFFER carries the hex digits without the 0x prefix.
	BUFFER TokenType = "BUFFER"

	// STRING carries the unescaped string contents.
	STRING TokenType = "STRING"

	// PRINCIPAL carries the text after the leading quote, such as
	// SC000000000000000000002Q6VF78.vault or with a trailing trait
	// segment for field references.
	PRINCIPAL TokenType = "PRINCIPAL"

	// SUGARED carries a leading-dot form such as .vault or .vault.token,
	// including the dot.
	SUGARED TokenType = "SUGARED"

	// TRAITREF carries the alias between angle brackets.
	TRAITREF TokenType = "TRAITREF"
)

// Token is one lexeme with its position in the source.
type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Column  int
}
