package lexer

import "testing"

func TestNextToken(t *testing.T) {
	input := `;; counter contract
(define-data-var count uint u0)
(define-public (add (n int))
  (ok (+ n -5)))
(print "hi \"there\"")
(use-trait token .registry.token)
(call 'SC000000000000000000002Q6VF78.vault deposit 0x4f5a <token>)`

	tests := []struct {
		expectedType    TokenType
		expectedLiteral string
	}{
		{LPAREN, "("},
		{ATOM, "define-data-var"},
		{ATOM, "count"},
		{ATOM, "uint"},
		{UINT, "0"},
		{RPAREN, ")"},
		{LPAREN, "("},
		{ATOM, "define-public"},
		{LPAREN, "("},
		{ATOM, "add"},
		{LPAREN, "("},
		{ATOM, "n"},
		{ATOM, "int"},
		{RPAREN, ")"},
		{RPAREN, ")"},
		{LPAREN, "("},
		{ATOM, "ok"},
		{LPAREN, "("},
		{ATOM, "+"},
		{ATOM, "n"},
		{INT, "-5"},
		{RPAREN, ")"},
		{RPAREN, ")"},
		{RPAREN, ")"},
		{LPAREN, "("},
		{ATOM, "print"},
		{STRING, `hi "there"`},
		{RPAREN, ")"},
		{LPAREN, "("},
		{ATOM, "use-trait"},
		{ATOM, "token"},
		{SUGARED, ".registry.token"},
		{RPAREN, ")"},
		{LPAREN, "("},
		{ATOM, "call"},
		{PRINCIPAL, "SC000000000000000000002Q6VF78.vault"},
		{ATOM, "deposit"},
		{BUFFER, "4f5a"},
		{TRAITREF, "token"},
		{RPAREN, ")"},
		{EOF, ""},
	}

	l := New(input)
	for i, tt := range tests {
		tok := l.NextToken()
		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - tokentype wrong. expected=%q, got=%q (%q)", i, tt.expectedType, tok.Type, tok.Literal)
		}
		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q", i, tt.expectedLiteral, tok.Literal)
		}
	}
}

func TestTokenPositions(t *testing.T) {
	l := New("(ok\n  u1)")

	expected := []struct {
		line   int
		column int
	}{
		{1, 1},
		{1, 2},
		{2, 3},
		{2, 5},
	}
	for i, want := range expected {
		tok := l.NextToken()
		if tok.Line != want.line || tok.Column != want.column {
			t.Errorf("token %d position wrong. expected=%d:%d, got=%d:%d", i, want.line, want.column, tok.Line, tok.Column)
		}
	}
}

func TestLessThanVersusTraitRef(t *testing.T) {
	l := New("(< a b) (<= a b) (f <tok>)")

	var got []Token
	for tok := l.NextToken(); tok.Type != EOF; tok = l.NextToken() {
		got = append(got, tok)
	}

	literals := []struct {
		typ     TokenType
		literal string
	}{
		{LPAREN, "("}, {ATOM, "<"}, {ATOM, "a"}, {ATOM, "b"}, {RPAREN, ")"},
		{LPAREN, "("}, {ATOM, "<="}, {ATOM, "a"}, {ATOM, "b"}, {RPAREN, ")"},
		{LPAREN, "("}, {ATOM, "f"}, {TRAITREF, "tok"}, {RPAREN, ")"},
	}
	if len(got) != len(literals) {
		t.Fatalf("token count wrong. expected=%d, got=%d", len(literals), len(got))
	}
	for i, want := range literals {
		if got[i].Type != want.typ || got[i].Literal != want.literal {
			t.Errorf("token %d wrong. expected=%q %q, got=%q %q", i, want.typ, want.literal, got[i].Type, got[i].Literal)
		}
	}
}

func TestIllegalInput(t *testing.T) {
	tests := []struct {
		input string
	}{
		{`"unterminated`},
		{`"bad \q escape"`},
		{"0x4f5"},
		{"123abc"},
		{"'"},
		{"'SC000000000000000000002Q6VF78.vault.token.extra"},
		{"<unclosed"},
		{"@"},
	}
	for _, tt := range tests {
		l := New(tt.input)
		found := false
		for i := 0; i < 16; i++ {
			tok := l.NextToken()
			if tok.Type == ILLEGAL {
				found = true
				break
			}
			if tok.Type == EOF {
				break
			}
		}
		if !found {
			t.Errorf("input %q produced no ILLEGAL token", tt.input)
		}
	}
}
