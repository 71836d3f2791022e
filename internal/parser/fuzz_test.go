package parser

import "testing"

// FuzzParse checks that arbitrary input never panics the parser and that
// anything that parses renders back to a form that parses to the same
// rendering.
func FuzzParse(f *testing.F) {
	seeds := []string{
		"(define-public (inc) (ok (var-get count)))",
		"(let ((a 1) (b u2)) (print (+ a a)) b)",
		"'SC000000000000000000002Q6VF78.vault",
		".vault.token",
		"(list 0x00ff \"str\" <t>)",
		"((((()))))",
		";; only a comment",
		"u340282366920938463463374607431768211455",
	}
	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, input string) {
		exprs, err := Parse(input)
		if err != nil {
			return
		}
		for _, e := range exprs {
			rendered := e.String()
			again, err := ParseOne(rendered)
			if err != nil {
				t.Fatalf("rendered form %q does not parse: %v", rendered, err)
			}
			if again.String() != rendered {
				t.Fatalf("rendering not stable: %q became %q", rendered, again.String())
			}
		}
	})
}
