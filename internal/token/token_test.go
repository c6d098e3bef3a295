package token

import "testing"

func kinds(t *testing.T, src string) []Kind {
	t.Helper()
	l := New("test.s", src)
	var ks []Kind
	for {
		tok := l.Next()
		ks = append(ks, tok.Kind)
		if tok.Kind == EOF {
			return ks
		}
	}
}

func TestTokenizeInstructionLine(t *testing.T) {
	got := kinds(t, "addi sp, sp, -4\n")
	want := []Kind{Ident, Register, Comma, Register, Comma, Number, Newline, EOF}
	if len(got) != len(want) {
		t.Fatalf("kinds = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %v, want %v (%v)", i, got[i], want[i], got)
		}
	}
}

func TestTokenizeSemicolonSeparatesStatements(t *testing.T) {
	got := kinds(t, "li a0, 1; li a1, 2\n")
	semiCount := 0
	for _, k := range got {
		if k == Semi {
			semiCount++
		}
	}
	if semiCount != 1 {
		t.Errorf("semi count = %d, want 1 in %v", semiCount, got)
	}
}

func TestTokenizeMemoryOperand(t *testing.T) {
	got := kinds(t, "lw s0, 4(sp)\n")
	want := []Kind{Ident, Register, Comma, Number, LParen, Register, RParen, Newline, EOF}
	if len(got) != len(want) {
		t.Fatalf("kinds = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %v, want %v (%v)", i, got[i], want[i], got)
		}
	}
}

func TestTokenizeCommentIsIgnoredByKindNotDropped(t *testing.T) {
	got := kinds(t, "ret # done\n")
	foundComment := false
	for _, k := range got {
		if k == Comment {
			foundComment = true
		}
	}
	if !foundComment {
		t.Errorf("expected a Comment token, got %v", got)
	}
}

func TestPeekDoesNotConsume(t *testing.T) {
	l := New("test.s", "ret\n")
	first := l.Peek()
	second := l.Peek()
	if first != second {
		t.Errorf("Peek() not idempotent: %v then %v", first, second)
	}
	consumed := l.Next()
	if consumed != first {
		t.Errorf("Next() after Peek() = %v, want %v", consumed, first)
	}
}
