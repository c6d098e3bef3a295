package reg

import "testing"

func TestLookupCanonicalAndAliases(t *testing.T) {
	cases := map[string]Reg{
		"a0": A0, "x10": A0, "sp": SP, "x2": SP, "fp": S0, "x8": S0, "zero": Zero, "x0": Zero,
	}
	for name, want := range cases {
		got, ok := Lookup(name)
		if !ok {
			t.Errorf("Lookup(%q) not found", name)
			continue
		}
		if got != want {
			t.Errorf("Lookup(%q) = %v, want %v", name, got, want)
		}
	}
	if _, ok := Lookup("not-a-register"); ok {
		t.Errorf("Lookup(garbage) = ok, want not found")
	}
}

func TestClassAndSavedness(t *testing.T) {
	if !S0.IsCalleeSaved() || S0.IsCallerSaved() {
		t.Errorf("s0 should be callee-saved only")
	}
	if !T0.IsCallerSaved() || T0.IsCalleeSaved() {
		t.Errorf("t0 should be caller-saved only")
	}
	if !A0.IsCallerSaved() {
		t.Errorf("a0 should be caller-saved")
	}
	if !SP.IsCalleeSaved() {
		t.Errorf("sp should be callee-saved")
	}
	if RA.Class() != ClassRA {
		t.Errorf("ra class = %v, want ClassRA", RA.Class())
	}
}

func TestSetOps(t *testing.T) {
	s := NewSet(A0, A1, T0)
	if !s.Has(A0) || !s.Has(A1) || !s.Has(T0) {
		t.Fatalf("NewSet missing members: %v", s.Slice())
	}
	if s.Has(S0) {
		t.Errorf("s unexpectedly has s0")
	}

	s2 := s.Remove(T0)
	if s2.Has(T0) {
		t.Errorf("Remove(t0) left t0 in the set")
	}
	if !s2.Has(A0) {
		t.Errorf("Remove(t0) dropped an unrelated register")
	}

	u := NewSet(A0).Union(NewSet(A1))
	if !u.Has(A0) || !u.Has(A1) {
		t.Errorf("Union missing members: %v", u.Slice())
	}

	i := NewSet(A0, A1).Intersect(NewSet(A1, A2))
	if i.Slice()[0] != A1 || len(i.Slice()) != 1 {
		t.Errorf("Intersect = %v, want {a1}", i.Slice())
	}

	d := NewSet(A0, A1).Diff(NewSet(A1))
	if d.Slice()[0] != A0 || len(d.Slice()) != 1 {
		t.Errorf("Diff = %v, want {a0}", d.Slice())
	}

	if !NewSet().Empty() {
		t.Errorf("empty set reported non-empty")
	}
	if NewSet(A0).Empty() {
		t.Errorf("non-empty set reported empty")
	}
}

func TestStringRoundTrip(t *testing.T) {
	for r := Zero; r <= T6; r++ {
		name := r.String()
		if name == "invalid" {
			t.Errorf("register %d has no canonical name", r)
			continue
		}
		got, ok := Lookup(name)
		if !ok || got != r {
			t.Errorf("Lookup(%q) = %v, %v, want %v, true", name, got, ok, r)
		}
	}
}
