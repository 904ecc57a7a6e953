package flags

import "testing"

func TestAllowedByIsUniversal(t *testing.T) {
	s := New()
	s.Add("a")

	if s.AllowedBy([]string{"a", "b"}) {
		t.Errorf("AllowedBy([a,b]) = true, want false (b is not active)")
	}
	s.Add("b")
	if !s.AllowedBy([]string{"a", "b"}) {
		t.Errorf("AllowedBy([a,b]) = false, want true once both active")
	}
}

func TestDeniedBy(t *testing.T) {
	s := New()
	s.Add("silent")
	if !s.DeniedBy([]string{"silent"}) {
		t.Errorf("DeniedBy([silent]) = false, want true")
	}
	s.Remove("silent")
	if s.DeniedBy([]string{"silent"}) {
		t.Errorf("DeniedBy([silent]) = true after Remove, want false")
	}
}

func TestListPreservesInsertionOrder(t *testing.T) {
	s := New()
	s.Add("z")
	s.Add("a")
	s.Add("z") // no-op, should not move
	got := s.List()
	want := []string{"z", "a"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("List() = %v, want %v", got, want)
	}
}

func TestNilSetIsNoop(t *testing.T) {
	var s *Set
	s.Add("x")
	if s.Test("x") {
		t.Errorf("nil Set Test() = true, want false")
	}
	if s.List() != nil {
		t.Errorf("nil Set List() = %v, want nil", s.List())
	}
}

func TestReset(t *testing.T) {
	s := New()
	s.Add("a")
	s.Reset()
	if s.Test("a") {
		t.Errorf("Test(a) after Reset = true, want false")
	}
}
