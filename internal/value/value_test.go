package value

import "testing"

func TestCompareNumericCrossWidth(t *testing.T) {
	cases := []struct {
		name string
		a, b Value
		want int
	}{
		{"int_lt_uint", Int(3), Uint(5), -1},
		{"double_eq_int", Double(4.0), Int(4), 0},
		{"uint_gt_double", Uint(10), Double(2.5), 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := Compare(c.a, c.b)
			if !ok {
				t.Fatalf("Compare() ok = false, want true")
			}
			if got != c.want {
				t.Errorf("Compare() = %d, want %d", got, c.want)
			}
		})
	}
}

func TestCompareTypeMismatchIsNotOrdered(t *testing.T) {
	_, ok := Compare(String("3"), Int(3))
	if ok {
		t.Errorf("Compare(string, int) ok = true, want false (type mismatch)")
	}
}

func TestCompareStrings(t *testing.T) {
	got, ok := Compare(String("abc"), String("abd"))
	if !ok || got != -1 {
		t.Errorf("Compare(abc, abd) = (%d, %v), want (-1, true)", got, ok)
	}
}

func TestCompareArrays(t *testing.T) {
	a := Array([]Value{Int(1), Int(2)})
	b := Array([]Value{Int(1), Int(3)})
	got, ok := Compare(a, b)
	if !ok || got != -1 {
		t.Errorf("Compare(arrays) = (%d, %v), want (-1, true)", got, ok)
	}
}

func TestLookup(t *testing.T) {
	m := Map(map[string]Value{"x": Int(1)})
	v, ok := m.Lookup("x")
	if !ok || v.Int != 1 {
		t.Errorf("Lookup(x) = (%v, %v), want (1, true)", v, ok)
	}
	if _, ok := m.Lookup("missing"); ok {
		t.Errorf("Lookup(missing) ok = true, want false")
	}
	if _, ok := String("s").Lookup("x"); ok {
		t.Errorf("Lookup on non-map ok = true, want false")
	}
}
