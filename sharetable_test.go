package evecache

import (
	"errors"
	"testing"
)

func TestShareTable_AppearanceOrder(t *testing.T) {
	st := NewShareTable(2, nil)
	a := must(st.Register(Str("a")))
	b := must(st.Register(Str("b")))
	if a != 0 || b != 1 {
		t.Fatalf("Register = %d, %d, wanted 0, 1", a, b)
	}
	if v := must(st.Resolve(1)); !v.Equal(Str("b")) {
		t.Fatalf("Resolve(1) = %v, wanted \"b\"", v)
	}
	if st.Len() != 2 || st.Cap() != 2 {
		t.Fatalf("Len, Cap = %d, %d, wanted 2, 2", st.Len(), st.Cap())
	}
	if _, err := st.Register(Str("c")); !errors.Is(err, ErrShareCursorOutOfRange) {
		t.Fatalf("Register past capacity: err = %v, wanted ErrShareCursorOutOfRange", err)
	}
}

func TestShareTable_ShareMap(t *testing.T) {
	st := NewShareTable(3, []uint32{3, 1, 2})
	if idx := must(st.Register(Int(10))); idx != 2 {
		t.Fatalf("first Register = %d, wanted 2", idx)
	}
	if _, err := st.Resolve(0); !errors.Is(err, ErrShareIndexOutOfRange) {
		t.Fatalf("Resolve(0) before registration: err = %v, wanted ErrShareIndexOutOfRange", err)
	}
	must(st.Register(Int(20)))
	must(st.Register(Int(30)))
	for idx, want := range []int64{20, 30, 10} {
		v := must(st.Resolve(idx))
		if n, _ := v.AsInt(); n != want {
			t.Fatalf("Resolve(%d) = %v, wanted %d", idx, v, want)
		}
	}
}

func TestShareTable_Errors(t *testing.T) {
	t.Run("id out of range", func(t *testing.T) {
		st := NewShareTable(1, []uint32{2})
		if _, err := st.Reserve(); !errors.Is(err, ErrShareIdOutOfRange) {
			t.Fatalf("Reserve: err = %v, wanted ErrShareIdOutOfRange", err)
		}
	})
	t.Run("id zero", func(t *testing.T) {
		st := NewShareTable(1, []uint32{0})
		if _, err := st.Reserve(); !errors.Is(err, ErrShareIdOutOfRange) {
			t.Fatalf("Reserve: err = %v, wanted ErrShareIdOutOfRange", err)
		}
	})
	t.Run("id assigned twice", func(t *testing.T) {
		st := NewShareTable(2, []uint32{1, 1})
		must(st.Register(None()))
		if _, err := st.Reserve(); !errors.Is(err, ErrShareIdOutOfRange) {
			t.Fatalf("Reserve: err = %v, wanted ErrShareIdOutOfRange", err)
		}
	})
	t.Run("under construction", func(t *testing.T) {
		st := NewShareTable(1, nil)
		idx := must(st.Reserve())
		if _, err := st.Resolve(idx); !errors.Is(err, ErrShareNotFound) {
			t.Fatalf("Resolve while constructing: err = %v, wanted ErrShareNotFound", err)
		}
		st.Fill(idx, List())
		if _, err := st.Resolve(idx); err != nil {
			t.Fatalf("Resolve after Fill: %v", err)
		}
	})
	t.Run("index out of range", func(t *testing.T) {
		st := NewShareTable(1, nil)
		for _, idx := range []int{-1, 1} {
			if _, err := st.Resolve(idx); !errors.Is(err, ErrShareIdOutOfRange) {
				t.Fatalf("Resolve(%d): err = %v, wanted ErrShareIdOutOfRange", idx, err)
			}
		}
	})
	t.Run("one past a full table", func(t *testing.T) {
		st := NewShareTable(1, nil)
		must(st.Register(List()))
		if _, err := st.Resolve(st.Len()); !errors.Is(err, ErrShareIndexOutOfRange) {
			t.Fatalf("Resolve(Len()): err = %v, wanted ErrShareIndexOutOfRange", err)
		}
		if _, err := st.Resolve(st.Len() + 1); !errors.Is(err, ErrShareIdOutOfRange) {
			t.Fatalf("Resolve(Len()+1): err = %v, wanted ErrShareIdOutOfRange", err)
		}
	})
}

func TestShareTable_Deref(t *testing.T) {
	st := NewShareTable(1, nil)
	must(st.Register(Tuple(Int(1))))
	v := must(st.Deref(SharedRef(0)))
	if !v.Equal(Tuple(Int(1))) {
		t.Fatalf("Deref = %v, wanted (1,)", v)
	}
	v = must(st.Deref(Str("x")))
	if !v.Equal(Str("x")) {
		t.Fatalf("Deref(non-ref) = %v, wanted \"x\"", v)
	}
}
