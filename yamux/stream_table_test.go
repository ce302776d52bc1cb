package yamux

import (
	"testing"

	"github.com/pkg/errors"
)

func TestStreamTableInsertLookupRemove(t *testing.T) {
	tbl := newStreamTable()
	s := &Stream{id: 3}
	if err := tbl.insert(s); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if got := tbl.lookup(3); got != s {
		t.Fatalf("lookup(3) = %v, want %v", got, s)
	}
	if tbl.lookup(99) != nil {
		t.Fatalf("lookup(99) = non-nil, want nil")
	}
	if err := tbl.remove(3); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if tbl.lookup(3) != nil {
		t.Fatalf("lookup(3) after remove = non-nil, want nil")
	}
}

func TestStreamTableInsertDuplicateFails(t *testing.T) {
	tbl := newStreamTable()
	tbl.insert(&Stream{id: 5})
	err := tbl.insert(&Stream{id: 5})
	if errors.Cause(err) != ErrInvalid {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}

func TestStreamTableRemoveAbsentFails(t *testing.T) {
	tbl := newStreamTable()
	err := tbl.remove(42)
	if errors.Cause(err) != ErrInvalid {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}

func TestStreamTableAcceptFIFOOrder(t *testing.T) {
	tbl := newStreamTable()
	a, b, c := &Stream{id: 1}, &Stream{id: 2}, &Stream{id: 3}
	tbl.enqueueAccept(a)
	tbl.enqueueAccept(b)
	tbl.enqueueAccept(c)
	if tbl.acceptLen() != 3 {
		t.Fatalf("acceptLen() = %d, want 3", tbl.acceptLen())
	}
	for _, want := range []*Stream{a, b, c} {
		if got := tbl.dequeueAccept(); got != want {
			t.Fatalf("dequeueAccept() = %v, want %v", got, want)
		}
	}
	if tbl.dequeueAccept() != nil {
		t.Fatalf("dequeueAccept() on empty queue = non-nil, want nil")
	}
}
