package protocol

import (
	"bytes"
	"testing"
)

func TestSliceInput(t *testing.T) {
	in := NewSliceInput([]byte{1, 2, 3, 4, 5})

	if in.Available() != 5 {
		t.Errorf("Available() = %d, want 5", in.Available())
	}

	in.Pop(2)
	if in.Available() != 3 {
		t.Errorf("Available() = %d after Pop(2), want 3", in.Available())
	}
	if data := in.Data(); data[0] != 3 {
		t.Errorf("Data()[0] = %d after Pop(2), want 3", data[0])
	}

	// Popping more than remains just empties the buffer.
	in.Pop(10)
	if in.Available() != 0 {
		t.Errorf("Available() = %d after overlong Pop, want 0", in.Available())
	}
}

func TestScratch(t *testing.T) {
	s := NewScratch()

	s.Output([]byte{1, 2, 3})
	if s.CurPosition() != 3 {
		t.Errorf("CurPosition() = %d, want 3", s.CurPosition())
	}

	s.Output([]byte{4, 5})
	if got := s.Bytes(); !bytes.Equal(got, []byte{1, 2, 3, 4, 5}) {
		t.Errorf("Bytes() = %v", got)
	}

	s.Update(0, 99)
	if got := s.Bytes()[0]; got != 99 {
		t.Errorf("first byte = %d after Update, want 99", got)
	}

	if got := s.DataSince(2); !bytes.Equal(got, []byte{3, 4, 5}) {
		t.Errorf("DataSince(2) = %v, want [3 4 5]", got)
	}
	if got := s.DataSince(9); got != nil {
		t.Errorf("DataSince past the end = %v, want nil", got)
	}

	s.Reset()
	if s.Len() != 0 {
		t.Errorf("Len() = %d after Reset, want 0", s.Len())
	}
}

func TestFifo(t *testing.T) {
	f := NewFifo(10)

	if !f.IsEmpty() {
		t.Error("fresh fifo is not empty")
	}

	if n := f.Write([]byte{1, 2, 3, 4, 5}); n != 5 {
		t.Fatalf("Write wrote %d bytes, want 5", n)
	}
	if f.Available() != 5 {
		t.Errorf("Available() = %d, want 5", f.Available())
	}

	buf := make([]byte, 3)
	if n := f.Read(buf); n != 3 {
		t.Fatalf("Read read %d bytes, want 3", n)
	}
	if !bytes.Equal(buf, []byte{1, 2, 3}) {
		t.Errorf("Read gave %v, want [1 2 3]", buf)
	}

	f.Pop(1)
	if f.Available() != 1 {
		t.Errorf("Available() = %d after Pop(1), want 1", f.Available())
	}

	// One slot stays reserved, so a 10-byte ring holds 9.
	f.Reset()
	big := make([]byte, 12)
	if n := f.Write(big); n != 9 {
		t.Errorf("Write to a size-10 fifo took %d bytes, want 9", n)
	}
	if f.Free() != 0 {
		t.Errorf("Free() = %d on a full fifo, want 0", f.Free())
	}
}

func TestFifoWrapAround(t *testing.T) {
	f := NewFifo(5)

	f.Write([]byte{1, 2, 3, 4})
	buf := make([]byte, 2)
	f.Read(buf)
	if n := f.Write([]byte{5, 6}); n != 2 {
		t.Fatalf("wrapped Write took %d bytes, want 2", n)
	}

	// Data must come back contiguous and in order even when the ring
	// has wrapped.
	if got := f.Data(); !bytes.Equal(got, []byte{3, 4, 5, 6}) {
		t.Errorf("Data() = %v, want [3 4 5 6]", got)
	}

	out := make([]byte, 4)
	if n := f.Read(out); n != 4 || !bytes.Equal(out, []byte{3, 4, 5, 6}) {
		t.Errorf("Read gave %v (%d bytes), want [3 4 5 6]", out, n)
	}
}
