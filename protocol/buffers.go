package protocol

// ScratchCapacity sizes a Scratch buffer: room for a burst of frames,
// not just one message.
const ScratchCapacity = 512

// InputBuffer is a window onto received bytes that have not been
// consumed yet.
type InputBuffer interface {
	// Data returns the unconsumed bytes.
	Data() []byte

	// Available returns how many bytes Data would return.
	Available() int

	// Pop consumes the front n bytes.
	Pop(n int)
}

// OutputBuffer collects outgoing bytes. The position methods let frame
// encoders backpatch a length field once the payload size is known.
type OutputBuffer interface {
	// Output appends data.
	Output(data []byte)

	// CurPosition returns the current write position.
	CurPosition() int

	// Update overwrites the byte at an earlier position.
	Update(pos int, val byte)

	// DataSince returns everything written from pos onwards.
	DataSince(pos int) []byte
}

// SliceInput adapts a byte slice to the InputBuffer interface.
type SliceInput struct {
	data []byte
}

// NewSliceInput wraps data without copying it.
func NewSliceInput(data []byte) *SliceInput {
	return &SliceInput{data: data}
}

// Data returns the unconsumed bytes.
func (s *SliceInput) Data() []byte { return s.data }

// Available returns how many bytes remain.
func (s *SliceInput) Available() int { return len(s.data) }

// Pop consumes the front n bytes.
func (s *SliceInput) Pop(n int) {
	if n > len(s.data) {
		n = len(s.data)
	}
	s.data = s.data[n:]
}

// Scratch is a fixed-size OutputBuffer that never allocates. Writes
// past the end are dropped.
type Scratch struct {
	buf [ScratchCapacity]byte
	pos int
}

// NewScratch returns an empty scratch buffer.
func NewScratch() *Scratch {
	return &Scratch{}
}

// Output appends data.
func (s *Scratch) Output(data []byte) {
	n := copy(s.buf[s.pos:], data)
	s.pos += n
}

// CurPosition returns the current write position.
func (s *Scratch) CurPosition() int { return s.pos }

// Update overwrites the byte at an earlier position.
func (s *Scratch) Update(pos int, val byte) {
	if pos < len(s.buf) {
		s.buf[pos] = val
	}
}

// DataSince returns everything written from pos onwards.
func (s *Scratch) DataSince(pos int) []byte {
	if pos > s.pos {
		return nil
	}
	return s.buf[pos:s.pos]
}

// Bytes returns everything written so far.
func (s *Scratch) Bytes() []byte { return s.buf[:s.pos] }

// Len returns how many bytes have been written.
func (s *Scratch) Len() int { return s.pos }

// Reset empties the buffer.
func (s *Scratch) Reset() { s.pos = 0 }

// Fifo is a byte ring for shuttling data between a port reader and the
// frame scanner. One slot is kept free to tell full from empty, so a
// Fifo of capacity n holds at most n-1 bytes.
type Fifo struct {
	buf   []byte
	read  int
	write int
	size  int
}

// NewFifo returns a ring with the given capacity.
func NewFifo(capacity int) *Fifo {
	return &Fifo{buf: make([]byte, capacity), size: capacity}
}

// Write appends as much of data as fits and returns how much that was.
func (f *Fifo) Write(data []byte) int {
	written := 0
	for _, b := range data {
		next := (f.write + 1) % f.size
		if next == f.read {
			break
		}
		f.buf[f.write] = b
		f.write = next
		written++
	}
	return written
}

// Read fills data with up to len(data) bytes and returns how many.
func (f *Fifo) Read(data []byte) int {
	read := 0
	for i := range data {
		if f.read == f.write {
			break
		}
		data[i] = f.buf[f.read]
		f.read = (f.read + 1) % f.size
		read++
	}
	return read
}

// Available returns how many bytes are held.
func (f *Fifo) Available() int {
	if f.write >= f.read {
		return f.write - f.read
	}
	return f.size - f.read + f.write
}

// Free returns how many more bytes fit.
func (f *Fifo) Free() int {
	return f.size - f.Available() - 1
}

// Data returns the held bytes as one slice. A wrapped ring has to copy
// so the frame scanner always sees a contiguous run.
func (f *Fifo) Data() []byte {
	if f.read <= f.write {
		return f.buf[f.read:f.write]
	}
	out := make([]byte, f.Available())
	n := copy(out, f.buf[f.read:])
	copy(out[n:], f.buf[:f.write])
	return out
}

// Pop consumes the front n bytes.
func (f *Fifo) Pop(n int) {
	for i := 0; i < n && f.read != f.write; i++ {
		f.read = (f.read + 1) % f.size
	}
}

// IsEmpty reports whether the ring holds nothing.
func (f *Fifo) IsEmpty() bool { return f.read == f.write }

// Reset empties the ring.
func (f *Fifo) Reset() {
	f.read = 0
	f.write = 0
}
