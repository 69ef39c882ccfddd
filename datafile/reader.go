package datafile

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"
)

// MaxStringLen caps a single string value. Longer length fields are treated
// as corruption and rejected before allocating.
const MaxStringLen = 1 << 20

var (
	ErrStringTooLong = errors.New("datafile: string length exceeds limit")
	ErrBadBool       = errors.New("datafile: invalid bool byte")
)

// Reader decodes primitives written by Writer. Like Writer, the first error
// sticks; any premature end of input is reported as io.ErrUnexpectedEOF.
type Reader struct {
	r       *bufio.Reader
	version int
	err     error
	buf     [8]byte
}

// NewReader reads the version stamp.
func NewReader(r io.Reader) (*Reader, error) {
	dr := &Reader{r: bufio.NewReader(r)}
	dr.version = dr.Int()
	if dr.err != nil {
		return nil, fmt.Errorf("datafile: read version: %w", dr.err)
	}
	return dr, nil
}

func (r *Reader) Version() int { return r.version }

func (r *Reader) Err() error { return r.err }

func (r *Reader) fail(err error) {
	if r.err != nil {
		return
	}
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	r.err = err
}

func (r *Reader) Int() int {
	return int(r.Int64())
}

func (r *Reader) Int64() int64 {
	if r.err != nil {
		return 0
	}
	v, err := binary.ReadVarint(r.r)
	if err != nil {
		r.fail(err)
		return 0
	}
	return v
}

func (r *Reader) Uint64() uint64 {
	if r.err != nil {
		return 0
	}
	v, err := binary.ReadUvarint(r.r)
	if err != nil {
		r.fail(err)
		return 0
	}
	return v
}

func (r *Reader) Float() float64 {
	if r.err != nil {
		return 0
	}
	if _, err := io.ReadFull(r.r, r.buf[:8]); err != nil {
		r.fail(err)
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(r.buf[:8]))
}

func (r *Reader) Bool() bool {
	if r.err != nil {
		return false
	}
	b, err := r.r.ReadByte()
	if err != nil {
		r.fail(err)
		return false
	}
	switch b {
	case 0:
		return false
	case 1:
		return true
	}
	r.fail(ErrBadBool)
	return false
}

func (r *Reader) String() string {
	n := r.Uint64()
	if r.err != nil {
		return ""
	}
	if n > MaxStringLen {
		r.fail(fmt.Errorf("%w: %d", ErrStringTooLong, n))
		return ""
	}
	if n == 0 {
		return ""
	}
	p := make([]byte, n)
	if _, err := io.ReadFull(r.r, p); err != nil {
		r.fail(err)
		return ""
	}
	return string(p)
}

// Time returns the zero time for an unset value and a UTC time otherwise.
func (r *Reader) Time() time.Time {
	if !r.Bool() {
		return time.Time{}
	}
	sec := r.Int64()
	nsec := r.Int64()
	if r.err != nil {
		return time.Time{}
	}
	return time.Unix(sec, nsec).UTC()
}

// Count reads a record count and rejects values outside [0, limit] before the
// caller allocates anything for them.
func (r *Reader) Count(limit int) (int, error) {
	n := r.Int()
	if r.err != nil {
		return 0, r.err
	}
	if n < 0 || n > limit {
		err := fmt.Errorf("datafile: count %d outside [0, %d]", n, limit)
		r.fail(err)
		return 0, err
	}
	return n, nil
}
