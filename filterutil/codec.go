package filterutil

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/AdguardTeam/golibs/errors"
)

// ErrLength is returned when a fixed-width value is encoded into or decoded
// from a buffer of a wrong length.
const ErrLength errors.Error = "buffer length mismatch"

// Widths of the fixed-width values.
const (
	ShortSize = 2
	IntSize   = 4
	LongSize  = 8
)

// varLenMarker is the short value announcing that a 4-byte length follows.
const varLenMarker uint16 = math.MaxUint16

// maxPrealloc is the maximum number of bytes allocated for a string before
// its data is actually read.
const maxPrealloc = 64 << 10

// checkLen returns an error wrapping [ErrLength] if b is not exactly want bytes
// long.
func checkLen(b []byte, want int) (err error) {
	if len(b) != want {
		return fmt.Errorf("%w: want %d bytes, got %d", ErrLength, want, len(b))
	}

	return nil
}

// PutShort encodes v into b, which must be exactly [ShortSize] bytes long.
func PutShort(b []byte, v int16) (err error) {
	if err = checkLen(b, ShortSize); err != nil {
		return err
	}

	binary.LittleEndian.PutUint16(b, uint16(v))

	return nil
}

// Short decodes a value encoded with [PutShort].
func Short(b []byte) (v int16, err error) {
	if err = checkLen(b, ShortSize); err != nil {
		return 0, err
	}

	return int16(binary.LittleEndian.Uint16(b)), nil
}

// PutInt encodes v into b, which must be exactly [IntSize] bytes long.
func PutInt(b []byte, v int32) (err error) {
	if err = checkLen(b, IntSize); err != nil {
		return err
	}

	binary.LittleEndian.PutUint32(b, uint32(v))

	return nil
}

// Int decodes a value encoded with [PutInt].
func Int(b []byte) (v int32, err error) {
	if err = checkLen(b, IntSize); err != nil {
		return 0, err
	}

	return int32(binary.LittleEndian.Uint32(b)), nil
}

// PutLong encodes v into b, which must be exactly [LongSize] bytes long.
func PutLong(b []byte, v int64) (err error) {
	if err = checkLen(b, LongSize); err != nil {
		return err
	}

	binary.LittleEndian.PutUint64(b, uint64(v))

	return nil
}

// Long decodes a value encoded with [PutLong].
func Long(b []byte) (v int64, err error) {
	if err = checkLen(b, LongSize); err != nil {
		return 0, err
	}

	return int64(binary.LittleEndian.Uint64(b)), nil
}

// readFull reads exactly n bytes from r.  A short read is reported as
// [ErrLength].  Large lengths are not trusted for allocation, the buffer grows
// as the data arrives.
func readFull(r io.Reader, n int) (b []byte, err error) {
	if n <= maxPrealloc {
		b = make([]byte, n)
		got, rerr := io.ReadFull(r, b)
		if err = readErr(rerr, n, int64(got)); err != nil {
			return nil, err
		}

		return b, nil
	}

	buf := bytes.NewBuffer(make([]byte, 0, maxPrealloc))
	got, err := io.CopyN(buf, r, int64(n))
	if err = readErr(err, n, got); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// readErr converts the end-of-file errors of a read of want bytes into
// [ErrLength].
func readErr(err error, want int, got int64) (res error) {
	if err == nil {
		return nil
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: want %d bytes, got %d", ErrLength, want, got)
	}

	return err
}

// WriteShort writes v to w as a little-endian short.
func WriteShort(w io.Writer, v int16) (err error) {
	b := make([]byte, ShortSize)
	_ = PutShort(b, v)
	_, err = w.Write(b)

	return err
}

// ReadShort reads a short written by [WriteShort].
func ReadShort(r io.Reader) (v int16, err error) {
	b, err := readFull(r, ShortSize)
	if err != nil {
		return 0, err
	}

	return Short(b)
}

// WriteInt writes v to w as a little-endian int.
func WriteInt(w io.Writer, v int32) (err error) {
	b := make([]byte, IntSize)
	_ = PutInt(b, v)
	_, err = w.Write(b)

	return err
}

// ReadInt reads an int written by [WriteInt].
func ReadInt(r io.Reader) (v int32, err error) {
	b, err := readFull(r, IntSize)
	if err != nil {
		return 0, err
	}

	return Int(b)
}

// WriteLong writes v to w as a little-endian long.
func WriteLong(w io.Writer, v int64) (err error) {
	b := make([]byte, LongSize)
	_ = PutLong(b, v)
	_, err = w.Write(b)

	return err
}

// ReadLong reads a long written by [WriteLong].
func ReadLong(r io.Reader) (v int64, err error) {
	b, err := readFull(r, LongSize)
	if err != nil {
		return 0, err
	}

	return Long(b)
}

// WriteVarLen writes a length prefix.  Lengths below 0xffff take two bytes,
// longer ones are written as the 0xffff marker followed by a 4-byte int.
func WriteVarLen(w io.Writer, n int) (err error) {
	if n < 0 || n > math.MaxInt32 {
		return fmt.Errorf("length %d out of range", n)
	}

	if n < int(varLenMarker) {
		return WriteShort(w, int16(uint16(n)))
	}

	marker := varLenMarker
	err = WriteShort(w, int16(marker))
	if err != nil {
		return err
	}

	return WriteInt(w, int32(n))
}

// ReadVarLen reads a length prefix written by [WriteVarLen].
func ReadVarLen(r io.Reader) (n int, err error) {
	s, err := ReadShort(r)
	if err != nil {
		return 0, err
	}

	if uint16(s) != varLenMarker {
		return int(uint16(s)), nil
	}

	l, err := ReadInt(r)
	if err != nil {
		return 0, err
	}

	if l < 0 {
		return 0, fmt.Errorf("%w: negative length %d", ErrLength, l)
	}

	return int(l), nil
}

// WriteString writes s prefixed with its length, see [WriteVarLen].
func WriteString(w io.Writer, s string) (err error) {
	err = WriteVarLen(w, len(s))
	if err != nil {
		return err
	}

	_, err = io.WriteString(w, s)

	return err
}

// ReadString reads a string written by [WriteString].
func ReadString(r io.Reader) (s string, err error) {
	n, err := ReadVarLen(r)
	if err != nil {
		return "", err
	}

	if n == 0 {
		return "", nil
	}

	b, err := readFull(r, n)
	if err != nil {
		return "", err
	}

	return string(b), nil
}
