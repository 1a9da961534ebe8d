// Package filtercache stores compiled filter databases on disk, so that the
// text lists don't have to be parsed on every start.
//
// The encoding uses the little-endian fixed-width values and the
// length-prefixed strings of package filterutil.  A file starts with a header
// magic and a format version and ends with a trailer magic.
package filtercache

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/AdguardTeam/contentfilter"
	"github.com/AdguardTeam/contentfilter/filterlist"
	"github.com/AdguardTeam/contentfilter/rules"
	"github.com/AdguardTeam/golibs/errors"
)

// ErrCorrupt is returned when the encoded data can't be decoded.  The database
// must then be compiled from the text lists again.
const ErrCorrupt errors.Error = "corrupt filter cache"

const (
	// magicHeader is "CFDB" in little endian.
	magicHeader int32 = 0x42444643

	// magicTrailer is "CEND" in little endian.
	magicTrailer int32 = 0x444e4543

	// formatVersion is incremented on every incompatible change.
	formatVersion int16 = 1
)

// Flags of the encoded filters.
const (
	flagIgnoreCase int16 = 1 << iota
	flagAllow
	flagImportant
	flagBadFilter
)

// Flags of the encoded element hiding filters.
const (
	flagTLDWildcard int16 = 1 << iota
	flagHide
	flagNot
)

// maxPrealloc is the maximum number of elements allocated in advance from an
// encoded count, which may be broken.
const maxPrealloc = 1 << 16

// Encode writes db to w.
func Encode(w io.Writer, db *contentfilter.Database) (err error) {
	enc := &encoder{w: w}
	enc.int(magicHeader)
	enc.short(formatVersion)

	for _, idx := range []*contentfilter.FilterIndex{
		db.Block,
		db.Allow,
		db.Important,
		db.ImportantAllow,
	} {
		enc.index(idx)
	}

	enc.elements(db.Elements)
	enc.infos(db.Infos)
	enc.int(magicTrailer)

	if enc.err != nil {
		return fmt.Errorf("encoding filter cache: %w", enc.err)
	}

	return nil
}

// EncodeIndex writes the filters of idx to w in their insertion order.
func EncodeIndex(w io.Writer, idx *contentfilter.FilterIndex) (err error) {
	enc := &encoder{w: w}
	enc.index(idx)

	return enc.err
}

// Decode reads a database written by [Encode].  Any error wraps
// [ErrCorrupt].
func Decode(r io.Reader) (db *contentfilter.Database, err error) {
	dec := &decoder{r: r}

	if m := dec.int(); dec.err == nil && m != magicHeader {
		return nil, fmt.Errorf("%w: bad header magic %#x", ErrCorrupt, m)
	}

	if v := dec.short(); dec.err == nil && v != formatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, v)
	}

	db = &contentfilter.Database{
		Block:          dec.index(),
		Allow:          dec.index(),
		Important:      dec.index(),
		ImportantAllow: dec.index(),
		Elements:       dec.elements(),
		Infos:          dec.infos(),
	}

	if m := dec.int(); dec.err == nil && m != magicTrailer {
		return nil, fmt.Errorf("%w: bad trailer magic %#x", ErrCorrupt, m)
	}

	if dec.err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, dec.err)
	}

	return db, nil
}

// DecodeIndex reads an index written by [EncodeIndex].  Any error wraps
// [ErrCorrupt].
func DecodeIndex(r io.Reader) (idx *contentfilter.FilterIndex, err error) {
	dec := &decoder{r: r}
	idx = dec.index()
	if dec.err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, dec.err)
	}

	return idx, nil
}

// Save writes db to the file at path.  The file is replaced atomically, so
// that a crash never leaves a partially written cache.
func Save(path string, db *contentfilter.Database) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("saving filter cache: %w", err)
	}

	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			err = errors.WithDeferred(err, os.Remove(tmpName))
		}
	}()

	buf := bufio.NewWriter(tmp)
	err = Encode(buf, db)
	if err == nil {
		err = buf.Flush()
	}

	if err != nil {
		return errors.WithDeferred(fmt.Errorf("saving filter cache: %w", err), tmp.Close())
	}

	err = tmp.Close()
	if err != nil {
		return fmt.Errorf("saving filter cache: %w", err)
	}

	err = os.Rename(tmpName, path)
	if err != nil {
		return fmt.Errorf("saving filter cache: %w", err)
	}

	return nil
}

// Load reads the database from the file at path.  If the file doesn't exist,
// the error wraps [os.ErrNotExist]; if it can't be decoded, [ErrCorrupt].
func Load(path string) (db *contentfilter.Database, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loading filter cache: %w", err)
	}
	defer func() { err = errors.WithDeferred(err, f.Close()) }()

	db, err = Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("loading filter cache: %w", err)
	}

	return db, nil
}

// filterFlags returns the encoded flags of f.
func filterFlags(f *rules.Filter) (flags int16) {
	for _, p := range []struct {
		ok   bool
		flag int16
	}{
		{f.IgnoreCase, flagIgnoreCase},
		{f.Allow, flagAllow},
		{f.Important, flagImportant},
		{f.BadFilter, flagBadFilter},
	} {
		if p.ok {
			flags |= p.flag
		}
	}

	return flags
}

// elementFlags returns the encoded flags of f.
func elementFlags(f *rules.ElementFilter) (flags int16) {
	if f.TLDWildcard {
		flags |= flagTLDWildcard
	}

	if f.IsHide {
		flags |= flagHide
	}

	if f.IsNot {
		flags |= flagNot
	}

	return flags
}

// infoExpires returns the encoded expiration period.
func infoExpires(i *filterlist.Info) (v int64) {
	return int64(i.Expires / time.Second)
}
