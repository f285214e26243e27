package gotoc

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/Masterminds/semver/v3"
	"github.com/vmihailenco/msgpack/v5"
)

const archiveMagic = "GOTOLOWER-SYMTAB"

// ArchiveFormat is the version written into every archive header.
const ArchiveFormat = "1.1.0"

// archiveCompat accepts archives this reader understands.
const archiveCompat = ">= 1.0.0, < 2.0.0"

// ErrNotArchive reports input without the archive magic.
var ErrNotArchive = errors.New("gotoc: not a symbol table archive")

type archiveHeader struct {
	Magic    string
	Format   string
	Producer string
	Machine  MachineModel
	Count    int
}

// WriteArchive serializes st as a msgpack stream: one header followed by
// Count symbols in insertion order.
func WriteArchive(w io.Writer, st *SymbolTable, producer string) error {
	bw := bufio.NewWriter(w)
	enc := msgpack.NewEncoder(bw)
	hdr := archiveHeader{
		Magic:    archiveMagic,
		Format:   ArchiveFormat,
		Producer: producer,
		Machine:  st.MachineModel(),
		Count:    st.Len(),
	}
	if err := enc.Encode(&hdr); err != nil {
		return fmt.Errorf("write archive header: %w", err)
	}
	for _, sym := range st.Symbols() {
		if err := enc.Encode(sym); err != nil {
			return fmt.Errorf("write symbol %q: %w", sym.Name, err)
		}
	}
	return bw.Flush()
}

// ReadArchive restores a table written by WriteArchive.
func ReadArchive(r io.Reader) (*SymbolTable, string, error) {
	dec := msgpack.NewDecoder(bufio.NewReader(r))
	var hdr archiveHeader
	if err := dec.Decode(&hdr); err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrNotArchive, err)
	}
	if hdr.Magic != archiveMagic {
		return nil, "", ErrNotArchive
	}
	if err := checkFormat(hdr.Format); err != nil {
		return nil, "", err
	}
	st := NewSymbolTable(hdr.Machine)
	for i := 0; i < hdr.Count; i++ {
		var sym Symbol
		if err := dec.Decode(&sym); err != nil {
			return nil, "", fmt.Errorf("read symbol %d of %d: %w", i+1, hdr.Count, err)
		}
		st.Insert(sym)
	}
	return st, hdr.Producer, nil
}

func checkFormat(format string) error {
	v, err := semver.NewVersion(format)
	if err != nil {
		return fmt.Errorf("gotoc: archive format %q: %w", format, err)
	}
	c, err := semver.NewConstraint(archiveCompat)
	if err != nil {
		return err
	}
	if !c.Check(v) {
		return fmt.Errorf("gotoc: archive format %s is not supported (want %s)", v, archiveCompat)
	}
	return nil
}
