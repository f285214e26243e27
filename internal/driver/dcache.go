package driver

import (
	"bytes"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"gotolower/internal/diag"
	"gotolower/internal/gotoc"
	"gotolower/internal/source"
)

// Current schema version - increment when DiskPayload format changes
const diskCacheSchemaVersion uint16 = 1

// DiskCache хранит архивы таблиц символов по ключу юнита.
// Thread-safe for concurrent access.
type DiskCache struct {
	mu  sync.RWMutex
	dir string
}

// DiskPayload is the cached output of one successfully lowered unit.
type DiskPayload struct {
	// Schema version for safe invalidation when format changes
	Schema uint16

	Name string
	Path string

	// Archive is the unit's symbol table in gotoc archive form.
	Archive []byte

	// Warnings survive a cache hit; spans keep their offsets and are
	// re-bound to the file when restored.
	Diags []CachedDiag
}

// CachedDiag is a diagnostic detached from its FileSet.
type CachedDiag struct {
	Severity diag.Severity
	Code     diag.Code
	Message  string
	Start    uint32
	End      uint32
	Notes    []CachedNote
}

type CachedNote struct {
	Start uint32
	End   uint32
	Msg   string
}

// OpenDiskCache initializes and returns a disk cache at the standard location.
func OpenDiskCache(app string) (*DiskCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	return OpenDiskCacheAt(filepath.Join(base, app))
}

// OpenDiskCacheAt uses dir as the cache root.
func OpenDiskCacheAt(dir string) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

// Dir returns the cache root.
func (c *DiskCache) Dir() string {
	if c == nil {
		return ""
	}
	return c.dir
}

func (c *DiskCache) pathFor(key Digest) string {
	hexKey := hex.EncodeToString(key[:])
	return filepath.Join(c.dir, "units", hexKey+".mp")
}

// Put serializes and writes a payload to the disk cache.
func (c *DiskCache) Put(key Digest, payload *DiskPayload) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	// после Rename файла уже нет, ошибку удаления игнорируем
	defer func() { _ = os.Remove(tmp) }()

	if err := msgpack.NewEncoder(f).Encode(payload); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// Атомарная замена
	return os.Rename(tmp, p)
}

// Get reads and deserializes a payload from the disk cache. A payload of
// another schema counts as a miss.
func (c *DiskCache) Get(key Digest, out *DiskPayload) (bool, error) {
	if c == nil {
		return false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := os.ReadFile(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if err := msgpack.Unmarshal(data, out); err != nil {
		return false, err
	}
	return out.Schema == diskCacheSchemaVersion, nil
}

// DropAll invalidates the cache, useful after format changes.
func (c *DiskCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	// тривиально: переименуем каталог и удалим
	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := os.RemoveAll(old); err != nil {
		return err
	}
	return os.MkdirAll(c.dir, 0o755)
}

// newPayload packs a lowered table and its diagnostics for the cache.
func newPayload(name, path string, st *gotoc.SymbolTable, producer string, bag *diag.Bag) (*DiskPayload, error) {
	var buf bytes.Buffer
	if err := gotoc.WriteArchive(&buf, st, producer); err != nil {
		return nil, err
	}
	payload := &DiskPayload{
		Schema:  diskCacheSchemaVersion,
		Name:    name,
		Path:    path,
		Archive: buf.Bytes(),
	}
	for _, d := range bag.Items() {
		if d.Code == diag.ObsTimings {
			continue
		}
		cd := CachedDiag{Severity: d.Severity, Code: d.Code, Message: d.Message, Start: d.Primary.Start, End: d.Primary.End}
		for _, n := range d.Notes {
			cd.Notes = append(cd.Notes, CachedNote{Start: n.Span.Start, End: n.Span.End, Msg: n.Msg})
		}
		payload.Diags = append(payload.Diags, cd)
	}
	return payload, nil
}

// restore unpacks a payload; diagnostics are bound to file.
func (p *DiskPayload) restore(file source.FileID, bag *diag.Bag) (*gotoc.SymbolTable, error) {
	st, _, err := gotoc.ReadArchive(bytes.NewReader(p.Archive))
	if err != nil {
		return nil, err
	}
	for _, cd := range p.Diags {
		d := diag.New(cd.Severity, cd.Code, source.At(file, cd.Start, cd.End), cd.Message)
		for _, n := range cd.Notes {
			d = d.WithNote(source.At(file, n.Start, n.End), n.Msg)
		}
		bag.Add(d)
	}
	return st, nil
}
