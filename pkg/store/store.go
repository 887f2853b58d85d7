package store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
)

// File layout:
//
//	offset 0:  8-byte magic ("pmfstor" + format version byte)
//	offset 8:  uint32 little-endian used size (bytes of file in use,
//	           header included)
//	offset 12: entries
//
// Each entry is a uint32 key length, the key bytes padded with zeros to an
// 8-byte boundary, then a float64 value. Values are overwritten in place on
// upsert; new keys append at the used offset. The used header is advanced
// only after the full entry is on disk, so a crash mid-append leaves a
// trailing fragment that the next open ignores and the next append reclaims.

var magic = [8]byte{'p', 'm', 'f', 's', 't', 'o', 'r', 1}

const headerSize = 12

// ErrReadOnly is returned by WriteValue on a store opened read-only.
var ErrReadOnly = errors.New("store: opened read-only")

// Entry is one (key, value) pair as stored on disk.
type Entry struct {
	Key   string
	Value float64
}

// Store is a single-file keyed float store. One store holds one
// metric-type/mode class for one owner. It is not safe for concurrent use;
// each file has exactly one writer process.
type Store struct {
	f        *os.File
	path     string
	readOnly bool
	used     uint32

	// order preserves file order for ReadAllValues; offsets maps each key
	// to the file offset of its float64 value.
	order   []string
	offsets map[string]int64
}

// Open opens (creating if needed) a store for read-write access.
func Open(path string) (*Store, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	s := &Store{f: f, path: path, offsets: make(map[string]int64)}
	if err := s.load(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// OpenReadOnly opens an existing store for reading.
func OpenReadOnly(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	s := &Store{f: f, path: path, readOnly: true, offsets: make(map[string]int64)}
	if err := s.load(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// load validates the header and builds the key index. A brand-new read-write
// file gets its header written here.
func (s *Store) load() error {
	info, err := s.f.Stat()
	if err != nil {
		return fmt.Errorf("stat store %s: %w", s.path, err)
	}

	if info.Size() == 0 {
		if s.readOnly {
			return fmt.Errorf("store %s: empty file", s.path)
		}
		var hdr [headerSize]byte
		copy(hdr[:8], magic[:])
		binary.LittleEndian.PutUint32(hdr[8:12], headerSize)
		if _, err := s.f.WriteAt(hdr[:], 0); err != nil {
			return fmt.Errorf("initialize store %s: %w", s.path, err)
		}
		s.used = headerSize
		return nil
	}

	if info.Size() < headerSize {
		return fmt.Errorf("store %s: file too short for header", s.path)
	}

	var hdr [headerSize]byte
	if _, err := s.f.ReadAt(hdr[:], 0); err != nil {
		return fmt.Errorf("read store header %s: %w", s.path, err)
	}
	if !bytes.Equal(hdr[:8], magic[:]) {
		return fmt.Errorf("store %s: bad magic", s.path)
	}
	used := binary.LittleEndian.Uint32(hdr[8:12])
	if used < headerSize || int64(used) > info.Size() {
		return fmt.Errorf("store %s: used size %d out of range", s.path, used)
	}

	data := make([]byte, used-headerSize)
	if _, err := s.f.ReadAt(data, headerSize); err != nil {
		return fmt.Errorf("read store %s: %w", s.path, err)
	}

	off := 0
	for off < len(data) {
		if len(data)-off < 4 {
			return fmt.Errorf("store %s: truncated entry header at offset %d", s.path, headerSize+off)
		}
		keyLen := int(binary.LittleEndian.Uint32(data[off : off+4]))
		padded := (keyLen + 7) / 8 * 8
		if keyLen <= 0 || len(data)-off < 4+padded+8 {
			return fmt.Errorf("store %s: truncated entry at offset %d", s.path, headerSize+off)
		}
		key := string(data[off+4 : off+4+keyLen])
		if _, dup := s.offsets[key]; !dup {
			s.order = append(s.order, key)
		}
		s.offsets[key] = int64(headerSize + off + 4 + padded)
		off += 4 + padded + 8
	}
	s.used = used
	return nil
}

// ReadAllValues returns every (key, value) pair in file order.
func (s *Store) ReadAllValues() ([]Entry, error) {
	entries := make([]Entry, 0, len(s.order))
	for _, key := range s.order {
		v, err := s.readAt(s.offsets[key])
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Key: key, Value: v})
	}
	return entries, nil
}

// ReadValue returns the stored value for key. When the key is absent:
// with initialize set, a zero value is written and returned; without it,
// ok is false and the value is meaningless. The initialize=false path is
// how callers distinguish "unset" from a stored zero.
func (s *Store) ReadValue(key string, initialize bool) (value float64, ok bool, err error) {
	off, exists := s.offsets[key]
	if !exists {
		if !initialize {
			return 0, false, nil
		}
		if err := s.WriteValue(key, 0); err != nil {
			return 0, false, err
		}
		return 0, true, nil
	}
	v, err := s.readAt(off)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

// WriteValue upserts one (key, value) pair.
func (s *Store) WriteValue(key string, value float64) error {
	if s.readOnly {
		return ErrReadOnly
	}

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(value))

	if off, exists := s.offsets[key]; exists {
		if _, err := s.f.WriteAt(buf[:], off); err != nil {
			return fmt.Errorf("write store %s: %w", s.path, err)
		}
		return nil
	}

	keyLen := len(key)
	padded := (keyLen + 7) / 8 * 8
	entry := make([]byte, 4+padded+8)
	binary.LittleEndian.PutUint32(entry[:4], uint32(keyLen))
	copy(entry[4:], key)
	copy(entry[4+padded:], buf[:])

	entryOff := int64(s.used)
	if _, err := s.f.WriteAt(entry, entryOff); err != nil {
		return fmt.Errorf("append to store %s: %w", s.path, err)
	}

	// Advance used only after the entry itself is written.
	newUsed := s.used + uint32(len(entry))
	var usedBuf [4]byte
	binary.LittleEndian.PutUint32(usedBuf[:], newUsed)
	if _, err := s.f.WriteAt(usedBuf[:], 8); err != nil {
		return fmt.Errorf("update store header %s: %w", s.path, err)
	}

	s.used = newUsed
	s.order = append(s.order, key)
	s.offsets[key] = entryOff + int64(4+padded)
	return nil
}

// Sync flushes the store to stable storage.
func (s *Store) Sync() error {
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("sync store %s: %w", s.path, err)
	}
	return nil
}

// Close releases the store's file handle.
func (s *Store) Close() error {
	return s.f.Close()
}

// Path returns the store's file path.
func (s *Store) Path() string {
	return s.path
}

// Len returns the number of distinct keys.
func (s *Store) Len() int {
	return len(s.order)
}

func (s *Store) readAt(off int64) (float64, error) {
	var buf [8]byte
	if _, err := s.f.ReadAt(buf[:], off); err != nil {
		return 0, fmt.Errorf("read store %s: %w", s.path, err)
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(buf[:])), nil
}
