package filestore

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	magicNum        = "RKVSNAP\x00" // File format identifier
	snapshotVersion = 1             // Snapshot format version
	maxFieldLen     = 1 << 30       // Upper bound for a single length prefixed field
)

// --------------------------------------------------------------------------
// Snapshot
// --------------------------------------------------------------------------

// Snapshot is the decoded content of a snapshot file
type Snapshot struct {
	// Origin identifies the context that wrote the snapshot.
	Origin string
	// ClearGen is incremented by every Clear. Readers use it to tell a clear
	// apart from the removal of all keys one by one.
	ClearGen uint64
	// Keys holds the keys in enumeration order.
	Keys []string
	// Values maps every key in Keys to its value.
	Values map[string]string
}

func newSnapshot(origin string) *Snapshot {
	return &Snapshot{
		Origin: origin,
		Values: make(map[string]string),
	}
}

// clone returns a deep copy stamped with origin
func (s *Snapshot) clone(origin string) *Snapshot {
	c := &Snapshot{
		Origin:   origin,
		ClearGen: s.ClearGen,
		Keys:     make([]string, len(s.Keys)),
		Values:   make(map[string]string, len(s.Values)),
	}
	copy(c.Keys, s.Keys)
	for k, v := range s.Values {
		c.Values[k] = v
	}
	return c
}

// Get returns the value of a key and whether it exists
func (s *Snapshot) Get(key string) (string, bool) {
	v, ok := s.Values[key]
	return v, ok
}

func (s *Snapshot) set(key, value string) {
	if _, ok := s.Values[key]; !ok {
		s.Keys = append(s.Keys, key)
	}
	s.Values[key] = value
}

func (s *Snapshot) remove(key string) bool {
	if _, ok := s.Values[key]; !ok {
		return false
	}
	delete(s.Values, key)
	for i, k := range s.Keys {
		if k == key {
			s.Keys = append(s.Keys[:i], s.Keys[i+1:]...)
			break
		}
	}
	return true
}

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

// Layout (little endian):
//
//	magic "RKVSNAP\x00" | version uint8 | origin | clearGen uint64 | count uint64 |
//	count * (key | value)
//
// where origin, key and value are a uint32 length followed by the bytes.

// WriteSnapshot encodes snap to w
func WriteSnapshot(w io.Writer, snap *Snapshot) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString(magicNum); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint8(snapshotVersion)); err != nil {
		return err
	}
	if err := writeString(bw, snap.Origin); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, snap.ClearGen); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(snap.Keys))); err != nil {
		return err
	}

	for _, key := range snap.Keys {
		if err := writeString(bw, key); err != nil {
			return err
		}
		if err := writeString(bw, snap.Values[key]); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// DecodeSnapshot decodes a snapshot written by WriteSnapshot
func DecodeSnapshot(r io.Reader) (*Snapshot, error) {
	br := bufio.NewReader(r)

	magicBytes := make([]byte, len(magicNum))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return nil, err
	}
	if string(magicBytes) != magicNum {
		return nil, fmt.Errorf("invalid file format: magic number mismatch")
	}

	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return nil, err
	}
	if version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d, expected %d", version, snapshotVersion)
	}

	snap := &Snapshot{}
	var err error
	if snap.Origin, err = readString(br); err != nil {
		return nil, err
	}
	if err := binary.Read(br, binary.LittleEndian, &snap.ClearGen); err != nil {
		return nil, err
	}

	var count uint64
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	if count > maxFieldLen {
		return nil, fmt.Errorf("invalid entry count %d", count)
	}

	snap.Keys = make([]string, 0, count)
	snap.Values = make(map[string]string, count)
	for i := uint64(0); i < count; i++ {
		key, err := readString(br)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		value, err := readString(br)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		snap.set(key, value)
	}

	return snap, nil
}

// ReadSnapshot decodes the snapshot file at path
func ReadSnapshot(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	snap, err := DecodeSnapshot(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", path, err)
	}
	return snap, nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	if n > maxFieldLen {
		return "", fmt.Errorf("invalid field length %d", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
