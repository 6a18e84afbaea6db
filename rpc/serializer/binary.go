package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/rKV/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present. Reset and Ok carry
// no payload, the flag is the value.
const (
	hasOrigin  uint16 = 1 << 0
	hasKey     uint16 = 1 << 1
	hasValue   uint16 = 1 << 2
	hasIndex   uint16 = 1 << 3
	hasCursor  uint16 = 1 << 4
	isReset    uint16 = 1 << 5
	hasChanges uint16 = 1 << 6
	isOk       uint16 = 1 << 7
	hasCode    uint16 = 1 << 8
	hasErr     uint16 = 1 << 9
)

// Flags of a single change entry
const (
	changeClear  byte = 1 << 0
	changeHasNew byte = 1 << 1
	changeHasOld byte = 1 << 2
)

// headerSize is 1 byte MsgType + 2 bytes flags
const headerSize = 3

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	w := binaryWriter{buf: make([]byte, headerSize, b.sizeBytes(msg))}

	var flags uint16

	if msg.Origin != "" {
		flags |= hasOrigin
		w.str(msg.Origin)
	}
	if msg.Key != "" {
		flags |= hasKey
		w.str(msg.Key)
	}
	if msg.Value != nil {
		flags |= hasValue
		w.raw(msg.Value)
	}
	if msg.Index > 0 {
		flags |= hasIndex
		w.u64(msg.Index)
	}
	if msg.Cursor > 0 {
		flags |= hasCursor
		w.u64(msg.Cursor)
	}
	if msg.Reset {
		flags |= isReset
	}
	if len(msg.Changes) > 0 {
		flags |= hasChanges
		w.u32(uint32(len(msg.Changes)))
		for _, c := range msg.Changes {
			w.change(c)
		}
	}
	if msg.Ok {
		flags |= isOk
	}
	if msg.Code > 0 {
		flags |= hasCode
		w.u64(msg.Code)
	}
	if msg.Err != "" {
		flags |= hasErr
		w.str(msg.Err)
	}

	// Set the header after knowing which fields are present
	w.buf[0] = byte(msg.MsgType)
	binary.BigEndian.PutUint16(w.buf[1:3], flags)

	return w.buf, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < headerSize {
		return fmt.Errorf("data too short for message header")
	}

	*msg = common.Message{MsgType: common.MessageType(data[0])}
	flags := binary.BigEndian.Uint16(data[1:3])
	r := binaryReader{data: data, pos: headerSize}

	if flags&hasOrigin != 0 {
		msg.Origin = r.str("origin")
	}
	if flags&hasKey != 0 {
		msg.Key = r.str("key")
	}
	if flags&hasValue != 0 {
		msg.Value = r.raw("value")
	}
	if flags&hasIndex != 0 {
		msg.Index = r.u64("index")
	}
	if flags&hasCursor != 0 {
		msg.Cursor = r.u64("cursor")
	}
	msg.Reset = flags&isReset != 0
	if flags&hasChanges != 0 {
		n := r.u32("change count")
		// every change takes at least 9 bytes, this bounds the allocation
		if r.err == nil && uint64(n)*9 > uint64(len(data)-r.pos) {
			r.fail("changes")
		}
		if r.err == nil {
			msg.Changes = make([]common.Change, n)
			for i := range msg.Changes {
				msg.Changes[i] = r.change()
			}
		}
	}
	msg.Ok = flags&isOk != 0
	if flags&hasCode != 0 {
		msg.Code = r.u64("code")
	}
	if flags&hasErr != 0 {
		msg.Err = r.str("error")
	}

	return r.err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	size := headerSize

	if msg.Origin != "" {
		size += 4 + len(msg.Origin)
	}
	if msg.Key != "" {
		size += 4 + len(msg.Key)
	}
	if msg.Value != nil {
		size += 4 + len(msg.Value)
	}
	if msg.Index > 0 {
		size += 8
	}
	if msg.Cursor > 0 {
		size += 8
	}
	if len(msg.Changes) > 0 {
		size += 4
		for _, c := range msg.Changes {
			// seq + flags + key, optional values
			size += 8 + 1 + 4 + len(c.Key)
			if c.HasNew {
				size += 4 + len(c.NewValue)
			}
			if c.HasOld {
				size += 4 + len(c.OldValue)
			}
		}
	}
	if msg.Code > 0 {
		size += 8
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err)
	}

	return size
}

// binaryWriter appends big endian fields to buf
type binaryWriter struct {
	buf []byte
}

func (w *binaryWriter) u32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

func (w *binaryWriter) u64(v uint64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
}

func (w *binaryWriter) str(s string) {
	w.u32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *binaryWriter) raw(b []byte) {
	w.u32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *binaryWriter) change(c common.Change) {
	var flags byte
	if c.Clear {
		flags |= changeClear
	}
	if c.HasNew {
		flags |= changeHasNew
	}
	if c.HasOld {
		flags |= changeHasOld
	}

	w.u64(c.Seq)
	w.buf = append(w.buf, flags)
	w.str(c.Key)
	if c.HasNew {
		w.str(c.NewValue)
	}
	if c.HasOld {
		w.str(c.OldValue)
	}
}

// binaryReader reads big endian fields from data. The first error sticks and
// turns every following read into a no-op.
type binaryReader struct {
	data []byte
	pos  int
	err  error
}

func (r *binaryReader) fail(field string) {
	if r.err == nil {
		r.err = fmt.Errorf("data too short for %s", field)
	}
}

func (r *binaryReader) next(n int, field string) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.pos+n > len(r.data) {
		r.fail(field)
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *binaryReader) u32(field string) uint32 {
	b := r.next(4, field)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *binaryReader) u64(field string) uint64 {
	b := r.next(8, field)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (r *binaryReader) u8(field string) byte {
	b := r.next(1, field)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *binaryReader) str(field string) string {
	n := r.u32(field + " length")
	return string(r.next(int(n), field))
}

// raw returns a copy, an empty slice (not nil) for a zero length field
func (r *binaryReader) raw(field string) []byte {
	n := r.u32(field + " length")
	b := r.next(int(n), field)
	if r.err != nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (r *binaryReader) change() common.Change {
	c := common.Change{Seq: r.u64("change seq")}
	flags := r.u8("change flags")
	c.Clear = flags&changeClear != 0
	c.Key = r.str("change key")
	if flags&changeHasNew != 0 {
		c.HasNew = true
		c.NewValue = r.str("change new value")
	}
	if flags&changeHasOld != 0 {
		c.HasOld = true
		c.OldValue = r.str("change old value")
	}
	return c
}
