package common

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ValentinKolb/rKV/lib/storage"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	Origin string `json:"origin,omitempty"` // Used for: Set, Remove, Clear, Watch (request)
	Key    string `json:"key,omitempty"`    // Used for: Get, Set, Remove (request), Key (response)
	Value  []byte `json:"value,omitempty"`  // Used for: Set (request), Get (response)
	Index  uint64 `json:"index,omitempty"`  // Used for: Key (request), Length (response)

	// Change feed fields
	Cursor  uint64   `json:"cursor,omitempty"`  // Used for: Watch (request and response)
	Reset   bool     `json:"reset,omitempty"`   // Used for: Watch (request and response)
	Changes []Change `json:"changes,omitempty"` // Used for: Watch (response)

	// Response only fields
	Ok   bool   `json:"ok,omitempty"`   // Used for: Get, Key responses
	Code uint64 `json:"code,omitempty"` // storage.RetCode of a failed operation
	Err  string `json:"err,omitempty"`  // Empty if no error, otherwise contains the error message
}

// Change is one entry of an area's change log. A Change with Clear set
// describes a store-wide clear and carries no key or values.
type Change struct {
	Seq      uint64 `json:"seq"`
	Clear    bool   `json:"clear,omitempty"`
	Key      string `json:"key,omitempty"`
	NewValue string `json:"new,omitempty"`
	HasNew   bool   `json:"has_new,omitempty"`
	OldValue string `json:"old,omitempty"`
	HasOld   bool   `json:"has_old,omitempty"`
}

// ChangeFromNotification converts a storage notification to a log entry
func ChangeFromNotification(seq uint64, n storage.Notification) Change {
	if n.IsClear() {
		return Change{Seq: seq, Clear: true}
	}
	return Change{
		Seq:      seq,
		Key:      n.Key.Data,
		NewValue: n.NewValue.Data,
		HasNew:   n.NewValue.Present,
		OldValue: n.OldValue.Data,
		HasOld:   n.OldValue.Present,
	}
}

// Notification converts the log entry back to a storage notification
func (c Change) Notification() storage.Notification {
	if c.Clear {
		return storage.Notification{}
	}
	return storage.Notification{
		Key:      storage.ValueOf(c.Key),
		NewValue: storage.Value{Data: c.NewValue, Present: c.HasNew},
		OldValue: storage.Value{Data: c.OldValue, Present: c.HasOld},
	}
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewGetRequest creates a new Get request
func NewGetRequest(key string) *Message {
	return &Message{
		MsgType: MsgTGet,
		Key:     key,
	}
}

// NewGetResponse creates a new Get response
func NewGetResponse(value storage.Value, err error) *Message {
	msg := &Message{
		MsgType: MsgTGet,
		Ok:      value.Present,
	}
	if value.Present {
		msg.Value = []byte(value.Data)
	}
	msg.setErr(err)
	return msg
}

// NewSetRequest creates a new Set request
func NewSetRequest(origin, key, value string) *Message {
	return &Message{
		MsgType: MsgTSet,
		Origin:  origin,
		Key:     key,
		Value:   []byte(value),
	}
}

// NewSetResponse creates a new Set response
func NewSetResponse(err error) *Message {
	msg := &Message{MsgType: MsgTSet}
	msg.setErr(err)
	return msg
}

// NewRemoveRequest creates a new Remove request
func NewRemoveRequest(origin, key string) *Message {
	return &Message{
		MsgType: MsgTRemove,
		Origin:  origin,
		Key:     key,
	}
}

// NewRemoveResponse creates a new Remove response
func NewRemoveResponse(err error) *Message {
	msg := &Message{MsgType: MsgTRemove}
	msg.setErr(err)
	return msg
}

// NewClearRequest creates a new Clear request
func NewClearRequest(origin string) *Message {
	return &Message{
		MsgType: MsgTClear,
		Origin:  origin,
	}
}

// NewClearResponse creates a new Clear response
func NewClearResponse(err error) *Message {
	msg := &Message{MsgType: MsgTClear}
	msg.setErr(err)
	return msg
}

// NewKeyRequest creates a new Key request
func NewKeyRequest(index uint64) *Message {
	return &Message{
		MsgType: MsgTKey,
		Index:   index,
	}
}

// NewKeyResponse creates a new Key response
func NewKeyResponse(key storage.Value, err error) *Message {
	msg := &Message{
		MsgType: MsgTKey,
		Key:     key.Data,
		Ok:      key.Present,
	}
	msg.setErr(err)
	return msg
}

// NewLengthRequest creates a new Length request
func NewLengthRequest() *Message {
	return &Message{MsgType: MsgTLength}
}

// NewLengthResponse creates a new Length response
func NewLengthResponse(n int, err error) *Message {
	msg := &Message{
		MsgType: MsgTLength,
		Index:   uint64(n),
	}
	msg.setErr(err)
	return msg
}

// NewWatchRequest creates a new Watch request. The response holds the changes
// after cursor that were not made by origin. A request with reset set only
// asks for the current head of the log.
func NewWatchRequest(origin string, cursor uint64, reset bool) *Message {
	return &Message{
		MsgType: MsgTWatch,
		Origin:  origin,
		Cursor:  cursor,
		Reset:   reset,
	}
}

// NewWatchResponse creates a new Watch response. cursor is the sequence
// number to pass in the next request. reset reports that the requested
// cursor is no longer covered by the log.
func NewWatchResponse(cursor uint64, reset bool, changes []Change, err error) *Message {
	msg := &Message{
		MsgType: MsgTWatch,
		Cursor:  cursor,
		Reset:   reset,
		Changes: changes,
	}
	msg.setErr(err)
	return msg
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Code:    uint64(storage.RetCInternalError),
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

func (m *Message) setErr(err error) {
	if err == nil {
		return
	}
	m.Code = uint64(storage.CodeOf(err))
	var se *storage.Error
	if errors.As(err, &se) {
		m.Err = se.Msg
	} else {
		m.Err = err.Error()
	}
}

// Error returns the error carried by the message as *storage.Error, nil if
// the message reports success
func (m *Message) Error() error {
	if m.Err == "" && m.MsgType != MsgTError {
		return nil
	}
	code := storage.RetCode(m.Code)
	if code == storage.RetCSuccess {
		code = storage.RetCInternalError
	}
	return storage.NewError(code, m.Err)
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTGet:
		return "get"
	case MsgTSet:
		return "set"
	case MsgTRemove:
		return "remove"
	case MsgTClear:
		return "clear"
	case MsgTKey:
		return "key"
	case MsgTLength:
		return "length"
	case MsgTWatch:
		return "watch"
	case MsgTError:
		return "error"
	case MsgTSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	for candidate := MsgTUnknown; candidate <= MsgTWatch; candidate++ {
		if candidate.String() == s {
			*t = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// IStorage operations

	MsgTGet    // Get the value of a key
	MsgTSet    // Set a key-value pair
	MsgTRemove // Remove a key
	MsgTClear  // Remove all keys
	MsgTKey    // Get the key at an index
	MsgTLength // Get the number of keys

	// Change feed

	MsgTWatch // Poll the change log of an area
)
