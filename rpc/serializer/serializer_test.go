package serializer

import (
	"testing"

	"github.com/ValentinKolb/rKV/lib/storage"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/google/go-cmp/cmp"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTSuccess},

		// Set request
		*common.NewSetRequest("origin-a", "test-key", "test-value"),

		// Get response
		*common.NewGetResponse(storage.ValueOf("test-value"), nil),

		// Key response
		*common.NewKeyResponse(storage.ValueOf("ключ"), nil),

		// Length response
		*common.NewLengthResponse(42, nil),

		// Error response keeping the storage code
		*common.NewSetResponse(storage.NewError(storage.RetCQuotaExceeded, "quota exceeded")),

		// Watch request and response
		*common.NewWatchRequest("origin-b", 17, true),
		*common.NewWatchResponse(20, false, []common.Change{
			{Seq: 18, Key: "a", NewValue: "1", HasNew: true},
			{Seq: 19, Key: "a", NewValue: "", HasNew: true, OldValue: "1", HasOld: true},
			{Seq: 20, Clear: true},
		}, nil),
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range testMessages() {
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				var result common.Message
				if err := serializer.Deserialize(data, &result); err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				if diff := cmp.Diff(msg, result); diff != "" {
					t.Errorf("Message %d (%s) doesn't match after round trip (-want +got):\n%s", i, msg.MsgType, diff)
				}
			}
		})
	}
}

// TestMessageTypes tests each message type with each serializer
func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for msgType := common.MsgTSuccess; msgType <= common.MsgTWatch; msgType++ {
				data, err := serializer.Serialize(common.Message{MsgType: msgType})
				if err != nil {
					t.Errorf("Failed to serialize message type %s: %v", msgType, err)
					continue
				}

				var result common.Message
				if err := serializer.Deserialize(data, &result); err != nil {
					t.Errorf("Failed to deserialize message type %s: %v", msgType, err)
					continue
				}

				if result.MsgType != msgType {
					t.Errorf("Message type doesn't match after round trip: Expected %s, got %s", msgType, result.MsgType)
				}
			}
		})
	}
}

// TestDeserializeResetsMessage makes sure a reused message does not keep
// fields of the previous one
func TestDeserializeResetsMessage(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			data, err := serializer.Serialize(*common.NewLengthRequest())
			if err != nil {
				t.Fatal(err)
			}

			msg := *common.NewSetRequest("stale", "stale", "stale")
			if err := serializer.Deserialize(data, &msg); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(*common.NewLengthRequest(), msg); diff != "" {
				t.Errorf("stale fields survived (-want +got):\n%s", diff)
			}
		})
	}
}

// TestErrorCodeSurvives checks that a storage error keeps its code over the wire
func TestErrorCodeSurvives(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			data, err := serializer.Serialize(*common.NewSetResponse(storage.NewError(storage.RetCQuotaExceeded, "full")))
			if err != nil {
				t.Fatal(err)
			}
			var msg common.Message
			if err := serializer.Deserialize(data, &msg); err != nil {
				t.Fatal(err)
			}
			if !storage.IsCode(msg.Error(), storage.RetCQuotaExceeded) {
				t.Errorf("expected a quota error, got %v", msg.Error())
			}
		})
	}
}

// TestBinaryEmptyValues tests edge cases of the binary format that the other
// formats do not preserve
func TestBinaryEmptyValues(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name string
		msg  common.Message
	}{
		{
			name: "Empty message",
			msg:  common.Message{},
		},
		{
			name: "Empty value slice but not nil",
			msg:  common.Message{MsgType: common.MsgTSet, Key: "test", Value: []byte{}},
		},
		{
			name: "Change with empty key and values",
			msg: common.Message{MsgType: common.MsgTWatch, Changes: []common.Change{
				{Seq: 1, HasNew: true, HasOld: true},
			}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := serializer.Serialize(tc.msg)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			var result common.Message
			if err := serializer.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			if diff := cmp.Diff(tc.msg, result); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
			if (tc.msg.Value == nil) != (result.Value == nil) {
				t.Errorf("Value nil/non-nil mismatch: expected %#v, got %#v", tc.msg.Value, result.Value)
			}
		})
	}
}

// TestInvalidBinaryData tests how the binary serializer handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectError: true,
		},
		{
			name:        "Too short header",
			data:        []byte{1, 0}, // Message type and half of the flags
			expectError: true,
		},
		{
			name:        "Valid header only",
			data:        []byte{1, 0, 0},
			expectError: false,
		},
		{
			name:        "Invalid length for key",
			data:        []byte{3, 0, 2, 0, 0, 0, 5, 'a', 'b', 'c'}, // Claims key length 5 but only 3 bytes provided
			expectError: true,
		},
		{
			name:        "Invalid length for value",
			data:        []byte{4, 0, 4, 0, 0, 0, 10}, // Claims value length 10 but no bytes provided
			expectError: true,
		},
		{
			name:        "Change count larger than data",
			data:        []byte{9, 0, 64, 0xff, 0xff, 0xff, 0xff},
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			err := serializer.Deserialize(tc.data, &msg)

			if tc.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tc.expectError && err != nil {
				t.Errorf("Did not expect error but got: %v", err)
			}
		})
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{"binary", "JSON", "gob"} {
		if _, err := ByName(name); err != nil {
			t.Errorf("ByName(%q): %v", name, err)
		}
	}
	if _, err := ByName("xml"); err == nil {
		t.Error("expected an error for an unknown serializer")
	}
}
