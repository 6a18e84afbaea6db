package serializer

import (
	"strings"
	"testing"

	"github.com/ValentinKolb/rKV/rpc/common"
)

// benchmarkMessages returns a set of messages for targeted benchmarking
func benchmarkMessages() map[string]common.Message {
	changes := make([]common.Change, 64)
	for i := range changes {
		changes[i] = common.Change{
			Seq:      uint64(i + 1),
			Key:      "user/settings/theme",
			NewValue: "dark",
			HasNew:   true,
			OldValue: "light",
			HasOld:   true,
		}
	}

	return map[string]common.Message{
		"Empty": {
			MsgType: common.MsgTSuccess,
		},
		"SmallGet": {
			MsgType: common.MsgTGet,
			Key:     "k",
		},
		"LargeKeyGet": {
			MsgType: common.MsgTGet,
			Key:     strings.Repeat("very-long-key-", 8),
		},
		"SmallSet": {
			MsgType: common.MsgTSet,
			Origin:  "1b4e28ba-2fa1-11d2-883f-0016d3cca427",
			Key:     "key",
			Value:   []byte("v"),
		},
		"LargeSet": {
			MsgType: common.MsgTSet,
			Origin:  "1b4e28ba-2fa1-11d2-883f-0016d3cca427",
			Key:     "key",
			Value:   make([]byte, 1024*16), // 16KB of data
		},
		"WatchEmpty": {
			MsgType: common.MsgTWatch,
			Cursor:  4711,
		},
		"WatchChanges": {
			MsgType: common.MsgTWatch,
			Cursor:  64,
			Changes: changes,
		},
		"ErrorMessage": {
			MsgType: common.MsgTSet,
			Code:    3,
			Err:     "Lorem ipsum dolor sit amet, consectetur adipiscing elit. Sed do eiusmod tempor incididunt ut labore et dolore magna aliqua.",
		},
	}
}

// BenchmarkSerialize benchmarks serialization for all implementations with various message types
func BenchmarkSerialize(b *testing.B) {
	messages := benchmarkMessages()

	for name, factory := range testSerializers {
		for msgName, msg := range messages {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				serializer := factory()
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					if _, err := serializer.Serialize(msg); err != nil {
						b.Fatalf("Failed to serialize: %v", err)
					}
				}
			})
		}
	}
}

// BenchmarkDeserialize benchmarks deserialization for all implementations with various message types
func BenchmarkDeserialize(b *testing.B) {
	messages := benchmarkMessages()

	for name, factory := range testSerializers {
		for msgName, msg := range messages {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				serializer := factory()
				data, err := serializer.Serialize(msg)
				if err != nil {
					b.Fatalf("Failed to serialize %s with %s: %v", msgName, name, err)
				}
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					var out common.Message
					if err := serializer.Deserialize(data, &out); err != nil {
						b.Fatalf("Failed to deserialize: %v", err)
					}
				}
			})
		}
	}
}

// BenchmarkSize reports the serialized size for each message type
func BenchmarkSize(b *testing.B) {
	messages := benchmarkMessages()

	for name, factory := range testSerializers {
		serializer := factory()

		for msgName, msg := range messages {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				data, err := serializer.Serialize(msg)
				if err != nil {
					b.Fatalf("Failed to serialize: %v", err)
				}
				b.ReportMetric(float64(len(data)), "bytes")
			})
		}
	}
}
