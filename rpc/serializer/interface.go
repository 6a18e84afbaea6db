package serializer

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/rKV/rpc/common"
)

// IRPCSerializer is the interface for all Message serializers
type IRPCSerializer interface {
	// Serialize serializes a Message into a byte array
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize deserializes a byte array into msg. Fields of msg that are
	// not present in b are reset.
	Deserialize(b []byte, msg *common.Message) error
}

// ByName returns the serializer for one of the names "binary", "json" or
// "gob". The match is case-insensitive.
func ByName(name string) (IRPCSerializer, error) {
	switch strings.ToLower(name) {
	case "binary":
		return NewBinarySerializer(), nil
	case "json":
		return NewJSONSerializer(), nil
	case "gob":
		return NewGOBSerializer(), nil
	default:
		return nil, fmt.Errorf("unknown serializer %q: must be one of binary, json, gob", name)
	}
}
