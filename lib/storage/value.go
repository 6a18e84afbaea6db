package storage

import "strconv"

// Value is a string that may be absent. It models the nullable strings of the
// storage API: a missing key, a removed value and the key of a clear
// notification are all Absent. The zero value is Absent.
//
// Values are comparable, two values are equal if both are absent or both are
// present with the same data. The empty string is a present value.
type Value struct {
	Data    string
	Present bool
}

// Absent is the value of a key that does not exist
var Absent = Value{}

// ValueOf returns a present value holding s
func ValueOf(s string) Value {
	return Value{Data: s, Present: true}
}

// ValueFromPtr converts a *string, nil becomes Absent
func ValueFromPtr(s *string) Value {
	if s == nil {
		return Absent
	}
	return ValueOf(*s)
}

// Ptr converts the value into a *string, Absent becomes nil
func (v Value) Ptr() *string {
	if !v.Present {
		return nil
	}
	s := v.Data
	return &s
}

// Or returns the data of a present value and def otherwise
func (v Value) Or(def string) string {
	if !v.Present {
		return def
	}
	return v.Data
}

// String renders present values quoted and Absent as null
func (v Value) String() string {
	if !v.Present {
		return "null"
	}
	return strconv.Quote(v.Data)
}
