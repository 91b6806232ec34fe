package main

import (
	"encoding/binary"
	"reflect"

	"github.com/go-restruct/restruct"
)

// On-disk structures are packed big-endian, matching the byte order of
// existing TFS disk images.

func BytesOf(data interface{}) ([]byte, error) {
	v := reflect.ValueOf(data)
	if v.Kind() != reflect.Ptr {
		return nil, ErrInvalidDirBytes
	}
	return restruct.Pack(binary.BigEndian, data)
}

func StructOf(data []byte, v interface{}) error {
	return restruct.Unpack(data, binary.BigEndian, v)
}

func SizeOf(data interface{}) (int, error) {
	return restruct.SizeOf(data)
}

// Pad grows data to size with trailing zero bytes. Used to round serialized
// structures up to a block multiple before handing them to the device.
func Pad(data []byte, size int) []byte {
	if len(data) == size {
		return data
	}
	if len(data) > size {
		panic("data is too long")
	}
	return append(data, make([]byte, size-len(data))...)
}
