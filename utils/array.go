package utils

import (
	"unsafe"
)

// BytesToT32 reinterprets raw little-endian tensor contents as 4-byte elements.
// Trailing bytes that do not fill an element are dropped.
func BytesToT32[T int32 | float32](arr []byte) []T {
	l := len(arr) / 4
	if l == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&arr[0])), l)
}

func BytesToT64[T int64 | float64](arr []byte) []T {
	l := len(arr) / 8
	if l == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&arr[0])), l)
}

// ToInt converts model dimensions to tensor shape values.
func ToInt(dims []int64) []int {
	out := make([]int, len(dims))
	for i, d := range dims {
		out[i] = int(d)
	}
	return out
}

// ToInt64 converts tensor shape values to model dimensions.
func ToInt64(dims []int) []int64 {
	out := make([]int64, len(dims))
	for i, d := range dims {
		out[i] = int64(d)
	}
	return out
}
