package utils

import (
	"os"
)

func SysError(name string, err error) error {
	return os.NewSyscallError(name, err)
}

// CopyBytes returns a copy of b that does not alias caller memory.
func CopyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
