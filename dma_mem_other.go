//go:build !linux

package aio

func allocArea(size int) ([]byte, error) {
	return make([]byte, size), nil
}

func freeArea([]byte) {}
