//go:build linux

package aio

import (
	"golang.org/x/sys/unix"
)

// allocArea backs a DMA buffer with populated anonymous memory, outside the Go heap.
func allocArea(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE|unix.MAP_POPULATE)
}

func freeArea(b []byte) {
	_ = unix.Munmap(b)
}
