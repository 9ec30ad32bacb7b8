//go:build unix || darwin || linux
// +build unix darwin linux

package mmap

import (
	"golang.org/x/sys/unix"
)

// mmapFile maps a file descriptor into memory. MAP_SHARED ensures that
// changes are carried through to the underlying file.
func mmapFile(fd uintptr, size int, writable bool) ([]byte, error) {
	prot := unix.PROT_READ
	if writable {
		prot |= unix.PROT_WRITE
	}
	// unix.Mmap translates directly to the POSIX mmap syscall.
	return unix.Mmap(int(fd), 0, size, prot, unix.MAP_SHARED)
}

// msyncFile flushes modified pages of the mapped region to disk.
func msyncFile(data []byte) error {
	return unix.Msync(data, unix.MS_SYNC)
}

// munmapFile unmaps the memory region, freeing the virtual memory space.
func munmapFile(data []byte) error {
	return unix.Munmap(data)
}
