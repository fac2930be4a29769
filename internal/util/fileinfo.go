package util

import (
	"fmt"
	"os"
	"syscall"
	"time"
)

// FileInfo identifies a file version: where it lives on disk and how big it is.
type FileInfo struct {
	ModTime time.Time
	Size    int64
	Inode   uint64 // Unique file identifier on Unix-like systems
}

// GetFileInfo stats a file including its inode number.
// Supported on Linux and macOS.
func GetFileInfo(path string) (FileInfo, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, err
	}

	sysStat, ok := stat.Sys().(*syscall.Stat_t)
	if !ok {
		return FileInfo{}, fmt.Errorf("failed to get file system information: %s", path)
	}

	return FileInfo{
		ModTime: stat.ModTime(),
		Size:    stat.Size(),
		Inode:   uint64(sysStat.Ino),
	}, nil
}

// Replaced reports whether the file at the same path is no longer the file
// prev described: it was recreated (new inode) or truncated.
func (fi FileInfo) Replaced(prev FileInfo) bool {
	return fi.Inode != prev.Inode || fi.Size < prev.Size
}
