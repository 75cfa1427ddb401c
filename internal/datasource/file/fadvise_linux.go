//go:build linux

package file

import (
	"os"

	"golang.org/x/sys/unix"
)

// adviseSequential hints read-ahead for the whole file. Errors are ignored;
// the hint is optional.
func adviseSequential(f *os.File) {
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
}
