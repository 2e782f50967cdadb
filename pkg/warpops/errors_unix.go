//go:build unix

package warpops

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// classifyErrno maps POSIX errno values onto the failure taxonomy.
func classifyErrno(errno syscall.Errno) ErrorKind {
	switch errno {
	case unix.EAGAIN, unix.EBUSY, unix.EINTR, unix.ETIMEDOUT, unix.ETXTBSY,
		unix.ENOLCK, unix.EMFILE, unix.ENFILE, unix.ENOBUFS, unix.ESTALE:
		return ErrKindTransient
	case unix.EACCES, unix.EPERM, unix.EROFS:
		return ErrKindPermission
	case unix.ENOENT, unix.ENOTDIR:
		return ErrKindNotFound
	case unix.EEXIST, unix.ENOTEMPTY:
		return ErrKindConflict
	}
	return ErrKindOther
}

// isCrossDevice reports whether a rename failed because source and
// destination live on different filesystems.
func isCrossDevice(errno syscall.Errno) bool {
	return errno == unix.EXDEV
}
