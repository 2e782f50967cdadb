//go:build windows

package warpops

import (
	"syscall"

	"golang.org/x/sys/windows"
)

// classifyErrno maps Windows error codes onto the failure taxonomy.
func classifyErrno(errno syscall.Errno) ErrorKind {
	switch errno {
	case windows.ERROR_SHARING_VIOLATION, windows.ERROR_LOCK_VIOLATION, windows.ERROR_BUSY:
		return ErrKindTransient
	case windows.ERROR_ACCESS_DENIED, windows.ERROR_PRIVILEGE_NOT_HELD:
		return ErrKindPermission
	case windows.ERROR_FILE_NOT_FOUND, windows.ERROR_PATH_NOT_FOUND:
		return ErrKindNotFound
	case windows.ERROR_FILE_EXISTS, windows.ERROR_ALREADY_EXISTS, windows.ERROR_DIR_NOT_EMPTY:
		return ErrKindConflict
	}
	return ErrKindOther
}

func isCrossDevice(errno syscall.Errno) bool {
	return errno == windows.ERROR_NOT_SAME_DEVICE
}
