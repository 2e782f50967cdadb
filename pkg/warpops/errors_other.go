//go:build !unix && !windows

package warpops

import "syscall"

func classifyErrno(errno syscall.Errno) ErrorKind {
	return ErrKindOther
}

func isCrossDevice(errno syscall.Errno) bool {
	return false
}
