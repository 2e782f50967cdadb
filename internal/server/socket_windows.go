//go:build windows

package server

import "github.com/warpdl/warpops/common"

func pipePath() string {
	return common.PipePath()
}
