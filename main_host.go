//go:build !rp2040 && !tinygo

package main

import (
	"powercode-go/boards"
	"powercode-go/platform"
)

// Host builds run against the simulator; cmd/powerctl drives real Linux
// hardware.
func openPlatform(b boards.Board) (platform.Hardware, error) {
	hw, _ := platform.NewSim(b)
	return hw, nil
}
