//go:build linux && !tinygo

package main

import (
	"powercode-go/boards"
	"powercode-go/platform"
	"powercode-go/platform/linuxhost"
)

func openHardware(b boards.Board) (platform.Hardware, func(), error) {
	hw, bus, err := linuxhost.Open(b)
	if err != nil {
		return platform.Hardware{}, nil, err
	}
	return hw, func() { bus.Close() }, nil
}
