//go:build !linux && !tinygo

package main

import (
	"errors"

	"powercode-go/boards"
	"powercode-go/platform"
)

func openHardware(boards.Board) (platform.Hardware, func(), error) {
	return platform.Hardware{}, nil, errors.New("hardware access needs Linux")
}
