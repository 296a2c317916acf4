//go:build rp2040

package main

import "powercode-go/platform/rp2"

var openPlatform = rp2.Open
