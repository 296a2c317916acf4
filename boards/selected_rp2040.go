//go:build rp2040

package boards

// Selected is the board this firmware image is built for.
var Selected = PicoPower
