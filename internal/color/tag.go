// Package color generates display colors for tags.
package color

import (
	"fmt"
	"math/rand/v2"
)

// TextTone is the foreground tone that stays readable on a tag's background.
type TextTone string

const (
	TextDark  TextTone = "dark"
	TextLight TextTone = "light"
)

// yiqThreshold separates light backgrounds (dark text) from dark ones.
const yiqThreshold = 140

// Pastel returns a random pastel background as #RRGGBB together with its text tone.
func Pastel() (string, TextTone) {
	return PastelForHue(rand.Float64() * 360)
}

// PastelForHue returns the pastel background for a fixed hue (S=50%, L=85%).
func PastelForHue(hue float64) (string, TextTone) {
	r, g, b := hslToRGB(hue, 0.5, 0.85)
	return fmt.Sprintf("#%02X%02X%02X", r, g, b), ToneFor(r, g, b)
}

// ToneFor picks dark text when the YIQ brightness is at least 140.
func ToneFor(r, g, b uint8) TextTone {
	yiq := (int(r)*299 + int(g)*587 + int(b)*114) / 1000
	if yiq >= yiqThreshold {
		return TextDark
	}
	return TextLight
}

// hslToRGB converts HSL (h in degrees, s and l in [0,1]) to 8-bit RGB.
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	h /= 360.0

	var r1, g1, b1 float64
	if s == 0 {
		r1, g1, b1 = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q

		r1 = hueToRGB(p, q, h+1.0/3.0)
		g1 = hueToRGB(p, q, h)
		b1 = hueToRGB(p, q, h-1.0/3.0)
	}

	return uint8(r1*255 + 0.5), uint8(g1*255 + 0.5), uint8(b1*255 + 0.5)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	default:
		return p
	}
}
