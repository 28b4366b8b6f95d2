package hydrate

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"sync"
)

var neutral = color.RGBA{R: 0xe5, G: 0xe7, B: 0xeb, A: 0xff}

func placeholderPNG(w, h int) string {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, neutral)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return ""
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

var (
	portraitPlaceholder = sync.OnceValue(func() string { return placeholderPNG(8, 10) })
	productPlaceholder  = sync.OnceValue(func() string { return placeholderPNG(8, 6) })
)

// PortraitPlaceholder is the neutral image used when no producer photo is
// available. Portrait aspect.
func PortraitPlaceholder() string { return portraitPlaceholder() }

// ProductPlaceholder is the neutral image used for missing product images
// and unrecoverable img sources. Landscape aspect.
func ProductPlaceholder() string { return productPlaceholder() }
