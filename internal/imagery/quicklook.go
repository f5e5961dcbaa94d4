package imagery

import (
	"fmt"

	"github.com/fogleman/gg"
)

// Quicklook renders a grayscale browse PNG from the NIR band, or the first
// band when the scene has none.
func Quicklook(img Image, outPath string) error {
	g, err := geoImage(img)
	if err != nil {
		return err
	}
	bi, err := g.bandByColor("NIR")
	if err != nil {
		bi = 0
	}
	data, err := g.readDN(bi)
	if err != nil {
		return err
	}
	w, h := g.size()

	lo, hi := data[0], data[0]
	for _, v := range data {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	scale := 1.0
	if hi > lo {
		scale = 1.0 / (hi - lo)
	}

	dc := gg.NewContext(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gray := (data[y*w+x] - lo) * scale
			dc.SetRGB(gray, gray, gray)
			dc.SetPixel(x, y)
		}
	}
	if err := dc.SavePNG(outPath); err != nil {
		return fmt.Errorf("saving quicklook %s: %w", outPath, err)
	}
	return nil
}
