package imagegen

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strconv"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/ecopulse/ecopulse/internal/models"
)

var (
	fontTitle   font.Face
	fontScore   font.Face
	fontRegular font.Face
	fontOnce    sync.Once
	fontErr     error
)

func loadFonts() {
	fontOnce.Do(func() {
		bold, err := opentype.Parse(gobold.TTF)
		if err != nil {
			fontErr = fmt.Errorf("parse Go Bold: %w", err)
			return
		}
		regular, err := opentype.Parse(goregular.TTF)
		if err != nil {
			fontErr = fmt.Errorf("parse Go Regular: %w", err)
			return
		}

		faces := []struct {
			dst  *font.Face
			font *opentype.Font
			size float64
		}{
			{&fontTitle, bold, 72},
			{&fontScore, bold, 160},
			{&fontRegular, regular, 36},
		}
		for _, f := range faces {
			*f.dst, err = opentype.NewFace(f.font, &opentype.FaceOptions{
				Size:    f.size,
				DPI:     72,
				Hinting: font.HintingFull,
			})
			if err != nil {
				fontErr = fmt.Errorf("create %.0fpt face: %w", f.size, err)
				return
			}
		}
	})
}

// CardWidth and CardHeight are the Open Graph image dimensions.
const (
	CardWidth  = 1200
	CardHeight = 630
)

// CardData is the content of a score card.
type CardData struct {
	City  string
	Year  int
	Score *float64 // nil renders the card without a score
	Label string   // e.g. "yearly average", "2027 forecast"
}

var (
	colorPoor    = color.RGBA{0xe7, 0x4c, 0x3c, 0xff}
	colorAverage = color.RGBA{0xf1, 0xc4, 0x0f, 0xff}
	colorGood    = color.RGBA{0x2e, 0xcc, 0x71, 0xff}
	colorNoScore = color.RGBA{0x95, 0xa5, 0xa6, 0xff}
)

// CategoryColor is the map colour used for a score.
func CategoryColor(score *float64) color.RGBA {
	if score == nil {
		return colorNoScore
	}
	switch models.CategoryOf(*score) {
	case models.CategoryPoor:
		return colorPoor
	case models.CategoryAverage:
		return colorAverage
	default:
		return colorGood
	}
}

// RenderCard draws the score card as a PNG.
func RenderCard(data CardData) ([]byte, error) {
	loadFonts()
	if fontErr != nil {
		return nil, fmt.Errorf("load fonts: %w", fontErr)
	}

	img := image.NewRGBA(image.Rect(0, 0, CardWidth, CardHeight))

	for y := 0; y < CardHeight; y++ {
		progress := float64(y) / float64(CardHeight)
		r := uint8(18 + progress*10)
		g := uint8(28 + progress*15)
		b := uint8(48 + progress*20)
		for x := 0; x < CardWidth; x++ {
			img.SetRGBA(x, y, color.RGBA{r, g, b, 255})
		}
	}

	accent := CategoryColor(data.Score)
	fillRect(img, image.Rect(0, 0, 24, CardHeight), accent)

	white := color.RGBA{255, 255, 255, 255}
	lightGray := color.RGBA{200, 200, 200, 255}

	drawText(img, data.City, 80, 130, white, fontTitle)

	subtitle := strconv.Itoa(data.Year)
	if data.Label != "" {
		subtitle += " · " + data.Label
	}
	drawText(img, subtitle, 80, 190, lightGray, fontRegular)

	if data.Score != nil {
		drawText(img, fmt.Sprintf("%.2f", *data.Score), 80, 420, accent, fontScore)
		drawText(img, string(models.CategoryOf(*data.Score)), 80, 490, lightGray, fontRegular)
	} else {
		drawText(img, "No score", 80, 420, accent, fontTitle)
	}

	drawText(img, "EcoPulse", 80, CardHeight-40, lightGray, fontRegular)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode card: %w", err)
	}
	return buf.Bytes(), nil
}

func fillRect(img *image.RGBA, r image.Rectangle, col color.RGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, col)
		}
	}
}

func drawText(img *image.RGBA, text string, x, y int, col color.Color, face font.Face) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
