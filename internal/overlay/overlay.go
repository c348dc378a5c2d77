package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"go-scan-kiosk/internal/detector"
)

const borderThickness = 2

var boxColor = color.RGBA{R: 0, G: 220, B: 80, A: 255}

// Render draws one rectangle and a progress label per detected face onto a
// copy of the frame. The source frame is never touched: the capture path
// must submit clean frames, not overlay surfaces.
func Render(frame image.Image, boxes []detector.Box, progress float64) *image.RGBA {
	bounds := frame.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, frame, bounds.Min, draw.Src)

	label := Label(progress)
	for _, box := range boxes {
		drawBorder(out, box)
		drawLabel(out, box, label)
	}
	return out
}

// Label formats the stability progress for display: a percentage while
// accumulating, "capturing" once the window is full.
func Label(progress float64) string {
	if progress >= 1 {
		return "capturing"
	}
	if progress < 0 {
		progress = 0
	}
	return fmt.Sprintf("%d%%", int(progress*100))
}

func drawBorder(img *image.RGBA, box detector.Box) {
	rect := image.Rect(box.X, box.Y, box.X+box.Width, box.Y+box.Height).Intersect(img.Bounds())
	if rect.Empty() {
		return
	}

	src := image.NewUniform(boxColor)
	top := image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+borderThickness)
	bottom := image.Rect(rect.Min.X, rect.Max.Y-borderThickness, rect.Max.X, rect.Max.Y)
	left := image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+borderThickness, rect.Max.Y)
	right := image.Rect(rect.Max.X-borderThickness, rect.Min.Y, rect.Max.X, rect.Max.Y)

	for _, edge := range []image.Rectangle{top, bottom, left, right} {
		draw.Draw(img, edge.Intersect(img.Bounds()), src, image.Point{}, draw.Src)
	}
}

func drawLabel(img *image.RGBA, box detector.Box, label string) {
	face := basicfont.Face7x13

	// Anchor above the box, clamped into the frame
	x := box.X
	y := box.Y - 4
	if y < face.Height {
		y = box.Y + face.Height + 2
	}
	if x < img.Bounds().Min.X {
		x = img.Bounds().Min.X
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(boxColor),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	drawer.DrawString(label)
}
