package redaction

// NormalizedRect is a bounding box relative to the page, origin top-left,
// every component in [0,1].
type NormalizedRect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Rect is a page-space rectangle in points with a bottom-left origin.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func ToAbsoluteRect(n NormalizedRect, pageWidth, pageHeight float64) Rect {
	width := n.W * pageWidth
	height := n.H * pageHeight
	return Rect{
		X:      n.X * pageWidth,
		Y:      pageHeight - n.Y*pageHeight - height,
		Width:  width,
		Height: height,
	}
}

// ToNormalizedRect inverts ToAbsoluteRect for the same page dimensions.
func ToNormalizedRect(r Rect, pageWidth, pageHeight float64) NormalizedRect {
	if pageWidth <= 0 || pageHeight <= 0 {
		return NormalizedRect{}
	}
	return NormalizedRect{
		X: r.X / pageWidth,
		Y: (pageHeight - r.Y - r.Height) / pageHeight,
		W: r.Width / pageWidth,
		H: r.Height / pageHeight,
	}
}
