package canvas

import (
	"math"

	"satupapan/internal/board/model"
)

// Corner names a resize handle of the selection box.
type Corner string

const (
	CornerNW Corner = "nw"
	CornerNE Corner = "ne"
	CornerSW Corner = "sw"
	CornerSE Corner = "se"
)

const (
	// MinElementSize is the floor for width and height while resizing.
	MinElementSize = 20.0
	// lineHitThreshold is the pick distance for line-like types, in screen
	// pixels (divided by the zoom scale before comparing).
	lineHitThreshold = 10.0
	// handleHitSize is the half-extent of a resize handle's hit area.
	handleHitSize = 8.0
	// freehandMinDistance is the displacement a pointer sample must cover
	// before it is appended to a stroke.
	freehandMinDistance = 2.0
)

func isLineType(t string) bool {
	return t == model.TypeLine || t == model.TypeArrow
}

func isStrokeType(t string) bool {
	return t == model.TypePen || t == model.TypeFreehand
}

func distance(ax, ay, bx, by float64) float64 {
	return math.Hypot(bx-ax, by-ay)
}

// pointToSegmentDistance is the shortest distance from p to the segment ab.
func pointToSegmentDistance(px, py, ax, ay, bx, by float64) float64 {
	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return distance(px, py, ax, ay)
	}
	t := ((px-ax)*dx + (py-ay)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return distance(px, py, ax+t*dx, ay+t*dy)
}

// hitElement reports whether (x, y) picks the element at the given zoom
// scale. Rectangular types use their bounding box, line-like types a distance
// band around the segment, strokes the minimum distance over consecutive
// point pairs.
func hitElement(el model.Element, x, y, scale float64) bool {
	threshold := lineHitThreshold / scale
	switch {
	case isLineType(el.Type):
		return pointToSegmentDistance(x, y, el.X, el.Y, el.X2, el.Y2) < threshold
	case isStrokeType(el.Type):
		if len(el.Points) == 1 {
			return distance(x, y, el.Points[0].X, el.Points[0].Y) < threshold
		}
		for i := 1; i < len(el.Points); i++ {
			a, b := el.Points[i-1], el.Points[i]
			if pointToSegmentDistance(x, y, a.X, a.Y, b.X, b.Y) < threshold {
				return true
			}
		}
		return false
	default:
		return x >= el.X && x <= el.X+el.Width && y >= el.Y && y <= el.Y+el.Height
	}
}

// hitTest picks the top-most element under the pointer: highest z-index wins,
// later-added wins among equals.
func hitTest(elements []model.Element, x, y, scale float64) (model.Element, bool) {
	best := -1
	for i := range elements {
		if !hitElement(elements[i], x, y, scale) {
			continue
		}
		if best < 0 || elements[i].ZIndex >= elements[best].ZIndex {
			best = i
		}
	}
	if best < 0 {
		return model.Element{}, false
	}
	return elements[best], true
}

// handleAt returns which resize handle of el, if any, lies under the pointer.
func handleAt(el model.Element, x, y, scale float64) (Corner, bool) {
	size := handleHitSize / scale
	corners := []struct {
		c      Corner
		cx, cy float64
	}{
		{CornerNW, el.X, el.Y},
		{CornerNE, el.X + el.Width, el.Y},
		{CornerSW, el.X, el.Y + el.Height},
		{CornerSE, el.X + el.Width, el.Y + el.Height},
	}
	for _, h := range corners {
		if math.Abs(x-h.cx) <= size && math.Abs(y-h.cy) <= size {
			return h.c, true
		}
	}
	return "", false
}

// resizeBounds applies a corner drag to the element's box, clamping both
// dimensions to the minimum. North and west drags move the origin along with
// the size.
func resizeBounds(el model.Element, corner Corner, x, y float64) model.Element {
	switch corner {
	case CornerSE:
		el.Width = math.Max(MinElementSize, x-el.X)
		el.Height = math.Max(MinElementSize, y-el.Y)
	case CornerSW:
		right := el.X + el.Width
		el.Width = math.Max(MinElementSize, right-x)
		el.X = right - el.Width
		el.Height = math.Max(MinElementSize, y-el.Y)
	case CornerNE:
		bottom := el.Y + el.Height
		el.Width = math.Max(MinElementSize, x-el.X)
		el.Height = math.Max(MinElementSize, bottom-y)
		el.Y = bottom - el.Height
	case CornerNW:
		right := el.X + el.Width
		bottom := el.Y + el.Height
		el.Width = math.Max(MinElementSize, right-x)
		el.X = right - el.Width
		el.Height = math.Max(MinElementSize, bottom-y)
		el.Y = bottom - el.Height
	}
	return el
}

// translateElement shifts an element, carrying secondary endpoints and stroke
// points along.
func translateElement(el model.Element, dx, dy float64) model.Element {
	el.X += dx
	el.Y += dy
	if isLineType(el.Type) {
		el.X2 += dx
		el.Y2 += dy
	}
	if el.Points != nil {
		points := make([]model.Point, len(el.Points))
		for i, p := range el.Points {
			points[i] = model.Point{X: p.X + dx, Y: p.Y + dy}
		}
		el.Points = points
	}
	return el
}

// boundsOfPoints computes the tight bounding box around a point list.
func boundsOfPoints(points []model.Point) (x, y, w, h float64) {
	if len(points) == 0 {
		return 0, 0, 0, 0
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return minX, minY, maxX - minX, maxY - minY
}

// SmoothedPath expands a thresholded sample list into a render-ready
// polyline by tracing quadratic curves through the midpoints of consecutive
// samples. The stored element keeps the raw samples; this runs at draw time.
func SmoothedPath(points []model.Point, steps int) []model.Point {
	if len(points) < 3 || steps < 1 {
		out := make([]model.Point, len(points))
		copy(out, points)
		return out
	}

	out := []model.Point{points[0]}
	for i := 1; i < len(points)-1; i++ {
		ctrl := points[i]
		start := midpoint(points[i-1], ctrl)
		end := midpoint(ctrl, points[i+1])
		for s := 1; s <= steps; s++ {
			t := float64(s) / float64(steps)
			out = append(out, quadraticAt(start, ctrl, end, t))
		}
	}
	return append(out, points[len(points)-1])
}

func midpoint(a, b model.Point) model.Point {
	return model.Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}

func quadraticAt(p0, p1, p2 model.Point, t float64) model.Point {
	u := 1 - t
	return model.Point{
		X: u*u*p0.X + 2*u*t*p1.X + t*t*p2.X,
		Y: u*u*p0.Y + 2*u*t*p1.Y + t*t*p2.Y,
	}
}
