package target

import "fmt"

const (
	KindNone Kind = iota
	KindBlob
	KindGesture
)

// Kind tells which variant an Observation holds.
type Kind uint8

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindBlob:
		return "blob"
	case KindGesture:
		return "gesture"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// BBox is an axis aligned bounding box in frame pixels.
type BBox struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

func (b BBox) Center() (x, y float64) {
	return float64(b.X) + float64(b.W)/2, float64(b.Y) + float64(b.H)/2
}

// Area returns w*h, the box area, which is not the region's pixel area.
func (b BBox) Area() float64 {
	return float64(b.W) * float64(b.H)
}

// Observation is what was seen in a single cycle. Exactly one is produced
// per cycle; use the constructors rather than populating fields directly.
type Observation struct {
	Kind    Kind    `json:"kind"`
	Box     BBox    `json:"box,omitempty"`     // Blob only
	Area    float64 `json:"area,omitempty"`    // Blob only, contour area in pixels
	Gesture Gesture `json:"gesture,omitempty"` // Gesture only
}

func None() Observation {
	return Observation{Kind: KindNone}
}

func Blob(box BBox, area float64) Observation {
	return Observation{Kind: KindBlob, Box: box, Area: area}
}

func GestureOf(g Gesture) Observation {
	return Observation{Kind: KindGesture, Gesture: g}
}

func (o Observation) String() string {
	switch o.Kind {
	case KindBlob:
		return fmt.Sprintf("blob(x=%d y=%d w=%d h=%d area=%.0f)", o.Box.X, o.Box.Y, o.Box.W, o.Box.H, o.Area)
	case KindGesture:
		return fmt.Sprintf("gesture(%s)", o.Gesture)
	default:
		return "none"
	}
}

// Region is a single candidate reported by a detector.
type Region struct {
	Box  BBox
	Area float64
}

// Largest returns the region with the largest area. Ties are resolved in
// favour of the region seen first.
func Largest(regions []Region) (Region, bool) {
	if len(regions) == 0 {
		return Region{}, false
	}

	best := regions[0]
	for _, r := range regions[1:] {
		if r.Area > best.Area {
			best = r
		}
	}
	return best, true
}

// FromRegions turns detector output into an Observation: the largest region
// if its area exceeds minArea, otherwise None.
func FromRegions(regions []Region, minArea float64) Observation {
	r, ok := Largest(regions)
	if !ok || r.Area <= minArea {
		return None()
	}
	return Blob(r.Box, r.Area)
}
