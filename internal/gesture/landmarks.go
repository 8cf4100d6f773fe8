package gesture

// MediaPipe hand landmark indices.
const (
	Wrist = iota
	ThumbCMC
	ThumbMCP
	ThumbIP
	ThumbTip
	IndexMCP
	IndexPIP
	IndexDIP
	IndexTip
	MiddleMCP
	MiddlePIP
	MiddleDIP
	MiddleTip
	RingMCP
	RingPIP
	RingDIP
	RingTip
	PinkyMCP
	PinkyPIP
	PinkyDIP
	PinkyTip

	NumLandmarks
)

// Point is a landmark in normalised image coordinates, [0,1] on both axes
// with y growing downwards.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Hand holds the 21 landmarks of a single detected hand.
type Hand [NumLandmarks]Point

// Mirror returns the hand as seen in a horizontally flipped frame.
func (h Hand) Mirror() Hand {
	for i := range h {
		h[i].X = 1 - h[i].X
	}
	return h
}

// above reports whether landmark a is higher in the frame than b.
func (h *Hand) above(a, b int) bool {
	return h[a].Y < h[b].Y
}

func (h *Hand) below(a, b int) bool {
	return h[a].Y > h[b].Y
}

func (h *Hand) leftOf(a, b int) bool {
	return h[a].X < h[b].X
}

func (h *Hand) rightOf(a, b int) bool {
	return h[a].X > h[b].X
}
