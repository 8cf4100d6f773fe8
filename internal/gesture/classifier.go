package gesture

import (
	"github.com/roman-kulish/visual-servo/internal/target"
)

// Rule pairs a pose predicate with the gesture it produces.
type Rule struct {
	Gesture target.Gesture
	Match   func(h *Hand) bool
}

// DefaultRules returns the canonical rule table in priority order. The
// predicates overlap for some hand shapes, so the order is significant.
func DefaultRules() []Rule {
	return []Rule{
		{target.GestureTakeoff, isOpenPalm},
		{target.GestureLand, isFist},
		{target.GestureUp, isPinkyUp},
		{target.GestureDown, isThumbPinkyDown},
		{target.GestureLeft, isPointLeft},
		{target.GestureRight, isPointRight},
		{target.GestureFront, isPointFront},
		{target.GestureBack, isPointBack},
		{target.GestureYawCW, isShakaCW},
		{target.GestureYawCCW, isShakaCCW},
	}
}

// Classifier evaluates rules in order, the first match wins.
type Classifier struct {
	rules []Rule
}

// NewClassifier creates a classifier over rules, or over DefaultRules when
// none are given.
func NewClassifier(rules ...Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Classifier{rules: rules}
}

// Rules returns the gestures in evaluation order.
func (c *Classifier) Rules() []target.Gesture {
	order := make([]target.Gesture, len(c.rules))
	for i, r := range c.rules {
		order[i] = r.Gesture
	}
	return order
}

// Classify returns the gesture of the first matching rule, or Other.
func (c *Classifier) Classify(h *Hand) target.Gesture {
	for _, r := range c.rules {
		if r.Match(h) {
			return r.Gesture
		}
	}
	return target.GestureOther
}

// Observe classifies an optional hand; no hand means nothing was observed.
func (c *Classifier) Observe(h *Hand) target.Observation {
	if h == nil {
		return target.None()
	}
	return target.GestureOf(c.Classify(h))
}

// all five fingers extended
func isOpenPalm(h *Hand) bool {
	return h.above(MiddleTip, MiddleMCP) &&
		h.above(RingTip, RingMCP) &&
		h.above(PinkyTip, PinkyMCP) &&
		h.above(ThumbTip, ThumbMCP) &&
		h.above(IndexTip, IndexMCP)
}

// four fingers curled, thumb ignored
func isFist(h *Hand) bool {
	return h.below(MiddleTip, MiddleMCP) &&
		h.below(RingTip, RingMCP) &&
		h.below(PinkyTip, PinkyMCP) &&
		h.below(IndexTip, IndexMCP)
}

func isPinkyUp(h *Hand) bool {
	return h.above(PinkyTip, PinkyMCP) &&
		h.rightOf(ThumbTip, ThumbMCP) &&
		h.below(IndexTip, IndexMCP) &&
		h.below(MiddleTip, MiddleMCP) &&
		h.below(RingTip, RingMCP)
}

// hand upside down: pinky and thumb pointing down, other fingers under the wrist
func isThumbPinkyDown(h *Hand) bool {
	return h.below(PinkyTip, PinkyMCP) &&
		h.below(ThumbTip, ThumbMCP) &&
		h.below(IndexTip, Wrist) &&
		h.below(MiddleTip, Wrist) &&
		h.below(RingTip, Wrist)
}

// thumb and index raised, the rest curled
func isPointing(h *Hand) bool {
	return h.above(ThumbTip, ThumbMCP) &&
		h.above(IndexTip, IndexMCP) &&
		h.below(MiddleTip, MiddleMCP) &&
		h.below(RingTip, RingMCP)
}

func isPointLeft(h *Hand) bool {
	return isPointing(h) && h.below(PinkyTip, PinkyMCP) && h.rightOf(ThumbTip, PinkyMCP)
}

func isPointRight(h *Hand) bool {
	return isPointing(h) && h.below(PinkyTip, PinkyMCP) && h.leftOf(ThumbTip, PinkyMCP)
}

// pointing with the pinky raised as well
func isPointFront(h *Hand) bool {
	return isPointing(h) && h.above(PinkyTip, PinkyMCP) && h.leftOf(ThumbTip, PinkyMCP)
}

func isPointBack(h *Hand) bool {
	return isPointing(h) && h.above(PinkyTip, PinkyMCP) && h.rightOf(ThumbTip, PinkyMCP)
}

// thumb up, three fingers folded to the right, pinky stretched to the left
func isShakaCW(h *Hand) bool {
	return h.above(ThumbTip, ThumbIP) && h.above(ThumbIP, ThumbMCP) &&
		h.rightOf(IndexTip, IndexPIP) &&
		h.rightOf(MiddleTip, MiddlePIP) &&
		h.rightOf(RingTip, RingPIP) &&
		h.leftOf(PinkyTip, PinkyDIP) && h.leftOf(PinkyDIP, PinkyPIP) && h.leftOf(PinkyPIP, PinkyMCP)
}

func isShakaCCW(h *Hand) bool {
	return h.above(ThumbTip, ThumbIP) && h.above(ThumbIP, ThumbMCP) &&
		h.leftOf(IndexTip, IndexPIP) &&
		h.leftOf(MiddleTip, MiddlePIP) &&
		h.leftOf(RingTip, RingPIP) &&
		h.rightOf(PinkyTip, PinkyDIP) && h.rightOf(PinkyDIP, PinkyPIP) && h.rightOf(PinkyPIP, PinkyMCP)
}
