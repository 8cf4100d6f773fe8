package landmark

import (
	"github.com/roman-kulish/visual-servo/internal/gesture"
	"github.com/roman-kulish/visual-servo/internal/target"
	"github.com/roman-kulish/visual-servo/internal/video"
)

// HandEstimator returns the landmarks of the hand in a frame, nil when
// there is none.
type HandEstimator interface {
	Estimate(frame video.Frame) (*gesture.Hand, error)
}

// Observer classifies the estimated hand of each frame.
type Observer struct {
	estimator  HandEstimator
	classifier *gesture.Classifier
	mirror     bool
}

func NewObserver(estimator HandEstimator, classifier *gesture.Classifier, mirror bool) *Observer {
	return &Observer{estimator: estimator, classifier: classifier, mirror: mirror}
}

func (o *Observer) Observe(frame video.Frame) (target.Observation, error) {
	hand, err := o.estimator.Estimate(frame)
	if err != nil {
		return target.None(), err
	}
	if hand != nil && o.mirror {
		mirrored := hand.Mirror()
		hand = &mirrored
	}
	return o.classifier.Observe(hand), nil
}
