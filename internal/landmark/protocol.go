package landmark

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/roman-kulish/visual-servo/internal/gesture"
	"github.com/roman-kulish/visual-servo/internal/video"
)

// headerSize is seq (uint64), width and height (uint32), big-endian.
const headerSize = 16

// writeRequest sends one frame to the estimator: a fixed header followed by
// the raw BGR24 pixels.
func writeRequest(w io.Writer, seq uint64, frame video.Frame) error {
	var header [headerSize]byte
	binary.BigEndian.PutUint64(header[0:8], seq)
	binary.BigEndian.PutUint32(header[8:12], uint32(frame.Width))
	binary.BigEndian.PutUint32(header[12:16], uint32(frame.Height))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := w.Write(frame.Data); err != nil {
		return fmt.Errorf("writing pixels: %w", err)
	}
	return nil
}

// response is one JSON line written by the estimator per request. Points
// are normalised [x, y] pairs in landmark order.
type response struct {
	Seq   uint64 `json:"seq"`
	Hands []struct {
		Points [][2]float64 `json:"points"`
	} `json:"hands"`
	Error string `json:"error,omitempty"`
}

// result is a parsed response. Hand is nil when nothing was detected.
type result struct {
	seq  uint64
	hand *gesture.Hand
	err  error
}

func parseResponse(line []byte) (result, error) {
	var resp response
	if err := json.Unmarshal(line, &resp); err != nil {
		return result{}, fmt.Errorf("decoding response: %w", err)
	}

	r := result{seq: resp.Seq}
	if resp.Error != "" {
		r.err = fmt.Errorf("estimator: %s", resp.Error)
		return r, nil
	}
	if len(resp.Hands) == 0 {
		return r, nil
	}

	// only the first hand drives the classifier
	points := resp.Hands[0].Points
	if len(points) != gesture.NumLandmarks {
		return result{}, fmt.Errorf("expected %d landmarks, %d given", gesture.NumLandmarks, len(points))
	}

	var hand gesture.Hand
	for i, p := range points {
		hand[i] = gesture.Point{X: p[0], Y: p[1]}
	}
	r.hand = &hand

	return r, nil
}
