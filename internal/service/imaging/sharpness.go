package imaging

import (
	"errors"
	"fmt"

	"camserver/internal/logger"

	"gocv.io/x/gocv"
)

// FocusScorer rates frames by the variance of their Laplacian. In-focus
// frames have strong edges and score higher than blurred ones.
type FocusScorer struct {
	logger *logger.Logger
}

func NewFocusScorer(logger *logger.Logger) *FocusScorer {
	return &FocusScorer{logger: logger}
}

// Score decodes data as grayscale and returns the Laplacian variance.
func (s *FocusScorer) Score(data []byte) (float64, error) {
	gray, err := gocv.IMDecode(data, gocv.IMReadGrayScale)
	if err != nil {
		return 0, fmt.Errorf("failed to decode image: %v", err)
	}
	defer gray.Close()

	if gray.Empty() {
		return 0, errors.New("failed to decode image: empty frame")
	}

	laplacian := gocv.NewMat()
	defer laplacian.Close()
	gocv.Laplacian(gray, &laplacian, gocv.MatTypeCV64F, 3, 1, 0, gocv.BorderDefault)

	mean := gocv.NewMat()
	defer mean.Close()
	stddev := gocv.NewMat()
	defer stddev.Close()
	gocv.MeanStdDev(laplacian, &mean, &stddev)

	if stddev.Empty() {
		return 0, errors.New("failed to compute deviation")
	}
	sigma := stddev.GetDoubleAt(0, 0)
	score := sigma * sigma
	s.logger.Debug("Focus score %.2f (%dx%d)", score, gray.Cols(), gray.Rows())
	return score, nil
}
