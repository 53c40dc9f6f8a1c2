package imaging

import (
	"errors"
	"fmt"
	"image"

	"camserver/internal/logger"

	"gocv.io/x/gocv"
)

// Thumbnailer scales encoded frames down with area interpolation.
type Thumbnailer struct {
	logger *logger.Logger
}

func NewThumbnailer(logger *logger.Logger) *Thumbnailer {
	return &Thumbnailer{logger: logger}
}

// Thumbnail decodes data, fits it in maxWidth x maxHeight keeping the aspect
// ratio and returns it re-encoded as JPEG.
func (t *Thumbnailer) Thumbnail(data []byte, maxWidth, maxHeight int) ([]byte, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %v", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, errors.New("failed to decode image: empty frame")
	}

	w, h := Fit(mat.Cols(), mat.Rows(), maxWidth, maxHeight)

	resized := gocv.NewMat()
	defer resized.Close()

	if err := gocv.Resize(mat, &resized, image.Pt(w, h), 0, 0, gocv.InterpolationArea); err != nil {
		return nil, fmt.Errorf("failed to resize image: %v", err)
	}

	buf, err := gocv.IMEncode(".jpg", resized)
	if err != nil {
		t.logger.Error("Failed to encode thumbnail: %v", err)
		return nil, err
	}
	defer buf.Close()
	thumb := make([]byte, len(buf.GetBytes()))
	copy(thumb, buf.GetBytes())

	return thumb, nil
}
