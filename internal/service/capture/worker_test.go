package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"camserver/internal/hardware"
	"camserver/internal/hardware/hardwaretest"
	"camserver/internal/model"

	"github.com/stretchr/testify/require"
)

func TestWorker_TimeoutRecordedAsFailure(t *testing.T) {
	cam := hardwaretest.NewCamera(hardwaretest.Options{Delay: time.Minute})
	h := newHarness(t, harnessOptions{capturer: hardware.NewDevice(cam), timeout: 20 * time.Millisecond})

	handle, err := h.sequencer.StartSweep(context.Background(), SweepRequest{FocusMin: 1})
	require.NoError(t, err)
	h.wait(t)

	meta, err := h.store.ReadMeta(handle.JobIDs[0])
	require.NoError(t, err)
	require.Equal(t, model.StateFailed, meta.State())
	require.Contains(t, *meta.Error, "timed out")
	require.False(t, h.hasImage(handle.JobIDs[0]))
}

func TestWorker_ThumbnailFailureRemovesImage(t *testing.T) {
	h := newHarness(t, harnessOptions{thumbs: stubThumbnailer{err: errors.New("cannot decode")}})

	handle, err := h.sequencer.StartSweep(context.Background(), SweepRequest{FocusMin: 1})
	require.NoError(t, err)
	h.wait(t)

	meta, err := h.store.ReadMeta(handle.JobIDs[0])
	require.NoError(t, err)
	require.Equal(t, model.StateFailed, meta.State())
	require.Contains(t, *meta.Error, "cannot decode")
	require.False(t, h.hasImage(handle.JobIDs[0]))
}

func TestWorker_PublishesOneEventPerJob(t *testing.T) {
	cam := hardwaretest.NewCamera(hardwaretest.Options{FailOn: []int{1}})
	h := newHarness(t, harnessOptions{capturer: hardware.NewDevice(cam)})
	ch, cancel := h.bus.Subscribe(16)
	defer cancel()

	handle, err := h.sequencer.StartSweep(context.Background(), SweepRequest{
		FocusMin: 0, FocusMax: intPtr(1), FocusStep: intPtr(1),
	})
	require.NoError(t, err)
	h.wait(t)

	first := <-ch
	second := <-ch
	require.Equal(t, handle.JobIDs[0], first.ID)
	require.Equal(t, model.StateFailed, first.State)
	require.NotEmpty(t, first.Error)
	require.Equal(t, handle.JobIDs[1], second.ID)
	require.Equal(t, model.StateSuccess, second.State)
	require.Equal(t, handle.ID, second.SweepID)
	require.Len(t, ch, 0)
}

func TestWorker_InvariantErrorIffNoImage(t *testing.T) {
	cam := hardwaretest.NewCamera(hardwaretest.Options{FailOn: []int{1, 3, 4}})
	h := newHarness(t, harnessOptions{capturer: hardware.NewDevice(cam)})

	handle, err := h.sequencer.StartSweep(context.Background(), SweepRequest{
		FocusMin: 0, FocusMax: intPtr(5), FocusStep: intPtr(1),
	})
	require.NoError(t, err)
	h.wait(t)

	infos, err := h.store.List(0)
	require.NoError(t, err)
	require.Len(t, infos, len(handle.JobIDs))
	for _, info := range infos {
		require.False(t, info.Waiting)
		require.Equal(t, info.Error == nil, info.HasImage, info.ID)
	}
}

func TestWorker_ScoresSuccessfulCaptures(t *testing.T) {
	h := newHarness(t, harnessOptions{scorer: &sequenceScorer{scores: []float64{12.5, 40}}})
	ch, cancel := h.bus.Subscribe(16)
	defer cancel()

	handle, err := h.sequencer.StartSweep(context.Background(), SweepRequest{
		FocusMin: 0, FocusMax: intPtr(2), FocusStep: intPtr(1),
	})
	require.NoError(t, err)
	h.wait(t)

	var scores []*float64
	for _, id := range handle.JobIDs {
		meta, err := h.store.ReadMeta(id)
		require.NoError(t, err)
		require.Equal(t, model.StateSuccess, meta.State(), "a scoring error does not fail the capture")
		scores = append(scores, meta.Sharpness)
	}
	require.NotNil(t, scores[0])
	require.Equal(t, 12.5, *scores[0])
	require.NotNil(t, scores[1])
	require.Equal(t, 40.0, *scores[1])
	require.Nil(t, scores[2])

	first := <-ch
	require.NotNil(t, first.Sharpness)
	require.Equal(t, 12.5, *first.Sharpness)
}
