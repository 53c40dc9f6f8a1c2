// Package history rebuilds the sweep index from the records in the image folder.
package history

import (
	"fmt"
	"sort"

	"camserver/internal/dto"
	"camserver/internal/logger"
	"camserver/internal/model"
	"camserver/internal/repository"
)

// Records lists the records of the image folder.
type Records interface {
	List(maxResults int) ([]dto.ImageInfo, error)
}

// Result summarizes a reindex run.
type Result struct {
	Inserted int
	Existing int
	Orphans  int
}

// Reindex groups records by sweep ID and inserts every sweep missing from
// the repository. Records without a sweep ID are counted as orphans.
// The folder is listed without a limit, so nothing is evicted.
func Reindex(records Records, sweeps repository.SweepRepository, logger *logger.Logger) (Result, error) {
	var result Result

	infos, err := records.List(0)
	if err != nil {
		return result, fmt.Errorf("list records: %w", err)
	}

	groups := make(map[string][]dto.ImageInfo)
	var order []string
	for _, info := range infos {
		if info.SweepID == "" {
			result.Orphans++
			continue
		}
		if _, ok := groups[info.SweepID]; !ok {
			order = append(order, info.SweepID)
		}
		groups[info.SweepID] = append(groups[info.SweepID], info)
	}

	for _, id := range order {
		existing, err := sweeps.GetByID(id)
		if err != nil {
			return result, err
		}
		if existing != nil {
			result.Existing++
			continue
		}

		sweep := rebuild(id, groups[id])
		if err := sweeps.Insert(sweep); err != nil {
			return result, fmt.Errorf("insert sweep %s: %w", id, err)
		}
		logger.Info("Reindexed sweep %s (%d job(s))", id, len(sweep.Jobs))
		result.Inserted++
	}
	return result, nil
}

// rebuild restores what the records still carry. The requested max and
// step are not stored per record, so they are derived from the foci.
func rebuild(id string, infos []dto.ImageInfo) *model.Sweep {
	sort.Slice(infos, func(i, j int) bool { return infos[i].Sequence < infos[j].Sequence })

	first := infos[0]
	sweep := &model.Sweep{
		ID:         id,
		CreatedAt:  first.Timestamp,
		CameraType: first.CameraType,
		Exposure:   first.Exposure,
		Gain:       first.Gain,
		Aperture:   first.Aperture,
		Jobs:       make([]model.SweepJob, 0, len(infos)),
	}

	foci := make([]int, 0, len(infos))
	for _, info := range infos {
		focus := 0
		if info.Focus != nil {
			focus = *info.Focus
		}
		foci = append(foci, focus)
		sweep.Jobs = append(sweep.Jobs, model.SweepJob{ImageID: info.ID, Sequence: info.Sequence, Focus: focus})
	}

	sweep.FocusMin = foci[0]
	if len(foci) > 1 {
		max := foci[len(foci)-1]
		step := foci[1] - foci[0]
		sweep.FocusMax = &max
		sweep.FocusStep = &step
	}
	return sweep
}
