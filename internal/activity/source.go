package activity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"stepcoin/internal/models"
)

var ErrNoData = errors.New("no activity data")

// Source supplies cumulative activity samples for a user. Counters only grow
// until the source resets them.
type Source interface {
	Sample(ctx context.Context, userID string) (models.ActivitySample, error)
}

type SampleReader interface {
	LatestSample(ctx context.Context, userID string) (models.ActivitySample, error)
}

// DeviceBacked serves the most recent sample a device pushed.
type DeviceBacked struct {
	samples SampleReader
}

func NewDeviceBacked(samples SampleReader) *DeviceBacked {
	return &DeviceBacked{samples: samples}
}

func (d *DeviceBacked) Sample(ctx context.Context, userID string) (models.ActivitySample, error) {
	sample, err := d.samples.LatestSample(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ActivitySample{}, ErrNoData
	}
	if err != nil {
		return models.ActivitySample{}, fmt.Errorf("latest sample: %w", err)
	}
	return sample, nil
}

// New picks a source by name. Unknown names fall back to the simulator.
func New(kind string, samples SampleReader) Source {
	if kind == "device" {
		return NewDeviceBacked(samples)
	}
	return NewSimulated(0)
}
