package cmd

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewScheduler(t *testing.T) {
	log := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	job := func(ctx context.Context) error { return nil }

	scheduler, err := newScheduler(context.Background(), "0 6 * * 1", job, log)
	assert.NoError(t, err)
	assert.Len(t, scheduler.Jobs(), 1)

	_, err = newScheduler(context.Background(), "", job, log)
	assert.ErrorContains(t, err, "no cron expression")

	_, err = newScheduler(context.Background(), "not a cron", job, log)
	assert.ErrorContains(t, err, "error scheduling job")
}
