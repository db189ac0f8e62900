package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWindowKeyIsUTCDate(t *testing.T) {
	// 23:30 in UTC-5 is already the next day in UTC.
	loc := time.FixedZone("EST", -5*3600)
	local := time.Date(2026, 3, 2, 23, 30, 0, 0, loc)

	assert.Equal(t, "2026-03-03", WindowKey(local))
	assert.Equal(t, "2026-03-02", WindowKey(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)))
}

func TestSeverityOrdering(t *testing.T) {
	assert.True(t, SeverityCritical.AtLeast(SeverityHigh))
	assert.True(t, SeverityHigh.AtLeast(SeverityHigh))
	assert.False(t, SeverityMedium.AtLeast(SeverityHigh))
	assert.False(t, SeverityLow.AtLeast(SeverityMedium))
}

func TestScheduledEnd(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	appointment := &Appointment{ScheduledStart: start, DurationMins: 45}
	assert.Equal(t, start.Add(45*time.Minute), appointment.ScheduledEnd())

	req := &SchedulingRequest{RequestedStart: start, DurationMins: 30}
	assert.Equal(t, start.Add(30*time.Minute), req.RequestedEnd())
}
