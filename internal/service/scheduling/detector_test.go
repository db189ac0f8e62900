package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medflow/scheduler-api/internal/model"
)

type fakeClinics struct {
	clinic *model.Clinic
	err    error
}

func (f *fakeClinics) Get(_ context.Context, _ uuid.UUID) (*model.Clinic, error) {
	return f.clinic, f.err
}

type fakeAvailability struct {
	available bool
	err       error
}

func (f *fakeAvailability) IsDoctorAvailable(_ context.Context, _ uuid.UUID, _, _ time.Time) (bool, error) {
	return f.available, f.err
}

type fakeSlots struct {
	slots []model.TimeSlot
	count int
	err   error
}

func (f *fakeSlots) FindCommittedSlots(_ context.Context, _, _ uuid.UUID, _ time.Time) ([]model.TimeSlot, error) {
	return f.slots, f.err
}

func (f *fakeSlots) CountForClinicDay(_ context.Context, _ uuid.UUID, _ time.Time) (int, error) {
	return f.count, f.err
}

func openClinic() *model.Clinic {
	return &model.Clinic{
		OpenMinute:  9 * 60,
		CloseMinute: 17 * 60,
	}
}

func newTestDetector(clinic *model.Clinic, available bool, bookedCount int) *Detector {
	return NewDetector(
		&fakeClinics{clinic: clinic},
		&fakeAvailability{available: available},
		&fakeSlots{count: bookedCount},
	)
}

func requestAt(doctorID, clinicID uuid.UUID, start time.Time, mins int, priority model.Priority) *model.SchedulingRequest {
	return &model.SchedulingRequest{
		PatientID:      uuid.New(),
		DoctorID:       doctorID,
		ClinicID:       clinicID,
		RequestedStart: start,
		DurationMins:   mins,
		Priority:       priority,
	}
}

func slotFor(doctorID, clinicID uuid.UUID, start time.Time, mins int) model.TimeSlot {
	id := uuid.New()
	return model.TimeSlot{
		Start:         start,
		End:           start.Add(time.Duration(mins) * time.Minute),
		DoctorID:      doctorID,
		ClinicID:      clinicID,
		AppointmentID: &id,
	}
}

var baseDay = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func TestSeverityForOverlap(t *testing.T) {
	tests := []struct {
		minutes float64
		want    model.Severity
	}{
		{40, model.SeverityCritical},
		{31, model.SeverityCritical},
		{30, model.SeverityHigh},
		{20, model.SeverityHigh},
		{16, model.SeverityHigh},
		{15, model.SeverityHigh},
		{14, model.SeverityMedium},
		{10, model.SeverityMedium},
		{6, model.SeverityMedium},
		{5, model.SeverityLow},
		{3, model.SeverityLow},
		{0, model.SeverityLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, severityForOverlap(tt.minutes), "overlap of %.0f minutes", tt.minutes)
	}
}

func TestDetectOverlapSeverityFromUnbufferedOverlap(t *testing.T) {
	doctorID, clinicID := uuid.New(), uuid.New()
	detector := newTestDetector(openClinic(), true, 0)

	existing := []model.TimeSlot{
		slotFor(doctorID, clinicID, baseDay.Add(10*time.Hour), 30),
	}

	// 20 minutes of real overlap with the 10:00-10:30 slot.
	req := requestAt(doctorID, clinicID, baseDay.Add(10*time.Hour+10*time.Minute), 30, model.PriorityRegular)

	conflicts, err := detector.Detect(context.Background(), req, existing, 10)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, model.ConflictTimeOverlap, conflicts[0].Kind)
	assert.Equal(t, model.SeverityHigh, conflicts[0].Severity)
	require.NotNil(t, conflicts[0].AffectedSlot)
	assert.Equal(t, existing[0].AppointmentID, conflicts[0].AffectedSlot.AppointmentID)
}

func TestDetectHalfSlotCollisionIsHigh(t *testing.T) {
	doctorID, clinicID := uuid.New(), uuid.New()
	detector := newTestDetector(openClinic(), true, 0)

	existing := []model.TimeSlot{
		slotFor(doctorID, clinicID, baseDay.Add(10*time.Hour+15*time.Minute), 30),
	}

	// 10:00-10:30 against an existing 10:15-10:45 slot: exactly 15
	// minutes of overlap is already high.
	req := requestAt(doctorID, clinicID, baseDay.Add(10*time.Hour), 30, model.PriorityRegular)

	conflicts, err := detector.Detect(context.Background(), req, existing, 0)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, model.SeverityHigh, conflicts[0].Severity)
}

func TestDetectBufferedAdjacencyIsLowSeverity(t *testing.T) {
	doctorID, clinicID := uuid.New(), uuid.New()
	detector := newTestDetector(openClinic(), true, 0)

	existing := []model.TimeSlot{
		slotFor(doctorID, clinicID, baseDay.Add(10*time.Hour), 30),
	}

	// No real overlap, but the 10-minute buffer reaches back into the
	// existing slot.
	req := requestAt(doctorID, clinicID, baseDay.Add(10*time.Hour+35*time.Minute), 30, model.PriorityRegular)

	conflicts, err := detector.Detect(context.Background(), req, existing, 10)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, model.ConflictTimeOverlap, conflicts[0].Kind)
	assert.Equal(t, model.SeverityLow, conflicts[0].Severity)
}

func TestDetectNoConflictOutsideBuffer(t *testing.T) {
	doctorID, clinicID := uuid.New(), uuid.New()
	detector := newTestDetector(openClinic(), true, 0)

	existing := []model.TimeSlot{
		slotFor(doctorID, clinicID, baseDay.Add(10*time.Hour), 30),
	}

	req := requestAt(doctorID, clinicID, baseDay.Add(11*time.Hour), 30, model.PriorityRegular)

	conflicts, err := detector.Detect(context.Background(), req, existing, 10)
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestDetectIgnoresOtherDoctorsSlots(t *testing.T) {
	doctorID, clinicID := uuid.New(), uuid.New()
	detector := newTestDetector(openClinic(), true, 0)

	existing := []model.TimeSlot{
		slotFor(uuid.New(), clinicID, baseDay.Add(10*time.Hour), 30),
	}

	req := requestAt(doctorID, clinicID, baseDay.Add(10*time.Hour), 30, model.PriorityRegular)

	conflicts, err := detector.Detect(context.Background(), req, existing, 10)
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestDetectEmergencyConflictsAreLow(t *testing.T) {
	doctorID, clinicID := uuid.New(), uuid.New()
	detector := newTestDetector(openClinic(), true, 0)

	existing := []model.TimeSlot{
		slotFor(doctorID, clinicID, baseDay.Add(10*time.Hour), 60),
	}

	// Fully contained: a 60-minute overlap would be critical for a
	// regular appointment.
	req := requestAt(doctorID, clinicID, baseDay.Add(10*time.Hour), 60, model.PriorityEmergency)

	conflicts, err := detector.Detect(context.Background(), req, existing, 10)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, model.SeverityLow, conflicts[0].Severity)
}

func TestDetectDeterministicOrdering(t *testing.T) {
	doctorID, clinicID := uuid.New(), uuid.New()
	clinic := openClinic()
	clinic.DailyCapacity = 1
	detector := newTestDetector(clinic, false, 1)

	existing := []model.TimeSlot{
		slotFor(doctorID, clinicID, baseDay.Add(8*time.Hour), 30),
	}

	// Before opening, overlapping, doctor off schedule, clinic full.
	req := requestAt(doctorID, clinicID, baseDay.Add(8*time.Hour), 40, model.PriorityRegular)

	conflicts, err := detector.Detect(context.Background(), req, existing, 10)
	require.NoError(t, err)
	require.Len(t, conflicts, 4)
	assert.Equal(t, model.ConflictTimeOverlap, conflicts[0].Kind)
	assert.Equal(t, model.ConflictBusinessRule, conflicts[1].Kind)
	assert.Equal(t, model.ConflictDoctorUnavailable, conflicts[2].Kind)
	assert.Equal(t, model.ConflictCapacityExceeded, conflicts[3].Kind)
}

func TestDetectBusinessHoursEdge(t *testing.T) {
	doctorID, clinicID := uuid.New(), uuid.New()
	detector := newTestDetector(openClinic(), true, 0)

	// Ends exactly at close: allowed.
	req := requestAt(doctorID, clinicID, baseDay.Add(16*time.Hour+30*time.Minute), 30, model.PriorityRegular)
	conflicts, err := detector.Detect(context.Background(), req, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	// Runs one minute past close: rejected.
	req = requestAt(doctorID, clinicID, baseDay.Add(16*time.Hour+31*time.Minute), 30, model.PriorityRegular)
	conflicts, err = detector.Detect(context.Background(), req, nil, 0)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, model.ConflictBusinessRule, conflicts[0].Kind)
}

func TestDetectFailsClosedOnDependencyError(t *testing.T) {
	detector := NewDetector(
		&fakeClinics{err: assert.AnError},
		&fakeAvailability{available: true},
		&fakeSlots{},
	)

	req := requestAt(uuid.New(), uuid.New(), baseDay.Add(10*time.Hour), 30, model.PriorityRegular)

	conflicts, err := detector.Detect(context.Background(), req, nil, 0)
	assert.Error(t, err)
	assert.Nil(t, conflicts)
}
