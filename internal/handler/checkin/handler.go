package checkin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medflow/scheduler-api/internal/middleware"
	"github.com/medflow/scheduler-api/internal/model"
	checkinService "github.com/medflow/scheduler-api/internal/service/checkin"
	"github.com/medflow/scheduler-api/internal/service/event"
	apperrors "github.com/medflow/scheduler-api/pkg/errors"
	"github.com/medflow/scheduler-api/pkg/httputil"
	"github.com/medflow/scheduler-api/pkg/logger"
	"github.com/medflow/scheduler-api/pkg/metrics"
)

type Handler struct {
	service *checkinService.Service
	events  *event.Service
	metrics *metrics.Metrics
	logger  *logger.Logger
}

func NewHandler(service *checkinService.Service, events *event.Service, m *metrics.Metrics, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		events:  events,
		metrics: m,
		logger:  log,
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/checkins", h.CheckIn)
	rg.POST("/checkins/:id/complete", h.Complete)
}

// CheckIn validates the geofence then enqueues. Out-of-window forced
// check-ins require the staff override flag plus a reason; the entry
// records both.
func (h *Handler) CheckIn(c *gin.Context) {
	var req model.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	ctx := c.Request.Context()
	patient := model.Coordinates{Lat: req.Lat, Lng: req.Lng}

	geofence, err := h.service.ValidateLocation(ctx, patient, req.LocationID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if !geofence.IsValid {
		h.metrics.GeofenceRejections.Inc()
		h.metrics.CheckIns.WithLabelValues("geofence_rejected").Inc()
		httputil.RespondWithError(c, apperrors.NewGeofence(geofence.DistanceMeters, geofence.RadiusMeters))
		return
	}

	actorID, _ := c.Value(middleware.ContextUserID).(uuid.UUID)
	actorRole, _ := c.Value(middleware.ContextRole).(string)
	entry, err := h.service.Enqueue(ctx, req.AppointmentID, req.LocationID, checkinService.EnqueueOptions{
		Override:       req.Override,
		OverrideReason: req.OverrideReason,
		ActorID:        actorID,
		ActorRole:      actorRole,
	})
	if err != nil {
		h.metrics.CheckIns.WithLabelValues("rejected").Inc()
		httputil.RespondWithError(c, err)
		return
	}

	h.metrics.CheckIns.WithLabelValues("accepted").Inc()
	h.metrics.QueueDepth.WithLabelValues(req.LocationID.String()).Inc()

	if err := h.events.Emit(ctx, event.TypePatientCheckedIn, entry); err != nil {
		h.logger.Error(err, "failed to emit check-in event", "appointment_id", req.AppointmentID.String())
	}

	c.JSON(http.StatusCreated, gin.H{
		"status": "success",
		"data": model.CheckInResult{
			Entry:    entry,
			Geofence: geofence,
		},
	})
}

func (h *Handler) Complete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid queue entry ID"})
		return
	}

	entry, err := h.service.CompleteEntry(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	h.metrics.QueueDepth.WithLabelValues(entry.LocationID.String()).Dec()

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": entry})
}
