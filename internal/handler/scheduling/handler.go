package scheduling

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medflow/scheduler-api/internal/middleware"
	"github.com/medflow/scheduler-api/internal/model"
	"github.com/medflow/scheduler-api/internal/service/appointment"
	"github.com/medflow/scheduler-api/pkg/httputil"
)

type Handler struct {
	service *appointment.Service
}

func NewHandler(service *appointment.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	appointments := rg.Group("/appointments")
	appointments.POST("", h.Schedule)
	appointments.GET("/:id", h.Get)
	appointments.GET("", h.List)
	appointments.PATCH("/:id/status", h.Transition)
	appointments.POST("/:id/cancel", h.Cancel)
}

// Schedule returns the resolution decision alongside the created
// appointment. A non-schedulable decision is a 409 with the conflicts
// and alternatives attached, not a bare error.
func (h *Handler) Schedule(c *gin.Context) {
	var req model.ScheduleAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	schedReq := &model.SchedulingRequest{
		PatientID:      req.PatientID,
		DoctorID:       req.DoctorID,
		ClinicID:       req.ClinicID,
		RequestedStart: req.RequestedStart,
		DurationMins:   req.DurationMins,
		Priority:       model.Priority(req.Priority),
		ServiceType:    req.ServiceType,
	}

	apt, decision, err := h.service.Schedule(c.Request.Context(), schedReq, req.Notes)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if !decision.CanSchedule {
		c.JSON(http.StatusConflict, gin.H{
			"status":   "conflict",
			"decision": decision,
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status":     "success",
		"data":       apt,
		"decision":   decision,
		"request_id": c.GetString(middleware.ContextRequestID),
	})
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid appointment ID"})
		return
	}

	apt, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": apt})
}

func (h *Handler) List(c *gin.Context) {
	clinicID, err := uuid.Parse(c.Query("clinic_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid clinic ID"})
		return
	}

	filters := &model.AppointmentFilters{ClinicID: clinicID}

	if id := c.Query("doctor_id"); id != "" {
		doctorID, err := uuid.Parse(id)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid doctor ID"})
			return
		}
		filters.DoctorID = doctorID
	}

	if id := c.Query("patient_id"); id != "" {
		patientID, err := uuid.Parse(id)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid patient ID"})
			return
		}
		filters.PatientID = patientID
	}

	if status := c.Query("status"); status != "" {
		filters.Status = model.AppointmentStatus(status)
	}

	appointments, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": appointments})
}

func (h *Handler) Transition(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid appointment ID"})
		return
	}

	var req model.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	actorID, _ := c.Value(middleware.ContextUserID).(uuid.UUID)
	if err := h.service.Transition(c.Request.Context(), id, req.From, req.To, actorID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *Handler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid appointment ID"})
		return
	}

	var req model.CancelAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	actorID, _ := c.Value(middleware.ContextUserID).(uuid.UUID)
	if err := h.service.Cancel(c.Request.Context(), id, req.Reason, actorID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
