package transport

import (
	"net/http"

	"github.com/ds124wfegd/crossedpaths/internal/service"

	"github.com/gin-gonic/gin"
)

type EventHandler struct {
	eventService service.EventService
	queries      service.QueryService
}

func NewEventHandler(eventService service.EventService, queries service.QueryService) *EventHandler {
	return &EventHandler{eventService: eventService, queries: queries}
}

func (h *EventHandler) CreateEvent(c *gin.Context) {
	var req service.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	event, err := h.eventService.CreateEvent(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, event)
}

func (h *EventHandler) GetEvent(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	event, err := h.eventService.GetEvent(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

func (h *EventHandler) GetAllEvents(c *gin.Context) {
	events, err := h.eventService.GetAllEvents(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, events)
}

func (h *EventHandler) CancelEvent(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.eventService.CancelEvent(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "event cancelled"})
}

func (h *EventHandler) GetAttendees(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	attendees, err := h.queries.EventAttendees(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, attendees)
}

func (h *EventHandler) GetConfirmedCount(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	count, err := h.queries.ConfirmedCount(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"event_id": id, "confirmed": count})
}

func (h *EventHandler) CreateVenue(c *gin.Context) {
	var req service.CreateVenueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	venue, err := h.eventService.CreateVenue(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, venue)
}

func (h *EventHandler) GetAllVenues(c *gin.Context) {
	venues, err := h.eventService.GetAllVenues(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, venues)
}
