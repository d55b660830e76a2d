package transport

import (
	"net/http"

	"github.com/ds124wfegd/crossedpaths/internal/service"

	"github.com/gin-gonic/gin"
)

type RSVPHandler struct {
	admission service.AdmissionService
}

func NewRSVPHandler(admission service.AdmissionService) *RSVPHandler {
	return &RSVPHandler{admission: admission}
}

// Admit handles POST /events/:id/rsvps. Refusals are returned as the outcome
// body with a matching status code.
func (h *RSVPHandler) Admit(c *gin.Context) {
	eventID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req service.AdmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	req.EventID = eventID

	result, err := h.admission.TryAdmit(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(outcomeStatus(result.Outcome), result)
}

func (h *RSVPHandler) Cancel(c *gin.Context) {
	eventID, ok := parseID(c, "id")
	if !ok {
		return
	}
	userID, ok := parseID(c, "user_id")
	if !ok {
		return
	}

	result, err := h.admission.Cancel(c.Request.Context(), eventID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(outcomeStatus(result.Outcome), result)
}
