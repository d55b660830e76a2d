package transport

import (
	"net/http"

	"github.com/ds124wfegd/crossedpaths/internal/service"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	users     service.UserService
	queries   service.QueryService
	admission service.AdmissionService
}

func NewUserHandler(users service.UserService, queries service.QueryService, admission service.AdmissionService) *UserHandler {
	return &UserHandler{users: users, queries: queries, admission: admission}
}

func (h *UserHandler) RegisterUser(c *gin.Context) {
	var req service.RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	user, err := h.users.RegisterUser(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, user)
}

func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	user, err := h.users.GetUserByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) GetAllUsers(c *gin.Context) {
	users, err := h.users.GetAllUsers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, users)
}

func (h *UserHandler) GetMatches(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	matches, err := h.queries.ActiveMatches(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, matches)
}

func (h *UserHandler) GetPairVenues(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	otherID, ok := parseID(c, "other_id")
	if !ok {
		return
	}

	detail, err := h.queries.PairDetail(c.Request.Context(), id, otherID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

func (h *UserHandler) GetQuota(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	usage, err := h.admission.QuotaUsage(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, usage)
}

func (h *UserHandler) GetRSVPs(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	rsvps, err := h.queries.UserRSVPs(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, rsvps)
}

// SetSubscription is called by the billing side.
func (h *UserHandler) SetSubscription(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req service.SubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	sub, err := h.users.SetSubscription(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, sub)
}

// RecordPayment is called by the payment gateway integration.
func (h *UserHandler) RecordPayment(c *gin.Context) {
	eventID, ok := parseID(c, "id")
	if !ok {
		return
	}
	userID, ok := parseID(c, "user_id")
	if !ok {
		return
	}

	var req service.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	payment, err := h.users.RecordPayment(c.Request.Context(), eventID, userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, payment)
}
