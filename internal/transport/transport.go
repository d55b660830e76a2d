package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/ds124wfegd/crossedpaths/internal/transport/middleware"

	"github.com/gin-gonic/gin"
)

// HealthFunc reports whether a dependency is reachable.
type HealthFunc func(ctx context.Context) error

type Handlers struct {
	Events *EventHandler
	RSVPs  *RSVPHandler
	Users  *UserHandler
	Admin  *AdminHandler
	Health map[string]HealthFunc
}

func InitRoutes(h *Handlers, timeout time.Duration) *gin.Engine {

	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger())
	router.Use(middleware.Timeout(timeout))

	// API routes
	api := router.Group("/api/v1")
	{
		// Event routes
		events := api.Group("/events")
		{
			events.POST("", h.Events.CreateEvent)
			events.GET("", h.Events.GetAllEvents)
			events.GET("/:id", h.Events.GetEvent)
			events.POST("/:id/cancel", h.Events.CancelEvent)
			events.GET("/:id/attendees", h.Events.GetAttendees)
			events.GET("/:id/count", h.Events.GetConfirmedCount)

			events.POST("/:id/rsvps", h.RSVPs.Admit)
			events.DELETE("/:id/rsvps/:user_id", h.RSVPs.Cancel)
			events.POST("/:id/payments/:user_id", h.Users.RecordPayment)
		}

		venues := api.Group("/venues")
		{
			venues.POST("", h.Events.CreateVenue)
			venues.GET("", h.Events.GetAllVenues)
		}

		// User routes
		users := api.Group("/users")
		{
			users.POST("", h.Users.RegisterUser)
			users.GET("", h.Users.GetAllUsers)
			users.GET("/:id", h.Users.GetUser)
			users.GET("/:id/matches", h.Users.GetMatches)
			users.GET("/:id/matches/:other_id/venues", h.Users.GetPairVenues)
			users.GET("/:id/quota", h.Users.GetQuota)
			users.GET("/:id/rsvps", h.Users.GetRSVPs)
			users.PUT("/:id/subscription", h.Users.SetSubscription)
		}

		// Admin routes
		admin := api.Group("/admin")
		{
			admin.GET("/queue", h.Admin.GetQueueStats)
			admin.GET("/dlq", h.Admin.GetFailedTasks)
			admin.POST("/dlq/:task_id/requeue", h.Admin.RequeueFailedTask)
			admin.DELETE("/dlq/:task_id", h.Admin.DeleteFailedTask)
		}
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		checks := gin.H{}
		status := http.StatusOK
		for name, check := range h.Health {
			if err := check(c.Request.Context()); err != nil {
				checks[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}

		c.JSON(status, gin.H{
			"status":    http.StatusText(status),
			"checks":    checks,
			"timestamp": time.Now().UTC(),
		})
	})

	return router
}
