package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"marketplace-service/internal/models"
	"marketplace-service/internal/notify"
	"marketplace-service/internal/service"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Catalog is the read-only view of users and products exposed over HTTP
type Catalog interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetProducts(ctx context.Context, farmerID int64) ([]models.Product, error)
	Ping(ctx context.Context) error
}

// Pinger is a dependency whose reachability gates readiness
type Pinger interface {
	Ping(ctx context.Context) error
}

type readinessCheck struct {
	name string
	dep  Pinger
}

// Handler contains HTTP handlers
type Handler struct {
	ledger    *service.RequestLedger
	convos    *service.ConversationStore
	catalog   Catalog
	hub       *notify.Hub
	keepAlive time.Duration
	checks    []readinessCheck
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	ledger *service.RequestLedger,
	convos *service.ConversationStore,
	catalog Catalog,
	hub *notify.Hub,
	keepAlive time.Duration,
) *Handler {
	if keepAlive <= 0 {
		keepAlive = 25 * time.Second
	}
	return &Handler{
		ledger:    ledger,
		convos:    convos,
		catalog:   catalog,
		hub:       hub,
		keepAlive: keepAlive,
		logger:    util.GetLogger(),
	}
}

// AddReadinessCheck makes /ready also require dep to answer Ping
func (h *Handler) AddReadinessCheck(name string, dep Pinger) {
	h.checks = append(h.checks, readinessCheck{name: name, dep: dep})
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/requests", h.createRequest)
		v1.GET("/requests", h.listRequests)
		v1.GET("/requests/:id", h.getRequest)
		v1.PATCH("/requests/:id", h.updateRequestStatus)

		v1.POST("/messages", h.sendMessage)
		v1.GET("/messages", h.messageHistory)
		v1.GET("/messages/conversations/:userId", h.conversations)

		v1.GET("/events", h.streamEvents)

		v1.GET("/users/:id", h.getUser)
		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready once the database and every registered dependency answer
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := append([]readinessCheck{{name: "database", dep: h.catalog}}, h.checks...)
	for _, check := range checks {
		if err := check.dep.Ping(ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.String("dependency", check.name), zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":     "unavailable",
				"dependency": check.name,
				"details":    err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// createRequest handles purchase request creation
func (h *Handler) createRequest(c *gin.Context) {
	var in service.CreateRequestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	if in.IdempotencyKey == "" {
		in.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	req, err := h.ledger.Create(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, req)
}

// listRequests handles listing by farmerId, vendorId or userId (either side)
func (h *Handler) listRequests(c *gin.Context) {
	var (
		userID int64
		side   models.Role
	)
	switch {
	case c.Query("farmerId") != "":
		side = models.RoleFarmer
		userID, _ = strconv.ParseInt(c.Query("farmerId"), 10, 64)
	case c.Query("vendorId") != "":
		side = models.RoleVendor
		userID, _ = strconv.ParseInt(c.Query("vendorId"), 10, 64)
	case c.Query("userId") != "":
		userID, _ = strconv.ParseInt(c.Query("userId"), 10, 64)
	}
	if userID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   string(service.KindValidation),
			"details": "one of farmerId, vendorId or userId must be a positive integer",
		})
		return
	}

	requests, err := h.ledger.ListFor(c.Request.Context(), userID, side)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, requests)
}

// getRequest handles get purchase request by ID
func (h *Handler) getRequest(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	req, err := h.ledger.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, req)
}

type updateStatusBody struct {
	Status       models.RequestStatus `json:"status" binding:"required"`
	ActingUserID int64                `json:"actingUserId"`
}

// updateRequestStatus handles accept, reject and complete
func (h *Handler) updateRequestStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var body updateStatusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	if body.ActingUserID == 0 {
		body.ActingUserID, _ = strconv.ParseInt(c.GetHeader("X-User-ID"), 10, 64)
	}
	if body.ActingUserID <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   string(service.KindAuthorization),
			"details": "actingUserId is required",
		})
		return
	}

	req, err := h.ledger.UpdateStatus(c.Request.Context(), id, body.ActingUserID, body.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, req)
}

// sendMessage handles message sending
func (h *Handler) sendMessage(c *gin.Context) {
	var in service.SendMessageInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	msg, err := h.convos.Send(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// messageHistory returns the messages between userId1 and userId2 and marks
// those addressed to userId1 read
func (h *Handler) messageHistory(c *gin.Context) {
	userID1, err1 := strconv.ParseInt(c.Query("userId1"), 10, 64)
	userID2, err2 := strconv.ParseInt(c.Query("userId2"), 10, 64)
	if err1 != nil || err2 != nil || userID1 <= 0 || userID2 <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   string(service.KindValidation),
			"details": "userId1 and userId2 must be positive integers",
		})
		return
	}

	messages, err := h.convos.History(c.Request.Context(), userID1, userID2)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, messages)
}

// conversations handles the conversation list of a user
func (h *Handler) conversations(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}

	convs, err := h.convos.ConversationsFor(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, convs)
}

// getUser handles get user by ID
func (h *Handler) getUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	user, err := h.catalog.GetUserByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// listProducts handles product listing, optionally for one farmer
func (h *Handler) listProducts(c *gin.Context) {
	var farmerID int64
	if raw := c.Query("farmerId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			badRequest(c, "Invalid farmerId", err)
			return
		}
		farmerID = id
	}

	products, err := h.catalog.GetProducts(c.Request.Context(), farmerID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, products)
}

// getProduct handles get product by ID
func (h *Handler) getProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	product, err := h.catalog.GetProductByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

// respondError maps domain errors to status codes. Anything unclassified is a 500.
func (h *Handler) respondError(c *gin.Context, err error) {
	var status int
	kind := service.KindOf(err)
	switch kind {
	case service.KindValidation:
		status = http.StatusBadRequest
	case service.KindNotFound:
		status = http.StatusNotFound
	case service.KindAuthorization:
		status = http.StatusForbidden
	case service.KindInvalidTransition:
		status = http.StatusConflict
	default:
		if errors.Is(err, store.ErrNotFound) {
			status, kind = http.StatusNotFound, service.KindNotFound
			break
		}
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal",
			"details": "internal server error",
		})
		return
	}

	details := err.Error()
	var domainErr *service.Error
	if errors.As(err, &domainErr) {
		details = domainErr.Message
	}
	c.JSON(status, gin.H{
		"error":   string(kind),
		"details": details,
	})
}

func badRequest(c *gin.Context, msg string, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   string(service.KindValidation),
		"details": msg + ": " + err.Error(),
	})
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   string(service.KindValidation),
			"details": "invalid " + name,
		})
		return 0, false
	}
	return id, true
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
