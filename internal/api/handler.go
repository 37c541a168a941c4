package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/service"
	"fulfillment-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Pinger is a dependency checked by the readiness endpoint
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	cartService          *service.CartService
	orderService         *service.OrderService
	supplierOrderService *service.SupplierOrderService
	dependencies         map[string]Pinger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	cartService *service.CartService,
	orderService *service.OrderService,
	supplierOrderService *service.SupplierOrderService,
	dependencies map[string]Pinger,
) *Handler {
	return &Handler{
		cartService:          cartService,
		orderService:         orderService,
		supplierOrderService: supplierOrderService,
		dependencies:         dependencies,
	}
}

type addItemRequest struct {
	ArticleID int64 `json:"article_id" binding:"required"`
	Quantity  int   `json:"quantity"`
}

type checkoutRequest struct {
	PaymentMethod string `json:"payment_method"`
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(util.ServiceName))
	router.Use(prometheusMiddleware())
	router.Use(requestLogger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")

	customer := v1.Group("", customerPrincipal())
	{
		customer.POST("/cart", h.addItem)
		customer.GET("/cart", h.viewCart)
		customer.POST("/cart/:articleId", h.decrementItem)
		customer.DELETE("/cart", h.clearCart)

		customer.POST("/orders", h.checkout)
		customer.GET("/orders", h.listOrders)
		customer.GET("/orders/:id", h.getOrder)
		customer.GET("/orders/:id/supplier-orders", h.listOrderSupplierOrders)
	}

	v1.GET("/suppliers/:id/orders", h.listSupplierOrders)
	v1.GET("/supplier-orders/:number", h.getSupplierOrder)
	v1.PATCH("/supplier-orders/:number/status", h.updateSupplierOrderStatus)
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := make(gin.H, len(h.dependencies))
	ready := true
	for name, dep := range h.dependencies {
		if err := dep.Ping(ctx); err != nil {
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	status, state := http.StatusOK, "ready"
	if !ready {
		status, state = http.StatusServiceUnavailable, "not ready"
	}
	c.JSON(status, gin.H{
		"status": state,
		"checks": checks,
		"time":   time.Now().Unix(),
	})
}

// addItem handles adding units of an article to the cart
func (h *Handler) addItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	cart, err := h.cartService.AddItem(c.Request.Context(), customerID(c), req.ArticleID, req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// viewCart handles get cart
func (h *Handler) viewCart(c *gin.Context) {
	cart, err := h.cartService.View(c.Request.Context(), customerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// decrementItem removes one unit of an article from the cart
func (h *Handler) decrementItem(c *gin.Context) {
	articleID, ok := idParam(c, "articleId", "Invalid article ID")
	if !ok {
		return
	}

	cart, err := h.cartService.DecrementItem(c.Request.Context(), customerID(c), articleID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// clearCart empties the cart
func (h *Handler) clearCart(c *gin.Context) {
	if _, err := h.cartService.Clear(c.Request.Context(), customerID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// checkout handles order creation from the cart
func (h *Handler) checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	result, err := h.orderService.Checkout(c.Request.Context(), customerID(c), req.PaymentMethod)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// listOrders handles listing the customer's orders
func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.orderService.ListForCustomer(c.Request.Context(), customerID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := idParam(c, "id", "Invalid order ID")
	if !ok {
		return
	}

	order, err := h.orderService.GetOrder(c.Request.Context(), customerID(c), orderID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// listOrderSupplierOrders handles listing the supplier orders of one of the customer's orders
func (h *Handler) listOrderSupplierOrders(c *gin.Context) {
	orderID, ok := idParam(c, "id", "Invalid order ID")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := h.orderService.GetOrder(ctx, customerID(c), orderID); err != nil {
		writeError(c, err)
		return
	}

	orders, err := h.supplierOrderService.ListByOrder(ctx, orderID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"supplier_orders": nonNil(orders)})
}

// listSupplierOrders handles listing a supplier's orders
func (h *Handler) listSupplierOrders(c *gin.Context) {
	supplierID, ok := idParam(c, "id", "Invalid supplier ID")
	if !ok {
		return
	}

	orders, err := h.supplierOrderService.ListBySupplier(c.Request.Context(), supplierID, c.Query("status"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"supplier_orders": nonNil(orders)})
}

// getSupplierOrder handles get supplier order by number
func (h *Handler) getSupplierOrder(c *gin.Context) {
	so, err := h.supplierOrderService.FindByOrderNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, so)
}

// updateSupplierOrderStatus handles supplier order status transitions
func (h *Handler) updateSupplierOrderStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	so, err := h.supplierOrderService.UpdateStatus(c.Request.Context(), c.Param("number"), req.Status, req.Notes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, so)
}

func idParam(c *gin.Context, name, message string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, message, nil)
		return 0, false
	}
	return id, true
}

func nonNil(orders []models.SupplierOrder) []models.SupplierOrder {
	if orders == nil {
		return []models.SupplierOrder{}
	}
	return orders
}
