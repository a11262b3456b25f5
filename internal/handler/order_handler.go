package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"example.com/storefront-payments/internal/domain"
	"example.com/storefront-payments/internal/service"
)

// OrderHandler — обработчик заказов.
type OrderHandler struct {
	orderService service.OrderService
}

// NewOrderHandler создаёт новый обработчик заказов.
func NewOrderHandler(orderService service.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

// === Request/Response DTOs ===

// CreateOrderRequest — запрос на создание заказа.
type CreateOrderRequest struct {
	Amount int64 `json:"amount" binding:"required,min=1"`
}

// OrderResponse — информация о заказе в ответе.
type OrderResponse struct {
	ID            string  `json:"id"`
	UserID        string  `json:"user_id"`
	Amount        int64   `json:"amount"`
	Status        string  `json:"status"`
	PaymentID     *string `json:"payment_id,omitempty"`
	PaymentMethod *string `json:"payment_method,omitempty"`
	CreatedAt     int64   `json:"created_at"`
	UpdatedAt     int64   `json:"updated_at"`
}

// ListOrdersResponse — ответ на запрос списка заказов.
type ListOrdersResponse struct {
	Orders []OrderResponse `json:"orders"`
}

func orderToResponse(o *domain.Order) OrderResponse {
	return OrderResponse{
		ID:            o.ID,
		UserID:        o.UserID,
		Amount:        o.Amount,
		Status:        string(o.Status),
		PaymentID:     o.PaymentID,
		PaymentMethod: o.PaymentMethod,
		CreatedAt:     o.CreatedAt.Unix(),
		UpdatedAt:     o.UpdatedAt.Unix(),
	}
}

// === Handlers ===

// CreateOrder создаёт новый заказ.
// POST /api/v1/orders
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	ctx := c.Request.Context()

	userID, ok := getUserID(c)
	if !ok {
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "bad_request",
			"message": "Некорректное тело запроса: " + err.Error(),
		})
		return
	}

	order, err := h.orderService.CreateOrder(ctx, service.CreateOrderRequest{
		UserID: userID,
		Amount: req.Amount,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, orderToResponse(order))
}

// GetOrder возвращает заказ по ID.
// GET /api/v1/orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	ctx := c.Request.Context()

	userID, ok := getUserID(c)
	if !ok {
		return
	}

	order, err := h.orderService.GetOrder(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	// Чужой заказ не раскрываем
	if order.UserID != userID {
		respondError(c, domain.ErrOrderNotFound)
		return
	}

	c.JSON(http.StatusOK, orderToResponse(order))
}

// ListOrders возвращает заказы текущего пользователя.
// GET /api/v1/orders?limit=20&offset=0
func (h *OrderHandler) ListOrders(c *gin.Context) {
	ctx := c.Request.Context()

	userID, ok := getUserID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	orders, err := h.orderService.GetUserOrders(ctx, userID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := ListOrdersResponse{Orders: make([]OrderResponse, 0, len(orders))}
	for _, o := range orders {
		resp.Orders = append(resp.Orders, orderToResponse(o))
	}

	c.JSON(http.StatusOK, resp)
}

// getUserID извлекает user_id, установленный auth middleware.
func getUserID(c *gin.Context) (string, bool) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthorized",
			"message": "Требуется авторизация",
		})
		return "", false
	}
	return userID, true
}
