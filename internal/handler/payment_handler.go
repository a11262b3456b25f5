package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"example.com/storefront-payments/internal/domain"
	"example.com/storefront-payments/internal/service"
	"example.com/storefront-payments/pkg/logger"
)

// Коды ответа IPN по конвенции шлюза: шлюз повторяет доставку callback,
// пока не получит валидный JSON с RspCode.
const (
	ipnCodeSuccess          = "00" // Callback принят и сверен
	ipnCodeOrderNotFound    = "01" // Заказ или платёж не найден
	ipnCodeAlreadyConfirmed = "02" // Повторная доставка, состояние уже финальное
	ipnCodeInvalidAmount    = "04" // Сумма не совпадает
	ipnCodeInvalidSignature = "97" // Подпись не прошла проверку
	ipnCodeUnknownError     = "99" // Прочие ошибки
)

// PaymentHandler — обработчик платежей.
type PaymentHandler struct {
	paymentService service.PaymentService
}

// NewPaymentHandler создаёт новый обработчик платежей.
func NewPaymentHandler(paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// === Request/Response DTOs ===

// CreatePaymentRequest — запрос на создание платёжного URL.
type CreatePaymentRequest struct {
	OrderID   string `json:"order_id" binding:"required,uuid"`
	OrderInfo string `json:"order_info"`
}

// CreatePaymentResponse — ответ с подписанным URL платёжной страницы.
type CreatePaymentResponse struct {
	PaymentID   string `json:"payment_id"`
	RedirectURL string `json:"redirect_url"`
	ExpiresAt   int64  `json:"expires_at"`
}

// RefundRequest — запрос на возврат платежа.
type RefundRequest struct {
	Reason string `json:"reason" binding:"required,min=1"`
}

// PaymentResponse — информация о платеже в ответе.
type PaymentResponse struct {
	ID            string     `json:"id"`
	OrderID       string     `json:"order_id"`
	Amount        int64      `json:"amount"`
	Method        string     `json:"method"`
	Status        string     `json:"status"`
	TransactionID *string    `json:"transaction_id,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	CreatedAt     int64      `json:"created_at"`
	UpdatedAt     int64      `json:"updated_at"`
}

// ListPaymentsResponse — ответ на запрос платежей заказа.
type ListPaymentsResponse struct {
	Payments []PaymentResponse `json:"payments"`
}

// IPNResponse — ответ шлюзу на server-to-server callback.
type IPNResponse struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

// ReturnResponse — ответ покупателю на return-запрос.
type ReturnResponse struct {
	Success      bool   `json:"success"`
	ResponseCode string `json:"response_code"`
	Message      string `json:"message"`
	OrderID      string `json:"order_id"`
	PaymentID    string `json:"payment_id"`
}

func paymentToResponse(p *domain.Payment) PaymentResponse {
	return PaymentResponse{
		ID:            p.ID,
		OrderID:       p.OrderID,
		Amount:        p.Amount,
		Method:        string(p.Method),
		Status:        string(p.Status),
		TransactionID: p.TransactionID,
		PaidAt:        p.PaidAt,
		CreatedAt:     p.CreatedAt.Unix(),
		UpdatedAt:     p.UpdatedAt.Unix(),
	}
}

// === Handlers ===

// CreatePayment создаёт PENDING платёж и подписанный URL платёжной страницы.
// POST /api/v1/payments/vnpay
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	ctx := c.Request.Context()

	userID, ok := getUserID(c)
	if !ok {
		return
	}

	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "bad_request",
			"message": "Некорректное тело запроса: " + err.Error(),
		})
		return
	}

	result, err := h.paymentService.CreatePaymentURL(ctx, service.CreatePaymentURLRequest{
		OrderID:   req.OrderID,
		UserID:    userID,
		ClientIP:  c.ClientIP(),
		OrderInfo: req.OrderInfo,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, CreatePaymentResponse{
		PaymentID:   result.PaymentID,
		RedirectURL: result.RedirectURL,
		ExpiresAt:   result.ExpiresAt.Unix(),
	})
}

// HandleIPN обрабатывает server-to-server callback шлюза.
// GET /payments/vnpay/ipn
//
// Формат ответа фиксирован протоколом шлюза: HTTP 200 + {RspCode, Message}
// для любого исхода, иначе шлюз будет повторять доставку.
func (h *PaymentHandler) HandleIPN(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)

	params := queryToMap(c)

	result, err := h.paymentService.HandleCallback(ctx, params)
	if err != nil {
		log.Warn().Err(err).Msg("Callback шлюза отклонён")
		c.JSON(http.StatusOK, ipnErrorResponse(err))
		return
	}

	if result.Duplicate {
		c.JSON(http.StatusOK, IPNResponse{
			RspCode: ipnCodeAlreadyConfirmed,
			Message: "Order already confirmed",
		})
		return
	}

	c.JSON(http.StatusOK, IPNResponse{
		RspCode: ipnCodeSuccess,
		Message: "Confirm Success",
	})
}

// HandleReturn обрабатывает return-запрос покупателя после оплаты.
// GET /payments/vnpay/return
//
// Только чтение: состояние платежа меняет IPN callback, а не браузер покупателя.
func (h *PaymentHandler) HandleReturn(c *gin.Context) {
	ctx := c.Request.Context()

	result, err := h.paymentService.VerifyReturn(ctx, queryToMap(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ReturnResponse{
		Success:      result.Success,
		ResponseCode: result.ResponseCode,
		Message:      result.Message,
		OrderID:      result.OrderID,
		PaymentID:    result.PaymentID,
	})
}

// RefundPayment выполняет возврат успешного платежа.
// POST /api/v1/payments/:id/refund
func (h *PaymentHandler) RefundPayment(c *gin.Context) {
	ctx := c.Request.Context()

	if _, ok := getUserID(c); !ok {
		return
	}

	var req RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "bad_request",
			"message": "Некорректное тело запроса: " + err.Error(),
		})
		return
	}

	if err := h.paymentService.RefundPayment(ctx, service.RefundPaymentRequest{
		PaymentID: c.Param("id"),
		Reason:    req.Reason,
	}); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Платёж возвращён",
	})
}

// GetPayment возвращает платёж по ID.
// GET /api/v1/payments/:id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	ctx := c.Request.Context()

	if _, ok := getUserID(c); !ok {
		return
	}

	payment, err := h.paymentService.GetPayment(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, paymentToResponse(payment))
}

// ListOrderPayments возвращает платежи заказа.
// GET /api/v1/orders/:id/payments
func (h *PaymentHandler) ListOrderPayments(c *gin.Context) {
	ctx := c.Request.Context()

	if _, ok := getUserID(c); !ok {
		return
	}

	payments, err := h.paymentService.GetOrderPayments(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := ListPaymentsResponse{Payments: make([]PaymentResponse, 0, len(payments))}
	for _, p := range payments {
		resp.Payments = append(resp.Payments, paymentToResponse(p))
	}

	c.JSON(http.StatusOK, resp)
}

// queryToMap собирает query-параметры в плоский словарь.
// Повторяющиеся параметры шлюз не присылает — берём первое значение.
func queryToMap(c *gin.Context) map[string]string {
	params := make(map[string]string, len(c.Request.URL.Query()))
	for key, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return params
}

// ipnErrorResponse мапит доменные ошибки на коды ответа IPN.
func ipnErrorResponse(err error) IPNResponse {
	switch {
	case errors.Is(err, domain.ErrInvalidSignature):
		return IPNResponse{RspCode: ipnCodeInvalidSignature, Message: "Invalid signature"}
	case errors.Is(err, domain.ErrOrderNotFound), errors.Is(err, domain.ErrPaymentNotFound):
		return IPNResponse{RspCode: ipnCodeOrderNotFound, Message: "Order not found"}
	case errors.Is(err, domain.ErrInvalidAmount):
		return IPNResponse{RspCode: ipnCodeInvalidAmount, Message: "Invalid amount"}
	case errors.Is(err, domain.ErrAlreadyProcessed):
		return IPNResponse{RspCode: ipnCodeAlreadyConfirmed, Message: "Order already confirmed"}
	default:
		return IPNResponse{RspCode: ipnCodeUnknownError, Message: "Unknown error"}
	}
}
