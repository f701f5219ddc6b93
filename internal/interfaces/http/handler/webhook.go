package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"ideaforge-api/internal/application/entitlement"
	"ideaforge-api/internal/interfaces/http/dto"
	"ideaforge-api/pkg/logger"
)

// SignatureHeader 支付回调签名头
const SignatureHeader = "X-Webhook-Signature"

// maxWebhookBody 回调请求体上限
const maxWebhookBody = 64 << 10

// Entitlements 支付回调的配额副作用
type Entitlements interface {
	VerifySignature(payload []byte, header string) error
	Apply(ctx context.Context, evt entitlement.CheckoutEvent) (entitlement.Outcome, error)
}

// WebhookHandler 支付回调处理器
type WebhookHandler struct {
	entitlements Entitlements
}

// NewWebhookHandler 创建支付回调处理器
func NewWebhookHandler(entitlements Entitlements) *WebhookHandler {
	return &WebhookHandler{entitlements: entitlements}
}

// Payment 处理支付完成回调
// @Summary 支付回调
// @Description 校验 HMAC 签名后按结账会话幂等地增加额外提案配额
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param X-Webhook-Signature header string true "sha256=<hex>"
// @Success 200 {object} dto.Response[dto.WebhookResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /v1/webhooks/payment [post]
func (h *WebhookHandler) Payment(c *gin.Context) {
	ctx := c.Request.Context()

	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		dto.BadRequest(c, "failed to read request body")
		return
	}

	if err := h.entitlements.VerifySignature(payload, c.GetHeader(SignatureHeader)); err != nil {
		logger.Warn(ctx, "webhook signature rejected")
		dto.AppError(c, err)
		return
	}

	var req dto.CheckoutEventRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		dto.BadRequest(c, "invalid event payload")
		return
	}

	outcome, err := h.entitlements.Apply(ctx, entitlement.CheckoutEvent{
		Type:        req.Type,
		SessionID:   req.Data.SessionID,
		UserID:      req.Data.UserID,
		PackSize:    req.Data.PackSize,
		AmountCents: req.Data.AmountCents,
		Currency:    req.Data.Currency,
		Raw:         payload,
	})
	if err != nil {
		logger.Error(ctx, "failed to apply checkout event", err, "session_id", req.Data.SessionID)
		dto.AppError(c, err)
		return
	}

	dto.Success(c, dto.WebhookResponse{
		Received:  true,
		Applied:   outcome.Applied,
		Duplicate: outcome.Duplicate,
		Ignored:   outcome.Ignored,
	})
}
