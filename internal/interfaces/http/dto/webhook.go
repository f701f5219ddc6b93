package dto

// CheckoutEventRequest 支付服务回调载荷
type CheckoutEventRequest struct {
	Type string `json:"type"`
	Data struct {
		SessionID   string `json:"session_id"`
		UserID      string `json:"user_id"`
		PackSize    int    `json:"pack_size"`
		AmountCents int64  `json:"amount_cents"`
		Currency    string `json:"currency"`
	} `json:"data"`
}

// WebhookResponse 回调处理结果
type WebhookResponse struct {
	Received  bool `json:"received"`
	Applied   bool `json:"applied"`
	Duplicate bool `json:"duplicate"`
	Ignored   bool `json:"ignored"`
}
