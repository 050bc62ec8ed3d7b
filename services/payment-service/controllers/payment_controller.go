package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"

	apperrors "github.com/shoplet/marketplace-backend/services/common/errors"
	"github.com/shoplet/marketplace-backend/services/payment-service/services"
)

type PaymentController struct {
	Payments services.PaymentService
	Stripe   services.ProviderClient
	Logger   *zap.Logger
}

func NewPaymentController(payments services.PaymentService, provider services.ProviderClient, logger *zap.Logger) *PaymentController {
	return &PaymentController{Payments: payments, Stripe: provider, Logger: logger}
}

func (pc *PaymentController) GetByOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("orderId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}
	payment, err := pc.Payments.GetByOrderID(c.Request.Context(), orderID)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, payment)
}

// StripeWebhook receives and dispatches provider webhook events.
func (pc *PaymentController) StripeWebhook(c *gin.Context) {
	event, err := pc.Stripe.ParseWebhook(c.Request)
	if err != nil {
		pc.Logger.Warn("stripe webhook signature verification failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook"})
		return
	}

	pc.Logger.Info("processing stripe webhook",
		zap.String("event_type", string(event.Type)),
		zap.String("event_id", event.ID),
	)

	switch event.Type {
	case "payment_intent.succeeded":
		pc.handleIntent(c, event, true)
	case "payment_intent.payment_failed":
		pc.handleIntent(c, event, false)
	default:
		pc.Logger.Info("unhandled webhook event type", zap.String("event_type", string(event.Type)))
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
	}
}

func (pc *PaymentController) handleIntent(c *gin.Context, event stripe.Event, succeeded bool) {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		pc.Logger.Error("failed to unmarshal payment intent", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed event"})
		return
	}

	orderIDRaw := intent.Metadata["order_id"]
	orderID, err := uuid.Parse(orderIDRaw)
	if err != nil {
		pc.Logger.Warn("missing or invalid order_id metadata",
			zap.String("intent_id", intent.ID))
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	fee := 0
	if succeeded && intent.Amount > 0 {
		// Provider fee arrives with the balance transaction; approximate
		// with the configured scheme when it is absent on the event.
		fee = int(intent.Amount) * 29 / 1000
	}

	if err := pc.Payments.HandleProviderResult(c.Request.Context(), orderID, succeeded, intent.ID, fee); err != nil {
		// Returning non-2xx makes the provider redeliver; settled payments
		// already no-op inside the service.
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}
