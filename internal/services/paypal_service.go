package services

import (
	"context"
	"fmt"

	"github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"

	"retreat_app_echo/internal/config"
	"retreat_app_echo/internal/models"
)

const ProviderStatusCompleted = "COMPLETED"

// ProviderOrderRequest describes a checkout to open at the provider.
type ProviderOrderRequest struct {
	ReferenceID string
	Description string
	Amount      decimal.Decimal
	Currency    string
	ReturnURL   string
	CancelURL   string
}

type ProviderOrder struct {
	ID          string
	Status      string
	ApprovalURL string
}

// ProviderCapture is the provider's view of a captured order. Its amount,
// currency and payer are authoritative.
type ProviderCapture struct {
	OrderID    string
	CaptureID  string
	Status     string
	Amount     decimal.Decimal
	Currency   string
	PayerID    string
	PayerEmail string
	Raw        interface{}
}

// PaymentProvider is the external checkout the payment service talks to.
type PaymentProvider interface {
	Name() models.PaymentGateway
	CreateOrder(ctx context.Context, req ProviderOrderRequest) (*ProviderOrder, error)
	CaptureOrder(ctx context.Context, orderID string) (*ProviderCapture, error)
}

type PayPalService struct {
	client    *paypal.Client
	brandName string
}

func NewPayPalService(cfg config.PayPalConfig) (*PayPalService, error) {
	if cfg.ClientID == "" || cfg.Secret == "" {
		return nil, fmt.Errorf("paypal credentials not configured")
	}

	base := paypal.APIBaseSandBox
	if cfg.Environment == "production" || cfg.Environment == "live" {
		base = paypal.APIBaseLive
	}

	client, err := paypal.NewClient(cfg.ClientID, cfg.Secret, base)
	if err != nil {
		return nil, fmt.Errorf("paypal client: %w", err)
	}

	return &PayPalService{client: client, brandName: cfg.BrandName}, nil
}

func (s *PayPalService) Name() models.PaymentGateway {
	return models.PaymentGatewayPayPal
}

func (s *PayPalService) CreateOrder(ctx context.Context, req ProviderOrderRequest) (*ProviderOrder, error) {
	if _, err := s.client.GetAccessToken(ctx); err != nil {
		return nil, fmt.Errorf("paypal access token: %w", err)
	}

	units := []paypal.PurchaseUnitRequest{
		{
			ReferenceID: req.ReferenceID,
			Description: req.Description,
			Amount: &paypal.PurchaseUnitAmount{
				Currency: req.Currency,
				Value:    req.Amount.StringFixed(moneyPlaces),
			},
		},
	}
	appCtx := &paypal.ApplicationContext{
		BrandName:          s.brandName,
		ShippingPreference: paypal.ShippingPreferenceNoShipping,
		UserAction:         paypal.UserActionPayNow,
		ReturnURL:          req.ReturnURL,
		CancelURL:          req.CancelURL,
	}

	order, err := s.client.CreateOrder(ctx, paypal.OrderIntentCapture, units, nil, appCtx)
	if err != nil {
		return nil, fmt.Errorf("paypal create order: %w", err)
	}

	out := &ProviderOrder{ID: order.ID, Status: order.Status}
	for _, link := range order.Links {
		if link.Rel == "approve" || link.Rel == "payer-action" {
			out.ApprovalURL = link.Href
			break
		}
	}
	return out, nil
}

func (s *PayPalService) CaptureOrder(ctx context.Context, orderID string) (*ProviderCapture, error) {
	if _, err := s.client.GetAccessToken(ctx); err != nil {
		return nil, fmt.Errorf("paypal access token: %w", err)
	}

	resp, err := s.client.CaptureOrder(ctx, orderID, paypal.CaptureOrderRequest{})
	if err != nil {
		return nil, fmt.Errorf("paypal capture order: %w", err)
	}

	out := &ProviderCapture{
		OrderID: resp.ID,
		Status:  resp.Status,
		Amount:  decimal.Zero,
		Raw:     resp,
	}
	if resp.Payer != nil {
		out.PayerID = resp.Payer.PayerID
		out.PayerEmail = resp.Payer.EmailAddress
	}

	for _, unit := range resp.PurchaseUnits {
		if unit.Payments == nil {
			continue
		}
		for _, capture := range unit.Payments.Captures {
			if out.CaptureID == "" {
				out.CaptureID = capture.ID
			}
			if capture.Amount == nil {
				continue
			}
			value, err := decimal.NewFromString(capture.Amount.Value)
			if err != nil {
				return nil, fmt.Errorf("paypal capture amount %q: %w", capture.Amount.Value, err)
			}
			out.Amount = out.Amount.Add(value)
			out.Currency = capture.Amount.Currency
		}
	}

	return out, nil
}
