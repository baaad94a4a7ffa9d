package models

import (
	"encoding/json"
	"time"
)

type PaymentGateway string

const (
	PaymentGatewayPayPal PaymentGateway = "paypal"
	PaymentGatewayManual PaymentGateway = "manual"
)

// PaymentProviderLog keeps the raw request/response of every provider call
type PaymentProviderLog struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	PaymentGateway   PaymentGateway  `gorm:"type:varchar(50);not null" json:"payment_gateway"`
	Operation        string          `gorm:"type:varchar(50);not null" json:"operation"`
	UserID           uint            `gorm:"index" json:"user_id"`
	ExternalOrderRef string          `gorm:"type:varchar(128);index" json:"external_order_ref"`
	Status           string          `gorm:"type:varchar(50)" json:"status"`
	RequestMetadata  json.RawMessage `gorm:"type:jsonb" json:"request_metadata"`
	ResponseMetadata json.RawMessage `gorm:"type:jsonb" json:"response_metadata"`
	CreatedAt        time.Time       `json:"created_at"`
}
