package model

import (
	"github.com/shopspring/decimal"
)

// Transaction represents one record from the N26 transaction feed.
type Transaction struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"` // transaction type code (PT, DT, AA, etc.)
	Amount        decimal.Decimal `json:"amount"`
	CurrencyCode  string          `json:"currencyCode,omitempty"`
	VisibleTS     int64           `json:"visibleTS"` // milliseconds since epoch
	MerchantName  string          `json:"merchantName,omitempty"`
	PartnerName   string          `json:"partnerName,omitempty"`
	ReferenceText string          `json:"referenceText,omitempty"`
}

// HasMerchant reports whether the record carries a merchant name.
func (t Transaction) HasMerchant() bool {
	return t.MerchantName != ""
}
