// Package domain contains persistence models for platform subscription
// invoices mirrored from the payment processor.
package domain

import "time"

// Invoice is a paid platform invoice. Amount is in minor currency units.
type Invoice struct {
	ID                   string     `gorm:"primaryKey;type:uuid" json:"id"`
	OrganizationID       string     `gorm:"type:uuid;not null;index" json:"organization_id"`
	StripeInvoiceID      string     `gorm:"type:text;not null;uniqueIndex" json:"stripe_invoice_id"`
	StripeSubscriptionID string     `gorm:"type:text" json:"stripe_subscription_id,omitempty"`
	InvoiceNumber        string     `gorm:"type:text" json:"invoice_number,omitempty"`
	Amount               int64      `gorm:"not null" json:"amount"`
	Currency             string     `gorm:"type:text;not null" json:"currency"`
	Status               string     `gorm:"type:text;not null" json:"status"`
	DueDate              *time.Time `json:"due_date,omitempty"`
	PaidAt               *time.Time `json:"paid_at,omitempty"`
	PDFURL               string     `gorm:"type:text;column:pdf_url" json:"pdf_url,omitempty"`
	CreatedAt            time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }
