package domain

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

// Donation is one gift made through a widget. Amount is in minor currency
// units and never changes after creation.
type Donation struct {
	ID                    string     `gorm:"primaryKey;type:uuid" json:"id"`
	WidgetID              string     `gorm:"type:uuid;not null;index" json:"widget_id"`
	CauseID               *string    `gorm:"type:uuid" json:"cause_id,omitempty"`
	OrganizationID        string     `gorm:"type:uuid;not null;index" json:"organization_id"`
	DonorEmail            string     `gorm:"type:text;not null" json:"donor_email"`
	DonorName             string     `gorm:"type:text" json:"donor_name,omitempty"`
	IsAnonymous           bool       `gorm:"not null" json:"is_anonymous"`
	DonorMessage          string     `gorm:"type:text" json:"donor_message,omitempty"`
	Amount                int64      `gorm:"not null" json:"amount"`
	Currency              string     `gorm:"type:text;not null" json:"currency"`
	StripePaymentIntentID *string    `gorm:"type:text;uniqueIndex" json:"stripe_payment_intent_id,omitempty"`
	StripeChargeID        *string    `gorm:"type:text" json:"stripe_charge_id,omitempty"`
	Status                Status     `gorm:"type:text;not null" json:"status"`
	ProcessedAt           *time.Time `json:"processed_at,omitempty"`
	ErrorMessage          *string    `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt             time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt             time.Time  `gorm:"not null" json:"updated_at"`
}

func (Donation) TableName() string { return "donations" }

// DailyTotal is the settled amount of one UTC day.
type DailyTotal struct {
	Date   string `json:"date"`
	Amount int64  `json:"amount"`
	Count  int64  `json:"count"`
}

type Stats struct {
	TotalRaised     int64        `json:"totalRaised"`
	TotalDonations  int64        `json:"totalDonations"`
	AverageDonation int64        `json:"averageDonation"`
	UniqueDonors    int64        `json:"uniqueDonors"`
	Daily           []DailyTotal `json:"daily"`
}
