// Package domain contains persistence models for the organization service.
package domain

import "time"

// Organization represents a tenant.
type Organization struct {
	ID                       string    `gorm:"primaryKey;type:uuid" json:"id"`
	OwnerID                  string    `gorm:"type:text;not null" json:"owner_id"`
	Name                     string    `gorm:"type:text;not null" json:"name"`
	Slug                     string    `gorm:"type:text;not null;uniqueIndex" json:"slug"`
	LegalName                string    `gorm:"type:text" json:"legal_name,omitempty"`
	DisplayName              string    `gorm:"type:text" json:"display_name,omitempty"`
	Email                    string    `gorm:"type:text" json:"email,omitempty"`
	Website                  string    `gorm:"type:text" json:"website,omitempty"`
	Description              string    `gorm:"type:text" json:"description,omitempty"`
	LogoURL                  string    `gorm:"type:text;column:logo_url" json:"logo_url,omitempty"`
	Phone                    string    `gorm:"type:text" json:"phone,omitempty"`
	Address                  string    `gorm:"type:text" json:"address,omitempty"`
	StripeCustomerID         *string   `gorm:"type:text" json:"stripe_customer_id,omitempty"`
	StripeAccountID          *string   `gorm:"type:text;uniqueIndex" json:"stripe_account_id,omitempty"`
	StripeOnboardingComplete bool      `gorm:"not null;default:false" json:"stripe_onboarding_complete"`
	StripeAccountEnabled     bool      `gorm:"not null;default:false" json:"stripe_account_enabled"`
	StripeAccountStatus      string    `gorm:"type:text" json:"stripe_account_status,omitempty"`
	SubscriptionStatus       string    `gorm:"type:text" json:"subscription_status,omitempty"`
	SubscriptionPlan         string    `gorm:"type:text" json:"subscription_plan,omitempty"`
	TermsOfServiceURL        string    `gorm:"type:text;column:terms_of_service_url" json:"terms_of_service_url,omitempty"`
	PrivacyPolicyURL         string    `gorm:"type:text;column:privacy_policy_url" json:"privacy_policy_url,omitempty"`
	CreatedAt                time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt                time.Time `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }

// HasStripeAccount reports whether a connected account is attached.
func (o Organization) HasStripeAccount() bool {
	return o.StripeAccountID != nil && *o.StripeAccountID != ""
}

// Summary is the slim view embedded in user profiles.
type Summary struct {
	ID                       string `json:"id"`
	Name                     string `json:"name"`
	Slug                     string `json:"slug"`
	StripeOnboardingComplete bool   `json:"stripe_onboarding_complete"`
	SubscriptionStatus       string `json:"subscription_status,omitempty"`
}

func (o Organization) Summary() Summary {
	return Summary{
		ID:                       o.ID,
		Name:                     o.Name,
		Slug:                     o.Slug,
		StripeOnboardingComplete: o.StripeOnboardingComplete,
		SubscriptionStatus:       o.SubscriptionStatus,
	}
}
