package domain

import "errors"

var (
	ErrWebhookNotConfigured  = errors.New("webhook_not_configured")
	ErrMissingHeaders        = errors.New("missing_webhook_headers")
	ErrMissingSignature      = errors.New("missing_signature")
	ErrPayloadTooLarge       = errors.New("payload_too_large")
	ErrInvalidSignature      = errors.New("invalid_signature")
	ErrInvalidPayload        = errors.New("invalid_payload")
	ErrInvalidEvent          = errors.New("invalid_event")
	ErrEventAlreadyProcessed = errors.New("event_already_processed")
)
