package analytics

import "errors"

// Sentinel errors for the analytics service.
var (
	ErrCampaignNotFound  = errors.New("campaign not found")
	ErrAlreadySent       = errors.New("campaign already marked sent")
	ErrInvalidEngagement = errors.New("invalid engagement")
	ErrInvalidURL        = errors.New("invalid url")
)
