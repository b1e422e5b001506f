package dto

type APIErrorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// RateLimitExceededResponse is the 429 body. It always carries the
// post-expiry remaining counts for both horizons.
type RateLimitExceededResponse struct {
	Code            string `json:"code"`
	Message         string `json:"message"`
	RemainingMinute int    `json:"remaining_minute"`
	RemainingHour   int    `json:"remaining_hour"`
}
