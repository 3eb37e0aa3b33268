package model

import "net/http"

// APIResponse - envelope for every successful response
type APIResponse struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

func NewAPIResponse(statusCode int, data any, message string) APIResponse {
	if message == "" {
		message = "success"
	}
	return APIResponse{
		StatusCode: statusCode,
		Data:       data,
		Message:    message,
		Success:    statusCode < http.StatusBadRequest,
	}
}

// APIError - envelope for failed requests
type APIError struct {
	StatusCode int      `json:"statusCode"`
	Data       any      `json:"data"`
	Message    string   `json:"message"`
	Success    bool     `json:"success"`
	Errors     []string `json:"errors"`
}

func NewAPIError(statusCode int, message string, errs ...string) APIError {
	if errs == nil {
		errs = []string{}
	}
	return APIError{
		StatusCode: statusCode,
		Message:    message,
		Success:    false,
		Errors:     errs,
	}
}

type HealthResponse struct {
	Status string `json:"status"`
}
