package dto

import "github.com/Additional-Code/subext/internal/entity"

// ExtensionRequest is the body the platform posts to an API extension.
type ExtensionRequest struct {
	Action   string                `json:"action"`
	Resource *entity.OrderResource `json:"resource" validate:"required"`
}

// ExtensionResponse is returned when the extension accepts the call.
type ExtensionResponse struct {
	Actions []entity.UpdateAction `json:"actions"`
}

// ExtensionError is a single error entry in an ExtensionErrorResponse.
type ExtensionError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"extensionExtraInfo,omitempty"`
}

// ExtensionErrorResponse is returned when the extension rejects the call.
type ExtensionErrorResponse struct {
	Errors []ExtensionError `json:"errors"`
}
