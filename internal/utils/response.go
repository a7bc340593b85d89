package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/gofiber/fiber/v2"
)

// APIResponse describes the common structure for API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message"`
	Meta    interface{} `json:"meta,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// Envelope is the decoding side of APIResponse; Data stays raw until the caller picks a type.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message"`
	Meta    json.RawMessage `json:"meta,omitempty"`
}

// ErrEmptyEnvelope is returned when a response body carries no envelope at all.
var ErrEmptyEnvelope = errors.New("empty response envelope")

// SendSuccess sends a successful JSON response with a message.
func SendSuccess(c *fiber.Ctx, message string, data interface{}) error {
	return SendSuccessWithStatus(c, fiber.StatusOK, message, data)
}

// SendSuccessWithStatus sends a success payload using the provided HTTP status code.
func SendSuccessWithStatus(c *fiber.Ctx, status int, message string, data interface{}) error {
	if message == "" {
		message = "success"
	}
	if status == 0 {
		status = fiber.StatusOK
	}

	return c.Status(status).JSON(APIResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// OK sends a 200 success payload with optional metadata.
func OK(c *fiber.Ctx, data interface{}, message string, meta interface{}) error {
	if message == "" {
		message = "success"
	}
	return c.Status(fiber.StatusOK).JSON(APIResponse{
		Success: true,
		Data:    data,
		Message: message,
		Meta:    meta,
	})
}

// SendError sends an error JSON response with the given status code.
func SendError(c *fiber.Ctx, status int, message string) error {
	return Fail(c, status, message, nil)
}

// Fail sends an error payload with optional details.
func Fail(c *fiber.Ctx, status int, message string, details interface{}) error {
	if message == "" {
		message = "error"
	}

	return c.Status(status).JSON(APIResponse{
		Success: false,
		Message: message,
		Details: details,
	})
}

// DecodeEnvelope reads an envelope from body and, when out is non-nil and data is present,
// decodes data into out. Bodies that are not an envelope are decoded into out directly.
func DecodeEnvelope(body io.Reader, out interface{}) (Envelope, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return Envelope{}, fmt.Errorf("read response body: %w", err)
	}
	if len(raw) == 0 {
		return Envelope{}, ErrEmptyEnvelope
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil || probe["success"] == nil {
		if out == nil {
			return Envelope{Success: true}, nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return Envelope{}, fmt.Errorf("decode response body: %w", err)
		}
		return Envelope{Success: true, Data: raw}, nil
	}

	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Envelope{}, fmt.Errorf("decode response envelope: %w", err)
	}
	if out != nil && len(envelope.Data) > 0 && string(envelope.Data) != "null" {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return envelope, fmt.Errorf("decode response data: %w", err)
		}
	}
	return envelope, nil
}
