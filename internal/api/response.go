package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shaiso/Grantflow/internal/command"
	"github.com/shaiso/Grantflow/internal/membership"
	"github.com/shaiso/Grantflow/internal/token"
)

// ErrorCode — код ошибки API.
type ErrorCode string

const (
	ErrCodeBadRequest         ErrorCode = "BAD_REQUEST"
	ErrCodeValidation         ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeInvalidToken       ErrorCode = "INVALID_TOKEN"
	ErrCodeTokenExpired       ErrorCode = "TOKEN_EXPIRED"
	ErrCodeTokenDecoding      ErrorCode = "TOKEN_DECODING_ERROR"
	ErrCodeAutomationPlatform ErrorCode = "AUTOMATION_PLATFORM_ERROR"
	ErrCodeUnavailable        ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeInternalError      ErrorCode = "INTERNAL_ERROR"
)

// ErrorResponse — структура ответа с ошибкой.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail — детали ошибки.
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// DataResponse — структура успешного ответа.
type DataResponse struct {
	Data any `json:"data"`
}

// ListResponse — структура ответа со списком.
type ListResponse struct {
	Data  any `json:"data"`
	Total int `json:"total,omitempty"`
}

// JSON отправляет JSON ответ.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Success отправляет успешный ответ с данными.
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, DataResponse{Data: data})
}

// Created отправляет ответ о создании ресурса.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, DataResponse{Data: data})
}

// Accepted отправляет ответ 202 для асинхронных операций.
func Accepted(w http.ResponseWriter, data any) {
	JSON(w, http.StatusAccepted, DataResponse{Data: data})
}

// List отправляет ответ со списком.
func List(w http.ResponseWriter, data any, total int) {
	JSON(w, http.StatusOK, ListResponse{Data: data, Total: total})
}

// Error отправляет ответ с ошибкой.
func Error(w http.ResponseWriter, status int, code ErrorCode, message string) {
	JSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// BadRequest отправляет ошибку 400.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// NotFound отправляет ошибку 404.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// InternalError отправляет ошибку 500.
func InternalError(w http.ResponseWriter, logger *slog.Logger, err error) {
	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
}

// HandleMembershipError преобразует ошибку заявки в HTTP ответ.
//
//	ErrInvalidRequest        → 400
//	token KindInvalid        → 400
//	token KindExpired        → 410
//	AutomationPlatformError  → 502
//	остальное                → 500
func HandleMembershipError(w http.ResponseWriter, logger *slog.Logger, err error) bool {
	if err == nil {
		return false
	}

	var platformErr *membership.AutomationPlatformError
	switch {
	case errors.Is(err, membership.ErrInvalidRequest):
		Error(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.As(err, &platformErr):
		logger.Warn("automation platform error", "code", platformErr.Code, "error", err)
		Error(w, http.StatusBadGateway, ErrCodeAutomationPlatform, platformErr.Error())
	default:
		switch token.KindOf(err) {
		case token.KindInvalid:
			Error(w, http.StatusBadRequest, ErrCodeInvalidToken, "request id is not valid")
		case token.KindExpired:
			Error(w, http.StatusGone, ErrCodeTokenExpired, "request id has expired")
		case token.KindDecoding:
			logger.Error("request token decoding failed", "error", err)
			Error(w, http.StatusInternalServerError, ErrCodeTokenDecoding, "request id could not be decoded")
		default:
			InternalError(w, logger, err)
		}
	}
	return true
}

// CommandStatus возвращает HTTP статус для результата команды.
func CommandStatus(res *command.Result) int {
	if res.Success {
		return http.StatusOK
	}
	switch res.ErrorCode {
	case command.CodeValidation, command.CodeConfiguration:
		return http.StatusBadRequest
	case command.CodeCommandNotFound, command.CodeNotFound:
		return http.StatusNotFound
	case command.CodeBackendUnavailable, command.CodePoolRejected:
		return http.StatusServiceUnavailable
	case command.CodeBackend:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
