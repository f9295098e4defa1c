package domain

import (
	"fmt"
)

type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on Code so that errors produced by WithError still satisfy
// errors.Is against the pre-defined value.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    e.Message,
		StatusCode: e.StatusCode,
		Err:        err,
	}
}

// Retryable reports whether the caller may repeat the request unchanged later.
func (e *AppError) Retryable() bool {
	return e.Code == ErrCacheNotReady.Code || e.Code == ErrRateLimitExceeded.Code
}

// Pre-defined errors
var (
	ErrInternal = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		StatusCode: 500,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: 400,
	}

	ErrUnauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "Invalid or missing credentials",
		StatusCode: 401,
	}

	ErrForbidden = &AppError{
		Code:       "FORBIDDEN",
		Message:    "Access denied",
		StatusCode: 403,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: 404,
	}

	ErrInvalidImage = &AppError{
		Code:       "INVALID_IMAGE",
		Message:    "Invalid image format or corrupted file",
		StatusCode: 422,
	}

	ErrValidationFailed = &AppError{
		Code:       "VALIDATION_FAILED",
		Message:    "Request validation failed",
		StatusCode: 422,
	}

	ErrRateLimitExceeded = &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Rate limit exceeded, please try again later",
		StatusCode: 429,
	}

	// Matching errors

	ErrModelLoad = &AppError{
		Code:       "MODEL_LOAD_ERROR",
		Message:    "Face recognition model could not be loaded",
		StatusCode: 503,
	}

	ErrDetectionFailed = &AppError{
		Code:       "DETECTION_ERROR",
		Message:    "Face analysis failed, please try again",
		StatusCode: 502,
	}

	ErrNoFaceDetected = &AppError{
		Code:       "NO_FACE_DETECTED",
		Message:    "No face detected in the image, please try a clearer front-facing photo",
		StatusCode: 422,
	}

	ErrEmptyCatalog = &AppError{
		Code:       "EMPTY_CATALOG",
		Message:    "No celebrity could be prepared for matching",
		StatusCode: 503,
	}

	ErrCacheNotReady = &AppError{
		Code:       "CACHE_NOT_READY",
		Message:    "Matching is still initializing, please retry shortly",
		StatusCode: 503,
	}

	ErrMatchingUnavailable = &AppError{
		Code:       "MATCHING_UNAVAILABLE",
		Message:    "Matching is unavailable",
		StatusCode: 503,
	}

	ErrDescriptorShapeMismatch = &AppError{
		Code:       "DESCRIPTOR_SHAPE_MISMATCH",
		Message:    "Face descriptor has an unexpected shape",
		StatusCode: 500,
	}

	ErrInvalidState = &AppError{
		Code:       "INVALID_STATE",
		Message:    "Operation not allowed in the current initialization state",
		StatusCode: 409,
	}

	ErrMatchNotFound = &AppError{
		Code:       "MATCH_NOT_FOUND",
		Message:    "Match not found",
		StatusCode: 404,
	}

	// Account errors

	ErrUserExists = &AppError{
		Code:       "USER_ALREADY_EXISTS",
		Message:    "An account with this email already exists",
		StatusCode: 409,
	}

	ErrInvalidCredentials = &AppError{
		Code:       "INVALID_CREDENTIALS",
		Message:    "Invalid email or password",
		StatusCode: 401,
	}

	ErrUserNotFound = &AppError{
		Code:       "USER_NOT_FOUND",
		Message:    "User not found",
		StatusCode: 404,
	}
)
