package response

import (
	"errors"

	"github.com/fatflowers/gachapon/pkg/errs"
)

// New generic response spec
type APIResponseCode int

const (
	APIResponseCodeOK           APIResponseCode = 0
	APIResponseCodeBadRequest   APIResponseCode = 40000
	APIResponseCodeUnauthorized APIResponseCode = 40100
	APIResponseCodeForbidden    APIResponseCode = 40300
	APIResponseCodeNotFound     APIResponseCode = 40400
	APIResponseCodeTimeout      APIResponseCode = 40800
	APIResponseCodeAlreadyUsed  APIResponseCode = 40900
	APIResponseCodeExpired      APIResponseCode = 41000
	APIResponseCodeRateLimited  APIResponseCode = 42900
	APIResponseCodeError        APIResponseCode = 50000
)

var codeToMsg = map[APIResponseCode]string{
	APIResponseCodeOK:           "ok",
	APIResponseCodeBadRequest:   "invalid request",
	APIResponseCodeUnauthorized: "unauthorized",
	APIResponseCodeForbidden:    "forbidden",
	APIResponseCodeNotFound:     "not found",
	APIResponseCodeTimeout:      "timed out",
	APIResponseCodeAlreadyUsed:  "this code was already used",
	APIResponseCodeExpired:      "expired",
	APIResponseCodeRateLimited:  "too many requests",
	APIResponseCodeError:        "unexpected error",
}

// APIResponse is the generic response envelope used by HTTP APIs.
// Use OKT / ErrorT helpers to construct instances.
type APIResponse[T any] struct {
	Code    APIResponseCode `json:"code"`
	Message string          `json:"message"`
	Data    T               `json:"data"`
}

// OKT returns a successful response with data.
func OKT[T any](data T) *APIResponse[T] {
	return &APIResponse[T]{Code: APIResponseCodeOK, Message: codeToMsg[APIResponseCodeOK], Data: data}
}

// ErrorT returns an error response with message and optional data.
func ErrorT[T any](code APIResponseCode, data T) *APIResponse[T] {
	return &APIResponse[T]{Code: code, Message: codeToMsg[code], Data: data}
}

// CodeFromError maps an error kind from pkg/errs to its response code.
func CodeFromError(err error) APIResponseCode {
	switch {
	case err == nil:
		return APIResponseCodeOK
	case errors.Is(err, errs.ErrNotFound):
		return APIResponseCodeNotFound
	case errors.Is(err, errs.ErrAlreadyUsed):
		return APIResponseCodeAlreadyUsed
	case errors.Is(err, errs.ErrExpired):
		return APIResponseCodeExpired
	case errors.Is(err, errs.ErrTimeout):
		return APIResponseCodeTimeout
	case errors.Is(err, errs.ErrInvalid):
		return APIResponseCodeBadRequest
	}
	return APIResponseCodeError
}

// FromError builds an error envelope whose data is the error text.
func FromError(err error) *APIResponse[any] {
	return ErrorT[any](CodeFromError(err), err.Error())
}
