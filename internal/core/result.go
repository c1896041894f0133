package core

import (
	"context"
	"errors"
	"net"
	"net/http"

	"gwi.com/notebook-console/internal/backend"
)

type Kind string

const (
	KindSuccess         Kind = "success"
	KindValidationError Kind = "validationError"
	KindFailure         Kind = "failure"
	KindNavigate        Kind = "navigate"
)

// Result is what every action returns. Callers switch on Kind instead of
// catching errors: a redirect is a value, not a thrown signal.
type Result struct {
	Kind        Kind              `json:"kind"`
	Data        any               `json:"data,omitempty"`
	FieldErrors map[string]string `json:"fieldErrors,omitempty"`
	Message     string            `json:"error,omitempty"`
	Context     string            `json:"context,omitempty"`
	StatusCode  int               `json:"-"`
	To          string            `json:"to,omitempty"`
}

func Success(data any) Result {
	return Result{Kind: KindSuccess, Data: data}
}

func Invalid(fields map[string]string) Result {
	return Result{Kind: KindValidationError, FieldErrors: fields}
}

func Navigate(to string) Result {
	return Result{Kind: KindNavigate, To: to}
}

const networkErrorMessage = "Unable to reach the server. Please check your connection and try again."

// Failure classifies err. Backend errors keep their status and detail;
// anything else is reported with a generic message.
func Failure(label string, err error) Result {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		return Result{Kind: KindFailure, Message: apiErr.Detail, Context: label, StatusCode: apiErr.StatusCode}
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return Result{Kind: KindFailure, Message: networkErrorMessage, Context: label, StatusCode: http.StatusBadGateway}
	}
	return Result{Kind: KindFailure, Message: "Something went wrong", Context: label, StatusCode: http.StatusInternalServerError}
}

func (r Result) OK() bool { return r.Kind == KindSuccess || r.Kind == KindNavigate }
