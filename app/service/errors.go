package service

import "errors"

var (
	ErrInvalidRequest       = errors.New("invalid request")
	ErrBookingNotFound      = errors.New("booking not found")
	ErrBookingAlreadyExists = errors.New("booking already exists")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrGatewayUnsupported   = errors.New("gateway is not supported")
	ErrSignatureInvalid     = errors.New("webhook signature invalid")
	ErrPayloadInvalid       = errors.New("webhook payload invalid")
	ErrVerificationFailed   = errors.New("payment verification failed")
)
