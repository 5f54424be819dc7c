// Copyright 2015 trivago GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package socket

import (
	"errors"
	"net/http"

	kafka "github.com/Shopify/sarama"
)

// ErrorKind discriminates the error taxonomy from spec.md §7, kept as
// kinds rather than Go error types so a single switch at the HTTP layer
// maps every one of them to a status code.
type ErrorKind byte

const (
	// KindRequestValidation is a malformed/missing query parameter.
	KindRequestValidation ErrorKind = iota
	// KindTopicNotFound is a reference to an unknown Kafka topic.
	KindTopicNotFound
	// KindAuthentication mirrors auth.KindAuthentication.
	KindAuthentication
	// KindAuthorisation mirrors auth.KindAuthorisation.
	KindAuthorisation
	// KindCapacity is InstanceLimitReached surfaced to the client.
	KindCapacity
	// KindUnavailable is the session registry not responding in time.
	KindUnavailable
	// KindInternal is a Kafka broker error other than unknown topic.
	KindInternal
)

// Error is the error type socket lifecycle/stream code returns; wsapi
// maps its Kind to an HTTP status and renders {"message": Message}.
type Error struct {
	Kind    ErrorKind
	Message string
	cause   error
}

func (e *Error) Error() string { return e.Message }

// Unwrap exposes the wrapped cause, if any, for errors.Is/As.
func (e *Error) Unwrap() error { return e.cause }

// NewError builds an Error of the given kind, optionally wrapping cause.
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// BrokerError classifies a broker-construction failure (opening a
// producer/consumer-group) per spec.md §7's taxonomy: an unknown topic is
// a caller error (KindTopicNotFound -> 400), anything else is a transient
// infrastructure failure (KindInternal -> 500; "Kafka broker errors ->
// 500").
func BrokerError(err error) *Error {
	if errors.Is(err, kafka.ErrUnknownTopicOrPartition) {
		return NewError(KindTopicNotFound, "unknown topic", err)
	}
	return NewError(KindInternal, "kafka unavailable", err)
}

// Status maps an ErrorKind to the HTTP status spec.md §6/§7 specifies.
func (k ErrorKind) Status() int {
	switch k {
	case KindRequestValidation, KindTopicNotFound:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorisation:
		return http.StatusForbidden
	case KindCapacity:
		return http.StatusConflict
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
