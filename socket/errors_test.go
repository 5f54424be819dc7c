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
	"testing"

	kafka "github.com/Shopify/sarama"
)

func TestBrokerError_UnknownTopicMapsTo400(t *testing.T) {
	err := BrokerError(kafka.ErrUnknownTopicOrPartition)
	if err.Kind != KindTopicNotFound {
		t.Fatalf("expected KindTopicNotFound, got %v", err.Kind)
	}
	if status := err.Kind.Status(); status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestBrokerError_WrappedUnknownTopicMapsTo400(t *testing.T) {
	wrapped := errors.New("dial: " + kafka.ErrUnknownTopicOrPartition.Error())
	err := BrokerError(&wrapError{wrapped, kafka.ErrUnknownTopicOrPartition})
	if err.Kind != KindTopicNotFound {
		t.Fatalf("expected KindTopicNotFound, got %v", err.Kind)
	}
}

func TestBrokerError_OtherFailureMapsTo500(t *testing.T) {
	err := BrokerError(errors.New("connection refused"))
	if err.Kind != KindInternal {
		t.Fatalf("expected KindInternal, got %v", err.Kind)
	}
	if status := err.Kind.Status(); status != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", status)
	}
}

type wrapError struct {
	msg error
	err error
}

func (w *wrapError) Error() string { return w.msg.Error() }
func (w *wrapError) Unwrap() error { return w.err }
