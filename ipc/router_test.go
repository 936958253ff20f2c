// Copyright 2026 The Leash Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/leash-foundation/leash/lib/codec"
)

type doubleRequest struct {
	Value int `cbor:"value"`
}

type doubleResult struct {
	Doubled int `cbor:"doubled"`
}

func doubleCommand() func() Handler {
	return Command("double", func(ctx context.Context, req doubleRequest) (doubleResult, error) {
		return doubleResult{Doubled: req.Value * 2}, nil
	})
}

func TestRouterDispatch(t *testing.T) {
	router := NewRouter().Register(doubleCommand())

	payload, err := codec.Marshal(doubleRequest{Value: 21})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	response := router.Dispatch(context.Background(), Request{Name: "double", Payload: payload})
	if !response.OK {
		t.Fatalf("Dispatch failed: %s", response.Diagnostic())
	}

	var result doubleResult
	if err := DecodeResult(response, &result); err != nil {
		t.Fatalf("DecodeResult: %v", err)
	}
	if result.Doubled != 42 {
		t.Errorf("Doubled = %d, want 42", result.Doubled)
	}
}

func TestRouterUnknownCommand(t *testing.T) {
	router := NewRouter()

	response := router.Dispatch(context.Background(), Request{Name: "missing"})
	if response.OK {
		t.Fatal("Dispatch succeeded for unknown command")
	}
	if !strings.Contains(response.Diagnostic(), "unknown command") {
		t.Errorf("Diagnostic = %q", response.Diagnostic())
	}
}

func TestRouterDecodeFailure(t *testing.T) {
	router := NewRouter().Register(doubleCommand())

	response := router.Dispatch(context.Background(),
		Request{Name: "double", Payload: []byte{0xff, 0xff}})
	if response.OK {
		t.Fatal("Dispatch succeeded with garbage payload")
	}
	if !strings.Contains(response.Diagnostic(), "decoding") {
		t.Errorf("Diagnostic = %q", response.Diagnostic())
	}
}

func TestRouterHandlerError(t *testing.T) {
	router := NewRouter().Register(Command("fail",
		func(ctx context.Context, req struct{}) (struct{}, error) {
			return struct{}{}, errors.New("backend unavailable")
		}))

	payload, _ := codec.Marshal(struct{}{})
	response := router.Dispatch(context.Background(), Request{Name: "fail", Payload: payload})
	if response.OK {
		t.Fatal("Dispatch succeeded for failing handler")
	}
	if !strings.Contains(response.Diagnostic(), "backend unavailable") {
		t.Errorf("Diagnostic = %q", response.Diagnostic())
	}
}

// TestRouterFreshHandlerPerDispatch verifies handler instances do not
// leak state between requests.
func TestRouterFreshHandlerPerDispatch(t *testing.T) {
	constructed := 0
	router := NewRouter().Register(func() Handler {
		constructed++
		return &countingHandler{}
	})
	// Registration probes once for the name.
	probes := constructed

	payload, _ := codec.Marshal(struct{}{})
	for range 3 {
		router.Dispatch(context.Background(), Request{Name: "count", Payload: payload})
	}
	if constructed != probes+3 {
		t.Errorf("constructed %d handlers for 3 dispatches (+%d probes)", constructed, probes)
	}
}

type countingHandler struct{ loaded bool }

func (h *countingHandler) Name() string { return "count" }

func (h *countingHandler) Load(payload []byte) error {
	if h.loaded {
		return errors.New("handler instance reused")
	}
	h.loaded = true
	return nil
}

func (h *countingHandler) Invoke(ctx context.Context) ([]byte, error) {
	return codec.Marshal("ok")
}
