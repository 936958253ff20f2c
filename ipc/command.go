// Copyright 2026 The Leash Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"context"
	"fmt"

	"github.com/leash-foundation/leash/lib/codec"
)

// Command adapts a typed function to the Handler interface using CBOR
// for both payload directions. Req is decoded from the request payload
// and Resp encoded as the response payload.
//
//	router.Register(ipc.Command("web_search",
//		func(ctx context.Context, req SearchRequest) (SearchResult, error) {
//			return search(ctx, req.Query)
//		}))
func Command[Req, Resp any](name string, fn func(ctx context.Context, req Req) (Resp, error)) func() Handler {
	return func() Handler {
		return &typedHandler[Req, Resp]{name: name, fn: fn}
	}
}

type typedHandler[Req, Resp any] struct {
	name    string
	fn      func(ctx context.Context, req Req) (Resp, error)
	request Req
}

func (h *typedHandler[Req, Resp]) Name() string {
	return h.name
}

func (h *typedHandler[Req, Resp]) Load(payload []byte) error {
	return codec.Unmarshal(payload, &h.request)
}

func (h *typedHandler[Req, Resp]) Invoke(ctx context.Context) ([]byte, error) {
	response, err := h.fn(ctx, h.request)
	if err != nil {
		return nil, err
	}
	payload, err := codec.Marshal(response)
	if err != nil {
		return nil, fmt.Errorf("encoding response: %w", err)
	}
	return payload, nil
}

// DecodeResult decodes a CBOR response payload produced by a Command
// handler into out. Convenience for clients of typed commands.
func DecodeResult(response Response, out any) error {
	if !response.OK {
		return fmt.Errorf("command failed: %s", response.Diagnostic())
	}
	return codec.Unmarshal(response.Payload, out)
}
