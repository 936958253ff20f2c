// Copyright 2026 The Leash Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/leash-foundation/leash/lib/codec"
)

// MaxFrameSize is the largest accepted frame body. Oversized frames
// indicate a broken or hostile client and close the connection.
const MaxFrameSize = 16 << 20

// Request is the body of a request frame.
type Request struct {
	// Name is the command name used for dispatch.
	Name string `cbor:"name"`

	// Payload is the handler-private request encoding.
	Payload []byte `cbor:"payload"`
}

// Response is the body of a response frame.
type Response struct {
	// OK indicates whether the command succeeded. When false, Payload
	// carries a CBOR text string with a short diagnostic.
	OK bool `cbor:"ok"`

	// Payload is the handler-private response encoding.
	Payload []byte `cbor:"payload"`
}

// ErrorResponse builds an ok=false response whose payload is the
// diagnostic message as a CBOR text string.
func ErrorResponse(message string) Response {
	payload, err := codec.Marshal(message)
	if err != nil {
		// Encoding a string cannot fail; keep the frame well-formed
		// regardless.
		payload = nil
	}
	return Response{OK: false, Payload: payload}
}

// Diagnostic decodes the diagnostic string from an ok=false response.
func (r Response) Diagnostic() string {
	var message string
	if err := codec.Unmarshal(r.Payload, &message); err != nil {
		return fmt.Sprintf("undecodable diagnostic (%d bytes)", len(r.Payload))
	}
	return message
}

// writeFrame writes a length-prefixed frame body.
func writeFrame(w io.Writer, body []byte) error {
	if len(body) > MaxFrameSize {
		return fmt.Errorf("frame of %d bytes exceeds maximum %d", len(body), MaxFrameSize)
	}
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(body)))
	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// readFrame reads one length-prefixed frame body.
func readFrame(r io.Reader) ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(prefix[:])
	if length == 0 || length > MaxFrameSize {
		return nil, fmt.Errorf("invalid frame length %d", length)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

// WriteRequest writes a framed request.
func WriteRequest(w io.Writer, request Request) error {
	body, err := codec.Marshal(request)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	return writeFrame(w, body)
}

// ReadRequest reads one framed request.
func ReadRequest(r io.Reader) (Request, error) {
	body, err := readFrame(r)
	if err != nil {
		return Request{}, err
	}
	var request Request
	if err := codec.Unmarshal(body, &request); err != nil {
		return Request{}, fmt.Errorf("decoding request: %w", err)
	}
	return request, nil
}

// WriteResponse writes a framed response.
func WriteResponse(w io.Writer, response Response) error {
	body, err := codec.Marshal(response)
	if err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	return writeFrame(w, body)
}

// ReadResponse reads one framed response.
func ReadResponse(r io.Reader) (Response, error) {
	body, err := readFrame(r)
	if err != nil {
		return Response{}, err
	}
	var response Response
	if err := codec.Unmarshal(body, &response); err != nil {
		return Response{}, fmt.Errorf("decoding response: %w", err)
	}
	return response, nil
}
