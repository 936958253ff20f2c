// Copyright 2026 The Leash Authors
// SPDX-License-Identifier: Apache-2.0

// Leash-ipc is the helper binary sandboxed processes invoke to reach
// the host's IPC command surface. It reads LEASH_IPC_SOCKET, sends one
// framed request, and writes the response payload to stdout.
//
//	leash-ipc web_search --query "landlock abi"
//	cat notes.txt | leash-ipc summarize --stdin text
//
// Exits 0 when the command succeeded, 1 with a diagnostic on stderr
// otherwise.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/leash-foundation/leash/ipc"
	"github.com/leash-foundation/leash/lib/codec"
	"github.com/leash-foundation/leash/lib/process"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	args := os.Args[1:]
	if len(args) == 0 {
		return fmt.Errorf("usage: leash-ipc <command> [--key value]... [--stdin key]")
	}
	name := args[0]

	socketPath := os.Getenv("LEASH_IPC_SOCKET")
	if socketPath == "" {
		return fmt.Errorf("LEASH_IPC_SOCKET is not set (is IPC enabled for this sandbox?)")
	}

	fields, err := parseFields(args[1:])
	if err != nil {
		return err
	}

	payload, err := codec.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	response, err := ipc.Call(socketPath, name, payload)
	if err != nil {
		return err
	}
	if !response.OK {
		return fmt.Errorf("%s: %s", name, response.Diagnostic())
	}

	os.Stdout.Write(response.Payload)
	return nil
}

// parseFields converts --key value pairs into the payload map. The
// --stdin flag names a key that receives everything piped to us.
func parseFields(args []string) (map[string]string, error) {
	fields := make(map[string]string)
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if len(arg) < 3 || arg[:2] != "--" {
			return nil, fmt.Errorf("expected --key, got %q", arg)
		}
		key := arg[2:]

		if key == "stdin" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--stdin needs a key name")
			}
			i++
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return nil, fmt.Errorf("reading stdin: %w", err)
			}
			fields[args[i]] = string(data)
			continue
		}

		if i+1 >= len(args) {
			return nil, fmt.Errorf("--%s needs a value", key)
		}
		i++
		fields[key] = args[i]
	}
	return fields, nil
}
