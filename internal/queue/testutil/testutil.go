// Package testutil provides a small harness for exercising the queue
// ingress's encryption framing end-to-end without a running Kafka broker:
// the original service has no Go-native equivalent to drive this from, so
// this package plays the role of the chat-side producer/consumer in tests.
package testutil

import (
	"encoding/json"

	"github.com/akshayaggarwal99/runner/internal/crypto"
)

// SealRequest encodes and encrypts a request payload with the
// request-direction key, exactly as the chat-side producer would.
func SealRequest(key crypto.Key, requestID, code, userID string, timeout int) ([]byte, error) {
	body, err := json.Marshal(map[string]any{
		"request_id": requestID,
		"code":       code,
		"user_id":    userID,
		"timeout":    timeout,
	})
	if err != nil {
		return nil, err
	}
	return crypto.Seal(key, body)
}

// OpenResponse decrypts and decodes a response payload with the
// response-direction key, exactly as the chat-side consumer would.
func OpenResponse(key crypto.Key, sealed []byte) (map[string]any, error) {
	plaintext, err := crypto.Open(key, sealed)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(plaintext, &out); err != nil {
		return nil, err
	}
	return out, nil
}
