package queue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akshayaggarwal99/runner/internal/crypto"
	"github.com/akshayaggarwal99/runner/internal/executor"
	"github.com/akshayaggarwal99/runner/internal/queue/testutil"
)

func TestRequest_RoundTripsThroughRequestKey(t *testing.T) {
	key := crypto.DeriveKey("chat-to-runner-secret")

	sealed, err := testutil.SealRequest(key, "abc", "print('hi')", "alice", 5)
	require.NoError(t, err)

	plaintext, err := crypto.Open(key, sealed)
	require.NoError(t, err)

	var req Request
	require.NoError(t, json.Unmarshal(plaintext, &req))
	assert.Equal(t, "abc", req.RequestID)
	assert.Equal(t, "print('hi')", req.Code)
}

// TestRequest_S6_ResponseRoundTrip checks the response half of spec.md
// scenario S6: the success response toResponse builds for request "abc",
// sealed with the response-direction key, opens with that key to exactly
// the expected request_id/stdout/stderr/return_code payload.
func TestRequest_S6_ResponseRoundTrip(t *testing.T) {
	responseKey := crypto.DeriveKey("runner-to-chat-secret")

	resp := toResponse("abc", executor.Result{
		Outcome:    executor.OutcomeSuccess,
		Stdout:     "hi\n",
		ReturnCode: 0,
	})
	body, err := json.Marshal(resp)
	require.NoError(t, err)

	sealed, err := crypto.Seal(responseKey, body)
	require.NoError(t, err)

	decoded, err := testutil.OpenResponse(responseKey, sealed)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"request_id":  "abc",
		"stdout":      "hi\n",
		"stderr":      "",
		"return_code": float64(0),
	}, decoded)
}

func TestToResponse_MapsOutcomesToStatusCodes(t *testing.T) {
	cases := []struct {
		outcome executor.Outcome
		status  int
	}{
		{executor.OutcomeTimeout, 408},
		{executor.OutcomeNoCapacity, 503},
		{executor.OutcomeInfrastructure, 500},
	}
	for _, tc := range cases {
		resp := toResponse("req-1", executor.Result{Outcome: tc.outcome})
		assert.Equal(t, tc.status, resp.StatusCode)
	}
}

func TestToResponse_SuccessCarriesNoStatusCode(t *testing.T) {
	resp := toResponse("req-1", executor.Result{Outcome: executor.OutcomeSuccess, Stdout: "hi\n", ReturnCode: 0})
	assert.Equal(t, 0, resp.StatusCode)
	assert.Equal(t, "", resp.Error)
}

func TestResponse_MarshalJSON_SuccessOmitsStatusCodeAndKeepsZeroFields(t *testing.T) {
	resp := toResponse("abc", executor.Result{Outcome: executor.OutcomeSuccess, Stdout: "hi\n", Stderr: "", ReturnCode: 0})

	body, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "abc", decoded["request_id"])
	assert.Equal(t, "hi\n", decoded["stdout"])
	assert.Equal(t, "", decoded["stderr"])
	assert.EqualValues(t, 0, decoded["return_code"])
	_, hasStatusCode := decoded["status_code"]
	assert.False(t, hasStatusCode, "success responses must not carry status_code")
	_, hasError := decoded["error"]
	assert.False(t, hasError, "success responses must not carry error")
}

func TestResponse_MarshalJSON_ErrorOmitsExecutionFields(t *testing.T) {
	resp := toResponse("abc", executor.Result{Outcome: executor.OutcomeTimeout})

	body, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "abc", decoded["request_id"])
	assert.EqualValues(t, 408, decoded["status_code"])
	assert.Equal(t, "execution timed out", decoded["error"])
	_, hasStdout := decoded["stdout"]
	assert.False(t, hasStdout, "error responses must not carry stdout")
}

func TestRequestKeyCannotForgeResponseDirection(t *testing.T) {
	requestKey := crypto.DeriveKey("chat-to-runner-secret")
	responseKey := crypto.DeriveKey("runner-to-chat-secret")

	sealed, err := testutil.SealRequest(requestKey, "abc", "print(1)", "", 5)
	require.NoError(t, err)

	_, err = crypto.Open(responseKey, sealed)
	assert.ErrorIs(t, err, crypto.ErrDecryptFailed)
}
