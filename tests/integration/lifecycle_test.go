package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCode_ExecutesAgainstLiveSandbox(t *testing.T) {
	payload := map[string]any{
		"code":    "print('lifecycle test success')",
		"timeout": 10,
	}
	body, _ := json.Marshal(payload)

	resp, err := http.Post(BaseURL+"/run-code", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Stdout     string `json:"stdout"`
		Stderr     string `json:"stderr"`
		ReturnCode int    `json:"return_code"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	assert.Contains(t, out.Stdout, "lifecycle test success")
	assert.Equal(t, 0, out.ReturnCode)
}

func TestRunCode_RejectsForbiddenImportBeforeReachingSandbox(t *testing.T) {
	payload := map[string]any{
		"code":    "import os\nos.system('echo hi')",
		"timeout": 10,
	}
	body, _ := json.Marshal(payload)

	resp, err := http.Post(BaseURL+"/run-code", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHealth_ReportsProvisionedPool(t *testing.T) {
	resp, err := http.Get(BaseURL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Pool struct {
			Total int `json:"total"`
		} `json:"pool"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 2, body.Pool.Total)
}
