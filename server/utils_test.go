package server

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/inference-gateway/menu-agents/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateTaskID(t *testing.T) {
	id := GenerateTaskID()

	_, err := uuid.Parse(id)
	assert.NoError(t, err)
	assert.NotEqual(t, id, GenerateTaskID())
}

func TestGenerateTaskID_ThreadSafety(t *testing.T) {
	const goroutines = 50

	var mu sync.Mutex
	ids := make(map[string]bool, goroutines)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := GenerateTaskID()
			mu.Lock()
			ids[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, ids, goroutines)
}

func TestDecodeParams(t *testing.T) {
	tests := []struct {
		name        string
		params      string
		expected    types.TaskQueryParams
		expectError string
	}{
		{name: "valid params", params: `{"taskId":"t1"}`, expected: types.TaskQueryParams{TaskID: "t1"}},
		{name: "missing params", params: ``, expectError: "params are required"},
		{name: "null params", params: ` null `, expectError: "params are required"},
		{name: "wrong shape", params: `{"taskId":5}`, expectError: "invalid params"},
		{name: "not json", params: `{`, expectError: "invalid params"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := DecodeParams[types.TaskQueryParams](json.RawMessage(tt.params))
			if tt.expectError != "" {
				require.Error(t, err)
				var rpcErr *types.JSONRPCError
				require.True(t, errors.As(err, &rpcErr))
				assert.Equal(t, int(types.ErrInvalidParams), rpcErr.Code)
				assert.Contains(t, rpcErr.Message, tt.expectError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}
