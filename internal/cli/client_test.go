package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ffarm/internal/farm"
)

func TestClientPlantSendsTokenAndQuantity(t *testing.T) {
	var got struct {
		PlantID  int64  `json:"plant_id"`
		Quantity string `json:"quantity"`
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/accounts/3/plant", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(farm.PlantResult{Cost: 20, Balance: 30, Batch: farm.CropBatch{ID: 9, Quantity: 20}})
	}))
	defer ts.Close()

	c := NewClient(ts.URL+"/", "tok")
	res, err := c.Plant(context.Background(), 3, 1, "max")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.PlantID)
	assert.Equal(t, "max", got.Quantity)
	assert.Equal(t, int64(30), res.Balance)
	assert.Equal(t, int64(9), res.Batch.ID)
}

func TestClientSurfacesAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"insufficient balance"}`))
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL, "").Harvest(context.Background(), 1)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "insufficient balance", apiErr.Message)
}

func TestSessionRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, err := LoadSession()
	assert.ErrorIs(t, err, ErrNoSession)

	require.NoError(t, SaveSession(Session{AccountID: 12, ChatID: "chat-12", Username: "ann"}))
	s, err := LoadSession()
	require.NoError(t, err)
	assert.Equal(t, int64(12), s.AccountID)
	assert.Equal(t, "chat-12", s.ChatID)

	require.NoError(t, ClearSession())
	require.NoError(t, ClearSession())
	_, err = LoadSession()
	assert.ErrorIs(t, err, ErrNoSession)
}
