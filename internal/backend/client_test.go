package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	torqueErrors "github.com/harunnryd/torque/internal/errors"
	"github.com/harunnryd/torque/internal/shop"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL+"/api/", "secret", time.Second)
	require.NoError(t, err)
	return c
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("not a url", "", 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, torqueErrors.ErrInvalidInput))
}

func TestSearchCustomers(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/customers", r.URL.Path)
		assert.Equal(t, "doe", r.URL.Query().Get("search"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode([]shop.Customer{{ID: "c1", FirstName: "Jane", LastName: "Doe"}})
	})

	got, err := c.SearchCustomers(context.Background(), "doe")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Jane Doe", got[0].FullName())
}

func TestCreateVehicleSendsJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/vehicles", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var in shop.Vehicle
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		in.ID = "v9"
		_ = json.NewEncoder(w).Encode(in)
	})

	got, err := c.CreateVehicle(context.Background(), shop.Vehicle{CustomerID: "c1", Year: 2020, Make: "Honda", Model: "Civic"})
	require.NoError(t, err)
	assert.Equal(t, "v9", got.ID)
	assert.Equal(t, "2020 Honda Civic", got.Describe())
}

func TestDeleteWithEmptyBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/notes/n1", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.DeleteNote(context.Background(), "n1"))
}

func TestQueryLogsEncodesFilters(t *testing.T) {
	since := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "error", q.Get("level"))
		assert.Equal(t, "timeout", q.Get("contains"))
		assert.Equal(t, "2026-01-02T03:04:05Z", q.Get("since"))
		assert.Equal(t, "5", q.Get("limit"))
		_, _ = w.Write([]byte(`[]`))
	})

	got, err := c.QueryLogs(context.Background(), LogQuery{Level: "error", Contains: "timeout", Since: since, Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, torqueErrors.ErrNotFound},
		{http.StatusForbidden, torqueErrors.ErrPermissionDenied},
		{http.StatusUnprocessableEntity, torqueErrors.ErrInvalidInput},
		{http.StatusConflict, torqueErrors.ErrConflict},
		{http.StatusBadGateway, torqueErrors.ErrTransient},
	}

	for _, tc := range cases {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"message":"backend says no"}`))
		})

		_, err := c.GetCustomer(context.Background(), "c1")
		require.Error(t, err)
		assert.True(t, errors.Is(err, tc.want), "status %d: %v", tc.status, err)
		assert.Contains(t, err.Error(), "backend says no")
	}
}

func TestLookupDiagnosticCode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/forum/analyze", r.URL.Path)
		var req diagnosticRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "P0301", req.Code)
		assert.Equal(t, "Civic", req.Vehicle.Model)
		_ = json.NewEncoder(w).Encode(shop.DiagnosticResult{Code: "P0301", Summary: "Cylinder 1 misfire", CommonCauses: []string{"coil"}})
	})

	got, err := c.LookupDiagnosticCode(context.Background(), "P0301", shop.Vehicle{Model: "Civic"})
	require.NoError(t, err)
	assert.Equal(t, "Cylinder 1 misfire", got.Summary)
}
