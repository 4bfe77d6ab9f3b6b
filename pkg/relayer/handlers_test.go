package relayer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chainsafe/token-bridge/pkg/db"
)

type staticStatus struct {
	ready    bool
	statuses []Status
}

func (s staticStatus) IsReady() bool    { return s.ready }
func (s staticStatus) Status() []Status { return s.statuses }

func newTestRouter(store BridgeStore, status StatusProvider) http.Handler {
	r := chi.NewRouter()
	RegisterRoutes(r, store, status, zap.NewNop())
	return r
}

func doGet(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHandlers_Transfers(t *testing.T) {
	store := newMockStore()
	ctx := context.Background()
	require.NoError(t, store.CreateTransfer(ctx, &db.Transfer{
		ID:     testRoute + ":0",
		Route:  testRoute,
		Status: db.TransferStatusPending,
		Amount: "100",
		Nonce:  0,
	}))

	h := newTestRouter(store, staticStatus{})

	rec := doGet(t, h, "/transfers")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Transfers []db.Transfer `json:"transfers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Transfers, 1)
	assert.Equal(t, testRoute+":0", list.Transfers[0].ID)

	rec = doGet(t, h, "/transfers/"+testRoute+":0")
	require.Equal(t, http.StatusOK, rec.Code)
	var one db.Transfer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &one))
	assert.Equal(t, "100", one.Amount)

	rec = doGet(t, h, "/transfers/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "transfer not found")
}

func TestHandlers_ListLimit(t *testing.T) {
	var gotLimit int
	store := newMockStore()
	store.ListTransfersFunc = func(_ context.Context, limit int) ([]*db.Transfer, error) {
		gotLimit = limit
		return nil, nil
	}
	h := newTestRouter(store, staticStatus{})

	rec := doGet(t, h, "/transfers?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, gotLimit)
	assert.JSONEq(t, `{"transfers":[]}`, rec.Body.String())

	for _, bad := range []string{"0", "-1", "abc", "5000"} {
		rec = doGet(t, h, "/transfers?limit="+bad)
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

func TestHandlers_StoreFailure(t *testing.T) {
	store := newMockStore()
	store.ListTransfersFunc = func(context.Context, int) ([]*db.Transfer, error) {
		return nil, errors.New("connection refused")
	}
	store.GetTransferFunc = func(context.Context, string) (*db.Transfer, error) {
		return nil, errors.New("connection refused")
	}
	h := newTestRouter(store, staticStatus{})

	rec := doGet(t, h, "/transfers")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")

	rec = doGet(t, h, "/transfers/x")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandlers_Status(t *testing.T) {
	h := newTestRouter(newMockStore(), staticStatus{
		ready:    true,
		statuses: []Status{{Route: testRoute, Source: "a", Destination: "b", NextBlock: 12, Ready: true}},
	})

	rec := doGet(t, h, "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Ready  bool     `json:"ready"`
		Routes []Status `json:"routes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Ready)
	require.Len(t, body.Routes, 1)
	assert.Equal(t, uint64(12), body.Routes[0].NextBlock)
}
