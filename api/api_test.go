package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/NebulousLabs/contractcore/keys"
	"github.com/NebulousLabs/contractcore/storage"
)

type nopShardStore struct{}

func (nopShardStore) Open(hash keys.Hash160) (storage.ShardHandle, error) { return nil, nil }

func newTestManager(t *testing.T) *storage.Manager {
	t.Helper()
	dir := t.TempDir()
	adapter, err := storage.OpenBoltAdapter(dir + "/items.db")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { adapter.Close() })
	m, err := storage.NewManager(adapter, nopShardStore{}, dir+"/test.wal", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestStorageEndpointReportsSize(t *testing.T) {
	m := newTestManager(t)
	a := New(m, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/storage", nil)
	a.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var status StorageStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
}

func TestFarmerEndpointNotRegisteredWithoutNegotiator(t *testing.T) {
	m := newTestManager(t)
	a := New(m, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/farmer", nil)
	a.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected /farmer to 404 when no negotiator is installed, got %d", rec.Code)
	}
}

func TestUnrecognizedCallReturns404JSON(t *testing.T) {
	m := newTestManager(t)
	a := New(m, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/nonexistent", nil)
	a.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var body Error
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Message == "" {
		t.Fatal("expected a non-empty error message")
	}
}
