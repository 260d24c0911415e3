// Package api exposes a thin, ambient HTTP status surface over a running
// node's manager and negotiator — not part of the protocol core itself
// (spec §1 places the command-line/outer surface out of scope), kept in
// the same shape as the teacher's api package: a router plus small
// per-endpoint handler methods, registered only when their collaborator
// is present.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/NebulousLabs/contractcore/farmer"
	"github.com/NebulousLabs/contractcore/storage"
	"github.com/julienschmidt/httprouter"
)

// Error is returned as the JSON body when an endpoint fails.
type Error struct {
	Message string `json:"message"`
}

func (e Error) Error() string { return e.Message }

// API encapsulates the status surface over a storage.Manager and a
// farmer.Negotiator.
type API struct {
	manager    *storage.Manager
	negotiator *farmer.Negotiator

	Handler http.Handler
}

// New builds an API. Either collaborator may be nil, in which case its
// routes are simply not registered, matching the teacher's
// register-only-if-present pattern in api.initAPI.
func New(manager *storage.Manager, negotiator *farmer.Negotiator) *API {
	a := &API{manager: manager, negotiator: negotiator}
	a.Handler = a.initAPI()
	return a
}

func (a *API) initAPI() http.Handler {
	router := httprouter.New()
	router.NotFound = http.HandlerFunc(unrecognizedCallHandler)

	if a.manager != nil {
		router.GET("/storage", a.storageHandler)
	}
	if a.negotiator != nil {
		router.GET("/farmer", a.farmerHandler)
	}
	return router
}

// StorageStatus is the /storage response body.
type StorageStatus struct {
	SizeBytes uint64 `json:"size_bytes"`
}

func (a *API) storageHandler(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	size, err := a.manager.Size()
	if err != nil {
		writeError(w, Error{err.Error()}, http.StatusInternalServerError)
		return
	}
	writeJSON(w, StorageStatus{SizeBytes: size})
}

// FarmerStatus is the /farmer response body.
type FarmerStatus struct {
	PendingOffers int `json:"pending_offers"`
}

func (a *API) farmerHandler(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	writeJSON(w, FarmerStatus{PendingOffers: a.negotiator.PendingCount()})
}

func unrecognizedCallHandler(w http.ResponseWriter, req *http.Request) {
	writeError(w, Error{"404 - no such endpoint"}, http.StatusNotFound)
}

func writeError(w http.ResponseWriter, err Error, code int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(err)
}

func writeJSON(w http.ResponseWriter, obj interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(obj)
}
