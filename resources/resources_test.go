package resources_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vulnwatch/vulnwatch-client/apiclient"
	"github.com/vulnwatch/vulnwatch-client/internal/utils"
	"github.com/vulnwatch/vulnwatch-client/resources"
)

func newRegistry(t *testing.T, handler http.Handler) *resources.Registry {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	api, err := apiclient.New(server.URL + "/api")
	require.NoError(t, err)
	return resources.NewRegistry(api)
}

func TestProductListDecodesRecords(t *testing.T) {
	registry := newRegistry(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/products/", r.URL.Path)
		require.Equal(t, "name", r.URL.Query().Get("ordering"))
		fmt.Fprint(w, `{"count":2,"results":[
			{"id":1,"name":"backend","security_gate_passed":true},
			{"id":2,"name":"frontend","security_gate_passed":false}
		]}`)
	}))

	products, total, err := registry.Products.List(context.Background(), apiclient.ListParams{
		Sort:       apiclient.Sort{Field: "name", Order: "ASC"},
		Pagination: apiclient.Pagination{Page: 1, PerPage: 25},
	})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, products, 2)
	require.Equal(t, "backend", products[0].Name)
	require.Equal(t, utils.Ptr(true), products[0].SecurityGatePassed)
	require.Equal(t, utils.Ptr(false), products[1].SecurityGatePassed)
}

func TestObservationsReferencingProduct(t *testing.T) {
	registry := newRegistry(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/observations/", r.URL.Path)
		require.Equal(t, "42", r.URL.Query().Get("product"))
		fmt.Fprint(w, `{"count":1,"results":[{"id":9,"product":42,"title":"CVE-2026-0001 in log4j"}]}`)
	}))

	observations, total, err := registry.Observations.ListReferencing(context.Background(), apiclient.GetManyReferenceParams{
		Target: "product",
		ID:     42,
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, int64(42), observations[0].Product)
}

func TestObservationAssessSendsPatch(t *testing.T) {
	var captured map[string]any
	registry := newRegistry(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/api/observations/9/", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		fmt.Fprint(w, `{"id":9,"product":42,"title":"CVE-2026-0001 in log4j","current_status":"Resolved"}`)
	}))

	updated, err := registry.Observations.Assess(context.Background(), 9, resources.ObservationAssessment{
		Status:  "Resolved",
		Comment: "fixed upstream",
	})
	require.NoError(t, err)
	require.Equal(t, "Resolved", updated.CurrentStatus)
	require.Equal(t, "Resolved", captured["assessment_status"])
	require.Equal(t, "fixed upstream", captured["comment"])
}

func TestUserCreateRoundTrip(t *testing.T) {
	registry := newRegistry(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":12}`)
	}))

	created, err := registry.Users.Create(context.Background(), resources.User{
		Username: "jane",
		Email:    "jane@example.com",
	})
	require.NoError(t, err)
	require.Equal(t, int64(12), created.ID)
	// Submitted fields survive a server that echoes only assigned ones.
	require.Equal(t, "jane", created.Username)
	require.Equal(t, "jane@example.com", created.Email)
}

func TestVEXDocumentGetMany(t *testing.T) {
	registry := newRegistry(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/api/vex_documents/") : len(r.URL.Path)-1]
		fmt.Fprintf(w, `{"id":%s,"format":"csaf"}`, id)
	}))

	documents, err := registry.VEXDocuments.GetMany(context.Background(), []any{3, 1, 2})
	require.NoError(t, err)
	require.Len(t, documents, 3)
	require.Equal(t, int64(3), documents[0].ID)
	require.Equal(t, int64(1), documents[1].ID)
	require.Equal(t, int64(2), documents[2].ID)
}

func TestBranchDelete(t *testing.T) {
	var deleted string
	registry := newRegistry(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		deleted = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, registry.Branches.Delete(context.Background(), 5))
	require.Equal(t, "/api/branches/5/", deleted)
}
