package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liamcoop/docrules/rules"
	"github.com/liamcoop/docrules/transaction"
)

const sellerSchemaJSON = `{
  "questions": [
    {"id": "built_before_1978", "label": "Built before 1978?", "type": "yes_no", "required": true},
    {"id": "has_hoa", "label": "HOA?", "type": "yes_no", "required": true}
  ],
  "document_rules": [
    {"slug": "listing-agreement", "name": "Residential Listing Agreement", "condition": "always"},
    {"slug": "lead-paint", "name": "Lead-Based Paint Addendum", "condition": "built_before_1978 == 'yes'", "reason": "Property built before 1978"},
    {"slug": "hoa-addendum", "name": "HOA Addendum", "condition": "has_hoa == 'yes'", "reason": "Property is in an HOA"}
  ]
}`

const brokenSchemaJSON = `{
  "questions": [{"id": "has_hoa", "type": "yes_no"}],
  "document_rules": [
    {"slug": "hoa-addendum", "name": "HOA Addendum", "condition": "has_hoa = 'yes'"}
  ]
}`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	fsys := fstest.MapFS{
		"seller_conventional.json": {Data: []byte(sellerSchemaJSON)},
		"buyer_conventional.json":  {Data: []byte(brokenSchemaJSON)},
	}
	cache, err := rules.NewInMemorySchemaCache(rules.DefaultCacheConfig())
	require.NoError(t, err)

	engine := rules.NewEngine(rules.NewFileSchemaStore(fsys, cache))
	service := transaction.NewService(transaction.NewMemoryRepository(), engine)
	return NewServer(engine, service, ServerOptions{Cache: cache})
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[HealthResponse](t, rec)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, 2, resp.Schemas)
}

func TestListAndGetSchemas(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/schemas", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[SchemasListResponse](t, rec)
	assert.Equal(t, []string{"buyer_conventional", "seller_conventional"}, list.Schemas)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/schemas/seller/conventional", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	schema := decodeBody[rules.Schema](t, rec)
	assert.Equal(t, "seller_conventional", schema.Name)
	assert.Len(t, schema.DocumentRules, 3)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/schemas/seller/investor", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/schemas/Seller/conventional", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEvaluate(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/evaluate", EvaluateRequest{
		TransactionType: "seller",
		OwnershipStatus: "conventional",
		Answers:         rules.AnswerSet{"built_before_1978": "yes"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[EvaluationResponse](t, rec)
	assert.False(t, resp.Complete)
	assert.Equal(t, []string{"has_hoa"}, resp.Missing)
	assert.Equal(t, []rules.DocumentDecision{
		{Slug: "listing-agreement", Name: "Residential Listing Agreement", IncludedReason: "Always included"},
		{Slug: "lead-paint", Name: "Lead-Based Paint Addendum", IncludedReason: "Property built before 1978"},
	}, resp.Documents)
}

func TestEvaluateErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name       string
		body       any
		wantStatus int
	}{
		{
			name:       "missing fields",
			body:       map[string]any{"answers": map[string]any{}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid key",
			body:       EvaluateRequest{TransactionType: "seller-rep", OwnershipStatus: "conventional"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unsupported configuration",
			body:       EvaluateRequest{TransactionType: "seller", OwnershipStatus: "investor"},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "invalid schema",
			body:       EvaluateRequest{TransactionType: "buyer", OwnershipStatus: "conventional"},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodPost, "/api/v1/evaluate", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/evaluate", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEvaluateInvalidSchemaReportsViolations(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/evaluate", EvaluateRequest{
		TransactionType: "buyer",
		OwnershipStatus: "conventional",
	})
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	resp := decodeBody[SchemaErrorResponse](t, rec)
	assert.Equal(t, "buyer_conventional", resp.Schema)
	require.Len(t, resp.Violations, 1)
	assert.Contains(t, resp.Violations[0], "document_rules[0].condition")
}

func TestTransactionWorkflow(t *testing.T) {
	s := newTestServer(t)
	base := "/api/v1/tenants/tenant-a/transactions"

	rec := doRequest(t, s, http.MethodPost, base, CreateTransactionRequest{
		TransactionType: "seller",
		OwnershipStatus: "conventional",
		PropertyAddress: "12 Elm St",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tx := decodeBody[transaction.Transaction](t, rec)
	assert.Equal(t, transaction.StatusIntake, tx.Status)
	txURL := base + "/" + tx.ID

	rec = doRequest(t, s, http.MethodPost, txURL+"/documents", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	incomplete := decodeBody[IncompleteResponse](t, rec)
	assert.Equal(t, []string{"built_before_1978", "has_hoa"}, incomplete.Missing)

	rec = doRequest(t, s, http.MethodPut, txURL+"/answers", SubmitAnswersRequest{
		Answers: rules.AnswerSet{"built_before_1978": "no", "has_hoa": "yes"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	submitted := decodeBody[SubmitAnswersResponse](t, rec)
	assert.Equal(t, transaction.StatusReady, submitted.Transaction.Status)
	assert.True(t, submitted.Evaluation.Complete)

	rec = doRequest(t, s, http.MethodGet, txURL+"/preview", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	preview := decodeBody[EvaluationResponse](t, rec)
	require.Len(t, preview.Documents, 2)
	assert.Equal(t, "hoa-addendum", preview.Documents[1].Slug)

	rec = doRequest(t, s, http.MethodPost, txURL+"/documents", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	pkg := decodeBody[PackageResponse](t, rec)
	assert.Len(t, pkg.Added, 2)
	assert.Empty(t, pkg.Existing)
	assert.Equal(t, transaction.StatusDocumentsGenerated, pkg.Transaction.Status)

	rec = doRequest(t, s, http.MethodPost, txURL+"/documents", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pkg = decodeBody[PackageResponse](t, rec)
	assert.Empty(t, pkg.Added)
	assert.Len(t, pkg.Existing, 2)

	rec = doRequest(t, s, http.MethodGet, txURL+"/documents", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	docs := decodeBody[DocumentsListResponse](t, rec)
	require.Len(t, docs.Documents, 2)
	assert.Equal(t, "listing-agreement", docs.Documents[0].Slug)

	rec = doRequest(t, s, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[TransactionsListResponse](t, rec)
	assert.Len(t, list.Transactions, 1)
}

func TestTransactionErrors(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/tenants/tenant-a/transactions", CreateTransactionRequest{
		TransactionType: "buyer",
		OwnershipStatus: "investor",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/tenants/tenant-a/transactions/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/api/v1/tenants/tenant-a/transactions", CreateTransactionRequest{
		TransactionType: "seller",
		OwnershipStatus: "conventional",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	tx := decodeBody[transaction.Transaction](t, rec)

	rec = doRequest(t, s, http.MethodGet, "/api/v1/tenants/tenant-b/transactions/"+tx.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, s, http.MethodPut, "/api/v1/tenants/tenant-a/transactions/"+tx.ID+"/answers", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsCountsResponses(t *testing.T) {
	s := newTestServer(t)

	before := decodeBody[MetricsResponse](t, doRequest(t, s, http.MethodGet, "/api/v1/metrics", nil))
	doRequest(t, s, http.MethodGet, "/api/v1/tenants/tenant-a/transactions/unknown", nil)
	doRequest(t, s, http.MethodPost, "/api/v1/evaluate", EvaluateRequest{TransactionType: "seller", OwnershipStatus: "conventional"})
	doRequest(t, s, http.MethodPost, "/api/v1/evaluate", EvaluateRequest{TransactionType: "seller", OwnershipStatus: "conventional"})

	rec := doRequest(t, s, http.MethodGet, "/api/v1/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	after := decodeBody[MetricsResponse](t, rec)

	assert.Equal(t, before.Counters["http_404_total"]+1, after.Counters["http_404_total"])
	assert.Equal(t, before.Counters["evaluation_requests_total"]+2, after.Counters["evaluation_requests_total"])
	require.NotNil(t, after.Cache)
	assert.Equal(t, 1, after.Cache.Entries)
	assert.GreaterOrEqual(t, after.Cache.Hits, int64(1))
}
