package apihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"dealradar/internal/monitor"
	"dealradar/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProductStore struct {
	products map[string]store.Product
	runs     map[string]store.RunRecord
}

func newFakeProductStore() *fakeProductStore {
	return &fakeProductStore{
		products: map[string]store.Product{},
		runs:     map[string]store.RunRecord{},
	}
}

func (f *fakeProductStore) ListProducts(context.Context) ([]store.Product, error) {
	out := make([]store.Product, 0, len(f.products))
	for _, p := range f.products {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeProductStore) GetProduct(_ context.Context, id string) (store.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return store.Product{}, store.ErrNotFound
	}
	return p, nil
}

func (f *fakeProductStore) UpsertProduct(_ context.Context, p store.Product) error {
	f.products[p.ProductID] = p
	return nil
}

func (f *fakeProductStore) DeleteProduct(_ context.Context, id string) error {
	if _, ok := f.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.products, id)
	return nil
}

func (f *fakeProductStore) ListRuns(_ context.Context, limit int) ([]store.RunRecord, error) {
	out := make([]store.RunRecord, 0, len(f.runs))
	for _, r := range f.runs {
		out = append(out, r)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeProductStore) GetRun(_ context.Context, id string) (store.RunRecord, error) {
	r, ok := f.runs[id]
	if !ok {
		return store.RunRecord{}, store.ErrNotFound
	}
	return r, nil
}

type fakeRunner struct {
	summary monitor.Summary
	calls   int
}

func (f *fakeRunner) Run(context.Context) (monitor.Summary, error) {
	f.calls++
	return f.summary, nil
}

func newTestRouter(st ProductStore, runner RunTrigger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	NewRouter(st, runner, nil).Register(engine.Group("/api"))
	return engine
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestProductEndpoints(t *testing.T) {
	st := newFakeProductStore()
	engine := newTestRouter(st, nil)

	t.Run("CreateProduct", func(t *testing.T) {
		w := doJSON(t, engine, http.MethodPost, "/api/products", map[string]any{
			"product_id":   "sony-xm5",
			"name":         "Sony WH-1000XM5",
			"target_price": 300.0,
			"email":        "buyer@example.com",
		})
		require.Equal(t, http.StatusCreated, w.Code)

		var resp productResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "sony-xm5", resp.ProductID)
		require.NotNil(t, resp.TargetPrice)
		assert.Equal(t, "300.00", *resp.TargetPrice)
	})

	t.Run("CreateWithoutIDGeneratesOne", func(t *testing.T) {
		w := doJSON(t, engine, http.MethodPost, "/api/products", map[string]any{
			"name":  "MacBook Air",
			"email": "buyer@example.com",
		})
		require.Equal(t, http.StatusCreated, w.Code)
		var resp productResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.ProductID)
	})

	t.Run("CreateWithoutIdentityRejected", func(t *testing.T) {
		w := doJSON(t, engine, http.MethodPost, "/api/products", map[string]any{
			"product_id": "p9",
			"email":      "buyer@example.com",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("CreateWithoutRecipientRejected", func(t *testing.T) {
		w := doJSON(t, engine, http.MethodPost, "/api/products", map[string]any{
			"product_id": "p9",
			"name":       "x",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("NegativeTargetPriceRejected", func(t *testing.T) {
		w := doJSON(t, engine, http.MethodPost, "/api/products", map[string]any{
			"product_id":   "p9",
			"name":         "x",
			"email":        "a@b.c",
			"target_price": -5.0,
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("GetProduct", func(t *testing.T) {
		w := doJSON(t, engine, http.MethodGet, "/api/products/sony-xm5", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("GetUnknownProduct", func(t *testing.T) {
		w := doJSON(t, engine, http.MethodGet, "/api/products/missing", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("DeleteProduct", func(t *testing.T) {
		w := doJSON(t, engine, http.MethodDelete, "/api/products/sony-xm5", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		w = doJSON(t, engine, http.MethodDelete, "/api/products/sony-xm5", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestRunEndpoints(t *testing.T) {
	st := newFakeProductStore()
	st.runs["r1"] = store.RunRecord{RunID: "r1", Total: 3, Notified: 1}
	runner := &fakeRunner{summary: monitor.Summary{RunID: "r2", Total: 3}}
	engine := newTestRouter(st, runner)

	t.Run("ListRuns", func(t *testing.T) {
		w := doJSON(t, engine, http.MethodGet, "/api/runs", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("GetRun", func(t *testing.T) {
		w := doJSON(t, engine, http.MethodGet, "/api/runs/r1", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		var rec store.RunRecord
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
		assert.Equal(t, 3, rec.Total)
	})

	t.Run("GetUnknownRun", func(t *testing.T) {
		w := doJSON(t, engine, http.MethodGet, "/api/runs/missing", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("TriggerRun", func(t *testing.T) {
		w := doJSON(t, engine, http.MethodPost, "/api/runs", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var sum monitor.Summary
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sum))
		assert.Equal(t, "r2", sum.RunID)
		assert.Equal(t, 1, runner.calls)
	})

	t.Run("TriggerWithoutRunnerNotRegistered", func(t *testing.T) {
		engineNoRunner := newTestRouter(newFakeProductStore(), nil)
		w := doJSON(t, engineNoRunner, http.MethodPost, "/api/runs", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
