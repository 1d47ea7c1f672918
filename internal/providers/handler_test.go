package providers_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/JaimeStill/accord/internal/providers"
	"github.com/JaimeStill/accord/pkg/pagination"
)

type fakeSystem struct {
	records map[uuid.UUID]providers.Record
}

func (f *fakeSystem) Handler() *providers.Handler {
	return providers.NewHandler(f, slog.Default(), pagination.Config{DefaultPageSize: 10, MaxPageSize: 50})
}

func (f *fakeSystem) List(ctx context.Context, page pagination.PageRequest, filters providers.Filters) (*pagination.PageResult[providers.Record], error) {
	var out []providers.Record
	for _, r := range f.records {
		out = append(out, r)
	}
	res := pagination.NewPageResult(out, len(out), page)
	return &res, nil
}

func (f *fakeSystem) Find(ctx context.Context, id uuid.UUID) (*providers.Record, error) {
	r, ok := f.records[id]
	if !ok {
		return nil, providers.ErrNotFound
	}
	return &r, nil
}

func (f *fakeSystem) FindMany(ctx context.Context, ids []uuid.UUID) ([]providers.Record, error) {
	return nil, nil
}

func newMux(sys *fakeSystem) *http.ServeMux {
	mux := http.NewServeMux()
	for _, rt := range sys.Handler().Routes().Routes {
		mux.HandleFunc(rt.Method+" /providers"+rt.Pattern, rt.Handler)
	}
	return mux
}

func TestHandlerFind(t *testing.T) {
	id := uuid.New()
	sys := &fakeSystem{records: map[uuid.UUID]providers.Record{
		id: {ID: id, Name: "Dr. Ada", Fields: map[string]any{"FTE": 1.0}},
	}}
	mux := newMux(sys)

	tests := []struct {
		name string
		path string
		want int
	}{
		{"found", "/providers/" + id.String(), http.StatusOK},
		{"missing", "/providers/" + uuid.NewString(), http.StatusNotFound},
		{"bad id", "/providers/not-a-uuid", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest("GET", tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestHandlerList(t *testing.T) {
	id := uuid.New()
	sys := &fakeSystem{records: map[uuid.UUID]providers.Record{id: {ID: id, Name: "Dr. Ada"}}}

	rec := httptest.NewRecorder()
	newMux(sys).ServeHTTP(rec, httptest.NewRequest("GET", "/providers?page_size=500", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var page pagination.PageResult[providers.Record]
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 1 || page.PageSize != 50 {
		t.Errorf("page = %+v, want total 1 and page_size clamped to 50", page)
	}
}
