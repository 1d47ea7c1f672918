package pagination_test

import (
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/JaimeStill/accord/pkg/pagination"
	"github.com/JaimeStill/accord/pkg/query"
)

func defaultConfig() pagination.Config {
	return pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}
}

func TestConfigFinalize(t *testing.T) {
	t.Setenv("TEST_PAGE_SIZE", "50")

	cfg := pagination.Config{}
	if err := cfg.Finalize(&pagination.Env{DefaultPageSize: "TEST_PAGE_SIZE"}); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if cfg.DefaultPageSize != 50 {
		t.Errorf("DefaultPageSize = %d, want 50", cfg.DefaultPageSize)
	}
	if cfg.MaxPageSize != 100 {
		t.Errorf("MaxPageSize = %d, want 100", cfg.MaxPageSize)
	}
}

func TestConfigFinalizeRejectsDefaultAboveMax(t *testing.T) {
	cfg := pagination.Config{DefaultPageSize: 200, MaxPageSize: 100}
	err := cfg.Finalize(nil)
	if err == nil || !strings.Contains(err.Error(), "cannot exceed") {
		t.Fatalf("Finalize() error = %v, want cannot exceed", err)
	}
}

func TestFromQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  pagination.PageRequest
	}{
		{
			name:  "defaults",
			query: "",
			want:  pagination.PageRequest{Page: 1, PageSize: 20},
		},
		{
			name:  "clamped page size",
			query: "page=2&page_size=500",
			want:  pagination.PageRequest{Page: 2, PageSize: 100},
		},
		{
			name:  "search and sort",
			query: "search=ada&sort=-name",
			want: pagination.PageRequest{
				Page:     1,
				PageSize: 20,
				Search:   func() *string { s := "ada"; return &s }(),
				Sort:     []query.SortField{{Field: "name", Descending: true}},
			},
		},
		{
			name:  "garbage numbers",
			query: "page=x&page_size=-4",
			want:  pagination.PageRequest{Page: 1, PageSize: 20},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, _ := url.ParseQuery(tt.query)
			got := pagination.FromQuery(values, defaultConfig())
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("FromQuery mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNewPageResult(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		pageSize  int
		wantPages int
	}{
		{"empty", 0, 20, 1},
		{"exact", 40, 20, 2},
		{"remainder", 41, 20, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := pagination.NewPageResult[string](nil, tt.total, pagination.PageRequest{Page: 1, PageSize: tt.pageSize})
			if res.TotalPages != tt.wantPages {
				t.Errorf("TotalPages = %d, want %d", res.TotalPages, tt.wantPages)
			}
			if res.Data == nil {
				t.Error("Data should never be nil")
			}
		})
	}
}
