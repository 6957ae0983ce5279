package pagination_test

import (
	"testing"

	"github.com/zimmerhq/zimmer-admin-api/pkg/pagination"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   pagination.Params
		want pagination.Params
	}{
		{"defaults", pagination.Params{}, pagination.Params{Page: 1, PageSize: 25}},
		{"negative page", pagination.Params{Page: -2, PageSize: 10}, pagination.Params{Page: 1, PageSize: 10}},
		{"oversized page size", pagination.Params{Page: 3, PageSize: 500}, pagination.Params{Page: 3, PageSize: 100}},
		{"valid passthrough", pagination.Params{Page: 2, PageSize: 50}, pagination.Params{Page: 2, PageSize: 50}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.in.Normalize(); got != tc.want {
				t.Fatalf("Normalize(%+v) = %+v, want %+v", tc.in, got, tc.want)
			}
		})
	}
}

func TestOffset(t *testing.T) {
	p := pagination.Params{Page: 3, PageSize: 25}
	if got := p.Offset(); got != 50 {
		t.Fatalf("Offset = %d, want 50", got)
	}
	if got := (pagination.Params{}).Offset(); got != 0 {
		t.Fatalf("Offset for zero params = %d, want 0", got)
	}
}

func TestTotalPages(t *testing.T) {
	if got := pagination.TotalPages(0, 25); got != 0 {
		t.Fatalf("TotalPages(0) = %d, want 0", got)
	}
	if got := pagination.TotalPages(100, 25); got != 4 {
		t.Fatalf("TotalPages(100, 25) = %d, want 4", got)
	}
	if got := pagination.TotalPages(101, 25); got != 5 {
		t.Fatalf("TotalPages(101, 25) = %d, want 5", got)
	}
}
