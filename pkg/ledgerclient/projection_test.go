package ledgerclient_test

import (
	"testing"

	"github.com/zimmerhq/zimmer-admin-api/pkg/ledgerclient"
)

func TestProject(t *testing.T) {
	cases := []struct {
		current int
		delta   int
		want    int
	}{
		{100, -30, 70},
		{100, 0, 100},
		{0, 500, 500},
		{500, -600, -100},
	}

	for _, tc := range cases {
		if got := ledgerclient.Project(tc.current, tc.delta); got != tc.want {
			t.Errorf("Project(%d, %d) = %d, want %d", tc.current, tc.delta, got, tc.want)
		}
	}
}
