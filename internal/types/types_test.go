package types

import "testing"

func TestPointCoordinatesRoundTrip(t *testing.T) {
	p := Point{Lat: 22.3193, Lng: 114.1694}
	c := p.Coordinates()
	if c[0] != p.Lng || c[1] != p.Lat {
		t.Fatalf("expected [lng, lat], got %v", c)
	}
	back, err := PointFromCoordinates(c)
	if err != nil {
		t.Fatalf("from coordinates: %v", err)
	}
	if back != p {
		t.Fatalf("expected %v, got %v", p, back)
	}
	if _, err := PointFromCoordinates([]float64{1}); err == nil {
		t.Fatal("expected error for short coordinates")
	}
}

func TestParseRole(t *testing.T) {
	cases := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"passenger", RolePassenger, false},
		{"driver", RoleDriver, false},
		{"admin", "", true},
		{"", "", true},
	}
	for _, tc := range cases {
		got, err := ParseRole(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseRole(%q) err = %v, wantErr %v", tc.in, err, tc.wantErr)
		}
		if got != tc.want {
			t.Errorf("ParseRole(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRoundAmount(t *testing.T) {
	cases := map[float64]int64{0: 0, 12.4: 12, 12.5: 13, 126.49: 126}
	for in, want := range cases {
		if got := RoundAmount(in); got != want {
			t.Errorf("RoundAmount(%v) = %d, want %d", in, got, want)
		}
	}
}
