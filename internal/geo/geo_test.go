package geo

import (
	"math"
	"testing"
)

func TestHaversineKM(t *testing.T) {
	// Calgary Tower to the Saddledome, roughly 1.2km apart.
	d := HaversineKM(-114.0631, 51.0447, -114.0519, 51.0374)
	if d < 1.0 || d > 1.4 {
		t.Errorf("HaversineKM = %.3f, want ~1.2", d)
	}

	if d := HaversineKM(-114.06, 51.04, -114.06, 51.04); d != 0 {
		t.Errorf("zero-distance = %v, want 0", d)
	}

	// One degree of latitude is ~111km regardless of longitude.
	d = HaversineKM(-114.0, 50.0, -114.0, 51.0)
	if math.Abs(d-111.2) > 1.0 {
		t.Errorf("1 degree latitude = %.2f km, want ~111.2", d)
	}
}

func TestBoundingBoxContainsRadius(t *testing.T) {
	lat, lon := 51.045, -114.06
	b := BoundingBox(lat, lon, 2.0)

	if !b.Contains(lon, lat) {
		t.Fatal("box must contain its own center")
	}

	// A point 1.5km north must be inside a 2km box.
	north := lat + 1.5/111.32
	if !b.Contains(lon, north) {
		t.Error("point 1.5km north should be inside 2km box")
	}

	// A point 5km east must be outside.
	east := lon + 5.0/(111.32*math.Abs(math.Cos(lat*math.Pi/180)))
	if b.Contains(east, lat) {
		t.Error("point 5km east should be outside 2km box")
	}
}

func TestBoundingBoxNearPoles(t *testing.T) {
	b := BoundingBox(90, 0, 1.0)
	if math.IsInf(b.MaxLon, 0) || math.IsNaN(b.MaxLon) {
		t.Errorf("box at pole must stay finite, got %+v", b)
	}
}

func TestIntersectionKey(t *testing.T) {
	cases := []struct {
		lat, lon float64
		want     string
	}{
		{51.04551, -114.06229, "51.0455:-114.0623"},
		{51.0, -114.0, "51:-114"},
		{50.99999, -113.99996, "51:-114"},
	}
	for _, c := range cases {
		if got := IntersectionKey(c.lat, c.lon); got != c.want {
			t.Errorf("IntersectionKey(%v, %v) = %q, want %q", c.lat, c.lon, got, c.want)
		}
	}
}
