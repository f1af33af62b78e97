package route

import (
	"math"
	"testing"
)

func TestHaversineKnownDistances(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		wantKm                 float64
		tolerance              float64
	}{
		{name: "same point", lat1: 35.0, lon1: 139.0, lat2: 35.0, lon2: 139.0, wantKm: 0, tolerance: 0.001},
		{name: "tokyo to osaka", lat1: 35.6762, lon1: 139.6503, lat2: 34.6937, lon2: 135.5023, wantKm: 396, tolerance: 10},
		{name: "tokyo to kyoto", lat1: 35.6762, lon1: 139.6503, lat2: 35.0116, lon2: 135.7681, wantKm: 360, tolerance: 15},
		{name: "equator quarter", lat1: 0, lon1: 0, lat2: 0, lon2: 90, wantKm: 10007, tolerance: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Haversine(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("Expected ~%.0f km, got %.2f km", tt.wantKm, got)
			}
		})
	}
}

func TestHaversineSymmetry(t *testing.T) {
	a := Haversine(35.6762, 139.6503, 34.6937, 135.5023)
	b := Haversine(34.6937, 135.5023, 35.6762, 139.6503)
	if math.Abs(a-b) > 1e-9 {
		t.Errorf("Distance not symmetric: %f vs %f", a, b)
	}
}

func TestDistanceMatrix(t *testing.T) {
	locations := []Location{
		{Name: "tokyo", Latitude: 35.6762, Longitude: 139.6503},
		{Name: "osaka", Latitude: 34.6937, Longitude: 135.5023},
		{Name: "kyoto", Latitude: 35.0116, Longitude: 135.7681},
	}

	matrix := DistanceMatrix(locations)
	if len(matrix) != 3 {
		t.Fatalf("Expected 3x3 matrix, got %d rows", len(matrix))
	}
	for i := 0; i < 3; i++ {
		if matrix[i][i] != 0 {
			t.Errorf("Expected zero diagonal at %d, got %f", i, matrix[i][i])
		}
		for j := 0; j < 3; j++ {
			if matrix[i][j] != matrix[j][i] {
				t.Errorf("Matrix not symmetric at %d,%d", i, j)
			}
		}
	}
	if matrix[0][1] < 300 || matrix[0][1] > 500 {
		t.Errorf("Tokyo-Osaka distance implausible: %f km", matrix[0][1])
	}
}

func TestOptimizeExhaustiveFindsShortestRoute(t *testing.T) {
	// Points along a line. The optimal route from the west end visits
	// them in longitude order.
	locations := []Location{
		{Name: "a", Latitude: 35.0, Longitude: 135.0},
		{Name: "c", Latitude: 35.0, Longitude: 137.0},
		{Name: "b", Latitude: 35.0, Longitude: 136.0},
		{Name: "d", Latitude: 35.0, Longitude: 138.0},
	}

	ordered, total := Optimize(locations, 0, MethodExhaustive)
	wantNames := []string{"a", "b", "c", "d"}
	for i, want := range wantNames {
		if ordered[i].Name != want {
			t.Errorf("Position %d: expected %s, got %s", i, want, ordered[i].Name)
		}
	}

	direct := Haversine(35.0, 135.0, 35.0, 138.0)
	if math.Abs(total-direct) > 1.0 {
		t.Errorf("Expected total ~%f km along the line, got %f", direct, total)
	}
}

func TestOptimizeGreedyVisitsAllPoints(t *testing.T) {
	locations := make([]Location, 15)
	for i := range locations {
		locations[i] = Location{
			ID:        int64(i),
			Latitude:  35.0 + float64(i%5)*0.1,
			Longitude: 135.0 + float64(i/5)*0.1,
		}
	}

	ordered, total := Optimize(locations, 0, MethodGreedy)
	if len(ordered) != len(locations) {
		t.Fatalf("Expected %d points, got %d", len(locations), len(ordered))
	}
	seen := make(map[int64]bool)
	for _, loc := range ordered {
		if seen[loc.ID] {
			t.Errorf("Point %d visited twice", loc.ID)
		}
		seen[loc.ID] = true
	}
	if total <= 0 {
		t.Errorf("Expected positive total distance, got %f", total)
	}
	if ordered[0].ID != 0 {
		t.Errorf("Expected route to start at index 0, got %d", ordered[0].ID)
	}
}

func TestOptimizeAutoSelectsMethodBySize(t *testing.T) {
	small := []Location{
		{Latitude: 35.0, Longitude: 135.0},
		{Latitude: 35.1, Longitude: 135.1},
	}
	ordered, _ := Optimize(small, 0, MethodAuto)
	if len(ordered) != 2 {
		t.Fatalf("Expected 2 points, got %d", len(ordered))
	}

	large := make([]Location, 25)
	for i := range large {
		large[i] = Location{ID: int64(i), Latitude: 35.0 + float64(i)*0.01, Longitude: 135.0}
	}
	ordered, _ = Optimize(large, 0, MethodAuto)
	if len(ordered) != 25 {
		t.Fatalf("Expected 25 points, got %d", len(ordered))
	}
}

func TestOptimizeEdgeCases(t *testing.T) {
	if got, total := Optimize(nil, 0, MethodAuto); got != nil || total != 0 {
		t.Errorf("Expected empty result for no locations, got %v, %f", got, total)
	}

	one := []Location{{Name: "only", Latitude: 35.0, Longitude: 135.0}}
	got, total := Optimize(one, 0, MethodAuto)
	if len(got) != 1 || got[0].Name != "only" || total != 0 {
		t.Errorf("Expected single location route, got %v, %f", got, total)
	}

	// Out-of-range start index falls back to 0.
	got, _ = Optimize(one, 99, MethodAuto)
	if len(got) != 1 {
		t.Errorf("Expected single location route with bad start index, got %v", got)
	}
}

func TestSplitByDays(t *testing.T) {
	locations := make([]Location, 7)
	for i := range locations {
		locations[i] = Location{ID: int64(i), Latitude: 35.0 + float64(i)*0.1, Longitude: 135.0}
	}

	plans := SplitByDays(locations, 3)
	if len(plans) != 3 {
		t.Fatalf("Expected 3 day plans, got %d", len(plans))
	}

	visited := 0
	for i, plan := range plans {
		if plan.Day != i+1 {
			t.Errorf("Expected day %d, got %d", i+1, plan.Day)
		}
		visited += len(plan.Locations)
		if plan.TravelTime < 0 {
			t.Errorf("Negative travel time on day %d", plan.Day)
		}
	}
	if visited != 7 {
		t.Errorf("Expected all 7 locations across days, got %d", visited)
	}
}

func TestSplitByDaysEdgeCases(t *testing.T) {
	if plans := SplitByDays(nil, 3); plans != nil {
		t.Errorf("Expected nil for no locations, got %v", plans)
	}
	one := []Location{{Latitude: 35.0, Longitude: 135.0}}
	if plans := SplitByDays(one, 0); plans != nil {
		t.Errorf("Expected nil for zero days, got %v", plans)
	}

	// More days than locations: trailing days are dropped.
	plans := SplitByDays(one, 5)
	if len(plans) != 1 {
		t.Errorf("Expected 1 plan, got %d", len(plans))
	}
}

func TestEstimateTravelTime(t *testing.T) {
	if got := EstimateTravelTime(80, 40); got != 2.0 {
		t.Errorf("Expected 2 hours, got %f", got)
	}
	// Default speed is 40 km/h.
	if got := EstimateTravelTime(40, 0); got != 1.0 {
		t.Errorf("Expected 1 hour at default speed, got %f", got)
	}
}
