package route

import (
	"math"

	"journeymap/internal/logging"
)

// earthRadiusKm is the mean radius used by the haversine formula.
const earthRadiusKm = 6371.0

// exhaustiveLimit is the largest point count solved by full permutation
// search. Above it the greedy approximation takes over.
const exhaustiveLimit = 10

// defaultSpeedKmh is the assumed travel speed for time estimates.
const defaultSpeedKmh = 40.0

// Location is a named point to visit.
type Location struct {
	ID        int64   `json:"id,omitempty"`
	Name      string  `json:"name,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Method selects the optimization strategy.
type Method string

const (
	// MethodAuto picks exhaustive search for small inputs, greedy otherwise.
	MethodAuto Method = "auto"
	// MethodExhaustive tries every permutation. Factorial cost.
	MethodExhaustive Method = "exhaustive"
	// MethodGreedy repeatedly visits the nearest unvisited point.
	MethodGreedy Method = "greedy"
)

// Haversine returns the great-circle distance in kilometers between two
// points given in decimal degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lon1Rad := lon1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	lon2Rad := lon2 * math.Pi / 180

	dlat := lat2Rad - lat1Rad
	dlon := lon2Rad - lon1Rad

	a := math.Pow(math.Sin(dlat/2), 2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Pow(math.Sin(dlon/2), 2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// DistanceMatrix returns pairwise distances in kilometers.
func DistanceMatrix(locations []Location) [][]float64 {
	n := len(locations)
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := Haversine(locations[i].Latitude, locations[i].Longitude,
				locations[j].Latitude, locations[j].Longitude)
			matrix[i][j] = d
			matrix[j][i] = d
		}
	}
	return matrix
}

// Optimize reorders locations into a short visiting route starting at
// startIndex. Returns the reordered locations and the total distance in
// kilometers. The first location of the result is always the start point.
func Optimize(locations []Location, startIndex int, method Method) ([]Location, float64) {
	if len(locations) == 0 {
		return nil, 0
	}
	if startIndex < 0 || startIndex >= len(locations) {
		startIndex = 0
	}

	if method == MethodAuto || method == "" {
		if len(locations) <= exhaustiveLimit {
			method = MethodExhaustive
		} else {
			method = MethodGreedy
		}
	}

	var order []int
	var total float64
	switch method {
	case MethodExhaustive:
		order, total = optimizeExhaustive(locations, startIndex)
	default:
		order, total = optimizeGreedy(locations, startIndex)
	}

	result := make([]Location, len(order))
	for i, idx := range order {
		result[i] = locations[idx]
	}
	logging.Debug("Route optimized (%s): %d points, %.2f km", method, len(result), total)
	return result, total
}

func optimizeExhaustive(locations []Location, startIndex int) ([]int, float64) {
	n := len(locations)
	if n <= 1 {
		return []int{0}, 0
	}
	if n > exhaustiveLimit {
		logging.Warn("Exhaustive route search over %d points, this will be slow", n)
	}

	matrix := DistanceMatrix(locations)

	rest := make([]int, 0, n-1)
	for i := 0; i < n; i++ {
		if i != startIndex {
			rest = append(rest, i)
		}
	}

	best := make([]int, 0, n)
	bestDistance := math.Inf(1)

	permute(rest, 0, func(perm []int) {
		distance := 0.0
		prev := startIndex
		for _, idx := range perm {
			distance += matrix[prev][idx]
			if distance >= bestDistance {
				return
			}
			prev = idx
		}
		bestDistance = distance
		best = append(best[:0], startIndex)
		best = append(best, perm...)
	})

	return best, bestDistance
}

// permute calls visit with every permutation of items. The slice passed to
// visit is reused between calls.
func permute(items []int, k int, visit func([]int)) {
	if k == len(items) {
		visit(items)
		return
	}
	for i := k; i < len(items); i++ {
		items[k], items[i] = items[i], items[k]
		permute(items, k+1, visit)
		items[k], items[i] = items[i], items[k]
	}
}

func optimizeGreedy(locations []Location, startIndex int) ([]int, float64) {
	n := len(locations)
	if n <= 1 {
		return []int{0}, 0
	}

	matrix := DistanceMatrix(locations)

	visited := make([]bool, n)
	order := make([]int, 0, n)
	order = append(order, startIndex)
	visited[startIndex] = true

	current := startIndex
	total := 0.0

	for len(order) < n {
		nearest := -1
		nearestDistance := math.Inf(1)
		for j := 0; j < n; j++ {
			if !visited[j] && matrix[current][j] < nearestDistance {
				nearest = j
				nearestDistance = matrix[current][j]
			}
		}
		if nearest < 0 {
			break
		}
		order = append(order, nearest)
		visited[nearest] = true
		total += nearestDistance
		current = nearest
	}

	return order, total
}

// DayPlan is one day's leg of a multi-day itinerary.
type DayPlan struct {
	Day        int        `json:"day"`
	Locations  []Location `json:"locations"`
	DistanceKm float64    `json:"distanceKm"`
	TravelTime float64    `json:"travelTimeHours"`
}

// SplitByDays partitions the locations into days chunks and optimizes
// each day's leg independently.
func SplitByDays(locations []Location, days int) []DayPlan {
	n := len(locations)
	if days <= 0 || n == 0 {
		return nil
	}

	perDay := (n + days - 1) / days
	plans := make([]DayPlan, 0, days)

	for day := 0; day < days; day++ {
		start := day * perDay
		if start >= n {
			break
		}
		end := start + perDay
		if end > n {
			end = n
		}

		leg, distance := Optimize(locations[start:end], 0, MethodAuto)
		plans = append(plans, DayPlan{
			Day:        day + 1,
			Locations:  leg,
			DistanceKm: distance,
			TravelTime: EstimateTravelTime(distance, 0),
		})
	}

	logging.Debug("Itinerary split into %d days", len(plans))
	return plans
}

// EstimateTravelTime converts a distance to hours at the given speed.
// A non-positive speed uses the default of 40 km/h.
func EstimateTravelTime(distanceKm, speedKmh float64) float64 {
	if speedKmh <= 0 {
		speedKmh = defaultSpeedKmh
	}
	return distanceKm / speedKmh
}
