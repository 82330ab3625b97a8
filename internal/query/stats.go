package query

import (
	"sort"
	"strings"

	"github.com/yycdata/collisionwx/internal/models"
	"github.com/yycdata/collisionwx/internal/store"
)

// Engine runs the aggregate views over a compiled filter. All views sum the
// collision count field, not row count, and zero-fill their fixed domains.
type Engine struct {
	store *store.Store
}

func NewEngine(st *store.Store) *Engine {
	return &Engine{store: st}
}

// BucketTotal is one labeled bucket in a stats view.
type BucketTotal struct {
	Key   int `json:"key"`
	Total int `json:"total"`
}

// MonthlyTrend totals per calendar month, months 1 through 12 always present.
func (e *Engine) MonthlyTrend(f *Filter) ([]BucketTotal, error) {
	where, args := f.Compile()
	totals, err := e.store.MonthlyTotals(where, args)
	if err != nil {
		return nil, err
	}
	return fillRange(totals, 1, 12), nil
}

// Commute hour windows accepted by ByHour.
var commuteHours = map[string][]int{
	"am": {7, 8, 9},
	"pm": {16, 17, 18},
}

// ByHour totals per hour 0 through 23. A recognized commute token narrows the
// filter to that window first; anything else is a no-op.
func (e *Engine) ByHour(f *Filter, commute string) ([]BucketTotal, error) {
	if hs, ok := commuteHours[strings.ToLower(strings.TrimSpace(commute))]; ok {
		f = f.Clone()
		f.hours(hs)
	}
	where, args := f.Compile()
	totals, err := e.store.HourlyTotals(where, args)
	if err != nil {
		return nil, err
	}
	return fillRange(totals, 0, 23), nil
}

// ByWeekday totals per weekday, 0 = Monday.
func (e *Engine) ByWeekday(f *Filter) ([]BucketTotal, error) {
	where, args := f.Compile()
	totals, err := e.store.WeekdayTotals(where, args)
	if err != nil {
		return nil, err
	}
	return fillRange(totals, 0, 6), nil
}

// QuadrantTotal is one quadrant's share of the filtered total.
type QuadrantTotal struct {
	Quadrant string `json:"quadrant"`
	Total    int    `json:"total"`
}

// QuadrantShare totals per quadrant over the fixed five-value domain.
func (e *Engine) QuadrantShare(f *Filter) ([]QuadrantTotal, error) {
	where, args := f.Compile()
	totals, err := e.store.QuadrantTotals(where, args)
	if err != nil {
		return nil, err
	}

	out := make([]QuadrantTotal, 0, len(models.Quadrants))
	for _, q := range models.Quadrants {
		out = append(out, QuadrantTotal{Quadrant: q, Total: totals[q]})
	}
	return out, nil
}

const (
	defaultIntersectionLimit = 10
	maxIntersectionLimit     = 100
)

// Intersection is one coarse location cluster in the top-intersections view.
type Intersection struct {
	Key        string `json:"intersection_key"`
	Label      string `json:"label"`
	Total      int    `json:"total"`
	Collisions int    `json:"collisions"`
}

// TopIntersections clusters by intersection key, labels each cluster with its
// most frequent location text, and returns the heaviest clusters first. The
// limit is clamped to [1, 100]; zero or negative falls back to the default.
func (e *Engine) TopIntersections(f *Filter, limit int) ([]Intersection, error) {
	if limit <= 0 {
		limit = defaultIntersectionLimit
	}
	if limit > maxIntersectionLimit {
		limit = maxIntersectionLimit
	}

	where, args := f.Compile()
	groups, err := e.store.IntersectionGroups(where, args)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]*Intersection)
	labelFreq := make(map[string]map[string]int)
	for _, g := range groups {
		m, ok := merged[g.Key]
		if !ok {
			m = &Intersection{Key: g.Key}
			merged[g.Key] = m
			labelFreq[g.Key] = make(map[string]int)
		}
		m.Total += g.Total
		m.Collisions += g.Collisions
		labelFreq[g.Key][g.Label] += g.Collisions
	}

	out := make([]Intersection, 0, len(merged))
	for key, m := range merged {
		m.Label = representativeLabel(labelFreq[key])
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Label < out[j].Label
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// representativeLabel picks the most frequent label, breaking ties toward the
// lexicographically smallest.
func representativeLabel(freq map[string]int) string {
	var best string
	bestN := -1
	for label, n := range freq {
		if n > bestN || (n == bestN && label < best) {
			best = label
			bestN = n
		}
	}
	return best
}

// WeatherTotal is one city-classification bucket.
type WeatherTotal struct {
	WeatherDay string `json:"weather_day"`
	Total      int    `json:"total"`
}

// ByWeather buckets each filtered date's summed count under that date's city
// classification. Dates with no classification contribute to no bucket; all
// three buckets always appear.
func (e *Engine) ByWeather(f *Filter) ([]WeatherTotal, error) {
	where, args := f.Compile()
	dates, err := e.store.DateWeatherTotals(where, args)
	if err != nil {
		return nil, err
	}

	totals := map[string]int{}
	for _, d := range dates {
		if d.WeatherDay.Valid {
			totals[d.WeatherDay.String] += d.Total
		}
	}

	days := []string{models.WeatherDayDry, models.WeatherDayWet, models.WeatherDaySnowy}
	out := make([]WeatherTotal, 0, len(days))
	for _, day := range days {
		out = append(out, WeatherTotal{WeatherDay: day, Total: totals[day]})
	}
	return out, nil
}

func fillRange(totals map[int]int, lo, hi int) []BucketTotal {
	out := make([]BucketTotal, 0, hi-lo+1)
	for k := lo; k <= hi; k++ {
		out = append(out, BucketTotal{Key: k, Total: totals[k]})
	}
	return out
}
