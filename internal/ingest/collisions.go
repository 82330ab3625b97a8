package ingest

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/yycdata/collisionwx/internal/geo"
	"github.com/yycdata/collisionwx/internal/metrics"
	"github.com/yycdata/collisionwx/internal/models"
	"github.com/yycdata/collisionwx/internal/store"
)

// CollisionFilePattern matches the city portal's incident extracts.
const CollisionFilePattern = "Traffic_Incidents_*.csv"

// Skip reason labels reported by the collision loader.
const (
	SkipNoID          = "no_id"
	SkipInvalidCoords = "invalid_coords"
	SkipOutOfBounds   = "out_of_bounds"
	SkipBadStartDT    = "bad_start_dt"
	SkipException     = "exception"
)

// CalgaryBounds is the broad bounding box collisions must fall inside.
var CalgaryBounds = geo.Bounds{MinLon: -114.5, MaxLon: -113.6, MinLat: 50.5, MaxLat: 51.3}

// Incident timestamps arrive in a 12-hour primary format with a 24-hour
// fallback seen in older extracts.
var collisionTimeFormats = []string{
	"2006/01/02 03:04:05 PM",
	"2006-01-02 15:04:05",
}

// collisionColumns are matched case-insensitively but exactly; the incident
// extracts only vary the casing of "id".
var collisionColumns = map[string][]string{
	"id":            {"id"},
	"longitude":     {"Longitude"},
	"latitude":      {"Latitude"},
	"start_dt":      {"START_DT"},
	"modified_dt":   {"MODIFIED_DT"},
	"description":   {"DESCRIPTION"},
	"location_text": {"INCIDENT INFO"},
	"count":         {"Count"},
	"quadrant":      {"QUADRANT"},
}

type CollisionLoader struct {
	store *store.Store
	loc   *time.Location

	// Bounds rejects coordinates outside the city's extent.
	Bounds geo.Bounds
}

func NewCollisionLoader(st *store.Store, loc *time.Location) *CollisionLoader {
	return &CollisionLoader{store: st, loc: loc, Bounds: CalgaryBounds}
}

type CollisionResult struct {
	Created     int
	Updated     int
	Skipped     int
	SkipReasons map[string]int
}

func newCollisionResult() *CollisionResult {
	return &CollisionResult{SkipReasons: make(map[string]int)}
}

func (r *CollisionResult) skip(reason string) {
	r.Skipped++
	r.SkipReasons[reason]++
	metrics.RowsSkipped.WithLabelValues("collisions", reason).Inc()
}

// LoadDir ingests every collision CSV in dir.
func (l *CollisionLoader) LoadDir(dir string) (*CollisionResult, error) {
	files, err := filepath.Glob(filepath.Join(dir, CollisionFilePattern))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", dir, err)
	}
	return l.LoadFiles(files)
}

// LoadFiles ingests an explicit file list inside one transaction. Row-level
// problems skip the row and are tallied by reason; the batch never aborts on
// a single bad row.
func (l *CollisionLoader) LoadFiles(paths []string) (*CollisionResult, error) {
	sort.Strings(paths)

	res := newCollisionResult()
	if len(paths) == 0 {
		log.Printf("collisions: no files to load")
		return res, nil
	}

	err := l.store.InTx(func(tx *store.Store) error {
		// Exhaustive nearest-station scan per row is O(rows x stations);
		// fine while the station count stays in the low hundreds.
		stations, err := tx.GetStations()
		if err != nil {
			return err
		}
		for _, path := range paths {
			if err := l.loadFile(tx, path, stations, res); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("collisions: created=%d updated=%d skipped=%d", res.Created, res.Updated, res.Skipped)
	if parts := res.skipSummary(); parts != "" {
		log.Printf("collisions: skip breakdown: %s", parts)
	}
	return res, nil
}

func (r *CollisionResult) skipSummary() string {
	reasons := []string{SkipNoID, SkipInvalidCoords, SkipOutOfBounds, SkipBadStartDT, SkipException}
	var parts []string
	for _, reason := range reasons {
		if n := r.SkipReasons[reason]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", reason, n))
		}
	}
	return strings.Join(parts, ", ")
}

func (l *CollisionLoader) loadFile(tx *store.Store, path string, stations []models.Station, res *CollisionResult) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read header %s: %w", path, err)
	}
	stripBOM(header)
	cols := resolveColumns(header, collisionColumns, false)

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if _, ok := err.(*csv.ParseError); ok {
				res.skip(SkipException)
				continue
			}
			return fmt.Errorf("read %s: %w", path, err)
		}
		l.loadRow(tx, cols, record, stations, res)
	}
	return nil
}

func (l *CollisionLoader) loadRow(tx *store.Store, cols columnMap, record []string, stations []models.Station, res *CollisionResult) {
	id := cols.get(record, "id")
	if id == "" {
		res.skip(SkipNoID)
		return
	}

	lon, lonErr := strconv.ParseFloat(cols.get(record, "longitude"), 64)
	lat, latErr := strconv.ParseFloat(cols.get(record, "latitude"), 64)
	if lonErr != nil || latErr != nil || math.IsNaN(lon) || math.IsNaN(lat) {
		res.skip(SkipInvalidCoords)
		return
	}
	if !l.Bounds.Contains(lon, lat) {
		res.skip(SkipOutOfBounds)
		return
	}

	occ, ok := l.parseLocalTime(cols.get(record, "start_dt"))
	if !ok {
		res.skip(SkipBadStartDT)
		return
	}

	var modified sql.NullTime
	if mod, ok := l.parseLocalTime(cols.get(record, "modified_dt")); ok {
		modified = sql.NullTime{Time: mod, Valid: true}
	}

	count := 1
	if n, err := strconv.Atoi(cols.get(record, "count")); err == nil && n >= 1 {
		count = n
	}

	c := models.Collision{
		CollisionID:      id,
		OccurredAt:       occ,
		ModifiedAt:       modified,
		Date:             occ.Format(models.DateFormat),
		Hour:             occ.Hour(),
		Weekday:          (int(occ.Weekday()) + 6) % 7, // 0 = Monday
		Month:            int(occ.Month()),
		Quadrant:         models.NormalizeQuadrant(cols.get(record, "quadrant")),
		Longitude:        lon,
		Latitude:         lat,
		Count:            count,
		Description:      cols.get(record, "description"),
		LocationText:     cols.get(record, "location_text"),
		IntersectionKey:  geo.IntersectionKey(lat, lon),
		NearestStationID: nearestStationID(lon, lat, stations),
	}

	created, err := tx.UpsertCollision(c)
	if err != nil {
		log.Printf("collisions: upsert %s: %v", id, err)
		res.skip(SkipException)
		return
	}
	if created {
		res.Created++
		metrics.RowsIngested.WithLabelValues("collisions", "created").Inc()
	} else {
		res.Updated++
		metrics.RowsIngested.WithLabelValues("collisions", "updated").Inc()
	}
}

func (l *CollisionLoader) parseLocalTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range collisionTimeFormats {
		if t, err := time.ParseInLocation(layout, s, l.loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// nearestStationID finds the closest station by straight-line haversine
// distance, or an absent reference when no stations exist.
func nearestStationID(lon, lat float64, stations []models.Station) sql.NullInt64 {
	var best sql.NullInt64
	bestDist := math.MaxFloat64
	for _, st := range stations {
		if d := geo.HaversineKM(lon, lat, st.Longitude, st.Latitude); d < bestDist {
			bestDist = d
			best = sql.NullInt64{Int64: st.ID, Valid: true}
		}
	}
	return best
}
