package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yycdata/collisionwx/internal/models"
)

const collisionHeader = "id,Longitude,Latitude,START_DT,MODIFIED_DT,DESCRIPTION,INCIDENT INFO,Count,QUADRANT\n"

func TestCollisionLoader_SkipAccounting(t *testing.T) {
	st := setupStore(t)
	dir := t.TempDir()

	// One row without id, one with unparseable coordinates, one good row with
	// an empty count.
	csv := collisionHeader +
		`,-114.06,51.05,2024/12/31 11:31:14 PM,,Two vehicle incident,CENTRE ST / 16 AV NE,,NE` + "\n" +
		`A2,,,2024/12/31 10:00:00 AM,,Single vehicle,MEMORIAL DR,1,NE` + "\n" +
		`A3,-114.062,51.045,2024/12/31 08:15:00 AM,2024/12/31 09:00:00 AM,Multi-vehicle,5 AV SW,,SW` + "\n"
	path := writeFile(t, dir, "Traffic_Incidents_20241231.csv", csv)

	loader := NewCollisionLoader(st, st.Location())
	res, err := loader.LoadFiles([]string{path})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 1, res.SkipReasons[SkipNoID])
	assert.Equal(t, 1, res.SkipReasons[SkipInvalidCoords])

	c, err := st.GetCollision("A3")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, 1, c.Count, "empty count defaults to 1")
	assert.Equal(t, models.QuadrantSW, c.Quadrant)
	assert.True(t, c.ModifiedAt.Valid)
}

func TestCollisionLoader_DerivedFields(t *testing.T) {
	st := setupStore(t)
	dir := t.TempDir()

	// 2024-12-31 is a Tuesday; 11:31 PM local.
	csv := collisionHeader +
		`B1,-114.06229,51.04551,2024/12/31 11:31:14 PM,not a timestamp,Rear-end,CENTRE ST,3,ne` + "\n"
	path := writeFile(t, dir, "Traffic_Incidents_20250101.csv", csv)

	_, err := NewCollisionLoader(st, st.Location()).LoadFiles([]string{path})
	require.NoError(t, err)

	c, err := st.GetCollision("B1")
	require.NoError(t, err)
	require.NotNil(t, c)

	assert.Equal(t, "2024-12-31", c.Date)
	assert.Equal(t, 23, c.Hour)
	assert.Equal(t, 1, c.Weekday, "weekday is 0=Monday")
	assert.Equal(t, 12, c.Month)
	assert.Equal(t, models.QuadrantNE, c.Quadrant, "quadrant text normalizes to uppercase")
	assert.Equal(t, "51.0455:-114.0623", c.IntersectionKey)
	assert.Equal(t, 3, c.Count)
	assert.False(t, c.ModifiedAt.Valid, "bad modified timestamp does not skip the row")

	loc := st.Location()
	want := time.Date(2024, 12, 31, 23, 31, 14, 0, loc)
	assert.True(t, c.OccurredAt.Equal(want), "occurred_at = %v, want %v", c.OccurredAt, want)
}

func TestCollisionLoader_BoundsAndTimestamps(t *testing.T) {
	st := setupStore(t)
	dir := t.TempDir()

	// Row 1 is in Edmonton (out of bounds), row 2 has a garbage timestamp,
	// row 3 uses the fallback 24-hour format, row 4 has an unknown quadrant.
	csv := collisionHeader +
		`C1,-113.49,53.55,2024/06/01 01:00:00 PM,,x,y,1,NE` + "\n" +
		`C2,-114.06,51.05,June 1st 2024,,x,y,1,NE` + "\n" +
		`C3,-114.06,51.05,2024-06-01 13:45:00,,x,y,1,SE` + "\n" +
		`C4,-114.06,51.05,2024/06/01 02:00:00 PM,,x,y,1,CENTRE` + "\n"
	path := writeFile(t, dir, "Traffic_Incidents_20240601.csv", csv)

	res, err := NewCollisionLoader(st, st.Location()).LoadFiles([]string{path})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.SkipReasons[SkipOutOfBounds])
	assert.Equal(t, 1, res.SkipReasons[SkipBadStartDT])

	c3, err := st.GetCollision("C3")
	require.NoError(t, err)
	require.NotNil(t, c3)
	assert.Equal(t, 13, c3.Hour)

	c4, err := st.GetCollision("C4")
	require.NoError(t, err)
	assert.Equal(t, models.QuadrantUnknown, c4.Quadrant)
}

func TestCollisionLoader_NearestStation(t *testing.T) {
	st := setupStore(t)
	dir := t.TempDir()

	near := &models.Station{ClimateID: "3031092", Name: "CALGARY INTL A", Longitude: -114.01, Latitude: 51.12}
	far := &models.Station{ClimateID: "3031093", Name: "SPRINGBANK A", Longitude: -114.37, Latitude: 51.10}
	require.NoError(t, st.CreateStation(near))
	require.NoError(t, st.CreateStation(far))

	csv := collisionHeader +
		`D1,-114.05,51.11,2024/06/01 09:00:00 AM,,x,y,1,NE` + "\n"
	path := writeFile(t, dir, "Traffic_Incidents_20240601.csv", csv)

	_, err := NewCollisionLoader(st, st.Location()).LoadFiles([]string{path})
	require.NoError(t, err)

	c, err := st.GetCollision("D1")
	require.NoError(t, err)
	require.True(t, c.NearestStationID.Valid)
	assert.Equal(t, near.ID, c.NearestStationID.Int64)
}

func TestCollisionLoader_NoStations(t *testing.T) {
	st := setupStore(t)
	dir := t.TempDir()

	csv := collisionHeader +
		`E1,-114.05,51.11,2024/06/01 09:00:00 AM,,x,y,1,NE` + "\n"
	path := writeFile(t, dir, "Traffic_Incidents_20240601.csv", csv)

	_, err := NewCollisionLoader(st, st.Location()).LoadFiles([]string{path})
	require.NoError(t, err)

	c, err := st.GetCollision("E1")
	require.NoError(t, err)
	assert.False(t, c.NearestStationID.Valid, "no stations means absent reference, not an error")
}

func TestCollisionLoader_Idempotent(t *testing.T) {
	st := setupStore(t)
	dir := t.TempDir()

	csv := collisionHeader +
		`F1,-114.06,51.05,2024/06/01 09:00:00 AM,,x,y,2,NE` + "\n"
	path := writeFile(t, dir, "Traffic_Incidents_20240601.csv", csv)

	loader := NewCollisionLoader(st, st.Location())
	first, err := loader.LoadFiles([]string{path})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created)

	second, err := loader.LoadFiles([]string{path})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 1, second.Updated)

	all, err := st.ListCollisions("1=1", nil, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCollisionLoader_IDHeaderSpellings(t *testing.T) {
	st := setupStore(t)
	dir := t.TempDir()

	csv := "ID,Longitude,Latitude,START_DT,QUADRANT\n" +
		`G1,-114.06,51.05,2024/06/01 09:00:00 AM,NW` + "\n"
	path := writeFile(t, dir, "Traffic_Incidents_20240601.csv", csv)

	res, err := NewCollisionLoader(st, st.Location()).LoadFiles([]string{path})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)

	c, err := st.GetCollision("G1")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, models.QuadrantNW, c.Quadrant)
}
