package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/yycdata/collisionwx/internal/query"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

// pagination reads limit/offset, clamping the limit to [1, 500]. Non-numeric
// values are client errors.
func pagination(params url.Values) (limit, offset int, err error) {
	limit = defaultPageLimit
	if s := params.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: limit %q is not a number", query.ErrBadParam, s)
		}
		switch {
		case n < 1:
			limit = 1
		case n > maxPageLimit:
			limit = maxPageLimit
		default:
			limit = n
		}
	}
	if s := params.Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return 0, 0, fmt.Errorf("%w: offset %q is not a non-negative number", query.ErrBadParam, s)
		}
		offset = n
	}
	return limit, offset, nil
}

func (s *Server) handleCollisions(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	f, err := query.FromParams(params)
	if err != nil {
		fail(w, err)
		return
	}
	limit, offset, err := pagination(params)
	if err != nil {
		fail(w, err)
		return
	}

	where, args := f.Compile()
	collisions, err := s.store.ListCollisions(where, args, limit, offset)
	if err != nil {
		fail(w, err)
		return
	}

	out := collisionListView{Count: len(collisions), Results: make([]collisionView, 0, len(collisions))}
	for _, c := range collisions {
		out.Results = append(out.Results, newCollisionView(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCollisionDetail(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.GetCollision(r.PathValue("id"))
	if err != nil {
		fail(w, err)
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "collision not found")
		return
	}

	out := collisionDetailView{collisionView: newCollisionView(*c)}
	if c.NearestStationID.Valid {
		obs, err := s.store.GetObservation(c.NearestStationID.Int64, c.Date)
		if err != nil {
			fail(w, err)
			return
		}
		if obs != nil {
			out.StationWeather = newObservationView(*obs)
		}
	}
	cw, err := s.store.GetCityDailyWeather(c.Date)
	if err != nil {
		fail(w, err)
		return
	}
	if cw != nil {
		out.CityWeather = newCityWeatherView(*cw)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleNear(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	f, err := query.FromParams(params)
	if err != nil {
		fail(w, err)
		return
	}
	p, err := query.ParseNearParams(params)
	if err != nil {
		fail(w, err)
		return
	}

	res, err := s.engine.Near(f, p)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newNearView(res))
}

// statsHandler wraps the shared parse-filter-then-run shape of the six views.
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request, run func(f *query.Filter) (any, error)) {
	f, err := query.FromParams(r.URL.Query())
	if err != nil {
		fail(w, err)
		return
	}
	out, err := run(f)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": out})
}

func (s *Server) handleMonthlyTrend(w http.ResponseWriter, r *http.Request) {
	s.statsHandler(w, r, func(f *query.Filter) (any, error) { return s.engine.MonthlyTrend(f) })
}

func (s *Server) handleByHour(w http.ResponseWriter, r *http.Request) {
	commute := r.URL.Query().Get("commute")
	s.statsHandler(w, r, func(f *query.Filter) (any, error) { return s.engine.ByHour(f, commute) })
}

func (s *Server) handleByWeekday(w http.ResponseWriter, r *http.Request) {
	s.statsHandler(w, r, func(f *query.Filter) (any, error) { return s.engine.ByWeekday(f) })
}

func (s *Server) handleQuadrantShare(w http.ResponseWriter, r *http.Request) {
	s.statsHandler(w, r, func(f *query.Filter) (any, error) { return s.engine.QuadrantShare(f) })
}

func (s *Server) handleTopIntersections(w http.ResponseWriter, r *http.Request) {
	// A garbage limit falls back to the engine default rather than erroring;
	// the engine clamps the rest.
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	s.statsHandler(w, r, func(f *query.Filter) (any, error) { return s.engine.TopIntersections(f, limit) })
}

func (s *Server) handleByWeather(w http.ResponseWriter, r *http.Request) {
	s.statsHandler(w, r, func(f *query.Filter) (any, error) { return s.engine.ByWeather(f) })
}

func (s *Server) handleListFlags(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r.URL.Query())
	if err != nil {
		fail(w, err)
		return
	}
	flags, err := s.store.ListFlags(limit, offset)
	if err != nil {
		fail(w, err)
		return
	}

	out := make([]flagView, 0, len(flags))
	for _, f := range flags {
		out = append(out, newFlagView(f))
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(out), "results": out})
}

type createFlagRequest struct {
	Collision string `json:"collision"`
	Note      string `json:"note"`
}

func (s *Server) handleCreateFlag(w http.ResponseWriter, r *http.Request) {
	var req createFlagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Collision = strings.TrimSpace(req.Collision)
	if req.Collision == "" {
		writeError(w, http.StatusBadRequest, "collision is required")
		return
	}

	c, err := s.store.GetCollision(req.Collision)
	if err != nil {
		fail(w, err)
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "collision not found")
		return
	}

	flag, err := s.store.CreateFlag(req.Collision, req.Note)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newFlagView(*flag))
}

func (s *Server) handleDeleteFlag(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "flag id must be numeric")
		return
	}
	deleted, err := s.store.DeleteFlag(id)
	if err != nil {
		fail(w, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "flag not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
