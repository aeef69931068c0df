package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"trip-tracker/internal/geo"
	"trip-tracker/internal/live"
	"trip-tracker/internal/model"
	"trip-tracker/internal/share"
	"trip-tracker/internal/stops"
	"trip-tracker/internal/store"
	"trip-tracker/internal/trips"
)

// fail translates domain sentinels into status codes. Unknown errors stay
// opaque 500s so internals never leak to anonymous callers.
func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, share.ErrTokenNotFound), errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, trips.ErrHasBookings),
		errors.Is(err, stops.ErrCrossPartitionReorder),
		errors.Is(err, store.ErrConflict),
		errors.Is(err, live.ErrNotOnline):
		status = http.StatusConflict
	case errors.Is(err, stops.ErrInvalidCoordinate),
		errors.Is(err, trips.ErrMissingDepartureTime):
		status = http.StatusBadRequest
	case errors.Is(err, live.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, live.ErrTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, live.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload: " + err.Error()})
}

func (s *Server) healthz(c *gin.Context) {
	if err := s.health.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ---- share ----

func (s *Server) resolveShare(c *gin.Context) {
	snap, err := s.share.Resolve(c.Request.Context(), c.Param("token"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) issueShare(c *gin.Context) {
	tok, err := s.share.Issue(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	resp := gin.H{"token": tok.Token, "trip_id": tok.TripID}
	if tok.ExpiresAt != nil {
		resp["expires_at"] = tok.ExpiresAt.UTC().Format(time.RFC3339)
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) revokeShare(c *gin.Context) {
	if err := s.share.Revoke(c.Request.Context(), c.Param("token")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revoked": true})
}

// ---- driver ----

// goOnline starts a tracking session. A coordinate in the body becomes the
// first fix; without one, GoOnline waits for the first reported position
// and times out if none arrives.
func (s *Server) goOnline(c *gin.Context) {
	driverID := subject(c)
	var first *live.Sample
	if c.Request.ContentLength > 0 {
		sample, ok := s.bindSample(c)
		if !ok {
			return
		}
		first = &sample
	}
	if _, err := s.live.GoOnline(c.Request.Context(), driverID, first); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"driver_id": driverID, "online": true})
}

func (s *Server) goOffline(c *gin.Context) {
	driverID := subject(c)
	sess, ok := s.live.Session(driverID)
	if !ok {
		fail(c, live.ErrNotOnline)
		return
	}
	if err := s.live.GoOffline(c.Request.Context(), sess); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"driver_id": driverID, "online": false})
}

type positionRequest struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Accuracy float64 `json:"accuracy"`
	At       string  `json:"at"` // RFC 3339, defaults to server time
}

func (s *Server) bindSample(c *gin.Context) (live.Sample, bool) {
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return live.Sample{}, false
	}
	if !geo.ValidCoordinate(req.Lat, req.Lng) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "coordinate out of range"})
		return live.Sample{}, false
	}
	at := time.Now()
	if req.At != "" {
		parsed, err := time.Parse(time.RFC3339, req.At)
		if err != nil {
			badRequest(c, err)
			return live.Sample{}, false
		}
		at = parsed
	}
	return live.Sample{Lat: req.Lat, Lng: req.Lng, Accuracy: req.Accuracy, Time: at}, true
}

func (s *Server) reportPosition(c *gin.Context) {
	driverID := subject(c)
	if _, ok := s.live.Session(driverID); !ok {
		fail(c, live.ErrNotOnline)
		return
	}
	sample, ok := s.bindSample(c)
	if !ok {
		return
	}
	s.feed.Push(driverID, sample)
	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}

func (s *Server) driverTrips(c *gin.Context) {
	today := midnight(time.Now().In(s.loc))
	list, err := s.assign.TripsFor(c.Request.Context(), subject(c), today)
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]gin.H, 0, len(list))
	for _, t := range list {
		out = append(out, tripJSON(t))
	}
	c.JSON(http.StatusOK, gin.H{"trips": out})
}

// ---- stops ----

type addStopRequest struct {
	Name string         `json:"name" binding:"required"`
	Lat  float64        `json:"lat"`
	Lng  float64        `json:"lng"`
	Kind model.StopKind `json:"kind" binding:"required,oneof=pickup dropoff both"`
}

func (s *Server) addStop(c *gin.Context) {
	var req addStopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	stop, err := s.stops.AddStop(c.Request.Context(), c.Param("id"), req.Kind, req.Name, req.Lat, req.Lng)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":          stop.ID,
		"route_id":    stop.RouteID,
		"name":        stop.Name,
		"lat":         stop.Lat,
		"lng":         stop.Lng,
		"kind":        stop.Kind,
		"order_index": stop.OrderIndex,
	})
}

func (s *Server) listStops(c *gin.Context) {
	tripType := model.TripType(c.DefaultQuery("direction", string(model.TripDeparture)))
	if tripType != model.TripArrival && tripType != model.TripDeparture {
		c.JSON(http.StatusBadRequest, gin.H{"error": "direction must be arrival or departure"})
		return
	}
	list, err := s.stops.ListForDirection(c.Request.Context(), c.Param("id"), tripType)
	if err != nil {
		fail(c, err)
		return
	}
	ranked := stops.Rank(list)
	out := make([]gin.H, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, gin.H{
			"rank": r.Rank,
			"id":   r.Stop.ID,
			"name": r.Stop.Name,
			"lat":  r.Stop.Lat,
			"lng":  r.Stop.Lng,
			"kind": r.Stop.Kind,
		})
	}
	c.JSON(http.StatusOK, gin.H{"stops": out})
}

type reorderRequest struct {
	StopA string `json:"stop_a" binding:"required"`
	StopB string `json:"stop_b" binding:"required"`
}

func (s *Server) reorderStops(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.stops.Reorder(c.Request.Context(), req.StopA, req.StopB); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reordered": true})
}

func (s *Server) removeStop(c *gin.Context) {
	if err := s.stops.Remove(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": true})
}

// ---- trips ----

type tripBatchRequest struct {
	RouteID       string           `json:"route_id" binding:"required"`
	Type          model.TripType   `json:"type" binding:"required,oneof=arrival departure"`
	Dates         []string         `json:"dates" binding:"required,min=1"`
	MeetingTime   string           `json:"meeting_time"`
	DepartureTime string           `json:"departure_time"`
	Stops         []model.Waypoint `json:"stops"`
}

func (s *Server) createTrips(c *gin.Context) {
	var req tripBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	dates := make([]time.Time, 0, len(req.Dates))
	for _, d := range req.Dates {
		parsed, err := time.ParseInLocation("2006-01-02", d, s.loc)
		if err != nil {
			badRequest(c, err)
			return
		}
		dates = append(dates, parsed)
	}
	created, err := s.trips.CreateBatch(c.Request.Context(), req.RouteID, req.Type, dates, req.MeetingTime, req.DepartureTime, req.Stops)
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]gin.H, 0, len(created))
	for _, t := range created {
		out = append(out, tripJSON(t))
	}
	c.JSON(http.StatusCreated, gin.H{"trips": out})
}

func (s *Server) cancelTrip(c *gin.Context) {
	if err := s.trips.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

func (s *Server) deleteTrip(c *gin.Context) {
	if err := s.trips.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (s *Server) tripPath(c *gin.Context) {
	trip, err := s.trips.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	path, err := s.renderer.BuildPath(c.Request.Context(), trip)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"trip_id":  trip.ID,
		"points":   path.OrderedPoints,
		"path":     path.DrivablePath,
		"fallback": path.Fallback,
	})
}

// ---- assignments ----

type assignRequest struct {
	DriverID string `json:"driver_id" binding:"required"`
}

func (s *Server) assignRouteDriver(c *gin.Context) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.assign.AssignDriverToRoute(c.Request.Context(), req.DriverID, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assigned": true})
}

func (s *Server) unassignRouteDriver(c *gin.Context) {
	if err := s.assign.UnassignDriverFromRoute(c.Request.Context(), c.Param("driverID"), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assigned": false})
}

func (s *Server) assignTripDriver(c *gin.Context) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.assign.AssignDriverToTrip(c.Request.Context(), req.DriverID, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assigned": true})
}

func (s *Server) unassignTripDriver(c *gin.Context) {
	if err := s.assign.UnassignDriverFromTrip(c.Request.Context(), c.Param("driverID"), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assigned": false})
}

func tripJSON(t model.Trip) gin.H {
	return gin.H{
		"id":             t.ID,
		"route_id":       t.RouteID,
		"date":           t.Date.Format("2006-01-02"),
		"type":           t.Type,
		"meeting_time":   t.MeetingTime,
		"departure_time": t.DepartureTime,
		"start":          t.Start,
		"end":            t.End,
		"active":         t.Active,
	}
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
