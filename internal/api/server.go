package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"trip-tracker/internal/live"
	"trip-tracker/internal/model"
	"trip-tracker/internal/render"
	"trip-tracker/internal/share"
)

// StopRegistry is the stop-management surface the admin routes call into.
type StopRegistry interface {
	AddStop(ctx context.Context, routeID string, kind model.StopKind, name string, lat, lng float64) (model.Stop, error)
	Reorder(ctx context.Context, stopAID, stopBID string) error
	Remove(ctx context.Context, stopID string) error
	ListForDirection(ctx context.Context, routeID string, tripType model.TripType) ([]model.Stop, error)
}

type TripCatalog interface {
	CreateBatch(ctx context.Context, routeID string, tripType model.TripType, dates []time.Time, meetingTime, departureTime string, stopOverrides []model.Waypoint) ([]model.Trip, error)
	Get(ctx context.Context, tripID string) (model.Trip, error)
	Cancel(ctx context.Context, tripID string) error
	Delete(ctx context.Context, tripID string) error
}

type AssignmentLedger interface {
	AssignDriverToRoute(ctx context.Context, driverID, routeID string) error
	AssignDriverToTrip(ctx context.Context, driverID, tripID string) error
	UnassignDriverFromRoute(ctx context.Context, driverID, routeID string) error
	UnassignDriverFromTrip(ctx context.Context, driverID, tripID string) error
	TripsFor(ctx context.Context, driverID string, onOrAfter time.Time) ([]model.Trip, error)
}

type LiveService interface {
	GoOnline(ctx context.Context, driverID string, first *live.Sample) (*live.Session, error)
	GoOffline(ctx context.Context, sess *live.Session) error
	Session(driverID string) (*live.Session, bool)
}

// PositionFeed receives coordinates reported by driver apps; the live
// service consumes them through its per-driver sources.
type PositionFeed interface {
	Push(driverID string, s live.Sample)
}

type PathRenderer interface {
	BuildPath(ctx context.Context, trip model.Trip) (render.Path, error)
}

type ShareService interface {
	Issue(ctx context.Context, bookingID string) (model.ShareToken, error)
	Revoke(ctx context.Context, token string) error
	Resolve(ctx context.Context, token string) (share.Snapshot, error)
}

type Health interface {
	Ping(ctx context.Context) error
}

// Server holds the HTTP surface. It maps requests onto the domain services
// and domain sentinels onto status codes; no business logic lives here.
type Server struct {
	stops    StopRegistry
	trips    TripCatalog
	assign   AssignmentLedger
	live     LiveService
	feed     PositionFeed
	renderer PathRenderer
	share    ShareService
	health   Health

	jwtSecret []byte
	loc       *time.Location
}

func NewServer(stops StopRegistry, trips TripCatalog, assign AssignmentLedger, liveSvc LiveService, feed PositionFeed, renderer PathRenderer, shareSvc ShareService, health Health, jwtSecret []byte, loc *time.Location) *Server {
	if loc == nil {
		loc = time.Local
	}
	return &Server{
		stops:     stops,
		trips:     trips,
		assign:    assign,
		live:      liveSvc,
		feed:      feed,
		renderer:  renderer,
		share:     shareSvc,
		health:    health,
		jwtSecret: jwtSecret,
		loc:       loc,
	}
}

// Router builds the gin engine. The share endpoint is the only anonymous
// read surface; everything else sits behind the bearer token.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	r.GET("/healthz", s.healthz)
	r.GET("/share/:token", s.resolveShare)

	auth := r.Group("/", Auth(s.jwtSecret))

	driver := auth.Group("/driver")
	driver.POST("/online", s.goOnline)
	driver.POST("/offline", s.goOffline)
	driver.POST("/position", s.reportPosition)
	driver.GET("/trips", s.driverTrips)

	admin := auth.Group("/", RequireRole("admin"))
	admin.POST("/routes/:id/stops", s.addStop)
	admin.GET("/routes/:id/stops", s.listStops)
	admin.POST("/stops/reorder", s.reorderStops)
	admin.DELETE("/stops/:id", s.removeStop)

	admin.POST("/trips/batch", s.createTrips)
	admin.POST("/trips/:id/cancel", s.cancelTrip)
	admin.DELETE("/trips/:id", s.deleteTrip)
	admin.GET("/trips/:id/path", s.tripPath)

	admin.POST("/routes/:id/drivers", s.assignRouteDriver)
	admin.DELETE("/routes/:id/drivers/:driverID", s.unassignRouteDriver)
	admin.POST("/trips/:id/drivers", s.assignTripDriver)
	admin.DELETE("/trips/:id/drivers/:driverID", s.unassignTripDriver)

	admin.POST("/bookings/:id/share", s.issueShare)
	admin.DELETE("/share/:token", s.revokeShare)

	return r
}
