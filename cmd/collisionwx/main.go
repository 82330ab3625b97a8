package main

import (
	"context"
	"database/sql"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/yycdata/collisionwx/internal/api"
	"github.com/yycdata/collisionwx/internal/cityweather"
	"github.com/yycdata/collisionwx/internal/ingest"
	"github.com/yycdata/collisionwx/internal/store"
)

type cli struct {
	DB       string `help:"Path to the SQLite database." default:"data/collisionwx.db" env:"COLLISIONWX_DB"`
	Timezone string `help:"IANA timezone for incident timestamps." default:"America/Edmonton" env:"COLLISIONWX_TZ"`

	Serve            serveCmd            `cmd:"" help:"Run the HTTP API."`
	LoadWeather      loadWeatherCmd      `cmd:"" name:"load-weather" help:"Ingest Environment Canada daily climate CSVs."`
	LoadCollisions   loadCollisionsCmd   `cmd:"" name:"load-collisions" help:"Ingest city traffic incident CSVs."`
	BuildCityWeather buildCityWeatherCmd `cmd:"" name:"build-city-weather" help:"Rebuild the derived city daily weather rows."`
}

// app carries the opened store into the subcommand Run methods.
type app struct {
	store *store.Store
}

type serveCmd struct {
	Addr string `help:"Listen address." default:":8080" env:"COLLISIONWX_ADDR"`
}

func (c *serveCmd) Run(a *app) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return api.NewServer(a.store, c.Addr).Run(ctx)
}

type loadWeatherCmd struct {
	Dir          string  `arg:"" optional:"" help:"Directory of weather CSVs." default:"data/weather"`
	WetThreshold float64 `help:"Precipitation (mm) at or above which a day is wet." default:"0.2" env:"COLLISIONWX_WET_THRESHOLD"`
	Trace        float64 `help:"Numeric value for trace (T) readings." default:"0"`
}

func (c *loadWeatherCmd) Run(a *app) error {
	loader := ingest.NewWeatherLoader(a.store)
	loader.WetThresholdMM = c.WetThreshold
	loader.TraceAmount = c.Trace
	_, err := loader.LoadDir(c.Dir)
	return err
}

type loadCollisionsCmd struct {
	Dir string `arg:"" optional:"" help:"Directory of collision CSVs." default:"data/collisions"`
}

func (c *loadCollisionsCmd) Run(a *app) error {
	loader := ingest.NewCollisionLoader(a.store, a.store.Location())
	_, err := loader.LoadDir(c.Dir)
	return err
}

type buildCityWeatherCmd struct {
	WetThreshold float64 `help:"Precipitation (mm) at or above which the city day is wet." default:"0.2" env:"COLLISIONWX_WET_THRESHOLD"`
}

func (c *buildCityWeatherCmd) Run(a *app) error {
	agg := cityweather.New(a.store)
	agg.WetThresholdMM = c.WetThreshold
	_, err := agg.Run()
	return err
}

func main() {
	var flags cli
	ktx := kong.Parse(&flags,
		kong.Name("collisionwx"),
		kong.Description("Calgary traffic collision and weather ingestion and query service."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)

	db, err := sql.Open("sqlite", flags.DB)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")
	db.Exec("PRAGMA foreign_keys=ON")

	loc, err := time.LoadLocation(flags.Timezone)
	if err != nil {
		log.Fatalf("load timezone %s: %v", flags.Timezone, err)
	}

	st := store.New(db, loc)
	if err := st.Migrate(); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	ktx.FatalIfErrorf(ktx.Run(&app{store: st}))
}
