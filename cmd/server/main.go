/*
main.go - Application entry point

STARTUP SEQUENCE:
  1. Load .env (if present) and parse flags/environment
  2. Open the store (SQLite file or in-memory)
  3. Wire resolver, statistics service, orchestrator
  4. Start the HTTP server and the daily day-end trigger
  5. Graceful shutdown on SIGINT/SIGTERM

CONFIGURATION (flag, env fallback):
  -port        PORT              HTTP port (default 8080)
  -db          DATABASE_PATH     SQLite path, ":memory:" for in-memory
  -country     COUNTRY_CODE      Holiday country code (default IN)
  -holiday-api HOLIDAY_API_URL   Nager-compatible base URL; empty
                                 disables the remote source and serves
                                 the static fallback dataset only
  -dayend-hour DAYEND_HOUR       Hour of the daily trigger (default 18)
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/campus/attendance-engine/api"
	"github.com/campus/attendance-engine/attendance"
	"github.com/campus/attendance-engine/calendar"
	"github.com/campus/attendance-engine/dayend"
	"github.com/campus/attendance-engine/scope"
	"github.com/campus/attendance-engine/store/sqlite"
)

func main() {
	// .env is optional; flags beat env, env beats defaults.
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DATABASE_PATH", "attendance.db"), "SQLite database path (\":memory:\" for in-memory)")
	country := flag.String("country", envStr("COUNTRY_CODE", "IN"), "holiday country code")
	holidayAPI := flag.String("holiday-api", envStr("HOLIDAY_API_URL", "https://date.nager.at/api/v3"), "holiday API base URL (empty disables)")
	dayEndHour := flag.Int("dayend-hour", envInt("DAYEND_HOUR", 18), "hour of the daily day-end trigger")
	flag.Parse()

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	var source calendar.HolidaySource
	if *holidayAPI != "" {
		source = calendar.NewHTTPHolidaySource(*holidayAPI)
	}
	cache := calendar.NewCalendarCache(calendar.DefaultTTL)
	resolver := calendar.NewResolver(source, store, cache, *country)

	stats := attendance.NewService(store, store, resolver)

	orchestrator := dayend.New(store, store, store,
		scope.NewMatcher(), resolver, logDispatcher{}, dayend.Config{})

	handler := api.NewHandler(resolver, stats, orchestrator)
	router := api.NewRouter(handler)

	scheduler := api.NewDayEndScheduler(orchestrator)
	scheduler.Hour = *dayEndHour
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server stopped")
}

// logDispatcher stands in for the external notification transport; it
// logs payloads instead of sending them. Swap in the real transport at
// the wiring site.
type logDispatcher struct{}

func (logDispatcher) Send(_ context.Context, p dayend.ReportPayload) error {
	log.Printf("[Dispatch] %s <- %s: %d group(s) for %s", p.Recipient, p.College, len(p.Groups), p.Date)
	return nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
