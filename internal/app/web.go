package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/relabs-tech/wheel_arbiter/internal/config"
)

func statusHandler(cache *statusCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, seq := cache.get()
		if seq == 0 {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(st); err != nil {
			log.Printf("json encode error: %v", err)
		}
	}
}

// commandHandler accepts a LifecycleCommand as a POST body.
func commandHandler(send func(LifecycleCommand) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var cmd LifecycleCommand
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}
		if !validAction(cmd.Action) {
			http.Error(w, fmt.Sprintf("unknown action %q", cmd.Action), http.StatusBadRequest)
			return
		}
		if err := send(cmd); err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func newWebMux(cache *statusCache, send func(LifecycleCommand) error, staticDir string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", statusHandler(cache))
	mux.HandleFunc("/api/command", commandHandler(send))
	mux.HandleFunc("/ws", controlHandler(cache, send))
	mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	return mux
}

// RunWeb serves the dashboard until ctx is cancelled.
func RunWeb(ctx context.Context) error {
	cfg := config.Get()
	if cfg == nil {
		return errNoConfig
	}

	// 1) Connect to MQTT broker
	client, err := connectMQTT(cfg.MQTT.Broker, cfg.MQTT.ClientIDWeb)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	// 2) Keep the latest controller status
	cache := &statusCache{}
	if err := subscribe(client, cfg.Topics.Telemetry, 0, cache.handler); err != nil {
		return err
	}

	// 3) Commands from the browser go to the controller
	send := func(cmd LifecycleCommand) error {
		return publishCommand(client, cfg.Topics.Command, cmd)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Web.Port),
		Handler: newWebMux(cache, send, cfg.Web.StaticDir),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("web server listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
