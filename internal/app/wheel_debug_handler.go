// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/wheel_arbiter/internal/config"
	"github.com/relabs-tech/wheel_arbiter/internal/wheel"
)

// controllerLiveWindow is how recent a telemetry message must be for the
// debug tool to assume the controller is driving the wheel too.
const controllerLiveWindow = 2 * time.Second

// WheelDebugSession holds WebSocket connection state for wheel debugging
type WheelDebugSession struct {
	Conn *websocket.Conn
	link *wheel.Link
}

// Response types
type WheelDebugResponse struct {
	Type      string `json:"type"` // "state", "error", "warning"
	Action    string `json:"action,omitempty"`
	Mode      string `json:"mode,omitempty"`
	Level     uint8  `json:"level"`
	Available bool   `json:"available"`
	Report    string `json:"report,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Message   string `json:"message,omitempty"`
}

// parseReport reads a report written as hex bytes, e.g. "f8 12 1f" or
// "0xf8,0x12,0x1f". Missing trailing bytes are zero.
func parseReport(s string) (wheel.Report, error) {
	var r wheel.Report
	fields := strings.FieldsFunc(s, func(c rune) bool { return c == ' ' || c == ',' })
	if len(fields) == 0 {
		return r, errors.New("empty report")
	}
	if len(fields) > wheel.ReportSize {
		return r, fmt.Errorf("report has %d bytes, max %d", len(fields), wheel.ReportSize)
	}
	for i, f := range fields {
		v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(f), "0x"), 16, 8)
		if err != nil {
			return r, fmt.Errorf("invalid byte %q", f)
		}
		r[i] = byte(v)
	}
	return r, nil
}

func formatReport(r wheel.Report) string {
	parts := make([]string, len(r))
	for i, b := range r {
		parts[i] = fmt.Sprintf("%02x", b)
	}
	return strings.Join(parts, " ")
}

func numberField(rawMsg map[string]interface{}, key string) (float64, bool) {
	v, ok := rawMsg[key].(float64)
	return v, ok
}

// apply runs one debug action on the link.
func (s *WheelDebugSession) apply(action string, rawMsg map[string]interface{}) (string, error) {
	switch action {
	case "range":
		deg, ok := numberField(rawMsg, "degrees")
		if !ok || deg < 40 || deg > 900 {
			return "", errors.New("degrees must be between 40 and 900")
		}
		s.link.SetRange(uint16(deg))
	case "leds":
		on, _ := rawMsg["on"].(bool)
		s.link.SetLEDs(on)
	case "autocenter":
		on, _ := rawMsg["on"].(bool)
		s.link.SetAutocenter(on)
	case "friction", "constant_force":
		level, ok := numberField(rawMsg, "level")
		if !ok || level < 0 || level > 255 {
			return "", errors.New("level must be between 0 and 255")
		}
		if action == "friction" {
			s.link.SetFriction(uint8(level))
		} else {
			s.link.SetConstantForce(uint8(level))
		}
	case "force":
		v, ok := numberField(rawMsg, "value")
		if !ok {
			return "", errors.New("missing value field")
		}
		s.link.SetForce(v)
	case "steer_left", "steer_right":
		v, ok := numberField(rawMsg, "force")
		if !ok {
			return "", errors.New("missing force field")
		}
		if action == "steer_left" {
			s.link.SteerLeft(v)
		} else {
			s.link.SteerRight(v)
		}
	case "disable_force":
		s.link.DisableForce()
	case "vibrate":
		s.link.Vibrate()
	case "vibrate_on":
		s.link.VibrateOn()
	case "vibrate_off":
		s.link.VibrateOff()
	case "reset":
		s.link.Reset()
	case "raw":
		str, _ := rawMsg["report"].(string)
		r, err := parseReport(str)
		if err != nil {
			return "", err
		}
		s.link.WriteRaw(r)
		return formatReport(r), nil
	case "state":
	default:
		return "", fmt.Errorf("unknown action: %s", action)
	}
	return "", nil
}

func (s *WheelDebugSession) state(action, report string) WheelDebugResponse {
	mode, level := s.link.Mode()
	return WheelDebugResponse{
		Type:      "state",
		Action:    action,
		Mode:      mode.String(),
		Level:     level,
		Available: s.link.Available(),
		Report:    report,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

func (s *WheelDebugSession) sendError(message string) {
	s.Conn.WriteJSON(WheelDebugResponse{Type: "error", Message: message})
}

// wheelDebugHandler serves the debug WebSocket. live reports whether a
// controller is currently publishing telemetry.
func wheelDebugHandler(link *wheel.Link, live func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("wheel_debug: websocket upgrade error: %v", err)
			return
		}
		defer conn.Close()

		session := &WheelDebugSession{Conn: conn, link: link}
		if live != nil && live() {
			conn.WriteJSON(WheelDebugResponse{
				Type:    "warning",
				Message: "controller is running, its force feedback will overwrite these reports",
			})
		}
		if err := conn.WriteJSON(session.state("state", "")); err != nil {
			return
		}

		// Message loop
		for {
			var rawMsg map[string]interface{}
			if err := conn.ReadJSON(&rawMsg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("wheel_debug: websocket error: %v", err)
				}
				return
			}

			action, ok := rawMsg["action"].(string)
			if !ok {
				session.sendError("missing or invalid action field")
				continue
			}
			report, err := session.apply(action, rawMsg)
			if err != nil {
				session.sendError(err.Error())
				continue
			}
			if err := conn.WriteJSON(session.state(action, report)); err != nil {
				return
			}
		}
	}
}

// RunWheelDebug opens the wheel directly and serves the debug page on the
// port after the web dashboard's.
func RunWheelDebug(ctx context.Context) error {
	cfg := config.Get()
	if cfg == nil {
		return errNoConfig
	}

	t, err := wheel.Open(wheelOptions(cfg.Wheel))
	if err != nil {
		return fmt.Errorf("open wheel: %w", err)
	}
	link := wheel.NewLink(t)
	defer link.Close()
	link.SetRange(cfg.Wheel.Range)

	// Telemetry is optional here; it only feeds the conflict warning.
	cache := &statusCache{}
	live := func() bool {
		st, seq := cache.get()
		return seq > 0 && time.Since(st.Time) < controllerLiveWindow
	}
	if client, err := connectMQTT(cfg.MQTT.Broker, cfg.MQTT.ClientIDDebug); err != nil {
		log.Printf("wheel_debug: %v", err)
	} else {
		defer client.Disconnect(250)
		if err := subscribe(client, cfg.Topics.Telemetry, 0, cache.handler); err != nil {
			log.Printf("wheel_debug: %v", err)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wheelDebugHandler(link, live))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, filepath.Join(cfg.Web.StaticDir, "wheel_debug.html"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Web.Port+1), Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("wheel debug tool listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	link.Reset()
	return nil
}
