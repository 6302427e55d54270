package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/wheel_arbiter/internal/config"
	"github.com/relabs-tech/wheel_arbiter/internal/telemetry"
)

// formatStatus renders one telemetry line for the console.
func formatStatus(s telemetry.Status) string {
	mode := "MANUAL"
	if s.Autopilot {
		mode = "AUTO"
	}
	line := fmt.Sprintf(
		"[%-6s] %-11s steer=%+5.2f thr=%4.2f brk=%4.2f gear=%+d  lat=%-5v lon=%-5v  ff=%s/%4.2f  %5.1fkm/h  interventions=%d",
		mode, s.State,
		s.Command.Steer, s.Command.Throttle, s.Command.Brake, s.Command.Gear,
		s.Flags.Lateral, s.Flags.Longitudinal,
		s.Force.Direction, s.Force.Force,
		s.SpeedKmh, s.Interventions,
	)
	if !s.WheelAvailable {
		line += "  [no wheel]"
	}
	if s.Notification != "" {
		line += "  ! " + s.Notification
	}
	return line
}

func printStatus(w io.Writer) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		s, err := telemetry.Decode(msg.Payload())
		if err != nil {
			log.Printf("console: %v", err)
			return
		}
		fmt.Fprintln(w, formatStatus(s))
	}
}

// RunConsoleMQTT prints controller telemetry until ctx is cancelled.
func RunConsoleMQTT(ctx context.Context) error {
	cfg := config.Get()
	if cfg == nil {
		return errNoConfig
	}

	client, err := connectMQTT(cfg.MQTT.Broker, cfg.MQTT.ClientIDConsole)
	if err != nil {
		return err
	}
	if err := subscribe(client, cfg.Topics.Telemetry, 0, printStatus(os.Stdout)); err != nil {
		client.Disconnect(250)
		return err
	}

	<-ctx.Done()

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
