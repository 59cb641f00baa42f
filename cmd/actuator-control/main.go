// Command actuator-control cycles a two-relay linear actuator and exposes an
// HTTP API to start, stop and retime it. Lifecycle events go to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sweeney/actuator-control/internal/actuator"
	"github.com/sweeney/actuator-control/internal/config"
	"github.com/sweeney/actuator-control/internal/cycle"
	"github.com/sweeney/actuator-control/internal/gpio"
	"github.com/sweeney/actuator-control/internal/logic"
	"github.com/sweeney/actuator-control/internal/mqtt"
	"github.com/sweeney/actuator-control/internal/status"
	"github.com/sweeney/actuator-control/internal/web"
)

func main() {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg config.Config) error {
	// Request both lines already at the Stop levels.
	stop := logic.Encode(logic.Stop)
	out, err := gpio.NewRealOutput(cfg.Chip, cfg.PinA, cfg.PinB, stop.A, stop.B, cfg.ActiveLow)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer func() {
		if err := out.Close(); err != nil {
			log.Printf("gpio cleanup: %v", err)
		}
	}()

	driver := actuator.NewDriver(out)
	if err := driver.Apply(logic.Stop); err != nil {
		return fmt.Errorf("initial stop: %w", err)
	}

	publisher := mqtt.NewRealPublisher(cfg.Broker, cfg.ClientID)
	defer publisher.Close()

	tracker := status.NewTracker(time.Now(), cfg.Display())
	if net := config.ReadNetwork(); net != nil {
		tracker.SetNetwork(net)
	}

	// Declared after the publisher so it drains before the client disconnects.
	events := mqtt.NewQueue(publisher, mqtt.EventQueueSize)
	defer events.Close()

	ctl, err := cycle.New(driver, cfg.Timing(), cycle.WithNotify(notifier(events, publisher, tracker)))
	if err != nil {
		return fmt.Errorf("init controller: %w", err)
	}
	tracker.Update(false, cfg.Wait, 0, "")

	publishSnapshot(publisher, tracker.Snapshot(), time.Now(), mqtt.Startup, "")

	if cfg.AutoStart {
		if err := ctl.Start(); err != nil {
			log.Printf("auto-start: %v", err)
		}
	}

	log.Printf("started: pins=%d/%d active_low=%v extend=%v retract=%v wait=%v broker=%s heartbeat=%v",
		cfg.PinA, cfg.PinB, cfg.ActiveLow, cfg.Extend, cfg.Retract, cfg.Wait, cfg.Broker, cfg.Heartbeat)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var tick <-chan time.Time
	if cfg.Heartbeat > 0 {
		ticker := time.NewTicker(cfg.Heartbeat)
		defer ticker.Stop()
		tick = ticker.C
	}

	g, ctx := errgroup.WithContext(context.Background())

	var srv *web.Server
	if cfg.HTTPAddr != "" {
		srv = web.New(cfg.HTTPAddr, ctl, tracker)
		g.Go(func() error {
			log.Printf("http server listening on %s", cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		err := runLoop(ctx, ctl, publisher, publisher, tracker, shutdownTimeout(cfg.Timing()), time.Now, tick, sigCh)
		if srv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}
		return err
	})

	return g.Wait()
}

// notifier fans controller events out to the log, the tracker and MQTT.
// publisher must not block: it runs on the cycle loop and in command handlers.
func notifier(publisher mqtt.EventPublisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker) func(logic.Event) {
	return func(e logic.Event) {
		log.Printf("event: %s (running=%v wait=%v cycle=%d)", e.Type, e.Running, e.CycleWait, e.Cycle)
		tracker.Record(e)
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
		if err := publisher.Publish(e); err != nil {
			log.Printf("publish error: %v", err)
			// Don't fail the controller on publish failure
		}
	}
}

// shutdownTimeout covers the longest motion hold so a loop caught mid-hold
// can write its final Stop before the outputs are released.
func shutdownTimeout(t cycle.Timing) time.Duration {
	longest := t.InitialRetract
	for _, d := range []time.Duration{t.Extend, t.Retract} {
		if d > longest {
			longest = d
		}
	}
	return longest + time.Second
}

// runLoop serves heartbeats until a signal arrives or ctx is cancelled, then
// forces the actuator to Stop and publishes SHUTDOWN.
func runLoop(ctx context.Context, ctl *cycle.Controller, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, stopTimeout time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			reason := "UNKNOWN"
			switch s {
			case syscall.SIGINT:
				reason = "SIGINT"
			case syscall.SIGTERM:
				reason = "SIGTERM"
			}
			shutdown(ctl, publisher, mqttStatus, tracker, stopTimeout, now, reason)
			return nil

		case <-ctx.Done():
			log.Printf("shutting down: %v", context.Cause(ctx))
			shutdown(ctl, publisher, mqttStatus, tracker, stopTimeout, now, "ERROR")
			return nil

		case <-tick:
			refresh(ctl, mqttStatus, tracker)
			if net := config.ReadNetwork(); net != nil {
				tracker.SetNetwork(net)
			}
			snap := tracker.Snapshot()
			log.Printf("heartbeat: uptime=%v running=%v cycles=%d faults=%d",
				snap.Uptime().Truncate(time.Second), snap.Running, snap.Cycles, snap.Counts.Faults)
			publishSnapshot(publisher, snap, now(), mqtt.Heartbeat, "")
		}
	}
}

func shutdown(ctl *cycle.Controller, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, stopTimeout time.Duration, now func() time.Time, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := ctl.Shutdown(ctx); err != nil {
		log.Printf("controller shutdown: %v", err)
	}
	refresh(ctl, mqttStatus, tracker)
	publishSnapshot(publisher, tracker.Snapshot(), now(), mqtt.Shutdown, reason)
}

// refresh copies the controller and broker state into the tracker.
func refresh(ctl *cycle.Controller, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker) {
	st := ctl.Status()
	tracker.Update(st.Running, st.CycleWait, st.Cycles, st.LastFault)
	if mqttStatus != nil {
		tracker.SetMQTTConnected(mqttStatus.IsConnected())
	}
}

// publishSnapshot sends a lifecycle message carrying the full status document.
func publishSnapshot(publisher mqtt.Publisher, snap status.Snapshot, at time.Time, kind mqtt.SystemKind, reason string) {
	msg := mqtt.SystemMessage{
		Time:     at,
		Kind:     kind,
		Reason:   reason,
		Snapshot: status.FormatStatusEvent(snap, string(kind), reason),
	}
	if err := publisher.PublishSystem(msg); err != nil {
		log.Printf("publish %s: %v", kind, err)
		return
	}
	if kind != mqtt.Heartbeat {
		log.Printf("published %s", kind)
	}
}
