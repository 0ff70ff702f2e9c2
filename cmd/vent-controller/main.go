// Command vent-controller opens and closes the tunnel house vent windows
// from temperature readings and publishes state changes to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/vent-controller/internal/config"
	"github.com/sweeney/vent-controller/internal/measure"
	"github.com/sweeney/vent-controller/internal/motor"
	"github.com/sweeney/vent-controller/internal/mqtt"
	"github.com/sweeney/vent-controller/internal/remote"
	"github.com/sweeney/vent-controller/internal/status"
	"github.com/sweeney/vent-controller/internal/uptime"
	"github.com/sweeney/vent-controller/internal/web"
	"github.com/sweeney/vent-controller/internal/window"
)

// commandQueue bounds the manual commands waiting for the run loop.
const commandQueue = 8

func main() {
	cfgPath := flag.String("config", "/etc/vent-controller.yaml", "Config file (missing file uses defaults)")
	poll := flag.Duration("poll", 0, "Sensor polling interval (overrides config)")
	broker := flag.String("broker", "", `MQTT broker address (overrides config, "off" disables)`)
	httpAddr := flag.String("http", "", `HTTP status address (overrides config, "off" disables)`)
	logLevel := flag.String("log-level", "", "Log level (overrides config)")
	printState := flag.Bool("print-state", false, "Print current sensor readings and exit")

	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "poll":
			cfg.Poll = *poll
		case "broker":
			cfg.MQTT.Broker = offToEmpty(*broker)
		case "http":
			cfg.HTTP.Addr = offToEmpty(*httpAddr)
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})

	if err := run(cfg, *cfgPath, *printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func offToEmpty(s string) string {
	if s == "off" {
		return ""
	}
	return s
}

func run(cfg config.Config, cfgPath string, printState bool) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	log.SetLevel(level)
	for _, w := range cfg.Warnings() {
		log.Warn(w)
	}

	policy, err := window.ParseCancelPolicy(cfg.Window.CancelFromAuto)
	if err != nil {
		return err
	}
	store := config.NewStore(cfg, cfgPath)
	bank := measure.NewBank(store, sensorsFor(cfg.Sensors))

	// Print state mode
	if printState {
		for range window.Axes {
			if err := bank.Poll(0); err != nil {
				log.WithError(err).Warn("sensor read failed")
			}
		}
		for _, r := range bank.Readings() {
			temp := "--"
			if r.Valid {
				temp = fmt.Sprintf("%.1f", r.Now)
			}
			fmt.Printf("%s: %s (open %.1f, close %.1f)\n", r.Axis, temp, r.Open, r.Close)
		}
		return nil
	}

	driver, err := motor.New(cfg.Motor)
	if err != nil {
		return fmt.Errorf("init motor: %w", err)
	}
	defer driver.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clock := uptime.NewCounter(100 * time.Millisecond)
	go clock.Run(ctx)

	sup := window.New(window.Deps{
		Table:    window.NewTable(policy),
		Motor:    driver,
		Limits:   bank,
		Currents: bank,
		Clock:    clock,
		Settings: store,
		OnMotorError: func(a window.Axis, d window.Direction, err error) {
			log.WithFields(log.Fields{"axis": a, "direction": d}).WithError(err).Error("motor command failed")
		},
	})

	commands := make(chan remote.Command, commandQueue)
	enqueue := func(cmd remote.Command) {
		select {
		case commands <- cmd:
		default:
			log.WithField("axis", cmd.Axis).Warn("command queue full, dropping request")
		}
	}

	// Initialize MQTT
	var publisher mqtt.Publisher = mqtt.Disabled
	var mqttStatus mqtt.ConnectionStatus
	if cfg.MQTT.Broker != "" {
		p, err := mqtt.NewRealPublisher(mqtt.Config{Broker: cfg.MQTT.Broker, ClientID: cfg.MQTT.ClientID}, enqueue)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		publisher, mqttStatus = p, p
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:         cfg.Poll.Milliseconds(),
		HeartbeatMs:    cfg.Heartbeat.Milliseconds(),
		RunSeconds:     int64(cfg.Window.RunDuration.Seconds()),
		LockoutSeconds: int64(cfg.Window.LockoutDuration.Seconds()),
		StallLow:       cfg.Window.StallCutoff.Low,
		StallHigh:      cfg.Window.StallCutoff.High,
		CancelPolicy:   string(policy),
		MotorType:      cfg.Motor.Type,
		Broker:         cfg.MQTT.Broker,
		HTTPAddr:       cfg.HTTP.Addr,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.WithError(err).Warn("failed to publish startup event")
	}

	var pusher statusPusher
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, commands)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		pusher = srv
		log.WithField("addr", cfg.HTTP.Addr).Info("http status server listening")
	}

	log.WithFields(log.Fields{
		"poll":      cfg.Poll,
		"broker":    cfg.MQTT.Broker,
		"heartbeat": cfg.Heartbeat,
		"motor":     cfg.Motor.Type,
		"cancel":    policy,
	}).Info("started")

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(loopDeps{
		sup:        sup,
		bank:       bank,
		store:      store,
		clock:      clock,
		publisher:  publisher,
		mqttStatus: mqttStatus,
		tracker:    tracker,
		pusher:     pusher,
		heartbeat:  cfg.Heartbeat,
		now:        time.Now,
	}, ticker.C, commands, sigCh)
}

// sensorsFor builds the sysfs readers named in the config. Empty paths
// leave the reader unset.
func sensorsFor(cfg config.SensorsConfig) measure.Sensors {
	var s measure.Sensors
	if cfg.Low != "" {
		s.Low = measure.W1Reader{Dir: cfg.Low}
	}
	if cfg.High != "" {
		s.High = measure.W1Reader{Dir: cfg.High}
	}
	if cfg.Out != "" {
		s.Out = measure.W1Reader{Dir: cfg.Out}
	}
	if cfg.CurrentLow != "" {
		s.CurrentLow = measure.IIOReader{Path: cfg.CurrentLow}
	}
	if cfg.CurrentHigh != "" {
		s.CurrentHigh = measure.IIOReader{Path: cfg.CurrentHigh}
	}
	if cfg.Supply != "" {
		s.Supply = measure.IIOReader{Path: cfg.Supply}
		s.SupplyScale = cfg.SupplyScale
	}
	return s
}

// statusPusher sends the latest status to live clients.
type statusPusher interface {
	Broadcast()
}

// loopDeps holds what runLoop works on. tracker, pusher and mqttStatus may
// be nil.
type loopDeps struct {
	sup        *window.Supervisor
	bank       *measure.Bank
	store      *config.Store
	clock      window.Clock
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	pusher     statusPusher
	heartbeat  time.Duration
	now        func() time.Time
}

func runLoop(d loopDeps, tick <-chan time.Time, commands <-chan remote.Command, sig <-chan os.Signal) error {
	lastBeat := d.now()

	for {
		select {
		case s := <-sig:
			log.WithField("signal", s).Info("shutting down")
			d.sup.StopAll()

			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: d.now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if d.tracker != nil {
				d.refresh()
				event.RawPayload = status.FormatStatusEvent(d.tracker.Snapshot(), "SHUTDOWN", signalName)
			}
			if err := d.publisher.PublishSystem(event); err != nil {
				log.WithError(err).Warn("failed to publish shutdown event")
			}
			return nil

		case cmd := <-commands:
			switch cmd.Op {
			case remote.OpLimits:
				d.applyLimits(cmd)
			case remote.OpTiming:
				d.applyTiming(cmd)
			case remote.OpStall:
				d.applyStall(cmd)
			default:
				log.WithFields(log.Fields{"axis": cmd.Axis, "op": cmd.Op}).Info("manual command")
				d.publish(remote.Apply(d.sup, cmd))
			}
			d.refresh()

		case <-tick:
			if err := d.bank.Poll(d.clock.Now()); err != nil {
				log.WithError(err).Warn("sensor read failed")
			}
			d.publish(d.sup.Tick())
			d.refresh()

			t := d.now()
			if d.heartbeat > 0 && t.Sub(lastBeat) >= d.heartbeat {
				lastBeat = t
				d.sendHeartbeat(t)
			}
		}
	}
}

func (d loopDeps) applyLimits(cmd remote.Command) {
	fields := log.Fields{"axis": cmd.Axis, "open": cmd.Open, "close": cmd.Close}
	if cmd.Close > cmd.Open {
		log.WithFields(fields).Warn("close threshold above open threshold")
	}
	d.store.SetLimit(cmd.Axis, config.Limit{Open: cmd.Open, Close: cmd.Close})
	if err := d.store.Persist(); err != nil {
		log.WithFields(fields).WithError(err).Error("failed to save limits")
		return
	}
	log.WithFields(fields).Info("limits updated")
}

// applyTiming takes effect the next time a timer is armed; running
// timers keep their expiry.
func (d loopDeps) applyTiming(cmd remote.Command) {
	d.store.SetTiming(cmd.Run, cmd.Lockout)
	fields := log.Fields{"run": d.store.RunDuration(), "lockout": d.store.LockoutDuration()}
	if err := d.store.Persist(); err != nil {
		log.WithFields(fields).WithError(err).Error("failed to save timing")
		return
	}
	log.WithFields(fields).Info("timing updated")
}

func (d loopDeps) applyStall(cmd remote.Command) {
	fields := log.Fields{"axis": cmd.Axis, "stall": cmd.Stall}
	d.store.SetStallCutoff(cmd.Axis, cmd.Stall)
	if err := d.store.Persist(); err != nil {
		log.WithFields(fields).WithError(err).Error("failed to save stall cutoff")
		return
	}
	log.WithFields(fields).Info("stall cutoff updated")
}

func (d loopDeps) publish(changes []window.Change) {
	for _, c := range changes {
		log.WithFields(log.Fields{
			"axis":   c.Axis,
			"event":  c.Event,
			"from":   c.From,
			"to":     c.To,
			"action": c.Action,
		}).Info("window change")
		if err := d.publisher.Publish(c); err != nil {
			// Don't crash on publish failure
			log.WithError(err).Warn("publish error")
		}
	}
	if d.tracker != nil {
		d.tracker.Record(changes)
	}
}

// refresh copies supervisor and sensor state into the tracker and pushes
// it to live clients.
func (d loopDeps) refresh() {
	if d.tracker == nil {
		return
	}

	now := d.clock.Now()
	var axes [window.NumAxes]status.AxisStatus
	for _, r := range d.bank.Readings() {
		a := r.Axis
		as := status.AxisStatus{Axis: a, State: d.sup.CurrentState(a), Reading: r}
		as.Motor = as.State.Direction()
		if a.Driven() {
			if expiry, armed := d.sup.Expiry(a); armed {
				as.Armed = true
				if expiry > now {
					as.Timer = expiry - now
				}
			}
		}
		axes[a] = as
	}
	d.tracker.Update(axes, d.sup.MotorErrors())
	d.tracker.SetSupply(d.bank.Supply())
	d.tracker.SetWindowSettings(d.store.RunDuration(), d.store.LockoutDuration(),
		d.store.StallCutoff(window.AxisLow), d.store.StallCutoff(window.AxisHigh))
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
	if d.pusher != nil {
		d.pusher.Broadcast()
	}
}

// backlogger is implemented by publishers that buffer while offline.
type backlogger interface {
	Backlog() (pending, dropped int)
}

func (d loopDeps) sendHeartbeat(t time.Time) {
	fields := log.Fields{"motor_errors": d.sup.MotorErrors()}
	if b, ok := d.publisher.(backlogger); ok {
		fields["mqtt_pending"], fields["mqtt_dropped"] = b.Backlog()
	}
	log.WithFields(fields).Info("heartbeat")

	hbEvent := mqtt.SystemEvent{
		Timestamp: t,
		Event:     "HEARTBEAT",
	}
	if d.tracker != nil {
		// Refresh network info for heartbeat
		if net := readNetworkInfo(); net != nil {
			d.tracker.SetNetwork(net)
		}
		hbEvent.RawPayload = status.FormatStatusEvent(d.tracker.Snapshot(), "HEARTBEAT", "")
	}
	if err := d.publisher.PublishSystem(hbEvent); err != nil {
		log.WithError(err).Warn("heartbeat publish error")
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
