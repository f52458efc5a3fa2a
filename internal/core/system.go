// Package core composes the drone components behind one command surface.
// Every public operation recovers its own errors: failures end up in the
// diagnostic log and the operational log, and the caller sees a no-op or
// a nil result.
package core

import (
	"context"
	"errors"
	"image"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"drone-facade/internal/config"
	"drone-facade/internal/connection"
	"drone-facade/internal/diaglog"
	"drone-facade/internal/frame"
	"drone-facade/internal/hardware"
	"drone-facade/internal/link"
	"drone-facade/internal/link/mavlink"
	"drone-facade/internal/logger"
	"drone-facade/internal/messaging"
	"drone-facade/internal/metrics"
	"drone-facade/internal/movement"
	"drone-facade/internal/types"
)

type Drone struct {
	cfg     *config.Config
	logger  *logger.Logger
	diag    *diaglog.Sink
	conn    *connection.Manager
	tracker *movement.Tracker
	leds    *hardware.LedController
	decoder *frame.Decoder
	metrics *metrics.Metrics
	redis   MessagingClient
	console io.Writer

	ctx       context.Context
	cancel    context.CancelFunc
	group     *errgroup.Group
	closeOnce sync.Once
}

type Option func(*Drone)

func WithLogger(l *logger.Logger) Option {
	return func(d *Drone) { d.logger = l }
}

// WithMessaging uses m as state publisher and command bridge, regardless
// of the Redis settings.
func WithMessaging(m MessagingClient) Option {
	return func(d *Drone) { d.redis = m }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Drone) { d.metrics = m }
}

// WithConsole sets where mirrored diagnostic entries go. Defaults to stdout.
func WithConsole(w io.Writer) Option {
	return func(d *Drone) { d.console = w }
}

// NewDrone wires the components and starts the movement tracker. A nil
// cfg means config.Default(); a nil dial uses the MAVLink link.
func NewDrone(cfg *config.Config, dial link.Dialer, opts ...Option) *Drone {
	if cfg == nil {
		cfg = config.Default()
	}
	d := &Drone{cfg: cfg}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logger.NewConsole(cfg.Level())
	}
	if d.metrics == nil {
		d.metrics = metrics.New()
	}
	if dial == nil {
		dial = mavlink.NewDialer(cfg.MavlinkConfig(), d.logger)
	}

	d.diag = diaglog.New(diaglog.Options{
		Path:          cfg.LogPath,
		Console:       cfg.Logging,
		ConsoleWriter: d.console,
		QueueSize:     cfg.DiagQueueSize,
		OnDrop:        d.metrics.DiagDropped.Inc,
	}, d.logger)

	d.conn = connection.NewManager(dial, d.diag, d.logger, diaglog.MsgDisconnected)
	d.conn.OnStateChange = d.onStateChange

	d.tracker = movement.NewTracker(d.conn, cfg.PollInterval(), d.logger)
	d.tracker.OnChange = d.onMovementChange

	d.leds = hardware.NewLedController(d.conn, d.diag, d.logger)
	d.decoder = &frame.Decoder{
		Observe: func(dur time.Duration) { d.metrics.DecodeSeconds.Observe(dur.Seconds()) },
	}

	d.startMessaging()
	d.metrics.SetConnected(false)

	var gctx context.Context
	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.group, gctx = errgroup.WithContext(d.ctx)
	d.group.Go(func() error { return d.tracker.Run(gctx) })

	if cfg.AutoConnect {
		d.Connect(d.ctx)
	}
	return d
}

func (d *Drone) startMessaging() {
	if d.redis == nil && d.cfg.Redis.Enabled {
		d.redis = messaging.NewRedisClient(d.cfg.Redis.Addr, d.logger, messaging.Callbacks{})
	}
	if d.redis == nil {
		return
	}

	d.redis.SetCallbacks(d.callbacks())
	if err := d.redis.Connect(); err != nil {
		d.logger.Warnf("Continuing without Redis: %v", err)
		d.redis.Close()
		d.redis = nil
		return
	}
	if err := d.redis.StartListening(); err != nil {
		d.logger.Warnf("Failed to start Redis listeners: %v", err)
	}
	if err := d.redis.PublishDroneState(types.StateDisconnected); err != nil {
		d.logger.Debugf("Initial state not published: %v", err)
	}
}

// Connect dials the drone unless already connected and returns the
// resulting state. A failed attempt is logged; call Connect again to retry.
func (d *Drone) Connect(ctx context.Context) types.ConnectionState {
	state := d.conn.Connect(ctx)
	if state == types.StateConnected {
		d.metrics.Command("connect", metrics.ResultOK)
	} else {
		d.metrics.Command("connect", metrics.ResultError)
	}
	return state
}

func (d *Drone) State() types.ConnectionState {
	return d.conn.State()
}

func (d *Drone) Arm() {
	d.command("arm", link.Link.Arm)
}

func (d *Drone) Disarm() {
	d.command("disarm", link.Link.Disarm)
}

func (d *Drone) Takeoff() {
	d.command("takeoff", link.Link.Takeoff)
}

func (d *Drone) Land() {
	d.command("land", link.Link.Land)
}

// GoToPoint marks a movement as requested and sends target to the drone.
// IsMoving holds until the drone reports arrival.
func (d *Drone) GoToPoint(target types.Target) {
	d.goToPoint(target)
}

func (d *Drone) goToPoint(target types.Target) error {
	err := d.tracker.Request(func() error {
		return d.conn.Do(func(l link.Link) error { return l.GoToPoint(target) })
	})
	d.record("goto", err)
	if err == nil && d.redis != nil {
		if perr := d.redis.PublishTarget(target); perr != nil {
			d.logger.Debugf("Target not published: %v", perr)
		}
	}
	return err
}

// SetLed sets one LED, or all of them for index 255.
func (d *Drone) SetLed(index int, color types.Color) {
	d.record("led", d.leds.SetLed(index, color))
}

// SetLeds sets LEDs 0, 1 and 2 from the first three colors.
func (d *Drone) SetLeds(colors []types.Color) {
	d.record("leds", d.leds.SetLeds(colors))
}

// LedColors returns the last color applied to each LED.
func (d *Drone) LedColors() [hardware.LedCount]types.Color {
	return d.leds.Colors()
}

// GetCameraFrameBytes returns one encoded camera image, or nil when the
// drone is not connected or refuses the request.
func (d *Drone) GetCameraFrameBytes() []byte {
	var raw []byte
	err := d.conn.Do(func(l link.Link) error {
		var err error
		raw, err = l.GetRawVideoFrame()
		return err
	})
	if err == nil && len(raw) == 0 {
		err = types.ErrTransportDenied
	}
	if err != nil {
		if !errors.Is(err, types.ErrNotConnected) {
			d.diag.Log(diaglog.MsgFrameDenied...)
		}
		d.record("frame", err)
		return nil
	}
	d.record("frame", nil)
	return raw
}

// GetCameraFrameArray returns the current camera image decoded, or nil
// when there is no frame or it cannot be decoded.
func (d *Drone) GetCameraFrameArray() *image.RGBA {
	raw := d.GetCameraFrameBytes()
	if raw == nil {
		return nil
	}
	img, err := d.decoder.Decode(raw)
	if err != nil {
		d.logger.Warnf("Camera frame decode failed: %v", err)
		d.diag.Log(diaglog.MsgFrameUndecodable...)
		return nil
	}
	return img
}

// IsMoving reports whether a requested movement has not yet been
// reported complete by the drone.
func (d *Drone) IsMoving() bool {
	return d.tracker.Moving()
}

func (d *Drone) Movement() types.MovementSnapshot {
	return d.tracker.Snapshot()
}

func (d *Drone) Metrics() *metrics.Metrics {
	return d.metrics
}

// Close stops the tracker, releases the link and the Redis bridge, and
// flushes the diagnostic log. Calls after the first do nothing.
func (d *Drone) Close() {
	d.closeOnce.Do(func() {
		d.cancel()
		if err := d.group.Wait(); err != nil {
			d.logger.Warnf("Tracker stopped with error: %v", err)
		}
		if err := d.conn.Close(); err != nil {
			d.logger.Warnf("Failed to close link: %v", err)
		}
		if d.redis != nil {
			if err := d.redis.Close(); err != nil {
				d.logger.Warnf("Failed to close Redis: %v", err)
			}
		}
		d.diag.Close()
		d.logger.Sync()
	})
}

func (d *Drone) command(name string, fn func(link.Link) error) error {
	err := d.conn.Do(fn)
	d.record(name, err)
	return err
}

// record counts the outcome of a command and logs failures. Invalid LED
// input is already in the diagnostic log by the time it gets here.
func (d *Drone) record(name string, err error) {
	switch {
	case err == nil:
		d.metrics.Command(name, metrics.ResultOK)
	case errors.Is(err, types.ErrNotConnected):
		d.logger.Warnf("%s ignored: drone not connected", name)
		d.diag.Log(diaglog.MsgDisconnected...)
		d.metrics.Command(name, metrics.ResultNotConnected)
	case errors.Is(err, types.ErrInvalidLedIndex), errors.Is(err, types.ErrInvalidLedColor):
		d.metrics.Command(name, metrics.ResultInvalid)
	case errors.Is(err, types.ErrTransportDenied):
		d.logger.Warnf("%s refused by drone: %v", name, err)
		d.metrics.Command(name, metrics.ResultDenied)
	default:
		d.logger.Errorf("%s failed: %v", name, err)
		d.metrics.Command(name, metrics.ResultError)
	}
}

func (d *Drone) onStateChange(state types.ConnectionState) {
	d.metrics.SetConnected(state == types.StateConnected)
	if d.redis == nil {
		return
	}
	if err := d.redis.PublishDroneState(state); err != nil {
		d.logger.Debugf("State not published: %v", err)
	}
}

func (d *Drone) onMovementChange(snap types.MovementSnapshot) {
	if d.redis == nil {
		return
	}
	if err := d.redis.PublishMovement(snap); err != nil {
		d.logger.Debugf("Movement not published: %v", err)
	}
}
