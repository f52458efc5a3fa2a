// Package mavlink implements link.Link over MAVLink/UDP, as spoken by
// Pioneer-class drones, with camera frames read from a TCP stream.
package mavlink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bluenviron/gomavlib/v3"
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v3/pkg/message"

	"drone-facade/internal/link"
	"drone-facade/internal/logger"
	"drone-facade/internal/types"
)

const (
	DefaultAddress          = "192.168.4.1:8001"
	DefaultCameraAddress    = "192.168.4.1:8888"
	DefaultHeartbeatTimeout = 3 * time.Second
	DefaultAckTimeout       = time.Second
	DefaultLinkTimeout      = 5 * time.Second
	DefaultSystemID         = 255

	takeoffAltitude = 1.0 // meters, used when the autopilot needs one
)

type Config struct {
	Address       string
	CameraAddress string

	// HeartbeatTimeout bounds the wait for the vehicle's first heartbeat.
	HeartbeatTimeout time.Duration

	// AckTimeout bounds the wait for a COMMAND_ACK. A missing ack is not
	// treated as a refusal.
	AckTimeout time.Duration

	// LinkTimeout is the heartbeat silence after which the link is lost.
	LinkTimeout time.Duration

	SystemID byte
}

func (c *Config) setDefaults() {
	if c.Address == "" {
		c.Address = DefaultAddress
	}
	if c.CameraAddress == "" {
		c.CameraAddress = DefaultCameraAddress
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = DefaultHeartbeatTimeout
	}
	if c.AckTimeout <= 0 {
		c.AckTimeout = DefaultAckTimeout
	}
	if c.LinkTimeout <= 0 {
		c.LinkTimeout = DefaultLinkTimeout
	}
	if c.SystemID == 0 {
		c.SystemID = DefaultSystemID
	}
}

type Link struct {
	cfg    Config
	node   *gomavlib.Node
	write  func(message.Message)
	camera *Camera
	logger *logger.Logger
	boot   time.Time

	mu              sync.Mutex
	targetSystem    uint8
	targetComponent uint8
	lastHeartbeat   time.Time
	reached         bool
	lost            bool
	acks            map[common.MAV_CMD]chan common.MAV_RESULT

	// COMMAND_ACK only names the command, so at most one command of each
	// kind is in flight.
	cmdLocks map[common.MAV_CMD]*sync.Mutex

	heartbeat     chan struct{}
	heartbeatOnce sync.Once
	done          chan struct{}
	wg            sync.WaitGroup
	closeOnce     sync.Once
}

var _ link.Link = (*Link)(nil)

// NewDialer returns a link.Dialer that opens a MAVLink link with cfg.
func NewDialer(cfg Config, l *logger.Logger) link.Dialer {
	return func(ctx context.Context) (link.Link, error) {
		return Dial(ctx, cfg, l)
	}
}

// Dial opens the UDP endpoint and waits for the vehicle's first heartbeat.
func Dial(ctx context.Context, cfg Config, l *logger.Logger) (*Link, error) {
	cfg.setDefaults()

	node, err := gomavlib.NewNode(gomavlib.NodeConf{
		Endpoints: []gomavlib.EndpointConf{
			gomavlib.EndpointUDPClient{Address: cfg.Address},
		},
		Dialect:     common.Dialect,
		OutVersion:  gomavlib.V2,
		OutSystemID: cfg.SystemID,
	})
	if err != nil {
		return nil, fmt.Errorf("mavlink node: %w", err)
	}

	lk := &Link{
		cfg:       cfg,
		node:      node,
		camera:    NewCamera(cfg.CameraAddress, cfg.HeartbeatTimeout),
		logger:    l.WithTag("mavlink"),
		boot:      time.Now(),
		acks:      make(map[common.MAV_CMD]chan common.MAV_RESULT),
		cmdLocks:  make(map[common.MAV_CMD]*sync.Mutex),
		heartbeat: make(chan struct{}),
		done:      make(chan struct{}),
	}
	lk.write = func(msg message.Message) { node.WriteMessageAll(msg) }

	lk.wg.Add(1)
	go lk.readEvents()

	timer := time.NewTimer(cfg.HeartbeatTimeout)
	defer timer.Stop()

	select {
	case <-lk.heartbeat:
		lk.logger.Infof("Vehicle heartbeat from system %d component %d", lk.targetSystem, lk.targetComponent)
		return lk, nil
	case <-timer.C:
		lk.Close()
		return nil, fmt.Errorf("no heartbeat from %s within %v", cfg.Address, cfg.HeartbeatTimeout)
	case <-ctx.Done():
		lk.Close()
		return nil, ctx.Err()
	}
}

func (lk *Link) readEvents() {
	defer lk.wg.Done()

	watchdog := time.NewTicker(lk.cfg.LinkTimeout / 2)
	defer watchdog.Stop()

	for {
		select {
		case <-lk.done:
			return
		case <-watchdog.C:
			lk.checkHeartbeat()
		case evt, ok := <-lk.node.Events():
			if !ok {
				return
			}
			if frm, ok := evt.(*gomavlib.EventFrame); ok {
				lk.handleMessage(frm)
			}
		}
	}
}

func (lk *Link) handleMessage(frm *gomavlib.EventFrame) {
	lk.mu.Lock()
	defer lk.mu.Unlock()

	switch msg := frm.Message().(type) {
	case *common.MessageHeartbeat:
		if lk.targetSystem == 0 {
			lk.targetSystem = frm.SystemID()
			lk.targetComponent = frm.ComponentID()
		}
		if frm.SystemID() == lk.targetSystem {
			lk.lastHeartbeat = time.Now()
			lk.heartbeatOnce.Do(func() { close(lk.heartbeat) })
		}

	case *common.MessageMissionItemReached:
		lk.reached = true

	case *common.MessageCommandAck:
		if ch, ok := lk.acks[msg.Command]; ok {
			delete(lk.acks, msg.Command)
			ch <- msg.Result
		}
	}
}

func (lk *Link) checkHeartbeat() {
	lk.mu.Lock()
	defer lk.mu.Unlock()
	if lk.lost || lk.lastHeartbeat.IsZero() {
		return
	}
	if time.Since(lk.lastHeartbeat) > lk.cfg.LinkTimeout {
		lk.lost = true
		lk.logger.Warnf("No heartbeat for %v, link lost", lk.cfg.LinkTimeout)
	}
}

func (lk *Link) Arm() error {
	return lk.command(common.MAV_CMD_COMPONENT_ARM_DISARM, 1, 0, 0, 0)
}

func (lk *Link) Disarm() error {
	return lk.command(common.MAV_CMD_COMPONENT_ARM_DISARM, 0, 0, 0, 0)
}

func (lk *Link) Takeoff() error {
	return lk.command(common.MAV_CMD_NAV_TAKEOFF, 0, 0, 0, 0, takeoffAltitude)
}

func (lk *Link) Land() error {
	return lk.command(common.MAV_CMD_NAV_LAND, 0, 0, 0, 0)
}

// LedControl uses the autopilot's user command: param1 is the LED index,
// params 2..4 the red, green and blue intensities.
func (lk *Link) LedControl(index int, r, g, b float64) error {
	return lk.command(common.MAV_CMD_USER_1, float32(index), float32(r), float32(g), float32(b))
}

// GoToPoint sends a local NED setpoint. Unset target fields are masked so
// the autopilot ignores them.
func (lk *Link) GoToPoint(target types.Target) error {
	lk.mu.Lock()
	if lk.lost {
		lk.mu.Unlock()
		return fmt.Errorf("go to point: %w", types.ErrLinkLost)
	}
	lk.reached = false
	sys, comp := lk.targetSystem, lk.targetComponent
	lk.mu.Unlock()

	lk.write(&common.MessageSetPositionTargetLocalNed{
		TimeBootMs:      uint32(time.Since(lk.boot).Milliseconds()),
		TargetSystem:    sys,
		TargetComponent: comp,
		CoordinateFrame: common.MAV_FRAME_LOCAL_NED,
		TypeMask:        typeMask(target),
		X:               value(target.X),
		Y:               value(target.Y),
		Z:               value(target.Z),
		Vx:              value(target.VX),
		Vy:              value(target.VY),
		Vz:              value(target.VZ),
		Afx:             value(target.AX),
		Afy:             value(target.AY),
		Afz:             value(target.AZ),
		Yaw:             value(target.Angle),
	})
	return nil
}

func (lk *Link) GetRawVideoFrame() ([]byte, error) {
	if lk.isLost() {
		return nil, fmt.Errorf("camera frame: %w", types.ErrLinkLost)
	}
	return lk.camera.Frame()
}

func (lk *Link) PointReached() bool {
	lk.mu.Lock()
	defer lk.mu.Unlock()
	return lk.reached
}

func (lk *Link) Close() error {
	var err error
	lk.closeOnce.Do(func() {
		close(lk.done)
		lk.node.Close()
		lk.wg.Wait()
		err = lk.camera.Close()
	})
	return err
}

func (lk *Link) isLost() bool {
	lk.mu.Lock()
	defer lk.mu.Unlock()
	return lk.lost
}

// command sends COMMAND_LONG and waits for its ack. A rejecting ack is a
// refusal; silence is not.
func (lk *Link) command(cmd common.MAV_CMD, params ...float32) error {
	var p [7]float32
	copy(p[:], params)

	cmdLock := lk.commandLock(cmd)
	cmdLock.Lock()
	defer cmdLock.Unlock()

	ack := make(chan common.MAV_RESULT, 1)

	lk.mu.Lock()
	if lk.lost {
		lk.mu.Unlock()
		return fmt.Errorf("command %v: %w", cmd, types.ErrLinkLost)
	}
	lk.acks[cmd] = ack
	sys, comp := lk.targetSystem, lk.targetComponent
	lk.mu.Unlock()

	lk.write(&common.MessageCommandLong{
		TargetSystem:    sys,
		TargetComponent: comp,
		Command:         cmd,
		Param1:          p[0],
		Param2:          p[1],
		Param3:          p[2],
		Param4:          p[3],
		Param5:          p[4],
		Param6:          p[5],
		Param7:          p[6],
	})

	timer := time.NewTimer(lk.cfg.AckTimeout)
	defer timer.Stop()

	select {
	case result := <-ack:
		if result != common.MAV_RESULT_ACCEPTED && result != common.MAV_RESULT_IN_PROGRESS {
			return fmt.Errorf("command %v: %w: result %v", cmd, types.ErrTransportDenied, result)
		}
		return nil
	case <-timer.C:
		lk.mu.Lock()
		if lk.acks[cmd] == ack {
			delete(lk.acks, cmd)
		}
		lk.mu.Unlock()
		lk.logger.Debugf("No ack for command %v", cmd)
		return nil
	case <-lk.done:
		return fmt.Errorf("command %v: %w", cmd, types.ErrLinkLost)
	}
}

func (lk *Link) commandLock(cmd common.MAV_CMD) *sync.Mutex {
	lk.mu.Lock()
	defer lk.mu.Unlock()
	m, ok := lk.cmdLocks[cmd]
	if !ok {
		m = &sync.Mutex{}
		lk.cmdLocks[cmd] = m
	}
	return m
}

func typeMask(t types.Target) common.POSITION_TARGET_TYPEMASK {
	mask := common.POSITION_TARGET_TYPEMASK_YAW_RATE_IGNORE
	ignore := func(v *float32, bit common.POSITION_TARGET_TYPEMASK) {
		if v == nil {
			mask |= bit
		}
	}
	ignore(t.X, common.POSITION_TARGET_TYPEMASK_X_IGNORE)
	ignore(t.Y, common.POSITION_TARGET_TYPEMASK_Y_IGNORE)
	ignore(t.Z, common.POSITION_TARGET_TYPEMASK_Z_IGNORE)
	ignore(t.VX, common.POSITION_TARGET_TYPEMASK_VX_IGNORE)
	ignore(t.VY, common.POSITION_TARGET_TYPEMASK_VY_IGNORE)
	ignore(t.VZ, common.POSITION_TARGET_TYPEMASK_VZ_IGNORE)
	ignore(t.AX, common.POSITION_TARGET_TYPEMASK_AX_IGNORE)
	ignore(t.AY, common.POSITION_TARGET_TYPEMASK_AY_IGNORE)
	ignore(t.AZ, common.POSITION_TARGET_TYPEMASK_AZ_IGNORE)
	ignore(t.Angle, common.POSITION_TARGET_TYPEMASK_YAW_IGNORE)
	return mask
}

func value(v *float32) float32 {
	if v == nil {
		return 0
	}
	return *v
}
