package messaging

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"drone-facade/internal/logger"
	"drone-facade/internal/types"

	"github.com/redis/go-redis/v9"
)

const (
	stateHash    = "drone"
	stateChannel = "drone"

	commandList = "drone:command"
	ledList     = "drone:led"
	gotoList    = "drone:goto"

	popTimeout   = 5 * time.Second
	closeTimeout = 5 * time.Second
)

type Callbacks struct {
	CommandCallback func(string) error // "arm", "disarm", "takeoff", "land", "connect"
	LedCallback     func(int, types.Color) error
	GotoCallback    func(types.Target) error
}

type RedisClient struct {
	client    *redis.Client
	callbacks Callbacks
	logger    *logger.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewRedisClient(addr string, l *logger.Logger, callbacks Callbacks) *RedisClient {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisClient{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   0,
		}),
		callbacks: callbacks,
		logger:    l.WithTag("redis"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (r *RedisClient) SetCallbacks(callbacks Callbacks) {
	r.callbacks = callbacks
}

func (r *RedisClient) Connect() error {
	r.logger.Infof("Attempting to connect to Redis at %s", r.client.Options().Addr)

	if err := r.client.Ping(r.ctx).Err(); err != nil {
		r.logger.Warnf("Redis connection failed: %v", err)
		return fmt.Errorf("redis connection failed: %w", err)
	}
	r.logger.Infof("Successfully connected to Redis")
	return nil
}

// StartListening starts the list command listeners
func (r *RedisClient) StartListening() error {
	r.logger.Infof("Starting Redis listeners")

	r.wg.Add(3)
	go r.listCommandListener(commandList, r.handleCommand)
	go r.listCommandListener(ledList, r.handleLedCommand)
	go r.listCommandListener(gotoList, r.handleGotoCommand)

	return nil
}

func (r *RedisClient) listCommandListener(key string, handler func(string) error) {
	defer r.wg.Done()
	r.logger.Infof("Starting list command listener for %s", key)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Infof("Context cancelled, exiting %s listener", key)
			return
		default:
			// Short BRPOP timeout so cancellation is noticed
			result, err := r.client.BRPop(r.ctx, popTimeout, key).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				if errors.Is(err, context.Canceled) {
					r.logger.Infof("Context cancelled, exiting %s listener", key)
					return
				}
				r.logger.Warnf("Error reading from %s list: %v", key, err)
				select {
				case <-r.ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}

			if len(result) >= 2 { // BRPOP returns [key, value]
				value := result[1]
				r.logger.Debugf("Received command from %s: %s", key, value)
				if err := handler(value); err != nil {
					r.logger.Warnf("Error handling %s command: %v", key, err)
				}
			}
		}
	}
}

func (r *RedisClient) handleCommand(value string) error {
	if r.callbacks.CommandCallback == nil {
		return nil
	}
	switch value {
	case "arm", "disarm", "takeoff", "land", "connect":
		return r.callbacks.CommandCallback(value)
	default:
		return fmt.Errorf("invalid drone command: %s", value)
	}
}

func (r *RedisClient) handleLedCommand(value string) error {
	if r.callbacks.LedCallback == nil {
		return nil
	}
	index, color, err := ParseLedCommand(value)
	if err != nil {
		return err
	}
	return r.callbacks.LedCallback(index, color)
}

func (r *RedisClient) handleGotoCommand(value string) error {
	if r.callbacks.GotoCallback == nil {
		return nil
	}
	target, err := ParseGotoCommand(value)
	if err != nil {
		return err
	}
	return r.callbacks.GotoCallback(target)
}

// ParseLedCommand parses "index:r:g:b". Range checks are left to the LED
// controller so rejected values still reach the diagnostic log.
func ParseLedCommand(value string) (int, types.Color, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 4 {
		return 0, types.Color{}, fmt.Errorf("invalid LED command %q, expected 'index:r:g:b'", value)
	}
	index, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, types.Color{}, fmt.Errorf("invalid LED index in %q: %w", value, err)
	}
	var rgb [3]float64
	for i, p := range parts[1:] {
		rgb[i], err = strconv.ParseFloat(p, 64)
		if err != nil {
			return 0, types.Color{}, fmt.Errorf("invalid LED channel in %q: %w", value, err)
		}
	}
	return index, types.Color{R: rgb[0], G: rgb[1], B: rgb[2]}, nil
}

// ParseGotoCommand parses "x:y:z". An empty component is left unset.
func ParseGotoCommand(value string) (types.Target, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return types.Target{}, fmt.Errorf("invalid goto command %q, expected 'x:y:z'", value)
	}
	var coords [3]*float32
	for i, p := range parts {
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 32)
		if err != nil {
			return types.Target{}, fmt.Errorf("invalid coordinate in %q: %w", value, err)
		}
		coords[i] = types.Float(float32(v))
	}
	return types.Target{X: coords[0], Y: coords[1], Z: coords[2]}, nil
}

// FormatTarget renders the position part of t the way ParseGotoCommand reads it.
func FormatTarget(t types.Target) string {
	f := func(v *float32) string {
		if v == nil {
			return ""
		}
		return strconv.FormatFloat(float64(*v), 'f', -1, 32)
	}
	return f(t.X) + ":" + f(t.Y) + ":" + f(t.Z)
}

// publishHashSet atomically updates a hash field and publishes a notification
func (r *RedisClient) publishHashSet(hash, field string, value interface{}, channel, payload string) error {
	pipe := r.client.Pipeline()
	pipe.HSet(r.ctx, hash, field, value)
	pipe.Publish(r.ctx, channel, payload)
	_, err := pipe.Exec(r.ctx)
	return err
}

func (r *RedisClient) PublishDroneState(state types.ConnectionState) error {
	r.logger.Infof("Publishing drone state: %s", state)
	timestamp := time.Now().Format(time.RFC3339)

	pipe := r.client.Pipeline()
	pipe.HSet(r.ctx, stateHash, "state", string(state))
	pipe.HSet(r.ctx, stateHash, "state:timestamp", timestamp)
	pipe.Publish(r.ctx, stateChannel, "state")
	_, err := pipe.Exec(r.ctx)

	if err != nil {
		r.logger.Warnf("Failed to publish drone state: %v", err)
		return err
	}
	r.logger.Debugf("Successfully published drone state with timestamp: %s", timestamp)
	return nil
}

func (r *RedisClient) PublishMovement(snapshot types.MovementSnapshot) error {
	value := "false"
	if snapshot.Moving() {
		value = "true"
	}
	if err := r.publishHashSet(stateHash, "moving", value, stateChannel, "moving"); err != nil {
		r.logger.Warnf("Failed to publish movement: %v", err)
		return err
	}
	return nil
}

func (r *RedisClient) PublishTarget(target types.Target) error {
	if err := r.publishHashSet(stateHash, "target", FormatTarget(target), stateChannel, "target"); err != nil {
		r.logger.Warnf("Failed to publish target: %v", err)
		return err
	}
	return nil
}

func (r *RedisClient) Close() error {
	r.logger.Infof("Closing Redis client")
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Infof("All Redis goroutines finished")
	case <-time.After(closeTimeout):
		r.logger.Warnf("Timeout waiting for Redis goroutines to finish")
	}

	return r.client.Close()
}
