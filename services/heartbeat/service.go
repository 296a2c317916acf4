// Package heartbeat logs a periodic liveness line and, when configured,
// asks for sleep after a run of idle beats.
package heartbeat

import (
	"context"
	"sync/atomic"
	"time"

	"powercode-go/bus"
	"powercode-go/errcode"
	"powercode-go/services/power"
	"powercode-go/x/logx"
)

const tag = "heartbeat"

// TopicConfig carries a Config, or a map with "interval" (seconds) and
// "idle_beats", to reconfigure a running heartbeat.
var TopicConfig = bus.Topic{"config", "heartbeat"}

type Config struct {
	Interval time.Duration
	// IdleBeats is the number of consecutive beats after which sleep is
	// requested. Zero disables idle sleep.
	IdleBeats int
}

func DefaultConfig() Config {
	return Config{Interval: time.Second}
}

func (c Config) Validate() error {
	if c.Interval <= 0 {
		return &errcode.E{C: errcode.InvalidParams, Op: "heartbeat", Msg: "interval must be positive"}
	}
	if c.IdleBeats < 0 {
		return &errcode.E{C: errcode.InvalidParams, Op: "heartbeat", Msg: "idle beats must not be negative"}
	}
	return nil
}

// Service follows the retained power state from the bus and requests sleep
// over it. It is also a power-aware listener: a wake or reset restarts the
// idle count.
type Service struct {
	conn *bus.Connection
	cfg  Config

	// Owned by the service loop.
	beats  uint32
	state  power.State
	sleeps uint32

	idle   int32 // atomic
	asleep int32 // atomic bool
}

func New(conn *bus.Connection, cfg Config) *Service {
	return &Service{conn: conn, cfg: cfg}
}

func (s *Service) OnSystemPowerOnReset() { atomic.StoreInt32(&s.idle, 0) }

func (s *Service) OnSystemEnterSleep() { atomic.StoreInt32(&s.asleep, 1) }

func (s *Service) OnSystemWakeFromSleep() {
	atomic.StoreInt32(&s.idle, 0)
	atomic.StoreInt32(&s.asleep, 0)
}

// observe records a TopicState message.
func (s *Service) observe(msg *bus.Message) {
	if ev, ok := msg.Payload.(power.StateEvent); ok {
		s.state = ev.State
		s.sleeps = ev.Stats.SleepCycles
	}
}

// configure applies a TopicConfig message and reports whether the interval
// changed. Invalid configs are logged and ignored.
func (s *Service) configure(msg *bus.Message) bool {
	cfg := s.cfg
	switch p := msg.Payload.(type) {
	case Config:
		cfg = p
	case map[string]any:
		if v, ok := p["interval"].(float64); ok {
			cfg.Interval = time.Duration(v * float64(time.Second))
		}
		if v, ok := p["idle_beats"].(float64); ok {
			cfg.IdleBeats = int(v)
		}
	default:
		return false
	}
	if err := cfg.Validate(); err != nil {
		logx.Warn(tag, "config rejected", "err", err)
		return false
	}
	changed := cfg.Interval != s.cfg.Interval
	s.cfg = cfg
	logx.Info(tag, "config", "interval_ms", int(cfg.Interval/time.Millisecond), "idle_beats", cfg.IdleBeats)
	return changed
}

// Beat logs one heartbeat and returns true if it requested sleep.
func (s *Service) Beat() bool {
	s.beats++
	logx.Info(tag, "beat", "n", int(s.beats), "state", s.state, "sleeps", s.sleeps)

	if s.cfg.IdleBeats == 0 || s.state != power.Awake || atomic.LoadInt32(&s.asleep) != 0 {
		return false
	}
	if atomic.AddInt32(&s.idle, 1) < int32(s.cfg.IdleBeats) {
		return false
	}
	atomic.StoreInt32(&s.idle, 0)
	s.conn.Publish(s.conn.NewMessage(power.TopicSleep, nil, false))
	logx.Info(tag, "idle, requesting sleep", "beats", s.cfg.IdleBeats)
	return true
}

func (s *Service) serviceLoop(ctx context.Context, stateSub, cfgSub *bus.Subscription) {
	defer s.conn.Unsubscribe(stateSub)
	defer s.conn.Unsubscribe(cfgSub)

	tick := time.NewTicker(s.cfg.Interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			logx.Info(tag, "stopping")
			return
		case <-tick.C:
			s.Beat()
		case msg := <-stateSub.Channel():
			s.observe(msg)
		case msg := <-cfgSub.Channel():
			if s.configure(msg) {
				tick.Reset(s.cfg.Interval)
			}
		}
	}
}

// Start the heartbeat service. Subscriptions are in place when it returns.
func (s *Service) Start(ctx context.Context) error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	stateSub := s.conn.Subscribe(power.TopicState)
	cfgSub := s.conn.Subscribe(TopicConfig)
	go s.serviceLoop(ctx, stateSub, cfgSub)
	return nil
}
