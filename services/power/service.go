package power

import (
	"context"
	"sync/atomic"

	"powercode-go/bus"
	"powercode-go/x/logx"
)

// Bus topics served and published by Service.
var (
	// TopicSleep requests one sleep cycle. Payload is ignored.
	TopicSleep = bus.Topic{"power", "request", "sleep"}
	// TopicBatteryEmpty requests the battery-empty shutdown loop.
	TopicBatteryEmpty = bus.Topic{"power", "request", "battery_empty"}
	// TopicState carries a retained StateEvent on every transition.
	TopicState = bus.Topic{"power", "state"}
)

// StateEvent is the TopicState payload.
type StateEvent struct {
	State State
	Stats Stats
}

// FaultSource is the PMIC driver's deferred-work side.
type FaultSource interface {
	Pending() <-chan struct{}
	Service()
}

// Service is the main loop around an Orchestrator. Requests from driver
// events or other services arrive as bus messages and are run here.
type Service struct {
	orch   *Orchestrator
	faults FaultSource
	conn   *bus.Connection
	sleep  *bus.Subscription
	empty  *bus.Subscription
	queued uint32 // atomic; a RequestSleep is in flight
}

// NewService subscribes to the request topics on conn and publishes the
// orchestrator's state there from now on. A nil conn gets a private bus.
func NewService(o *Orchestrator, faults FaultSource, conn *bus.Connection) *Service {
	if conn == nil {
		conn = bus.NewBus(4).NewConnection("power")
	}
	s := &Service{
		orch:   o,
		faults: faults,
		conn:   conn,
		sleep:  conn.Subscribe(TopicSleep),
		empty:  conn.Subscribe(TopicBatteryEmpty),
	}
	o.onState = s.publishState
	s.publishState(o.State())
	return s
}

func (s *Service) Orchestrator() *Orchestrator { return s.orch }

// RequestSleep queues a sleep cycle. It never blocks; a request already
// queued through this method absorbs this one.
func (s *Service) RequestSleep() bool {
	if !atomic.CompareAndSwapUint32(&s.queued, 0, 1) {
		return false
	}
	s.conn.Publish(s.conn.NewMessage(TopicSleep, nil, false))
	return true
}

// SignalBatteryEmpty queues the shutdown loop. It takes precedence over a
// pending sleep request.
func (s *Service) SignalBatteryEmpty() {
	s.conn.Publish(s.conn.NewMessage(TopicBatteryEmpty, nil, false))
}

func (s *Service) publishState(st State) {
	s.conn.Publish(s.conn.NewMessage(TopicState, StateEvent{State: st, Stats: s.orch.stats}, true))
}

// Run performs power-on reset and then serves until ctx is done. It returns
// nil after a battery-empty restart that returned (simulated hosts).
func (s *Service) Run(ctx context.Context) error {
	s.orch.PowerOnReset()
	var pending <-chan struct{}
	if s.faults != nil {
		pending = s.faults.Pending()
	}
	for {
		select {
		case <-s.empty.Channel():
			s.orch.BatteryEmpty()
			return nil
		default:
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-pending:
			s.faults.Service()
		case <-s.empty.Channel():
			s.orch.BatteryEmpty()
			return nil
		case <-s.sleep.Channel():
			s.runSleep()
		}
	}
}

// Step runs at most one queued item without blocking and reports whether it
// did anything. Console and tests use it instead of Run.
func (s *Service) Step() bool {
	select {
	case <-s.empty.Channel():
		s.orch.BatteryEmpty()
		return true
	default:
	}
	var pending <-chan struct{}
	if s.faults != nil {
		pending = s.faults.Pending()
	}
	select {
	case <-pending:
		s.faults.Service()
	case <-s.sleep.Channel():
		s.runSleep()
	default:
		return false
	}
	return true
}

// runSleep clears the in-flight mark first, so a request raised during the
// cycle (a fault found at wake) queues the next one.
func (s *Service) runSleep() {
	atomic.StoreUint32(&s.queued, 0)
	if err := s.orch.Sleep(); err != nil {
		logx.Warn(tag, "sleep cycle", "err", err)
	}
}
