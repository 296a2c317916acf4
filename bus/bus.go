// Package bus is an in-process topic bus. Services publish payloads on
// hierarchical topics; subscribers receive them on buffered channels.
//
// A subscription topic may use "+" for exactly one level and "#" as its last
// element for any remainder, including none. Retained messages are kept per
// topic and replayed to new matching subscribers; publishing a retained
// message with a nil payload clears it.
package bus

import (
	"strings"
	"sync"
	"sync/atomic"
)

// Wildcards.
const (
	Single = "+"
	Multi  = "#"
)

// Topic is a sequence of levels, e.g. Topic{"power", "state"}.
type Topic []string

func (t Topic) String() string { return strings.Join(t, "/") }

func (t Topic) wild() bool {
	for _, s := range t {
		if s == Single || s == Multi {
			return true
		}
	}
	return false
}

type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
}

// -----------------------------------------------------------------------------
// Subscription
// -----------------------------------------------------------------------------

type Subscription struct {
	topic Topic
	ch    chan *Message
	conn  *Connection
}

func (s *Subscription) Topic() Topic             { return s.topic }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.conn.Unsubscribe(s) }

// -----------------------------------------------------------------------------
// Trie node
// -----------------------------------------------------------------------------

type node struct {
	children map[string]*node
	subs     []*Subscription
	retained *Message
}

func (n *node) child(level string, create bool) *node {
	if c, ok := n.children[level]; ok || !create {
		return c
	}
	if n.children == nil {
		n.children = make(map[string]*node)
	}
	c := &node{}
	n.children[level] = c
	return c
}

// -----------------------------------------------------------------------------
// Bus
// -----------------------------------------------------------------------------

type Bus struct {
	mu    sync.Mutex
	root  *node
	qLen  int
	drops uint32 // atomic
}

// NewBus creates a bus whose subscriptions buffer queueLen messages.
func NewBus(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 8
	}
	return &Bus{root: &node{}, qLen: queueLen}
}

func (b *Bus) NewMessage(topic Topic, payload any, retained bool) *Message {
	return &Message{Topic: topic, Payload: payload, Retained: retained}
}

// Dropped counts messages discarded because a subscriber fell behind.
func (b *Bus) Dropped() uint32 { return atomic.LoadUint32(&b.drops) }

// Publish delivers msg to every matching subscriber. It never blocks: a full
// queue loses its oldest message. Topics containing wildcards are ignored.
func (b *Bus) Publish(msg *Message) {
	if msg == nil || len(msg.Topic) == 0 || msg.Topic.wild() {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	var subs []*Subscription
	collect(b.root, msg.Topic, &subs)
	for _, sub := range subs {
		b.deliver(sub, msg)
	}

	if !msg.Retained {
		return
	}
	n := b.root
	for _, level := range msg.Topic {
		if n = n.child(level, msg.Payload != nil); n == nil {
			return
		}
	}
	if msg.Payload == nil {
		n.retained = nil
		b.prune(msg.Topic)
	} else {
		n.retained = msg
	}
}

func (b *Bus) deliver(sub *Subscription, msg *Message) {
	select {
	case sub.ch <- msg:
		return
	default:
	}
	select {
	case <-sub.ch:
		atomic.AddUint32(&b.drops, 1)
	default:
	}
	select {
	case sub.ch <- msg:
	default:
		atomic.AddUint32(&b.drops, 1)
	}
}

// collect appends the subscriptions under n whose filters match topic.
func collect(n *node, topic Topic, out *[]*Subscription) {
	if m := n.children[Multi]; m != nil {
		*out = append(*out, m.subs...)
	}
	if len(topic) == 0 {
		*out = append(*out, n.subs...)
		return
	}
	if c := n.children[topic[0]]; c != nil {
		collect(c, topic[1:], out)
	}
	if c := n.children[Single]; c != nil {
		collect(c, topic[1:], out)
	}
}

// retainedFor appends the retained messages under n that filter matches.
func retainedFor(n *node, filter Topic, out *[]*Message) {
	if len(filter) == 0 {
		if n.retained != nil {
			*out = append(*out, n.retained)
		}
		return
	}
	switch filter[0] {
	case Multi:
		allRetained(n, out)
	case Single:
		for _, c := range n.children {
			retainedFor(c, filter[1:], out)
		}
	default:
		if c := n.children[filter[0]]; c != nil {
			retainedFor(c, filter[1:], out)
		}
	}
}

func allRetained(n *node, out *[]*Message) {
	if n.retained != nil {
		*out = append(*out, n.retained)
	}
	for _, c := range n.children {
		allRetained(c, out)
	}
}

func (b *Bus) addSubscription(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	for _, level := range sub.topic {
		n = n.child(level, true)
	}
	n.subs = append(n.subs, sub)

	var retained []*Message
	retainedFor(b.root, sub.topic, &retained)
	for _, m := range retained {
		b.deliver(sub, m)
	}
}

// removeSubscription reports whether sub was still attached.
func (b *Bus) removeSubscription(sub *Subscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	for _, level := range sub.topic {
		if n = n.child(level, false); n == nil {
			return false
		}
	}
	for i, s := range n.subs {
		if s == sub {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			b.prune(sub.topic)
			return true
		}
	}
	return false
}

// prune drops empty nodes along topic, deepest first. Caller holds mu.
func (b *Bus) prune(topic Topic) {
	path := make([]*node, 0, len(topic)+1)
	n := b.root
	path = append(path, n)
	for _, level := range topic {
		if n = n.child(level, false); n == nil {
			return
		}
		path = append(path, n)
	}
	for i := len(topic) - 1; i >= 0; i-- {
		c := path[i+1]
		if len(c.subs) != 0 || len(c.children) != 0 || c.retained != nil {
			return
		}
		delete(path[i].children, topic[i])
	}
}

// -----------------------------------------------------------------------------
// Connection
// -----------------------------------------------------------------------------

// Connection groups the subscriptions of one service so they can be dropped
// together.
type Connection struct {
	bus  *Bus
	id   string
	mu   sync.Mutex
	subs []*Subscription
}

func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{bus: b, id: id}
}

func (c *Connection) ID() string { return c.id }
func (c *Connection) Bus() *Bus  { return c.bus }

func (c *Connection) NewMessage(topic Topic, payload any, retained bool) *Message {
	return c.bus.NewMessage(topic, payload, retained)
}

func (c *Connection) Publish(msg *Message) { c.bus.Publish(msg) }

// Subscribe registers a subscription owned by this connection. Matching
// retained messages are queued before it returns.
func (c *Connection) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{
		topic: append(Topic(nil), topic...),
		ch:    make(chan *Message, c.bus.qLen),
		conn:  c,
	}
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	c.bus.addSubscription(sub)
	return sub
}

// Unsubscribe detaches sub and closes its channel. A second call is a no-op.
func (c *Connection) Unsubscribe(sub *Subscription) {
	c.mu.Lock()
	found := false
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			found = true
			break
		}
	}
	c.mu.Unlock()
	if found && c.bus.removeSubscription(sub) {
		close(sub.ch)
	}
}

// Disconnect closes every subscription of c.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		if c.bus.removeSubscription(sub) {
			close(sub.ch)
		}
	}
}
