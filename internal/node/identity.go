package node

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/mysnode/internal/identity"
	"github.com/nerrad567/mysnode/internal/infrastructure/logging"
	"github.com/nerrad567/mysnode/internal/metrics"
	"github.com/nerrad567/mysnode/internal/mysensors"
)

// IdentityState is the progress of node id negotiation.
type IdentityState int

// Identity states.
const (
	IdentityUnknown IdentityState = iota
	IdentityRequestSent
	IdentityAssigned
)

// String returns the state name used in logs.
func (s IdentityState) String() string {
	switch s {
	case IdentityUnknown:
		return "unknown"
	case IdentityRequestSent:
		return "request_sent"
	case IdentityAssigned:
		return "assigned"
	default:
		return fmt.Sprintf("identity_state_%d", int(s))
	}
}

// storeTimeout bounds a Save issued from the message delivery goroutine.
const storeTimeout = 5 * time.Second

// NegotiatorConfig holds the collaborators of a Negotiator.
type NegotiatorConfig struct {
	Transport  Transport
	Dispatcher *Dispatcher
	Store      identity.Store
	Topics     mysensors.Topics
	Logger     *logging.Logger
	Metrics    *metrics.Metrics

	// Timeout is the wait for an id response before the request is re-sent.
	Timeout time.Duration

	// Attempts is the number of id requests sent before giving up.
	Attempts int
}

// Negotiator obtains a node id from the controller.
//
// The persisted id is loaded on first use. When it is unassigned the
// negotiator subscribes to the broadcast namespace, publishes an id request
// and waits for the controller's id response, which arrives on the
// transport's delivery goroutine.
type Negotiator struct {
	transport  Transport
	dispatcher *Dispatcher
	store      identity.Store
	topics     mysensors.Topics
	logger     *logging.Logger
	metrics    *metrics.Metrics
	timeout    time.Duration
	attempts   int

	mu        sync.Mutex
	loaded    bool
	state     IdentityState
	nodeID    uint8
	assigned  chan struct{} // closed by handleIDResponse
	broadcast bool          // broadcast pattern is subscribed
}

// NewNegotiator returns a negotiator that has not yet read the store.
func NewNegotiator(cfg NegotiatorConfig) *Negotiator {
	return &Negotiator{
		transport:  cfg.Transport,
		dispatcher: cfg.Dispatcher,
		store:      cfg.Store,
		topics:     cfg.Topics,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		timeout:    cfg.Timeout,
		attempts:   cfg.Attempts,
		state:      IdentityUnknown,
		nodeID:     identity.Unassigned,
	}
}

// load reads the persisted identity once.
func (n *Negotiator) load(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.loaded {
		return nil
	}

	id, err := n.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading node identity: %w", err)
	}

	n.loaded = true
	n.nodeID = id.NodeID
	if id.Known() {
		n.state = IdentityAssigned
		n.metrics.SetNodeID(id.NodeID)
		n.logger.Info("using persisted node id", "node_id", id.NodeID)
	}
	return nil
}

// Negotiate returns the node id, asking the controller for one when none is
// known.
//
// Each request waits up to the configured timeout and is re-sent up to the
// configured number of attempts. When every attempt expires it returns
// ErrIdentityTimeout and the negotiator stays in IdentityRequestSent, so a
// late response is still honoured and a later call returns immediately.
func (n *Negotiator) Negotiate(ctx context.Context) (uint8, error) {
	if err := n.load(ctx); err != nil {
		return 0, err
	}

	n.mu.Lock()
	if n.state == IdentityAssigned {
		id := n.nodeID
		n.mu.Unlock()
		n.dropBroadcast()
		return id, nil
	}
	n.mu.Unlock()

	responses := n.topics.Inbound(
		mysensors.UnassignedNodeID, mysensors.NodeChildID,
		mysensors.CommandInternal, uint8(mysensors.InternalIDResponse), false,
	).Filter(mysensors.FieldSensor)
	if err := n.dispatcher.Register(responses, RouteIDResponse, n.handleIDResponse); err != nil {
		return 0, fmt.Errorf("registering id response route: %w", err)
	}
	if err := n.transport.Subscribe(n.topics.Broadcast()); err != nil {
		return 0, fmt.Errorf("subscribing to broadcast: %w", err)
	}

	n.mu.Lock()
	n.broadcast = true
	if n.state == IdentityUnknown {
		n.state = IdentityRequestSent
		n.assigned = make(chan struct{})
	}
	assigned := n.assigned
	n.mu.Unlock()

	request := n.topics.Outbound(
		mysensors.UnassignedNodeID, mysensors.NodeChildID,
		mysensors.CommandInternal, uint8(mysensors.InternalIDRequest), false,
	).String()

	for attempt := 1; attempt <= n.attempts; attempt++ {
		// A response may have landed while the previous call timed out.
		select {
		case <-assigned:
			n.dropBroadcast()
			return n.NodeID(), nil
		default:
		}

		if err := n.transport.Publish(request, nil); err != nil {
			return 0, fmt.Errorf("publishing id request: %w", err)
		}
		n.metrics.IdentityRequested()
		n.logger.Info("requested node id", "attempt", attempt, "topic", request)

		timer := time.NewTimer(n.timeout)
		select {
		case <-assigned:
			timer.Stop()
			n.dropBroadcast()
			return n.NodeID(), nil
		case <-ctx.Done():
			timer.Stop()
			return 0, fmt.Errorf("waiting for node id: %w", ctx.Err())
		case <-timer.C:
			n.metrics.IdentityTimedOut()
			n.logger.Warn("no id response from controller",
				"attempt", attempt,
				"timeout", n.timeout,
			)
		}
	}

	return 0, fmt.Errorf("%w after %d attempts", ErrIdentityTimeout, n.attempts)
}

// handleIDResponse assigns the node id carried by an id response.
func (n *Negotiator) handleIDResponse(msg mysensors.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state != IdentityRequestSent {
		n.logger.Debug("ignoring id response", "state", n.state.String(), "payload", string(msg.Payload))
		return nil
	}

	id, err := mysensors.ParseNodeID(msg.Payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := n.store.Save(ctx, identity.Identity{NodeID: id}); err != nil {
		n.logger.Error("failed to persist node id", "node_id", id, "error", err)
	}

	n.nodeID = id
	n.state = IdentityAssigned
	close(n.assigned)
	n.metrics.SetNodeID(id)
	n.logger.Info("node id assigned by controller", "node_id", id)
	return nil
}

// dropBroadcast unsubscribes the broadcast pattern if it is still active.
func (n *Negotiator) dropBroadcast() {
	n.mu.Lock()
	active := n.broadcast
	n.broadcast = false
	n.mu.Unlock()

	if !active {
		return
	}
	if err := n.transport.Unsubscribe(n.topics.Broadcast()); err != nil {
		n.logger.Warn("failed to unsubscribe broadcast", "error", err)
	}
}

// Reset forgets the node id and persists the unassigned value. The next
// Negotiate asks the controller again.
func (n *Negotiator) Reset(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state == IdentityRequestSent {
		return fmt.Errorf("%w: id request in flight", ErrInvalidState)
	}

	if err := n.store.Save(ctx, identity.Identity{NodeID: identity.Unassigned}); err != nil {
		return fmt.Errorf("resetting node identity: %w", err)
	}

	n.loaded = true
	n.state = IdentityUnknown
	n.nodeID = identity.Unassigned
	n.assigned = nil
	n.metrics.SetNodeID(identity.Unassigned)
	n.logger.Info("node id reset")
	return nil
}

// State returns the current negotiation state.
func (n *Negotiator) State() IdentityState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// NodeID returns the node id, or 255 while unassigned.
func (n *Negotiator) NodeID() uint8 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.nodeID
}
