// Package lavalink is a client for Lavalink audio playback nodes. It
// keeps one event stream connection per node, a REST control channel,
// and a per-guild player state machine that coordinates queued tracks
// with the node's asynchronous events.
package lavalink

import (
	"sync"

	"go.uber.org/zap"
)

const libraryVersion = "0.1.0"

// Option configures a Client or a standalone Node.
type Option func(*options)

type options struct {
	log *zap.Logger
}

func applyOptions(opts []Option) options {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger used by nodes, players and the event
// stream. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// Client is the registry of nodes. Most applications run a single
// node; the registry exists so guilds can be spread over several.
type Client struct {
	opts []Option

	mu    sync.RWMutex
	nodes []*Node
}

// New builds an empty client. Add nodes with AddNode.
func New(opts ...Option) *Client {
	return &Client{opts: opts}
}

// AddNode registers a node and returns its handle. The node is not
// connected yet; call Node.Connect.
func (c *Client) AddNode(cfg NodeConfig) *Node {
	n := NewNode(cfg, c.opts...)
	c.mu.Lock()
	c.nodes = append(c.nodes, n)
	c.mu.Unlock()
	return n
}

// RemoveNode closes a node and drops it from the registry.
func (c *Client) RemoveNode(node *Node) {
	c.mu.Lock()
	for i, n := range c.nodes {
		if n == node {
			c.nodes = append(c.nodes[:i], c.nodes[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	node.Close()
}

// Nodes returns the registered nodes.
func (c *Client) Nodes() []*Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Node, len(c.nodes))
	copy(out, c.nodes)
	return out
}

// DefaultNode returns the first registered node.
func (c *Client) DefaultNode() (*Node, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.nodes) == 0 {
		return nil, ErrNoNodes
	}
	return c.nodes[0], nil
}

// Close closes every registered node.
func (c *Client) Close() {
	for _, n := range c.Nodes() {
		n.Close()
	}
}
