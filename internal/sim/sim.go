// Package sim wires a complete TSTP node — radio, timer, MAC,
// pipeline, dispatcher — together over an in-process Medium, the way a
// real deployment wires them over actual hardware. It exists for
// integration tests that exercise more than one package's worth of
// behavior at once: duty cycling, geographic forwarding, and Smart
// Data round trips across more than one node.
package sim

import (
	"context"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/trustfulmesh/tstp/buffer"
	"github.com/trustfulmesh/tstp/mac"
	"github.com/trustfulmesh/tstp/mactimer"
	"github.com/trustfulmesh/tstp/pipeline"
	"github.com/trustfulmesh/tstp/protocol"
	"github.com/trustfulmesh/tstp/radio"
	"github.com/trustfulmesh/tstp/stats"
	"github.com/trustfulmesh/tstp/tstp"
)

// NodeConfig configures a single simulated node.
type NodeConfig struct {
	Name        string
	Position    protocol.Coordinates
	DutyCycle   mac.DutyCycle
	PoolSize    int
	MTU         int
	Stats       *stats.Collector
	Logger      *log.Logger
}

// Node bundles one simulated node's full stack: radio, timer, buffer
// pool, MAC, pipeline, and dispatcher, all wired the way a real
// deployment's composition root would wire them.
type Node struct {
	Name     string
	Position protocol.Coordinates

	Radio *radio.SimRadio
	Timer *mactimer.SimTimer
	Pool  *buffer.Pool
	MAC   *mac.MAC
	TSTP  *tstp.TSTP

	router pipeline.Router
}

// Network is a set of Nodes sharing one in-process radio Medium and a
// fixed Sink coordinate, standing in for a deployed TSTP mesh.
type Network struct {
	Sink      protocol.Coordinates
	Chars     radio.Characteristics
	medium    *radio.Medium
	mediumClk *mactimer.SimTimer
	nodes     []*Node
}

// NewNetwork builds an empty Network. chars is shared by every node
// added to it, the same fixed transceiver every node in a homogeneous
// deployment would carry.
func NewNetwork(sink protocol.Coordinates, chars radio.Characteristics) *Network {
	clk := mactimer.NewSimTimer()
	return &Network{
		Sink:      sink,
		Chars:     chars,
		medium:    radio.NewMedium(clk.Now),
		mediumClk: clk,
	}
}

// AddNode builds a Node from cfg, attaches it to the Network's shared
// Medium, and wires its MAC, pipeline, and dispatcher together.
func (n *Network) AddNode(cfg NodeConfig) *Node {
	poolSize := cfg.PoolSize
	if poolSize == 0 {
		poolSize = 16
	}
	mtu := cfg.MTU
	if mtu == 0 {
		mtu = 128
	}

	pool := buffer.NewPool(poolSize, mtu)
	simRadio := radio.NewSimRadio(n.medium, n.Chars)
	timer := mactimer.NewSimTimer()
	location := pipeline.StaticLocation{Position: cfg.Position}
	clock := pipeline.ClockFunc(timer.Now)

	var m *mac.MAC

	router := pipeline.Router{
		Location: location,
		Clock:    clock,
		Sink:     n.Sink,
		Alloc:    pool.Alloc,
		Forward: func(fwd *buffer.Buffer) {
			m.Send(fwd)
			if cfg.Stats != nil {
				cfg.Stats.BuffersForwarded.Inc()
			}
		},
	}
	chain := pipeline.Chain{
		Locator:    pipeline.Locator{Location: location},
		Timekeeper: pipeline.Timekeeper{},
		Router:     router,
		Security:   pipeline.Security{},
	}

	var t *tstp.TSTP
	t = tstp.New(tstp.Config{
		Chain: chain,
		Pool:  pool,
		Clock: clock,
		NewID: func() protocol.FrameID { return m.NewFrameID() },
		Enqueue: func(buf *buffer.Buffer) {
			m.Send(buf)
		},
	})

	logger := cfg.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	m = mac.New(mac.Config{
		Radio:           simRadio,
		Timer:           timer,
		Pool:            pool,
		DutyCycle:       cfg.DutyCycle,
		OnReceive:       t.OnReceive,
		RefineRelevance: router.IsRelevant,
		Stats:           cfg.Stats,
		Logger:          logger,
	})

	node := &Node{
		Name:     cfg.Name,
		Position: cfg.Position,
		Radio:    simRadio,
		Timer:    timer,
		Pool:     pool,
		MAC:      m,
		TSTP:     t,
		router:   router,
	}
	n.nodes = append(n.nodes, node)
	return node
}

// Nodes returns every node added to the network so far.
func (n *Network) Nodes() []*Node { return n.nodes }

// Run starts every node's MAC event loop and blocks until ctx is
// canceled and every loop has returned, mirroring the fan-out pattern
// ptp/sptp/client uses for its own concurrent worker set. It always
// returns nil, since MAC.Run reports no error.
func (n *Network) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, node := range n.nodes {
		node := node
		g.Go(func() error {
			node.MAC.Run(ctx)
			return nil
		})
	}
	return g.Wait()
}
