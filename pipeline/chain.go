package pipeline

import "github.com/trustfulmesh/tstp/buffer"

// stage is the signature shared by every pipeline component's Marshal
// and Update methods.
type stage func(*buffer.Buffer) error

// Chain runs Locator, Timekeeper, Router, and Security in the fixed
// order spec §4 assumes, replacing the original's cyclic
// observer-notifies-observer graph with the explicit linear topology
// called for in §9: the MAC raises on_rx, the Chain updates a buffer
// once, and Smart Data subscribes only to the dispatcher above it.
type Chain struct {
	Locator    Locator
	Timekeeper Timekeeper
	Router     Router
	Security   Security
}

// Marshal runs every stage's Marshal against an outbound buffer.
func (c Chain) Marshal(buf *buffer.Buffer) error {
	return c.run(buf, []stage{c.Locator.Marshal, c.Timekeeper.Marshal, c.Router.Marshal, c.Security.Marshal})
}

// Update runs every stage's Update against an inbound buffer.
func (c Chain) Update(buf *buffer.Buffer) error {
	return c.run(buf, []stage{c.Locator.Update, c.Timekeeper.Update, c.Router.Update, c.Security.Update})
}

func (c Chain) run(buf *buffer.Buffer, stages []stage) error {
	for _, s := range stages {
		if err := s(buf); err != nil {
			return err
		}
	}
	return nil
}
