// Package mac implements the TSTP microframe preamble-sampling
// duty-cycle MAC: a single cooperative event loop that keeps the radio
// mostly asleep, wakes briefly every CycleInterval to sample the
// channel for microframes, and sends queued frames as a microframe
// train followed by the data frame.
package mac

import (
	"github.com/trustfulmesh/tstp/protocol"
	"github.com/trustfulmesh/tstp/radio"
)

// DutyCycle is the fraction of time, in parts per million, a node's
// radio may spend listening. The MAC derives its sleep period from
// this and the radio's own microframe airtime so that, on average, a
// node listens often enough to not miss a neighbor's microframe train
// while still sleeping the vast majority of the time.
type DutyCycle uint32

// DefaultDutyCycle matches the original's 1% duty cycle (10000 ppm).
const DefaultDutyCycle DutyCycle = 10000

// Timing holds every derived constant the MAC's state machine needs,
// computed once from a Radio's Characteristics and a target DutyCycle.
// Naming follows the quantities they're derived from in the original:
// G (CCA/TX gap), Tu (turnaround), Ti (inter-microframe gap), Ts
// (microframe airtime), Tr (MF-train RX timeout), NMF (microframes per
// train), CI (cycle interval).
type Timing struct {
	TXDelay protocol.TimeOffset

	G  protocol.TimeOffset
	Tu protocol.TimeOffset
	Ti protocol.TimeOffset
	Ts protocol.TimeOffset
	Tr protocol.TimeOffset

	NMF uint16
	CI  protocol.TimeOffset

	SleepPeriod     protocol.TimeOffset
	DataListenMargin protocol.TimeOffset
	DataSkipTime     protocol.TimeOffset
	RXDataTimeout    protocol.TimeOffset
	CCATime          protocol.TimeOffset
}

// microframeWireSize is protocol.MicroframeSize, named locally so the
// timing derivation below reads the same as the formulas it's grounded on.
const microframeWireSize = protocol.MicroframeSize

// DeriveTiming computes a Timing from a radio's fixed Characteristics
// and the node's target DutyCycle.
func DeriveTiming(chars radio.Characteristics, duty DutyCycle) Timing {
	var t Timing

	t.TXDelay = chars.IntHandlingDelay + chars.RXToTXDelay

	t.G = chars.CCATXGap
	t.Tu = chars.TurnaroundTime
	t.Ti = t.Tu + chars.RXToTXDelay + chars.IntHandlingDelay

	airtimeBytes := int64(microframeWireSize + chars.PHYHeaderSize)
	byteRate := int64(chars.ByteRate)
	if byteRate == 0 {
		byteRate = 1
	}
	t.Ts = protocol.TimeOffset(airtimeBytes*1000000/byteRate) + chars.TXToRXDelay

	t.Tr = 2*t.Ts + t.Ti

	// NMF: the smallest number of microframes such that their combined
	// RX timeout, amortized over DutyCycle ppm, covers a full cycle.
	numerator := int64(1000000) * int64(t.Tr)
	denom := int64(duty)
	if denom == 0 {
		denom = 1
	}
	perMF := int64(t.Ti + t.Ts)
	if perMF == 0 {
		perMF = 1
	}
	t.NMF = uint16(1 + (numerator/denom+perMF-1)/perMF)

	t.CI = t.Ts + protocol.TimeOffset(t.NMF-1)*(t.Ts+t.Ti)
	t.SleepPeriod = t.CI - t.Tr

	t.DataListenMargin = t.Ti / 2
	t.DataSkipTime = t.DataListenMargin + 4500

	t.RXDataTimeout = t.DataSkipTime + t.DataListenMargin + 4*(t.Ts+t.Ti)

	if cca := 2*t.Ts + t.Ti; cca > t.G {
		t.CCATime = cca
	} else {
		t.CCATime = t.G
	}

	return t
}
