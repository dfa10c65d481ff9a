package mac

import (
	"container/heap"
	"context"
	"math/rand"
	"strconv"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/trustfulmesh/tstp/buffer"
	"github.com/trustfulmesh/tstp/mactimer"
	"github.com/trustfulmesh/tstp/protocol"
	"github.com/trustfulmesh/tstp/radio"
	"github.com/trustfulmesh/tstp/stats"
)

// ReceiveFunc is invoked with a fully received data frame, still
// carrying only the metadata the MAC itself can fill in (timestamps,
// distances inferred from the microframe hint, Relevant). The network
// pipeline fills in the rest (MyDistance, Trusted, DestinedToMe) and is
// responsible for returning the buffer to the pool once done.
type ReceiveFunc func(buf *buffer.Buffer)

// MAC drives a Radio through the TSTP duty-cycle state machine: sleep
// most of the time, wake every CycleInterval to sample the channel
// with a short microframe train, and send a queued frame as its own
// microframe train followed by the data frame. Exactly one goroutine,
// run by Run, ever touches the radio or the timer; everything else
// (Send, NewFrameID, Timing) is safe to call from other goroutines.
type MAC struct {
	radio  radio.Radio
	timer  mactimer.Timer
	timing Timing
	pool   *buffer.Pool
	log    *log.Entry

	onReceive ReceiveFunc
	relevance func(hint protocol.Hint) bool
	stats     *stats.Collector

	mu       sync.Mutex
	schedule buffer.Schedule

	rng *rand.Rand

	// state, touched only from the Run goroutine
	inRxMF, inRxData  bool
	txPending         *buffer.Buffer
	mf                protocol.Microframe
	mfTime            protocol.Time
	receivingDataID   protocol.FrameID
	receivingDataHint protocol.Hint
}

// Config bundles the dependencies MAC needs beyond the Radio itself.
type Config struct {
	Radio     radio.Radio
	Timer     mactimer.Timer
	Pool      *buffer.Pool
	DutyCycle DutyCycle
	OnReceive ReceiveFunc
	Logger    *log.Logger
	// RefineRelevance is consulted for an inbound microframe that didn't
	// already declare itself relevant via AllListen, mirroring the
	// network layer's distance-based relevance check. Left nil, only
	// AllListen microframes are treated as relevant.
	RefineRelevance func(hint protocol.Hint) bool
	// Stats, if set, receives duty-cycle and forwarding counters. Left
	// nil, the MAC runs with no metrics overhead.
	Stats *stats.Collector
}

// New builds a MAC from cfg. Call Run to start its event loop.
func New(cfg Config) *MAC {
	logger := cfg.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	duty := cfg.DutyCycle
	if duty == 0 {
		duty = DefaultDutyCycle
	}
	m := &MAC{
		radio:     cfg.Radio,
		timer:     cfg.Timer,
		timing:    DeriveTiming(cfg.Radio.Characteristics(), duty),
		pool:      cfg.Pool,
		onReceive: cfg.OnReceive,
		relevance: cfg.RefineRelevance,
		stats:     cfg.Stats,
		log:       logger.WithField("component", "mac"),
		rng:       rand.New(rand.NewSource(rand.Int63())),
	}
	heap.Init(&m.schedule)
	return m
}

// Timing returns the MAC's derived duty-cycle timing, mainly useful
// for tests and diagnostics.
func (m *MAC) Timing() Timing { return m.timing }

// NewFrameID draws a random 12-bit frame identifier, as the network
// layer does once per outbound message when it marshals a frame.
func (m *MAC) NewFrameID() protocol.FrameID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return protocol.FrameID(m.rng.Intn(1 << 12))
}

// Send enqueues buf for transmission. buf.Expiry, buf.ID, buf.Offset
// and buf.MyDistance must already be set by the caller (the network
// pipeline); Send only arranges for the duty-cycle scheduler to pick
// it up at its next decision point.
func (m *MAC) Send(buf *buffer.Buffer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	heap.Push(&m.schedule, buf)
}

// Run drives the MAC's event loop until ctx is canceled. It must be
// called from exactly one goroutine.
func (m *MAC) Run(ctx context.Context) {
	m.log.WithField("nmf", m.timing.NMF).WithField("cycle_interval", m.timing.CI).Info("mac: starting duty cycle")

	next, fire := m.updateTXSchedule()
	for {
		select {
		case <-ctx.Done():
			m.timer.Stop()
			return
		case now := <-next:
			next, fire = fire(now)
		case d := <-m.radio.Receive():
			if n, f := m.onRadioReceive(d); f != nil {
				next, fire = n, f
			}
		}
	}
}

// stateFunc advances the state machine given the time an armed alarm
// fired, and returns the channel and continuation to wait on next.
type stateFunc func(now protocol.Time) (<-chan protocol.Time, stateFunc)

func (m *MAC) armAt(t protocol.Time, next stateFunc) (<-chan protocol.Time, stateFunc) {
	return m.timer.After(t), next
}

// updateTXSchedule is the hub state every cycle returns to: drop
// expired buffers, pick the earliest-expiry one as the pending
// transmission, and either back off into a CCA attempt or go back to
// sleep until the next microframe-sampling window.
func (m *MAC) updateTXSchedule() (<-chan protocol.Time, stateFunc) {
	m.radio.Power(radio.Sleep)
	m.inRxData, m.inRxMF = false, false

	now := m.timer.Now()

	m.mu.Lock()
	m.txPending = nil
	for m.schedule.Len() > 0 && protocol.DropExpired && m.schedule[0].Expiry <= now {
		expired := heap.Pop(&m.schedule).(*buffer.Buffer)
		m.log.WithField("id", expired.ID).Debug("mac: dropping expired buffer")
		m.pool.Free(expired)
		if m.stats != nil {
			m.stats.BuffersExpired.Inc()
		}
	}
	if m.schedule.Len() > 0 {
		m.txPending = m.schedule[0]
	}
	depth := m.schedule.Len()
	m.mu.Unlock()

	if m.stats != nil {
		m.stats.ScheduleDepth.Set(float64(depth))
	}

	if m.txPending != nil {
		return m.armAt(m.backoffDeadline(now), m.cca)
	}
	return m.armAt(now+protocol.Time(m.timing.SleepPeriod), m.rxMF)
}

// backoffDeadline computes how long this node waits before attempting
// its own CCA, proportional to the pending buffer's Offset (its
// distance from the ideal next-hop ring): the relay nearest that ring
// backs off the least and goes first.
func (m *MAC) backoffDeadline(now protocol.Time) protocol.Time {
	off := int64(m.txPending.Offset) * int64(m.timing.SleepPeriod) / (int64(protocol.RadioRange) * int64(m.timing.G))
	return now + protocol.Time(off*int64(m.timing.G))
}

// cca samples the channel once and, if clear, sends the first
// microframe of the pending buffer's train immediately.
func (m *MAC) cca(_ protocol.Time) (<-chan protocol.Time, stateFunc) {
	m.radio.Listen()

	if !m.radio.CCA() {
		if m.stats != nil {
			m.stats.CCABusy.Inc()
		}
		return m.rxMF(0)
	}

	m.mf = protocol.Microframe{
		AllListen: m.txPending.Downlink,
		ID:        m.txPending.ID,
		Count:     uint16(m.timing.NMF - 1),
		Hint:      protocol.Hint(m.txPending.MyDistance),
	}
	if m.stats != nil {
		m.stats.MicroframesTX.Inc()
	}
	m.radio.TransmitNoCCA(m.mf.Marshal())
	m.mf.Count--
	m.mfTime = m.timer.Now() + protocol.Time(m.timing.Ti+m.timing.Ts)
	return m.armAt(m.mfTime, m.txMF)
}

// rxMF enters the microframe-listening state: the radio stays fully
// awake until either a microframe arrives or Tr elapses with nothing heard.
func (m *MAC) rxMF(_ protocol.Time) (<-chan protocol.Time, stateFunc) {
	m.inRxMF, m.inRxData = true, false
	m.radio.Power(radio.Full)
	m.radio.Listen()
	return m.armAt(m.timer.Now()+protocol.Time(m.timing.Tr), func(protocol.Time) (<-chan protocol.Time, stateFunc) {
		return m.updateTXSchedule()
	})
}

// rxData enters the data-listening state after a relevant microframe
// train predicted when the data frame itself would arrive.
func (m *MAC) rxData(_ protocol.Time) (<-chan protocol.Time, stateFunc) {
	m.inRxData, m.inRxMF = true, false
	m.radio.Power(radio.Full)
	m.radio.Listen()
	return m.armAt(m.timer.Now()+protocol.Time(m.timing.RXDataTimeout), func(protocol.Time) (<-chan protocol.Time, stateFunc) {
		return m.updateTXSchedule()
	})
}

// txMF sends the remaining microframes of the pending buffer's train,
// then hands the data frame to the radio one microframe slot before
// actually transmitting it, giving listeners time to decide to stay awake.
func (m *MAC) txMF(_ protocol.Time) (<-chan protocol.Time, stateFunc) {
	m.radio.TransmitNoCCA(m.mf.Marshal())
	m.mfTime += protocol.Time(m.timing.Ti + m.timing.Ts)

	if m.mf.Count > 0 {
		m.mf.Count--
		return m.armAt(m.mfTime, m.txMF)
	}

	protocol.PatchLastHopTime(m.txPending.Bytes(), scaleOf(m.txPending), m.mfTime+protocol.Time(m.timing.TXDelay))
	return m.armAt(m.mfTime, m.txData)
}

// txData transmits the data frame itself, unless it was only ever
// queued for local delivery, then returns to sleep until the next cycle.
func (m *MAC) txData(_ protocol.Time) (<-chan protocol.Time, stateFunc) {
	if !m.txPending.DestinedToMe {
		m.radio.TransmitNoCCA(m.txPending.Bytes())
		m.mfTime = m.timer.Now()
		if m.stats != nil {
			m.stats.DataFramesTX.Inc()
		}
	} else {
		m.removePending()
	}

	m.radio.Power(radio.Sleep)
	return m.armAt(m.mfTime+protocol.Time(m.timing.SleepPeriod), m.rxMF)
}

// onRadioReceive dispatches an inbound frame according to whichever
// listening state the MAC is currently in; deliveries outside rxMF/rxData
// are stray and ignored.
func (m *MAC) onRadioReceive(d radio.Delivery) (<-chan protocol.Time, stateFunc) {
	switch {
	case m.inRxMF:
		return m.handleMicroframeRX(d)
	case m.inRxData:
		return m.handleDataRX(d)
	default:
		return nil, nil
	}
}

func (m *MAC) handleMicroframeRX(d radio.Delivery) (<-chan protocol.Time, stateFunc) {
	mf, ok := protocol.UnmarshalMicroframe(d.Data)
	if !ok {
		return nil, nil
	}

	m.timer.Stop()
	m.radio.Power(radio.Sleep)

	sfd := d.SFDTimeStamp
	relevant := mf.AllListen
	if !relevant && m.relevance != nil {
		relevant = m.relevance(mf.Hint)
	}
	m.removeScheduledID(mf.ID)
	if m.stats != nil {
		m.stats.MicroframesRX.WithLabelValues(strconv.FormatBool(relevant)).Inc()
	}

	dataTime := sfd + protocol.Time(m.timing.Ti) + protocol.Time(mf.Count)*protocol.Time(m.timing.Ti+m.timing.Ts) - protocol.Time(m.timing.DataListenMargin)

	if relevant {
		m.receivingDataID = mf.ID
		m.receivingDataHint = mf.Hint
		return m.armAt(dataTime, m.rxData)
	}
	return m.armAt(dataTime+protocol.Time(m.timing.DataSkipTime), func(protocol.Time) (<-chan protocol.Time, stateFunc) {
		return m.updateTXSchedule()
	})
}

func (m *MAC) handleDataRX(d radio.Delivery) (<-chan protocol.Time, stateFunc) {
	buf, err := m.pool.Alloc()
	if err != nil {
		m.log.WithError(err).Warn("mac: dropping received frame, pool exhausted")
		if m.stats != nil {
			m.stats.PoolExhausted.Inc()
		}
		return m.updateTXSchedule()
	}
	buf.Data = append(buf.Data[:0], d.Data...)
	buf.Size = len(d.Data)
	buf.SFDTimeStamp = d.SFDTimeStamp
	buf.ID = m.receivingDataID
	buf.SenderDistance = int64(m.receivingDataHint)
	buf.IsNew = false
	buf.IsMicroframe = false
	buf.Relevant = true
	if m.stats != nil {
		m.stats.DataFramesRX.Inc()
	}

	if m.onReceive != nil {
		m.onReceive(buf)
	} else {
		m.pool.Free(buf)
	}

	return m.updateTXSchedule()
}

// removeScheduledID drops any buffer in the TX schedule carrying id:
// another node has already claimed that frame's airtime, so retrying
// it ourselves would only collide.
func (m *MAC) removeScheduledID(id protocol.FrameID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < m.schedule.Len(); {
		if m.schedule[i].ID == id {
			b := heap.Remove(&m.schedule, i).(*buffer.Buffer)
			m.pool.Free(b)
			continue
		}
		i++
	}
}

func (m *MAC) removePending() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < m.schedule.Len(); i++ {
		if m.schedule[i] == m.txPending {
			heap.Remove(&m.schedule, i)
			break
		}
	}
	m.pool.Free(m.txPending)
}

// scaleOf recovers the coordinate Scale a marshaled frame used, read
// back from its own config byte, so the MAC can patch LastHopTime
// without needing to know the Scale out of band.
func scaleOf(buf *buffer.Buffer) protocol.Scale {
	if buf.Size == 0 {
		return protocol.CM16
	}
	return protocol.Scale(buf.Data[0] & 0x03)
}
