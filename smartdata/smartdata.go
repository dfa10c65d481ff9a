// Package smartdata implements Smart Data bindings: the application's
// view of a single physical quantity, backed either by a local Sensor
// (this node answers Interests and Commands for it) or by a
// subscription to Responses published elsewhere. It is the last stage
// above the tstp dispatcher, the same role the original's Smart_Data
// template played atop TSTP::Responsive/TSTP::Interested.
package smartdata

import (
	"context"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/trustfulmesh/tstp/buffer"
	"github.com/trustfulmesh/tstp/pipeline"
	"github.com/trustfulmesh/tstp/protocol"
	"github.com/trustfulmesh/tstp/stats"
	"github.com/trustfulmesh/tstp/tstp"
)

// Mode enumerates how a local Smart Data binding exposes itself to the
// network. Commanded implies Advertised: a binding that accepts
// Commands must also publish Responses, the same relationship the
// original's bitmask (ADVERTISED=1, COMMANDED=3) encoded.
type Mode uint8

const (
	// Private answers no one; Value only ever reflects a locally
	// triggered sense.
	Private Mode = 0
	// Advertised additionally responds to Interests from the network.
	Advertised Mode = 1
	// Commanded additionally accepts Commands that actuate this binding.
	Commanded Mode = 3
)

func (m Mode) responsive() bool { return m != Private }
func (m Mode) commanded() bool  { return m&2 != 0 }

// Sensor is a local data source a Smart Data binding polls on demand:
// on an inbound Interest, on a periodic publish tick, or when Value is
// read past staleness.
type Sensor interface {
	Sense() (protocol.Value, protocol.Error)
}

// Actuator is a local device a Commanded Smart Data binding drives.
type Actuator interface {
	Actuate(protocol.Value)
}

// SmartData binds a single Unit's value either to a local Sensor (this
// node originates readings) or to a remote subscription (this node
// consumes readings published elsewhere). Exactly one of those roles
// applies to any one instance, selected by which constructor built it.
type SmartData struct {
	dispatcher *tstp.TSTP
	clock      pipeline.ClockStrategy
	unit       protocol.Unit
	format     protocol.NumericFormat
	sink       protocol.Coordinates
	stats      *stats.Collector

	mode     Mode
	sensor   Sensor
	actuator Actuator
	location protocol.Coordinates

	region protocol.Region
	period protocol.TimeOffset

	log *log.Entry

	mu         sync.Mutex
	value      protocol.Value
	errCode    protocol.Error
	origin     protocol.Coordinates
	sampledAt  protocol.Time
	staleAfter protocol.TimeOffset
	stop       context.CancelFunc

	wg sync.WaitGroup
}

// LocalConfig configures a Smart Data binding rooted in a local Sensor
// or Actuator.
type LocalConfig struct {
	TSTP       *tstp.TSTP
	Clock      pipeline.ClockStrategy
	Unit       protocol.Unit
	Format     protocol.NumericFormat
	Sink       protocol.Coordinates
	Location   protocol.Coordinates
	Mode       Mode
	Sensor     Sensor
	Actuator   Actuator
	StaleAfter protocol.TimeOffset
	Logger     *log.Logger
	Stats      *stats.Collector
}

// NewLocal builds a Smart Data binding around a local Sensor or
// Actuator, taking an initial sense and, unless cfg.Mode is Private,
// attaching it to the dispatcher as a Responsive. It sends nothing
// itself; a Response goes out only once an Interest arrives.
func NewLocal(cfg LocalConfig) *SmartData {
	sd := &SmartData{
		dispatcher: cfg.TSTP,
		clock:      cfg.Clock,
		unit:       cfg.Unit,
		format:     cfg.Format,
		sink:       cfg.Sink,
		mode:       cfg.Mode,
		sensor:     cfg.Sensor,
		actuator:   cfg.Actuator,
		location:   cfg.Location,
		staleAfter: cfg.StaleAfter,
		stats:      cfg.Stats,
		log:        entryFor(cfg.Logger, cfg.Unit),
	}
	if sd.sensor != nil {
		sd.sense()
	}
	if sd.mode.responsive() {
		sd.dispatcher.AttachResponsive(sd.unit, sd)
	}
	return sd
}

// RemoteConfig configures a Smart Data binding subscribed to Responses
// from Region.
type RemoteConfig struct {
	TSTP   *tstp.TSTP
	Clock  pipeline.ClockStrategy
	Unit   protocol.Unit
	Format protocol.NumericFormat
	Region protocol.Region
	Period protocol.TimeOffset
	Expiry protocol.Time
	Logger *log.Logger
	Stats  *stats.Collector
}

// NewRemote builds a Smart Data binding that subscribes to Responses
// from cfg.Region and advertises its Interest immediately, the same
// way the original's Interested constructor called advertise() inline.
func NewRemote(cfg RemoteConfig) *SmartData {
	sd := &SmartData{
		dispatcher: cfg.TSTP,
		clock:      cfg.Clock,
		unit:       cfg.Unit,
		format:     cfg.Format,
		region:     cfg.Region,
		period:     cfg.Period,
		stats:      cfg.Stats,
		log:        entryFor(cfg.Logger, cfg.Unit),
	}
	sd.dispatcher.AttachInterested(sd.unit, sd)
	sd.advertise(cfg.Expiry, protocol.All)
	return sd
}

func entryFor(logger *log.Logger, unit protocol.Unit) *log.Entry {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return logger.WithField("component", "smartdata").WithField("unit", unit)
}

// Value returns the binding's current reading. A local source re-senses
// if the last reading is older than StaleAfter; a remote subscription
// that's gone stale logs a warning instead, since only an inbound
// Response can refresh it.
func (sd *SmartData) Value() protocol.Value {
	sd.mu.Lock()
	defer sd.mu.Unlock()

	now := sd.clock.Now()
	if now > sd.sampledAt+protocol.Time(sd.staleAfter) {
		if sd.sensor != nil {
			sd.sampleLocked(now)
		} else {
			sd.log.Warn("smartdata: value read past staleness with no fresh response")
		}
	}
	return sd.value
}

// Snapshot is a point-in-time copy of a binding's last reading,
// standing in for the original's DB_Record: enough to log or export
// Smart Data history without this package owning any storage itself.
type Snapshot struct {
	Unit      protocol.Unit
	Value     protocol.Value
	Error     protocol.Error
	Origin    protocol.Coordinates
	SampledAt protocol.Time
}

// Snapshot returns the binding's current reading without triggering a
// re-sense, unlike Value.
func (sd *SmartData) Snapshot() Snapshot {
	sd.mu.Lock()
	defer sd.mu.Unlock()
	return Snapshot{
		Unit:      sd.unit,
		Value:     sd.value,
		Error:     sd.errCode,
		Origin:    sd.origin,
		SampledAt: sd.sampledAt,
	}
}

// Origin implements tstp.Responsive: this binding's own sensor
// location, checked against an inbound Interest or Command's Region.
func (sd *SmartData) Origin() protocol.Coordinates { return sd.location }

// Region implements tstp.Interested: the subscription window this
// binding was created with.
func (sd *SmartData) Region() protocol.Region { return sd.region }

// Notify implements both tstp.Responsive and tstp.Interested.
func (sd *SmartData) Notify(buf *buffer.Buffer) {
	frame, err := protocol.UnmarshalFrame(buf.Bytes())
	if err != nil {
		return
	}

	switch frame.Header.Type {
	case protocol.Interest:
		msg, err := protocol.UnmarshalInterest(frame.Payload)
		if err != nil {
			return
		}
		sd.handleInterest(msg)
	case protocol.Response:
		msg, err := protocol.UnmarshalResponse(frame.Payload, sd.format)
		if err != nil {
			return
		}
		sd.handleResponse(msg, frame.Header)
	case protocol.Command:
		if !sd.mode.commanded() || sd.actuator == nil {
			return
		}
		msg, err := protocol.UnmarshalCommand(frame.Payload, sd.format)
		if err != nil {
			return
		}
		sd.actuator.Actuate(msg.Value)
	case protocol.Control:
		// Bindings revoke by resending Interest{Mode: Delete}; Control
		// itself carries no Smart Data-level action.
	}
}

func (sd *SmartData) handleInterest(msg protocol.Interest) {
	if msg.Mode == protocol.Delete {
		sd.stopPeriodicPublish()
		return
	}
	if msg.Period > 0 {
		sd.startPeriodicPublish(msg.Period, msg.Expiry)
		return
	}
	sd.sense()
	sd.respond(msg.Expiry)
}

func (sd *SmartData) handleResponse(msg protocol.Response, hdr protocol.Header) {
	sd.mu.Lock()
	defer sd.mu.Unlock()
	sd.value = msg.Value
	sd.errCode = msg.Precision
	sd.origin = hdr.Origin
	sd.sampledAt = hdr.OriginTime
}

func (sd *SmartData) sense() {
	sd.mu.Lock()
	defer sd.mu.Unlock()
	sd.sampleLocked(sd.clock.Now())
}

func (sd *SmartData) sampleLocked(now protocol.Time) {
	if sd.sensor == nil {
		return
	}
	v, errCode := sd.sensor.Sense()
	sd.value = v
	sd.errCode = errCode
	sd.origin = sd.location
	sd.sampledAt = now
}

// respond sends a fresh Response carrying the binding's current value,
// routed toward the sink the way every uplink Response is, regardless
// of who asked: geographic routing forwards it by distance-to-sink, not
// distance to whichever node sent the Interest.
func (sd *SmartData) respond(expiry protocol.Time) {
	sd.mu.Lock()
	msg := protocol.Response{
		Region:    protocol.Region{Center: sd.sink, Radius: 0, T0: sd.sampledAt, T1: expiry},
		Unit:      sd.unit,
		Precision: sd.errCode,
		Mode:      protocol.Single,
		Value:     sd.value,
		Format:    sd.format,
	}
	now := sd.clock.Now()
	loc := sd.location
	sd.mu.Unlock()

	frame := protocol.Frame{
		Header: protocol.Header{
			Type:       protocol.Response,
			Scale:      protocol.CM16,
			OriginTime: now,
			Origin:     loc,
		},
		Payload: msg.Marshal(),
	}
	if _, err := sd.dispatcher.SendFrame(frame); err != nil {
		sd.log.WithError(err).Warn("smartdata: failed to send response")
		return
	}
	if sd.stats != nil {
		sd.stats.ResponsesSent.WithLabelValues(strconv.FormatUint(uint64(sd.unit), 10)).Inc()
	}
}

// advertise sends this binding's Interest, either to subscribe (mode
// All) or to revoke a previous subscription (mode Delete), mirroring
// TSTP::Interested::advertise()/revoke() in the original, both of which
// just resend the same Interest with a different Mode.
func (sd *SmartData) advertise(expiry protocol.Time, mode protocol.Mode) {
	msg := protocol.Interest{
		Region: sd.region,
		Unit:   sd.unit,
		Mode:   mode,
		Period: sd.period,
		Expiry: expiry,
	}
	frame := protocol.Frame{
		Header:  protocol.Header{Type: protocol.Interest, Scale: protocol.CM16, OriginTime: sd.clock.Now()},
		Payload: msg.Marshal(),
	}
	if _, err := sd.dispatcher.SendFrame(frame); err != nil {
		sd.log.WithError(err).Warn("smartdata: failed to advertise interest")
	}
}

// Close tears down this binding: a remote subscription revokes its
// Interest, a local source just detaches from the dispatcher.
func (sd *SmartData) Close() {
	sd.stopPeriodicPublish()
	if sd.sensor == nil && sd.actuator == nil {
		sd.dispatcher.DetachInterested(sd.unit, sd)
		sd.advertise(0, protocol.Delete)
		return
	}
	if sd.mode.responsive() {
		sd.dispatcher.DetachResponsive(sd.unit, sd)
	}
}

// startPeriodicPublish launches the background publish loop a
// time-triggered Interest (period > 0) asks for, the Go equivalent of
// the original's lazily created Periodic_Thread. A second periodic
// Interest while one is already running is a no-op, whatever its
// period; the running loop keeps its original period and expiry.
func (sd *SmartData) startPeriodicPublish(period protocol.TimeOffset, expiry protocol.Time) {
	sd.mu.Lock()
	if sd.stop != nil {
		sd.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	sd.stop = cancel
	sd.mu.Unlock()

	sd.wg.Add(1)
	go sd.runPeriodicPublish(ctx, period, expiry)
}

func (sd *SmartData) runPeriodicPublish(ctx context.Context, period protocol.TimeOffset, expiry protocol.Time) {
	defer sd.wg.Done()

	ticker := time.NewTicker(time.Duration(period) * time.Microsecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sd.sense()
			sd.respond(expiry)
		}
	}
}

func (sd *SmartData) stopPeriodicPublish() {
	sd.mu.Lock()
	stop := sd.stop
	sd.stop = nil
	sd.mu.Unlock()
	if stop != nil {
		stop()
		sd.wg.Wait()
	}
}
