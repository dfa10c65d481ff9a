package radio

import (
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/trustfulmesh/tstp/protocol"
)

// UDPRadio stands in for a real IEEE 802.15.4 transceiver on hosts
// that have no such hardware attached: every node on the same UDP
// broadcast address and port shares one channel, the way every node
// on the same RF channel shares the airwaves. Socket setup mirrors
// ptp4u/server's net.ListenUDP/net.DialUDP pattern.
type UDPRadio struct {
	chars     Characteristics
	conn      *net.UDPConn
	broadcast *net.UDPAddr
	log       *log.Logger

	mu        sync.Mutex
	mode      PowerMode
	channel   int
	listening bool

	rx chan Delivery
}

// UDPRadioConfig configures a UDPRadio.
type UDPRadioConfig struct {
	// ListenAddr is the local address to bind, e.g. ":17754".
	ListenAddr string
	// BroadcastAddr is the destination every Transmit sends to, e.g.
	// "255.255.255.255:17754" or a multicast group address.
	BroadcastAddr string
	Chars         Characteristics
	Logger        *log.Logger
}

// NewUDPRadio binds a UDP socket and starts its receive loop. Every
// TSTP node sharing BroadcastAddr on the same LAN segment forms one
// simulated channel.
func NewUDPRadio(cfg UDPRadioConfig) (*UDPRadio, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	laddr, err := net.ResolveUDPAddr("udp4", cfg.ListenAddr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return nil, err
	}
	baddr, err := net.ResolveUDPAddr("udp4", cfg.BroadcastAddr)
	if err != nil {
		conn.Close()
		return nil, err
	}
	r := &UDPRadio{
		chars:     cfg.Chars,
		conn:      conn,
		broadcast: baddr,
		log:       logger,
		rx:        make(chan Delivery, 64),
	}
	go r.recvLoop()
	return r, nil
}

func (r *UDPRadio) recvLoop() {
	buf := make([]byte, 2048)
	for {
		n, _, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			r.log.WithError(err).Debug("udpradio: socket closed")
			return
		}
		r.mu.Lock()
		listening := r.listening
		r.mu.Unlock()
		if !listening {
			continue
		}
		d := Delivery{
			Data:         append([]byte(nil), buf[:n]...),
			SFDTimeStamp: protocol.Time(time.Now().UnixMicro()),
		}
		select {
		case r.rx <- d:
		default:
			r.log.Warn("udpradio: receive queue full, dropping frame")
		}
	}
}

func (r *UDPRadio) Characteristics() Characteristics { return r.chars }

func (r *UDPRadio) Power(mode PowerMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mode = mode
	if mode != Full && mode != Light {
		r.listening = false
	}
}

func (r *UDPRadio) Listen() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listening = true
}

// CCA always reports the channel clear: UDP gives no carrier-sense
// primitive, so collision avoidance here is best-effort only.
func (r *UDPRadio) CCA() bool { return true }

func (r *UDPRadio) Transmit(buf []byte) bool {
	r.TransmitNoCCA(buf)
	return true
}

func (r *UDPRadio) TransmitNoCCA(buf []byte) {
	if _, err := r.conn.WriteToUDP(buf, r.broadcast); err != nil {
		r.log.WithError(err).Warn("udpradio: transmit failed")
	}
}

func (r *UDPRadio) Receive() <-chan Delivery { return r.rx }

func (r *UDPRadio) Channel() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.channel
}

func (r *UDPRadio) SetChannel(ch int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channel = ch
}

// Close releases the underlying socket.
func (r *UDPRadio) Close() error {
	return r.conn.Close()
}
