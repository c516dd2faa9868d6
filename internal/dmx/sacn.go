package dmx

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/opsnlops/creature-server/internal/logging"
)

const (
	maxChannelsPerUniverse = 512
	startCode              = 0x00

	vectorRootE131Data  = 0x00000004
	vectorE131DataPacket = 0x00000002
	vectorDMPSetProperty = 0x02

	defaultPriority = 100
	e131Port        = 5568
)

var acnPacketIdentifier = [12]byte{'A', 'S', 'C', '-', 'E', '1', '.', '1', '7', 0, 0, 0}

// SACNSink sends E1.31 (sACN) unicast packets over UDP, one sequence counter
// per universe, mirroring the original's single-socket-per-process sender.
type SACNSink struct {
	conn       *net.UDPConn
	sourceName string
	cid        [16]byte

	mu  sync.Mutex
	seq map[uint32]uint8

	log logging.Logger
}

// NewSACNSink dials a unicast UDP destination (host:port, defaulting the
// port to 5568 if omitted) that all universes are sent to — sufficient for
// a single downstream DMX node, the same topology the original assumed.
func NewSACNSink(destAddr string, log logging.Logger) (*SACNSink, error) {
	if log == nil {
		log = logging.NewNop()
	}

	host, port, err := net.SplitHostPort(destAddr)
	if err != nil {
		host = destAddr
		port = ""
	}
	if port == "" {
		port = fmt.Sprintf("%d", e131Port)
	}

	raddr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(host, port))
	if err != nil {
		return nil, fmt.Errorf("resolving dmx sink address %q: %w", destAddr, err)
	}

	conn, err := net.DialUDP("udp4", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("dialing dmx sink: %w", err)
	}

	id := uuid.New()
	var cid [16]byte
	copy(cid[:], id[:])

	return &SACNSink{
		conn:       conn,
		sourceName: "creature-server",
		cid:        cid,
		seq:        make(map[uint32]uint8),
		log:        log,
	}, nil
}

func (s *SACNSink) Send(_ context.Context, universe uint32, offset uint16, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if int(offset)+len(data) > maxChannelsPerUniverse {
		return fmt.Errorf("dmx payload overflows universe: offset %d + %d channels > %d", offset, len(data), maxChannelsPerUniverse)
	}

	s.mu.Lock()
	seq := s.seq[universe]
	s.seq[universe] = seq + 1
	s.mu.Unlock()

	packet := buildSACNPacket(s.cid, s.sourceName, uint16(universe), seq, offset, data)

	if _, err := s.conn.Write(packet); err != nil {
		return fmt.Errorf("sending sacn packet for universe %d: %w", universe, err)
	}
	return nil
}

func (s *SACNSink) Close() error {
	return s.conn.Close()
}

// buildSACNPacket constructs a full E1.31 root/framing/DMP layer packet
// carrying up to 512 channels of DMX data starting at offset (channels
// before offset and after offset+len(data) are sent as zero).
func buildSACNPacket(cid [16]byte, sourceName string, universe uint16, sequence uint8, offset uint16, data []byte) []byte {
	propertyValues := make([]byte, 1+maxChannelsPerUniverse) // start code + 512 channels
	copy(propertyValues[1+offset:], data)

	dmpLength := 10 + len(propertyValues)
	framingLength := 77 + dmpLength
	rootLength := 22 + framingLength

	buf := make([]byte, 0, 16+rootLength)

	// Root layer
	buf = appendUint16(buf, 0x0010) // preamble size
	buf = appendUint16(buf, 0x0000) // postamble size
	buf = append(buf, acnPacketIdentifier[:]...)
	buf = appendUint16(buf, flagsAndLength(rootLength))
	buf = appendUint32(buf, vectorRootE131Data)
	buf = append(buf, cid[:]...)

	// Framing layer
	buf = appendUint16(buf, flagsAndLength(framingLength))
	buf = appendUint32(buf, vectorE131DataPacket)
	buf = append(buf, padName(sourceName, 64)...)
	buf = append(buf, defaultPriority)
	buf = appendUint16(buf, 0) // sync address, unused
	buf = append(buf, sequence)
	buf = append(buf, 0) // options
	buf = appendUint16(buf, universe)

	// DMP layer
	buf = appendUint16(buf, flagsAndLength(dmpLength))
	buf = append(buf, vectorDMPSetProperty)
	buf = append(buf, 0xa1) // address type & data type
	buf = appendUint16(buf, 0)      // first property address
	buf = appendUint16(buf, 0x0001) // address increment
	buf = appendUint16(buf, uint16(len(propertyValues)))
	buf = append(buf, propertyValues...)

	return buf
}

func flagsAndLength(length int) uint16 {
	return uint16(0x7000 | (length & 0x0fff))
}

func padName(name string, size int) []byte {
	b := make([]byte, size)
	copy(b, name)
	return b
}

func appendUint16(buf []byte, v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return append(buf, b[:]...)
}

func appendUint32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}
