// If you are AI: This file implements the RTP ingest loop (A4, an
// ambient component SPEC_FULL.md adds around C6): one UDP listener per
// configured source, depacketizing RTP/JPEG or RTP/H.264 payloads and
// handing committed frames to a fan-out (C7). Grounded on the teacher's
// internal/svc/rtmp listener-goroutine shape (Listen then a blocking
// Accept/Serve loop run from a goroutine, closed via Close).

package rtpserver

import (
	"context"
	"fmt"
	"log"
	"net"

	"golang.org/x/time/rate"

	"videopipe/internal/codec/avc"
	"videopipe/internal/codec/imagetype"
	"videopipe/internal/codec/rtp"
	"videopipe/internal/codec/rtpavc"
	"videopipe/internal/codec/rtpjpeg"
	"videopipe/internal/fanout"
)

// defaultPacketRate bounds how fast a single source's Serve loop processes
// datagrams, pacing a misbehaving or malicious sender rather than letting
// it burn the depacketizer's CPU budget unbounded. Burst allows a camera's
// normal frame-boundary packet clustering through without throttling.
const defaultPacketRate = 4000

const maxDatagram = 65536

// payloadTypeJPEG is the RTP payload type spec.md §6 fixes for
// JPEG/90000. H.264 uses the dynamic range 96-127 and has no constant
// here, so sources declare which codec they expect out of band rather
// than switching on payload type.
const payloadTypeJPEG = 26

// Source listens on one UDP socket for RTP packets carrying either
// RFC 2435 JPEG or RFC 6184 H.264, and fans out each reassembled frame.
type Source struct {
	Name   string
	Codec  string // "jpeg" or "h264"
	Output *fanout.Output

	conn    net.PacketConn
	log     *log.Logger
	limiter *rate.Limiter
}

// NewSource constructs a Source. Call Listen to bind before Serve.
func NewSource(name, codec string, out *fanout.Output) *Source {
	return &Source{
		Name:    name,
		Codec:   codec,
		Output:  out,
		log:     log.New(log.Writer(), fmt.Sprintf("rtpserver[%s] ", name), log.LstdFlags),
		limiter: rate.NewLimiter(rate.Limit(defaultPacketRate), defaultPacketRate/4),
	}
}

// SetPacketRate overrides the default per-source datagram processing rate
// limit (packets/second, with a burst of the same size).
func (s *Source) SetPacketRate(packetsPerSecond int) {
	s.limiter = rate.NewLimiter(rate.Limit(packetsPerSecond), packetsPerSecond)
}

// Listen binds the source's UDP socket.
func (s *Source) Listen(addr string) error {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return fmt.Errorf("rtpserver[%s]: listen %s: %w", s.Name, addr, err)
	}
	s.conn = conn
	return nil
}

// Close stops the source by closing its socket; Serve returns shortly
// after.
func (s *Source) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Serve reads datagrams until the socket is closed, depacketizing per
// s.Codec and fanning out each committed frame. It blocks; run it from a
// goroutine, per spec.md §5's "each component is single-threaded and
// cooperative" (one goroutine per source plays the role of one reactor
// loop iteration each).
func (s *Source) Serve() error {
	switch s.Codec {
	case "jpeg":
		return s.serveJPEG()
	case "h264":
		return s.serveH264()
	default:
		return fmt.Errorf("rtpserver[%s]: unknown codec %q", s.Name, s.Codec)
	}
}

func (s *Source) serveJPEG() error {
	var depac rtpjpeg.Depacketizer
	depac.SetWarningFunc(func(msg string) { s.log.Print(msg) })

	buf := make([]byte, maxDatagram)
	for {
		n, _, err := s.conn.ReadFrom(buf)
		if err != nil {
			return err
		}
		if err := s.limiter.Wait(context.Background()); err != nil {
			return err
		}
		pkt, err := rtp.Parse(buf[:n])
		if err != nil {
			s.log.Printf("rtp parse: %v", err)
			continue
		}
		if pkt.PayloadType != payloadTypeJPEG {
			continue
		}
		frame, ok, err := depac.Push(pkt.Timestamp, pkt.SequenceNumber, pkt.Marker, pkt.Payload)
		if err != nil {
			s.log.Printf("depacketize: %v", err)
			continue
		}
		if !ok {
			continue
		}
		typ := imagetype.Type{Format: imagetype.JPEG, DX: frame.Width, DY: frame.Height, Channels: 3}
		if err := s.Output.Send(frame.JPEG, typ); err != nil {
			s.log.Printf("fan-out: %v", err)
		}
	}
}

// serveH264 reassembles NALUs and routes SPS (type 7) and PPS (type 8)
// NALUs to avc.ParseSPS/avc.ParsePPS rather than fanning them out as
// frames: they are parameter sets, not images. The most recently parsed
// SPS's decoded width/height is attached to every subsequent (non
// parameter-set) NALU's Type, the same way serveJPEG attaches the
// depacketizer's Width/Height.
func (s *Source) serveH264() error {
	var reasm rtpavc.Reassembler
	spsByID := make(map[int]avc.SPS)
	ppsSeen := make(map[int]bool)
	var activeSPS avc.SPS
	haveSPS := false

	lookupSPS := func(id int) (avc.SPS, bool) { sps, ok := spsByID[id]; return sps, ok }
	knownPPS := func(id int) bool { return ppsSeen[id] }

	buf := make([]byte, maxDatagram)
	for {
		n, _, err := s.conn.ReadFrom(buf)
		if err != nil {
			return err
		}
		if err := s.limiter.Wait(context.Background()); err != nil {
			return err
		}
		pkt, err := rtp.Parse(buf[:n])
		if err != nil {
			s.log.Printf("rtp parse: %v", err)
			continue
		}
		if pkt.PayloadType < 96 || pkt.PayloadType > 127 {
			continue
		}
		commit, ok, err := reasm.Push(pkt.Timestamp, pkt.SequenceNumber, pkt.Payload)
		if err != nil {
			s.log.Printf("depacketize: %v", err)
			continue
		}
		if !ok {
			continue
		}

		naluType := int(commit.NALU[4] & 0x1f)
		switch naluType {
		case 7: // SPS
			sps, err := avc.ParseSPS(commit.NALU[4:])
			if err != nil {
				s.log.Printf("sps: %v", err)
				continue
			}
			spsByID[sps.ID] = sps
			activeSPS, haveSPS = sps, true
			continue
		case 8: // PPS
			pps, err := avc.ParsePPS(commit.NALU[4:], lookupSPS, knownPPS)
			if err != nil {
				s.log.Printf("pps: %v", err)
				continue
			}
			ppsSeen[pps.ID] = true
			continue
		}

		typ := imagetype.Type{Extra: "video/h264"}
		if haveSPS {
			typ.DX, typ.DY = activeSPS.Width, activeSPS.Height
		}
		if err := s.Output.Send(commit.NALU, typ); err != nil {
			s.log.Printf("fan-out: %v", err)
		}
	}
}
