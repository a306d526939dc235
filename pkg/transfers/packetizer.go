package transfers

import "time"

// ClockFrequency is the 15 MHz device clock PTS and SCR are expressed in.
const ClockFrequency = 15_000_000

// ticksPerMicroframe is 125us of the device clock.
const ticksPerMicroframe = ClockFrequency / 8000

// PacketDescriptor describes one isochronous packet within a transfer.
type PacketDescriptor struct {
	Offset       uint32
	Length       uint32
	ActualLength uint32
	Status       uint32
}

type IsochronousTransfer struct {
	Data        []byte
	Descriptors []PacketDescriptor
	StartFrame  uint32
}

// Packetizer fills isochronous IN transfers with UVC payloads carved out of
// the frames a FrameReader produces.
type Packetizer struct {
	reader *FrameReader
	now    func() time.Time

	// sof counts eighths of a USB frame, one per packet.
	sof        uint32
	startFrame uint32
}

func NewPacketizer(reader *FrameReader, now func() time.Time) *Packetizer {
	if now == nil {
		now = time.Now
	}
	return &Packetizer{reader: reader, now: now}
}

func clockTicks(t time.Time) uint64 {
	return uint64(t.UnixNano()) * 3 / 200
}

// Transfer builds a reply for a transfer of length bytes split into packets
// packets. Every packet gets a 12 byte header with PTS and SCR. Once the
// current frame ends the remaining packets carry no frame data, so each
// transfer holds at most one frame boundary.
//
// Packets with no room for frame data leave the frame reader alone: packets
// of exactly HeaderLength bytes carry a header without EOF, and packets
// shorter than a header are sent empty. Neither starts or ends a frame.
func (p *Packetizer) Transfer(length, packets int) *IsochronousTransfer {
	if packets <= 0 {
		return &IsochronousTransfer{StartFrame: p.startFrame}
	}
	bpm := length / packets
	room := bpm - HeaderLength
	t0 := clockTicks(p.now())

	out := &IsochronousTransfer{
		Data:        make([]byte, 0, bpm*packets),
		Descriptors: make([]PacketDescriptor, packets),
	}
	var s Slice
	endOfFrame := false
	frameIndex := 0
	for i := 0; i < packets; i++ {
		p.sof = (p.sof + 1) % (65536 * 8)
		if room < 0 {
			out.Descriptors[i] = PacketDescriptor{Offset: uint32(bpm * i), Length: uint32(bpm)}
			continue
		}
		switch {
		case room == 0:
			s = Slice{Epoch: p.now(), FrameIndex: p.reader.Index()}
		case endOfFrame:
			s = Slice{EOF: true, Epoch: s.Epoch, FrameIndex: frameIndex}
		default:
			s = p.reader.Next(room)
		}
		if i == 0 {
			frameIndex = s.FrameIndex
		}

		pl := Payload{HeaderInfoBitmask: HeaderBitEndOfHeader | HeaderBitSCR | HeaderBitPTS, Data: s.Data}
		if frameIndex >= 0 && frameIndex%2 == 0 {
			pl.HeaderInfoBitmask |= HeaderBitFrameID
		}
		if s.EOF {
			pl.HeaderInfoBitmask |= HeaderBitEndOfFrame
			endOfFrame = true
		}
		pl.PTS = uint32(clockTicks(s.Epoch))
		pl.SCR.SourceTimeClock = uint32(t0 + uint64(i)*ticksPerMicroframe)
		pl.SCR.TokenCounter = uint16(p.sof / 8)

		out.Data = pl.AppendTo(out.Data)
		out.Descriptors[i] = PacketDescriptor{
			Offset:       uint32(bpm * i),
			Length:       uint32(bpm),
			ActualLength: uint32(pl.Len()),
		}
	}
	p.startFrame += uint32(packets)
	out.StartFrame = p.startFrame
	return out
}
