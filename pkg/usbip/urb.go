package usbip

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Command is the first word of every message once a device is attached.
type Command uint32

const (
	CmdSubmit Command = 1
	CmdUnlink Command = 2
	RetSubmit Command = 3
	RetUnlink Command = 4
)

func (c Command) String() string {
	switch c {
	case CmdSubmit:
		return "CMD_SUBMIT"
	case CmdUnlink:
		return "CMD_UNLINK"
	case RetSubmit:
		return "RET_SUBMIT"
	case RetUnlink:
		return "RET_UNLINK"
	}
	return fmt.Sprintf("CMD_%#x", uint32(c))
}

const (
	CommandHeaderLength = 48
	ReplyHeaderLength   = 40
	IsoDescriptorLength = 16
	SetupLength         = 8
)

// StatusUnlinked is -ECONNRESET as seen by the host for an unlinked URB.
const StatusUnlinked uint32 = 0xffffff98

type Direction uint32

const (
	DirOut Direction = 0
	DirIn  Direction = 1
)

func (d Direction) String() string {
	if d == DirIn {
		return "in"
	}
	return "out"
}

// TransferFlags mirrors the URB transfer_flags of the submitting kernel.
type TransferFlags uint32

const (
	URBShortNotOK       TransferFlags = 1 << 0
	URBIsoASAP          TransferFlags = 1 << 1
	URBNoTransferDMAMap TransferFlags = 1 << 2
	URBZeroPacket       TransferFlags = 1 << 6
	URBNoInterrupt      TransferFlags = 1 << 7
	URBFreeBuffer       TransferFlags = 1 << 8
	URBDirMask          TransferFlags = 1 << 9
)

var flagNames = []struct {
	flag TransferFlags
	name string
}{
	{URBShortNotOK, "SHORT_NOT_OK"},
	{URBIsoASAP, "ISO_ASAP"},
	{URBNoTransferDMAMap, "NO_TRANSFER_DMA_MAP"},
	{URBZeroPacket, "ZERO_PACKET"},
	{URBNoInterrupt, "NO_INTERRUPT"},
	{URBFreeBuffer, "FREE_BUFFER"},
	{URBDirMask, "DIR_MASK"},
}

func (f TransferFlags) Has(flag TransferFlags) bool { return f&flag != 0 }

func (f TransferFlags) String() string {
	var names []string
	for _, fn := range flagNames {
		if f.Has(fn.flag) {
			names = append(names, fn.name)
		}
	}
	if len(names) == 0 {
		return "0"
	}
	return strings.Join(names, "|")
}

// SetupOnly reports whether only the setup bytes of the reply payload may be
// returned, which is the case for every URB that is not an IN transfer. The
// host reads no data stage for OUT pipes.
func (f TransferFlags) SetupOnly() bool {
	return !f.Has(URBDirMask)
}

// IsoPacketDescriptor is one row of the isochronous descriptor table that
// trails CMD_SUBMIT and RET_SUBMIT.
type IsoPacketDescriptor struct {
	Offset       uint32
	Length       uint32
	ActualLength uint32
	Status       uint32
}

// AppendIsoDescriptors appends ds as 16 byte big endian rows.
func AppendIsoDescriptors(buf []byte, ds []IsoPacketDescriptor) []byte {
	for _, d := range ds {
		buf = binary.BigEndian.AppendUint32(buf, d.Offset)
		buf = binary.BigEndian.AppendUint32(buf, d.Length)
		buf = binary.BigEndian.AppendUint32(buf, d.ActualLength)
		buf = binary.BigEndian.AppendUint32(buf, d.Status)
	}
	return buf
}

func parseIsoDescriptors(buf []byte, n int) []IsoPacketDescriptor {
	ds := make([]IsoPacketDescriptor, n)
	for i := range ds {
		row := buf[i*IsoDescriptorLength:]
		ds[i] = IsoPacketDescriptor{
			Offset:       binary.BigEndian.Uint32(row[0:4]),
			Length:       binary.BigEndian.Uint32(row[4:8]),
			ActualLength: binary.BigEndian.Uint32(row[8:12]),
			Status:       binary.BigEndian.Uint32(row[12:16]),
		}
	}
	return ds
}

// Message is an inbound message: *ImportRequest, *Submit or *Unlink.
type Message interface {
	message()
}

// Submit is CMD_SUBMIT.
type Submit struct {
	SeqNum               uint32
	DevID                uint32
	Direction            Direction
	Endpoint             uint32
	Flags                TransferFlags
	TransferBufferLength uint32
	StartFrame           uint32
	NumberOfPackets      uint32
	Interval             uint32
	Setup                [SetupLength]byte

	// Data is the OUT data stage, empty for IN transfers.
	Data           []byte
	IsoDescriptors []IsoPacketDescriptor
}

func (*Submit) message() {}

// bodyLength is the number of bytes that follow the 48 byte header.
func (s *Submit) bodyLength() int {
	n := 0
	if s.Direction == DirOut {
		n += int(s.TransferBufferLength)
	}
	return n + int(s.NumberOfPackets)*IsoDescriptorLength
}

func (s *Submit) String() string {
	return fmt.Sprintf("seqnum=%d ep=%d dir=%s flags=%s len=%d packets=%d interval=%d setup=%x",
		s.SeqNum, s.Endpoint, s.Direction, s.Flags, s.TransferBufferLength, s.NumberOfPackets, s.Interval, s.Setup)
}

func (s *Submit) MarshalBinary() ([]byte, error) {
	buf := make([]byte, CommandHeaderLength, CommandHeaderLength+s.bodyLength())
	for i, v := range []uint32{
		uint32(CmdSubmit), s.SeqNum, s.DevID, uint32(s.Direction), s.Endpoint,
		uint32(s.Flags), s.TransferBufferLength, s.StartFrame, s.NumberOfPackets, s.Interval,
	} {
		binary.BigEndian.PutUint32(buf[4*i:], v)
	}
	copy(buf[40:48], s.Setup[:])
	if s.Direction == DirOut {
		if len(s.Data) != int(s.TransferBufferLength) {
			return nil, fmt.Errorf("%w: %d OUT bytes, transfer buffer length %d", ErrProtocolViolation, len(s.Data), s.TransferBufferLength)
		}
		buf = append(buf, s.Data...)
	}
	if len(s.IsoDescriptors) != int(s.NumberOfPackets) {
		return nil, fmt.Errorf("%w: %d iso descriptors, %d packets", ErrProtocolViolation, len(s.IsoDescriptors), s.NumberOfPackets)
	}
	return AppendIsoDescriptors(buf, s.IsoDescriptors), nil
}

// Unlink is CMD_UNLINK.
type Unlink struct {
	SeqNum       uint32
	DevID        uint32
	Direction    Direction
	Endpoint     uint32
	UnlinkSeqNum uint32
}

func (*Unlink) message() {}

func (u *Unlink) MarshalBinary() ([]byte, error) {
	buf := make([]byte, CommandHeaderLength)
	for i, v := range []uint32{uint32(CmdUnlink), u.SeqNum, u.DevID, uint32(u.Direction), u.Endpoint, u.UnlinkSeqNum} {
		binary.BigEndian.PutUint32(buf[4*i:], v)
	}
	return buf, nil
}

// ParseHandshake parses OP_REQ_IMPORT from the head of buf. It returns a nil
// message and zero length when more bytes are needed.
func ParseHandshake(buf []byte) (Message, int, error) {
	if len(buf) < 4 {
		return nil, 0, nil
	}
	if code := OpCode(binary.BigEndian.Uint16(buf[2:4])); code != OpReqImport {
		return nil, 0, fmt.Errorf("%w: version %#04x, %s during handshake", ErrProtocolViolation, binary.BigEndian.Uint16(buf[0:2]), code)
	}
	if len(buf) < ImportRequestSize {
		return nil, 0, nil
	}
	req := &ImportRequest{}
	if err := req.UnmarshalBinary(buf); err != nil {
		return nil, 0, err
	}
	return req, ImportRequestSize, nil
}

// ParseCommand parses one CMD_SUBMIT or CMD_UNLINK from the head of buf. It
// returns a nil message and zero length when more bytes are needed. Replies
// sent by the host are a protocol violation; any other command yields
// ErrUnknownCommand.
func ParseCommand(buf []byte) (Message, int, error) {
	if len(buf) < 4 {
		return nil, 0, nil
	}
	cmd := Command(binary.BigEndian.Uint32(buf[0:4]))
	switch cmd {
	case CmdSubmit, CmdUnlink:
	case RetSubmit, RetUnlink:
		return nil, 0, fmt.Errorf("%w: host sent %s", ErrProtocolViolation, cmd)
	default:
		return nil, 0, fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
	}
	if len(buf) < CommandHeaderLength {
		return nil, 0, nil
	}
	word := func(i int) uint32 { return binary.BigEndian.Uint32(buf[4*i:]) }

	if cmd == CmdUnlink {
		return &Unlink{
			SeqNum:       word(1),
			DevID:        word(2),
			Direction:    Direction(word(3)),
			Endpoint:     word(4),
			UnlinkSeqNum: word(5),
		}, CommandHeaderLength, nil
	}

	s := &Submit{
		SeqNum:               word(1),
		DevID:                word(2),
		Direction:            Direction(word(3)),
		Endpoint:             word(4),
		Flags:                TransferFlags(word(5)),
		TransferBufferLength: word(6),
		StartFrame:           word(7),
		NumberOfPackets:      word(8),
		Interval:             word(9),
	}
	copy(s.Setup[:], buf[40:48])
	n := CommandHeaderLength + s.bodyLength()
	if len(buf) < n {
		return nil, 0, nil
	}
	body := buf[CommandHeaderLength:n]
	if s.Direction == DirOut {
		s.Data = append([]byte(nil), body[:s.TransferBufferLength]...)
		body = body[s.TransferBufferLength:]
	}
	if s.NumberOfPackets > 0 {
		s.IsoDescriptors = parseIsoDescriptors(body, int(s.NumberOfPackets))
	}
	return s, n, nil
}

// Reply is RET_SUBMIT or RET_UNLINK. Payload is the URB payload, 8 setup
// bytes followed by the data stage.
type Reply struct {
	Command         Command
	SeqNum          uint32
	Status          uint32
	Payload         []byte
	StartFrame      uint32
	NumberOfPackets uint32
	IsoDescriptors  []IsoPacketDescriptor
}

// ActualLength is the payload length less the setup bytes.
func (r *Reply) ActualLength() uint32 {
	return uint32(max(len(r.Payload)-SetupLength, 0))
}

// AppendTo appends the wire encoding of r. Without DIR_MASK in flags only the
// setup bytes of the payload are written; the actual length still reflects
// the whole payload.
func (r *Reply) AppendTo(buf []byte, flags TransferFlags) []byte {
	payload := r.Payload
	if flags.SetupOnly() && len(payload) > SetupLength {
		payload = payload[:SetupLength]
	}
	for _, v := range []uint32{
		uint32(r.Command), r.SeqNum,
		0, 0, 0, // devid, direction, ep
		r.Status, r.ActualLength(), r.StartFrame, r.NumberOfPackets,
		0, // error count
	} {
		buf = binary.BigEndian.AppendUint32(buf, v)
	}
	buf = append(buf, payload...)
	return AppendIsoDescriptors(buf, r.IsoDescriptors)
}

// ParseReply decodes a reply written by AppendTo, for use by clients and
// tests. Payload holds whatever follows the header up to the descriptor table.
func ParseReply(buf []byte) (*Reply, error) {
	if len(buf) < ReplyHeaderLength {
		return nil, ErrShortBuffer
	}
	word := func(i int) uint32 { return binary.BigEndian.Uint32(buf[4*i:]) }
	r := &Reply{
		Command:         Command(word(0)),
		SeqNum:          word(1),
		Status:          word(5),
		StartFrame:      word(7),
		NumberOfPackets: word(8),
	}
	table := int(r.NumberOfPackets) * IsoDescriptorLength
	if len(buf) < ReplyHeaderLength+table {
		return nil, ErrShortBuffer
	}
	end := len(buf) - table
	r.Payload = buf[ReplyHeaderLength:end]
	if r.NumberOfPackets > 0 {
		r.IsoDescriptors = parseIsoDescriptors(buf[end:], int(r.NumberOfPackets))
	}
	return r, nil
}
