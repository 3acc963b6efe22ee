package socketio

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Engine.IO v4 packet types, sent as the first byte of every frame.
const (
	engineOpen    = '0'
	engineClose   = '1'
	enginePing    = '2'
	enginePong    = '3'
	engineMessage = '4'
	engineUpgrade = '5'
	engineNoop    = '6'
)

// PacketType is a Socket.IO packet type.
type PacketType int

const (
	PacketConnect PacketType = iota
	PacketDisconnect
	PacketEvent
	PacketAck
	PacketConnectError
	PacketBinaryEvent
	PacketBinaryAck
)

var ErrMalformedPacket = errors.New("socketio: malformed packet")

// Packet is a decoded Socket.IO packet.
type Packet struct {
	Type      PacketType
	Namespace string
	// AckID is -1 when the packet carries none.
	AckID int
	Data  json.RawMessage
}

// EncodeEvent returns the frame for emitting name with args on ns.
// An empty or "/" namespace is the default one.
func EncodeEvent(ns, name string, args ...any) (string, error) {
	payload := make([]any, 0, len(args)+1)
	payload = append(payload, name)
	payload = append(payload, args...)
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode event %s: %w", name, err)
	}
	return string(engineMessage) + strconv.Itoa(int(PacketEvent)) + nsPrefix(ns) + string(data), nil
}

// EncodeConnect returns the frame that joins ns.
func EncodeConnect(ns string, auth any) (string, error) {
	frame := string(engineMessage) + strconv.Itoa(int(PacketConnect)) + nsPrefix(ns)
	if auth == nil {
		return frame, nil
	}
	data, err := json.Marshal(auth)
	if err != nil {
		return "", fmt.Errorf("encode connect: %w", err)
	}
	return frame + string(data), nil
}

func nsPrefix(ns string) string {
	if ns == "" || ns == "/" {
		return ""
	}
	return ns + ","
}

// DecodePacket parses the Socket.IO part of an Engine.IO message frame,
// i.e. everything after the leading '4'.
func DecodePacket(s string) (Packet, error) {
	if s == "" {
		return Packet{}, ErrMalformedPacket
	}
	t := int(s[0] - '0')
	if t < int(PacketConnect) || t > int(PacketBinaryAck) {
		return Packet{}, fmt.Errorf("%w: type %q", ErrMalformedPacket, s[0])
	}
	p := Packet{Type: PacketType(t), Namespace: "/", AckID: -1}
	if p.Type == PacketBinaryEvent || p.Type == PacketBinaryAck {
		return Packet{}, fmt.Errorf("%w: binary packets are not supported", ErrMalformedPacket)
	}
	rest := s[1:]

	if strings.HasPrefix(rest, "/") {
		end := strings.IndexByte(rest, ',')
		if end < 0 {
			p.Namespace = rest
			return p, nil
		}
		p.Namespace = rest[:end]
		rest = rest[end+1:]
	}

	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	if i > 0 {
		id, err := strconv.Atoi(rest[:i])
		if err != nil {
			return Packet{}, fmt.Errorf("%w: ack id: %v", ErrMalformedPacket, err)
		}
		p.AckID = id
		rest = rest[i:]
	}

	if rest != "" {
		if !json.Valid([]byte(rest)) {
			return Packet{}, fmt.Errorf("%w: invalid JSON payload", ErrMalformedPacket)
		}
		p.Data = json.RawMessage(rest)
	}
	return p, nil
}

// Event splits an EVENT packet's data into the event name and its first
// argument.
func (p Packet) Event() (name string, arg json.RawMessage, err error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(p.Data, &parts); err != nil || len(parts) == 0 {
		return "", nil, fmt.Errorf("%w: event payload must be a non-empty array", ErrMalformedPacket)
	}
	if err := json.Unmarshal(parts[0], &name); err != nil {
		return "", nil, fmt.Errorf("%w: event name must be a string", ErrMalformedPacket)
	}
	if len(parts) > 1 {
		arg = parts[1]
	}
	return name, arg, nil
}

// handshake is the Engine.IO open packet payload.
type handshake struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
	MaxPayload   int    `json:"maxPayload"`
}

// connectError is the payload of a CONNECT_ERROR packet.
type connectError struct {
	Message string `json:"message"`
}
