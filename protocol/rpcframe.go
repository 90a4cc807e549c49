package protocol

import (
	"encoding/binary"
	"errors"
)

// FrameType distinguishes an RPC request frame from a response frame.
type FrameType uint8

const (
	FrameRequest  FrameType = 0
	FrameResponse FrameType = 1

	// FrameError is a response frame carrying a rejection reason instead
	// of a decodable payload, so a call's on_error can fire immediately
	// instead of waiting out its timeout. The wire format leaves room for
	// further frame types without breaking older decoders.
	FrameError FrameType = 2
)

// rpcHeaderSize is seq(4) + type(1) + ping(1) + cmd_len(2).
const rpcHeaderSize = 4 + 1 + 1 + 2

// ErrShortRPCFrame is returned when a decoded frame body is too small to
// contain even the fixed RPC header.
var ErrShortRPCFrame = errors.New("protocol: rpc frame shorter than header")

// RPCFrame is the decoded body of a Frame when the channel carries RPC
// traffic: seq | type | ping | cmd_len | cmd | payload.
type RPCFrame struct {
	Seq     uint32
	Type    FrameType
	Ping    bool
	Cmd     string
	Payload []byte
}

// EncodeRPCFrame lays out an RPCFrame as raw bytes suitable for EncodeFrame.
func EncodeRPCFrame(f *RPCFrame) []byte {
	cmdBytes := []byte(f.Cmd)
	buf := make([]byte, rpcHeaderSize+len(cmdBytes)+len(f.Payload))

	binary.LittleEndian.PutUint32(buf[0:4], f.Seq)
	buf[4] = byte(f.Type)
	if f.Ping {
		buf[5] = 1
	}
	binary.LittleEndian.PutUint16(buf[6:8], uint16(len(cmdBytes)))
	off := rpcHeaderSize
	off += copy(buf[off:], cmdBytes)
	copy(buf[off:], f.Payload)
	return buf
}

// DecodeRPCFrame parses the body of a Frame into an RPCFrame.
//
// The payload has no length field of its own: it is everything past
// cmd_len bytes of cmd, running to the end of the body.
func DecodeRPCFrame(body []byte) (*RPCFrame, error) {
	if len(body) < rpcHeaderSize {
		return nil, ErrShortRPCFrame
	}
	f := &RPCFrame{
		Seq:  binary.LittleEndian.Uint32(body[0:4]),
		Type: FrameType(body[4]),
		Ping: body[5] != 0,
	}
	cmdLen := int(binary.LittleEndian.Uint16(body[6:8]))
	off := rpcHeaderSize
	if off+cmdLen > len(body) {
		return nil, ErrShortRPCFrame
	}
	f.Cmd = string(body[off : off+cmdLen])
	off += cmdLen
	f.Payload = body[off:]
	return f, nil
}
