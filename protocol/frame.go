// Package protocol implements the two wire envelopes this library speaks.
//
// The outer envelope is the framed-channel wire format: a little-endian
// u32 body length followed by that many bytes. It solves TCP's sticky
// packet problem the same way the original mini-rpc protocol did, just
// with the header spirit-labs-tektite's sockserver uses (length only,
// no magic/version bytes — the channel above decides what the body means).
//
// The inner envelope, RPCFrame, is the body of a Frame when the channel
// carries RPC traffic: seq | type | ping | cmd_len | cmd | payload.
package protocol

import (
	"encoding/binary"
	"errors"
	"io"
)

// LengthPrefixSize is the size in bytes of the outer frame's length header.
const LengthPrefixSize = 4

// ErrFrameTooLarge is returned by DecodeFrame when an inbound frame's body
// exceeds the configured maximum. It is a fatal, channel-closing error.
var ErrFrameTooLarge = errors.New("protocol: frame body exceeds max body size")

// EncodeFrame writes body prefixed by its little-endian u32 length to w.
func EncodeFrame(w io.Writer, body []byte) error {
	var hdr [LengthPrefixSize]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(body)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	_, err := w.Write(body)
	return err
}

// DecodeFrame reads one length-prefixed frame from r.
//
// If the encoded length exceeds maxBodySize, ErrFrameTooLarge is returned
// without attempting to read the body — the caller must treat this as
// fatal to the channel, per spec.
func DecodeFrame(r io.Reader, maxBodySize uint32) ([]byte, error) {
	var hdr [LengthPrefixSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	length := binary.LittleEndian.Uint32(hdr[:])
	if length > maxBodySize {
		return nil, ErrFrameTooLarge
	}
	if length == 0 {
		return nil, nil
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}
