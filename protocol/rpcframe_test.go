package protocol

import (
	"bytes"
	"testing"
)

func TestRPCFrameRoundTrip(t *testing.T) {
	f := &RPCFrame{
		Seq:     42,
		Type:    FrameRequest,
		Ping:    false,
		Cmd:     "publish",
		Payload: []byte(`{"topic":"t","data":"x"}`),
	}

	body := EncodeRPCFrame(f)
	got, err := DecodeRPCFrame(body)
	if err != nil {
		t.Fatalf("DecodeRPCFrame failed: %v", err)
	}
	if got.Seq != f.Seq || got.Type != f.Type || got.Ping != f.Ping || got.Cmd != f.Cmd {
		t.Fatalf("header mismatch: got %+v, want %+v", got, f)
	}
	if !bytes.Equal(got.Payload, f.Payload) {
		t.Fatalf("payload mismatch: got %q, want %q", got.Payload, f.Payload)
	}
}

func TestRPCFramePingResponseEmptyPayload(t *testing.T) {
	f := &RPCFrame{Seq: 7, Type: FrameResponse, Ping: true, Cmd: ""}
	body := EncodeRPCFrame(f)
	got, err := DecodeRPCFrame(body)
	if err != nil {
		t.Fatalf("DecodeRPCFrame failed: %v", err)
	}
	if !got.Ping || got.Cmd != "" || len(got.Payload) != 0 {
		t.Fatalf("expect empty ping response, got %+v", got)
	}
}

func TestRPCFrameShort(t *testing.T) {
	if _, err := DecodeRPCFrame([]byte{1, 2, 3}); err != ErrShortRPCFrame {
		t.Fatalf("expect ErrShortRPCFrame, got %v", err)
	}
}
