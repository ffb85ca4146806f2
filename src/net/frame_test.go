package net

import (
	"bytes"
	"encoding/binary"
	"io"
	"reflect"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	payloads := [][]byte{
		[]byte(""),
		[]byte("x"),
		[]byte(`{"hash":"abc","data":"hello"}`),
		bytes.Repeat([]byte("z"), 70000),
	}

	buf := new(bytes.Buffer)
	for _, p := range payloads {
		if err := WriteFrame(buf, p); err != nil {
			t.Fatal(err)
		}
	}

	for _, want := range payloads {
		got, err := ReadFrame(buf)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("frame mismatch: got %d bytes, want %d bytes", len(got), len(want))
		}
	}
}

func TestReadFrameTooLarge(t *testing.T) {
	buf := new(bytes.Buffer)
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], MaxFrameSize+1)
	buf.Write(prefix[:])

	if _, err := ReadFrame(buf); err != ErrFrameTooLarge {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestReadFrameTruncated(t *testing.T) {
	buf := new(bytes.Buffer)
	if err := WriteFrame(buf, []byte("full payload")); err != nil {
		t.Fatal(err)
	}

	truncated := bytes.NewBuffer(buf.Bytes()[:buf.Len()-3])
	if _, err := ReadFrame(truncated); err != io.ErrUnexpectedEOF {
		t.Fatalf("expected ErrUnexpectedEOF, got %v", err)
	}
}
