package protocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func encodeN(t *testing.T, n int) []byte {
	t.Helper()
	var buf bytes.Buffer
	for i := 0; i < n; i++ {
		h := Header{Serializer: 1, Type: MsgTypeRequest, RequestID: uint64(i)}
		if err := EncodeFrame(&buf, &h, []byte("payload")); err != nil {
			t.Fatal(err)
		}
	}
	return buf.Bytes()
}

// TestReassemblerByteAtATime feeds one byte per call and expects the
// reassembler to emit exactly one frame once the whole stream has been fed.
func TestReassemblerByteAtATime(t *testing.T) {
	stream := encodeN(t, 1)
	r := NewReassembler()

	var got []Frame
	for _, b := range stream {
		frames, err := r.Feed([]byte{b})
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, frames...)
	}

	if len(got) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(got))
	}
	if string(got[0].Body) != "payload" {
		t.Errorf("body mismatch: got %q", got[0].Body)
	}
}

// TestReassemblerCoalescedFrames feeds 100 concatenated frames in a single
// write and expects 100 frames back in order.
func TestReassemblerCoalescedFrames(t *testing.T) {
	stream := encodeN(t, 100)
	r := NewReassembler()

	frames, err := r.Feed(stream)
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 100 {
		t.Fatalf("expected 100 frames, got %d", len(frames))
	}
	for i, f := range frames {
		if f.Header.RequestID != uint64(i) {
			t.Fatalf("frame %d: RequestID = %d, want %d", i, f.Header.RequestID, i)
		}
	}
}

// TestReassemblerArbitraryPartition splits a multi-frame stream at an
// arbitrary set of boundaries and checks the frames still come out in
// order, exercising the "frame spans multiple reads" and "read contains
// part of next frame" cases together.
func TestReassemblerArbitraryPartition(t *testing.T) {
	stream := encodeN(t, 5)
	r := NewReassembler()

	chunkSizes := []int{1, 3, 7, 2, 50, 1000}
	var got []Frame
	offset := 0
	for _, size := range chunkSizes {
		if offset >= len(stream) {
			break
		}
		end := offset + size
		if end > len(stream) {
			end = len(stream)
		}
		frames, err := r.Feed(stream[offset:end])
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, frames...)
		offset = end
	}
	if offset < len(stream) {
		frames, err := r.Feed(stream[offset:])
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, frames...)
	}

	if len(got) != 5 {
		t.Fatalf("expected 5 frames, got %d", len(got))
	}
	for i, f := range got {
		if f.Header.RequestID != uint64(i) {
			t.Fatalf("frame %d out of order: RequestID = %d", i, f.Header.RequestID)
		}
	}
}

// TestReassemblerPartitionTable checks that for any partition of a
// multi-frame stream across arbitrary read boundaries, the reassembler
// emits exactly the original frames in order, regardless of how the bytes
// were split across reads.
func TestReassemblerPartitionTable(t *testing.T) {
	cases := []struct {
		name       string
		frameCount int
		chunkSize  int // 0 means "single whole-stream write"
	}{
		{"single-write-1-frame", 1, 0},
		{"single-write-100-frames", 100, 0},
		{"one-byte-reads", 3, 1},
		{"two-byte-reads", 10, 2},
		{"odd-sized-reads", 17, 9},
		{"larger-than-stream-reads", 2, 4096},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stream := encodeN(t, tc.frameCount)
			r := NewReassembler()

			var got []Frame
			if tc.chunkSize == 0 {
				frames, err := r.Feed(stream)
				require.NoError(t, err)
				got = frames
			} else {
				for offset := 0; offset < len(stream); offset += tc.chunkSize {
					end := offset + tc.chunkSize
					if end > len(stream) {
						end = len(stream)
					}
					frames, err := r.Feed(stream[offset:end])
					require.NoError(t, err)
					got = append(got, frames...)
				}
			}

			require.Len(t, got, tc.frameCount)
			for i, f := range got {
				require.Equal(t, uint64(i), f.Header.RequestID, "frame %d out of order", i)
				require.Equal(t, "payload", string(f.Body))
			}
		})
	}
}

func TestReassemblerRejectsBadMagic(t *testing.T) {
	bad := make([]byte, HeaderSize)
	bad[0] = 0x02
	bad[1] = Version
	r := NewReassembler()
	if _, err := r.Feed(bad); err == nil {
		t.Fatal("expected error for bad magic")
	}
}
