// SPDX-License-Identifier: MIT
package transport

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestCodecs(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		msgType int
	}{
		{"json", websocket.TextMessage},
		{"msgpack", websocket.BinaryMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			codec, err := NewCodec(tt.name)
			if err != nil {
				t.Fatalf("NewCodec: %v", err)
			}
			if codec.Name() != tt.name || codec.MessageType() != tt.msgType {
				t.Errorf("codec %s: name %q type %d", tt.name, codec.Name(), codec.MessageType())
			}

			in := Summarize(testFrame(42), 4, time.Unix(1, 0))
			data, err := codec.Marshal(in)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			var out Summary
			if err := codec.Unmarshal(data, &out); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if out.Seq != 42 || out.Timestamp != in.Timestamp || len(out.Channels) != 2 {
				t.Errorf("decoded %+v", out)
			}
			if out.Channels[0].Magnitudes[3] != in.Channels[0].Magnitudes[3] {
				t.Errorf("magnitude mismatch: %v vs %v", out.Channels[0].Magnitudes, in.Channels[0].Magnitudes)
			}
		})
	}
}

func TestNewCodecUnknown(t *testing.T) {
	t.Parallel()
	if _, err := NewCodec("xml"); err == nil {
		t.Error("NewCodec(xml) succeeded")
	}
}
