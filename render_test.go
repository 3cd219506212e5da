// render_test.go: Line rendering tests
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mnemo

import "testing"

func TestRenderLine(t *testing.T) {
	const ts = "2024-03-10 12:34:56"
	tests := []struct {
		name    string
		level   Level
		message string
		context string
		addr    uint32
		want    string
	}{
		{"MessageOnly", LevelInfo, "server started", "", 0, "[2024-03-10 12:34:56] [INFO] server started"},
		{"WithContext", LevelWarning, "login failed", "user=alice", 0, "[2024-03-10 12:34:56] [WARN] login failed [user=alice]"},
		{"WithAddress", LevelPackets, "recv 0x10", "", 0x7F000001, "[2024-03-10 12:34:56] [PACKETS] recv 0x10 [IP:127.0.0.1]"},
		{"ContextAndAddress", LevelError, "drop", "len=0", 0xC0A80A01, "[2024-03-10 12:34:56] [ERROR] drop [len=0] [IP:192.168.10.1]"},
		{"EmptyMessage", LevelQuest, "", "", 0, "[2024-03-10 12:34:56] [QUEST] "},
		{"MultilineMessage", LevelError, "panic:\nstack\r\nframe", "", 0, "[2024-03-10 12:34:56] [ERROR] panic: stack  frame"},
		{"MultilineContext", LevelInfo, "query", "a\nb", 0, "[2024-03-10 12:34:56] [INFO] query [a b]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(renderLine(nil, ts, tt.level, tt.message, tt.context, tt.addr))
			if got != tt.want {
				t.Errorf("renderLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatIPv4(t *testing.T) {
	tests := map[uint32]string{
		0x00000001: "0.0.0.1",
		0x7F000001: "127.0.0.1",
		0xFFFFFFFF: "255.255.255.255",
		0x0A000203: "10.0.2.3",
	}
	for in, want := range tests {
		if got := FormatIPv4(in); got != want {
			t.Errorf("FormatIPv4(%#x) = %q, want %q", in, got, want)
		}
	}
}
