// render.go: Line rendering
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mnemo

import (
	"strconv"
	"strings"
)

// renderLine builds "[<stamp>] [<TAG>] <message>[ [<context>]][ [IP:a.b.c.d]]".
// The IPv4 address is read as big-endian: 0x7F000001 renders 127.0.0.1.
// CR and LF in message and context become spaces so an event is one line.
func renderLine(buf []byte, ts string, level Level, message, context string, addr uint32) []byte {
	buf = append(buf, '[')
	buf = append(buf, ts...)
	buf = append(buf, "] ["...)
	buf = append(buf, level.Tag()...)
	buf = append(buf, "] "...)
	buf = appendSingleLine(buf, message)
	if context != "" {
		buf = append(buf, " ["...)
		buf = appendSingleLine(buf, context)
		buf = append(buf, ']')
	}
	if addr != 0 {
		buf = append(buf, " [IP:"...)
		buf = appendIPv4(buf, addr)
		buf = append(buf, ']')
	}
	return buf
}

func appendSingleLine(buf []byte, s string) []byte {
	if strings.IndexAny(s, "\r\n") < 0 {
		return append(buf, s...)
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\r' || c == '\n' {
			c = ' '
		}
		buf = append(buf, c)
	}
	return buf
}

func appendIPv4(buf []byte, addr uint32) []byte {
	buf = strconv.AppendUint(buf, uint64(addr>>24), 10)
	buf = append(buf, '.')
	buf = strconv.AppendUint(buf, uint64(addr>>16&0xff), 10)
	buf = append(buf, '.')
	buf = strconv.AppendUint(buf, uint64(addr>>8&0xff), 10)
	buf = append(buf, '.')
	return strconv.AppendUint(buf, uint64(addr&0xff), 10)
}

// FormatIPv4 renders a 32-bit big-endian address as a dotted quad.
func FormatIPv4(addr uint32) string {
	return string(appendIPv4(make([]byte, 0, 15), addr))
}
