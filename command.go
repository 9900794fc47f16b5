//----------------------------------------------------------------------
// This file is part of ledlink.
// Copyright (C) 2024-present Bernd Fix   >Y<
//
// ledlink is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// ledlink is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL3.0-or-later
//----------------------------------------------------------------------

package ledlink

import (
	"strconv"
	"strings"
)

// CommandKind enumerates the text commands.
type CommandKind int

// text commands
const (
	CmdUnknown CommandKind = iota // not recognized
	CmdOn                         // ON
	CmdOff                        // OFF
	CmdToggle                     // TOGGLE
	CmdBlink                      // BLINK[ <n>]
	CmdStatus                     // STATUS
)

// String returns the command keyword.
func (k CommandKind) String() string {
	switch k {
	case CmdOn:
		return "ON"
	case CmdOff:
		return "OFF"
	case CmdToggle:
		return "TOGGLE"
	case CmdBlink:
		return "BLINK"
	case CmdStatus:
		return "STATUS"
	}
	return "UNKNOWN"
}

// Command is a parsed text command.
type Command struct {
	Kind  CommandKind
	Count int    // repeat count (CmdBlink only; not clamped)
	Text  string // case-folded input
}

// ParseCommand case-folds text and parses it as one of
// ON | OFF | TOGGLE | STATUS | BLINK[ <n>].
// Anything else yields CmdUnknown.
func ParseCommand(text string) Command {
	cmd := upperASCII(strings.TrimSpace(text))
	switch {
	case cmd == "ON":
		return Command{Kind: CmdOn, Text: cmd}
	case cmd == "OFF":
		return Command{Kind: CmdOff, Text: cmd}
	case cmd == "TOGGLE":
		return Command{Kind: CmdToggle, Text: cmd}
	case cmd == "STATUS":
		return Command{Kind: CmdStatus, Text: cmd}
	case strings.HasPrefix(cmd, "BLINK"):
		return Command{Kind: CmdBlink, Count: blinkCount(cmd[len("BLINK"):]), Text: cmd}
	}
	return Command{Kind: CmdUnknown, Text: cmd}
}

// blinkCount reads a leading (optionally signed) integer from arg after
// skipping blanks. Without one the default repeat count applies.
func blinkCount(arg string) int {
	arg = strings.TrimLeft(arg, " \t")
	end := 0
	if end < len(arg) && (arg[end] == '+' || arg[end] == '-') {
		end++
	}
	for end < len(arg) && arg[end] >= '0' && arg[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(arg[:end])
	if err != nil {
		return DefaultBlinks
	}
	return n
}

// upperASCII folds a-z only; other bytes pass through unchanged.
func upperASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}
