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
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// DefaultTextCapacity is the size of a text command buffer in bytes.
const DefaultTextCapacity = 64

var errMalformed = errors.New("malformed payload")

// Decoder is the receive buffer of a subscription. Decode replaces the
// buffer content with the value carried by payload.
type Decoder interface {
	Decode(payload []byte) error
}

// envelope is the message shape of the std_msgs types ({"data": ...}).
type envelope struct {
	Data json.RawMessage `json:"data"`
}

// decodeScalar unmarshals a bare JSON scalar or a {"data": scalar}
// envelope into v.
func decodeScalar(payload []byte, v any) error {
	raw := bytes.TrimSpace(payload)
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty", errMalformed)
	}
	if raw[0] == '{' {
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return fmt.Errorf("%w: %v", errMalformed, err)
		}
		if len(env.Data) == 0 {
			return fmt.Errorf("%w: missing data field", errMalformed)
		}
		raw = env.Data
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	return nil
}

//----------------------------------------------------------------------

// BoolBuffer holds a boolean command.
type BoolBuffer struct {
	Value bool
}

// Decode a boolean payload.
func (b *BoolBuffer) Decode(payload []byte) error {
	var v bool
	if err := decodeScalar(payload, &v); err != nil {
		return err
	}
	b.Value = v
	return nil
}

//----------------------------------------------------------------------

// IntBuffer holds an integer command.
type IntBuffer struct {
	Value int32
}

// Decode an integer payload. Values outside int32 are malformed.
func (b *IntBuffer) Decode(payload []byte) error {
	var v int32
	if err := decodeScalar(payload, &v); err != nil {
		return err
	}
	b.Value = v
	return nil
}

//----------------------------------------------------------------------

// TextBuffer holds a text command of bounded size. Text beyond the
// capacity is cut off without notice.
type TextBuffer struct {
	buf []byte
}

// NewTextBuffer allocates a text buffer holding at most capacity bytes.
func NewTextBuffer(capacity int) *TextBuffer {
	if capacity <= 0 {
		capacity = DefaultTextCapacity
	}
	return &TextBuffer{buf: make([]byte, 0, capacity)}
}

// Decode a text payload: a JSON string or envelope, else the raw text.
func (b *TextBuffer) Decode(payload []byte) error {
	text := payload
	if raw := bytes.TrimSpace(payload); len(raw) > 0 && (raw[0] == '"' || raw[0] == '{') {
		var s string
		if err := decodeScalar(raw, &s); err == nil {
			text = []byte(s)
		}
	}
	n := min(len(text), cap(b.buf))
	b.buf = append(b.buf[:0], text[:n]...)
	return nil
}

// Cap returns the buffer capacity in bytes.
func (b *TextBuffer) Cap() int {
	return cap(b.buf)
}

// String returns the buffered text.
func (b *TextBuffer) String() string {
	return string(b.buf)
}
