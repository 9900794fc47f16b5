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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type executorFixture struct {
	exec *Executor
	msg  *fakeMessenger
	act  *Actuator
	dev  *fakeDevice
	obs  *countingObserver
}

func newExecutorFixture(t *testing.T) *executorFixture {
	t.Helper()
	act, dev, _ := newTestActuator()
	msg := newFakeMessenger()
	obs := newCountingObserver()
	subs := StandardSubscriptions(act, DefaultTopics(), DefaultTextCapacity, DefaultBlinkInterval, nil)
	exec, err := NewExecutor(msg, act, ExecutorConfig{PollBudget: 10 * time.Millisecond}, nil, obs, subs...)
	require.NoError(t, err)
	return &executorFixture{exec: exec, msg: msg, act: act, dev: dev, obs: obs}
}

func telemetry(values ...string) []published {
	out := make([]published, len(values))
	for i, v := range values {
		out[i] = published{ChannelStatus, v}
	}
	return out
}

func TestExecutorDispatchOrder(t *testing.T) {
	f := newExecutorFixture(t)
	// injected in reverse; handled in registration order
	f.msg.inject(ChannelBlink, "0")
	f.msg.inject(ChannelCommand, "blink 3")
	f.msg.inject(ChannelControl, "true")

	assert.Equal(t, 3, f.exec.Spin(10*time.Millisecond))
	assert.Equal(t, telemetry("true", "false", "false"), f.msg.Sent())
	control := []bool{true}
	blink3 := []bool{true, false, true, false, true, false}
	blink0 := []bool{true, false} // clamped to one cycle
	assert.Equal(t, append(append(control, blink3...), blink0...), f.dev.Levels())
	assert.Equal(t, 1, f.obs.dispatched[ChannelControl])
	assert.Equal(t, 1, f.obs.dispatched[ChannelCommand])
	assert.Equal(t, 1, f.obs.dispatched[ChannelBlink])
	assert.Equal(t, 3, f.obs.published)
}

func TestExecutorBoolPublishesOnce(t *testing.T) {
	f := newExecutorFixture(t)
	f.msg.inject(ChannelControl, `{"data": true}`)
	assert.Equal(t, 1, f.exec.Spin(10*time.Millisecond))
	assert.Equal(t, telemetry("true"), f.msg.Sent())
	assert.True(t, f.act.State())
}

func TestExecutorTextCommands(t *testing.T) {
	f := newExecutorFixture(t)
	for _, tc := range []struct {
		cmd   string
		state bool
	}{
		{"on", true},
		{"status", true},
		{"toggle", false},
		{"TOGGLE", true},
		{"dance", true},
		{"off", false},
	} {
		f.msg.inject(ChannelCommand, tc.cmd)
		assert.Equal(t, 1, f.exec.Spin(10*time.Millisecond), tc.cmd)
		assert.Equal(t, tc.state, f.act.State(), tc.cmd)
	}
	assert.Equal(t, telemetry("true", "true", "false", "true", "true", "false"), f.msg.Sent())
}

// Text that fails to parse as JSON is still a command.
func TestExecutorRawBraceCommand(t *testing.T) {
	f := newExecutorFixture(t)
	f.act.On()
	f.msg.inject(ChannelCommand, "{blink")
	assert.Equal(t, 1, f.exec.Spin(10*time.Millisecond))
	assert.True(t, f.act.State())
	assert.Equal(t, telemetry("true"), f.msg.Sent())
	assert.Zero(t, f.obs.dropped[ChannelCommand])
}

func TestExecutorBlinkEndsOff(t *testing.T) {
	f := newExecutorFixture(t)
	f.act.On()
	f.msg.inject(ChannelBlink, "25")
	assert.Equal(t, 1, f.exec.Spin(10*time.Millisecond))
	assert.Len(t, f.dev.Levels(), 1+2*MaxBlinks)
	assert.Equal(t, telemetry("false"), f.msg.Sent())
}

func TestExecutorDropsMalformed(t *testing.T) {
	f := newExecutorFixture(t)
	f.msg.inject(ChannelControl, "maybe")
	f.msg.inject(ChannelBlink, "many")
	assert.Equal(t, 0, f.exec.Spin(10*time.Millisecond))
	assert.Empty(t, f.msg.Sent())
	assert.Empty(t, f.dev.Levels())
	assert.Equal(t, 1, f.obs.dropped[ChannelControl])
	assert.Equal(t, 1, f.obs.dropped[ChannelBlink])

	// the executor keeps going
	f.msg.inject(ChannelControl, "true")
	assert.Equal(t, 1, f.exec.Spin(10*time.Millisecond))
}

func TestExecutorOnePayloadPerChannelPerPass(t *testing.T) {
	f := newExecutorFixture(t)
	f.msg.inject(ChannelControl, "true")
	f.msg.inject(ChannelControl, "false")
	assert.Equal(t, 1, f.exec.Spin(10*time.Millisecond))
	assert.True(t, f.act.State())
	assert.Equal(t, 1, f.exec.Spin(10*time.Millisecond))
	assert.False(t, f.act.State())
}

func TestExecutorIdleSpin(t *testing.T) {
	f := newExecutorFixture(t)
	start := time.Now()
	assert.Equal(t, 0, f.exec.Spin(20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Empty(t, f.msg.Sent())
}

func TestExecutorWakesOnDelivery(t *testing.T) {
	f := newExecutorFixture(t)
	go func() {
		time.Sleep(20 * time.Millisecond)
		f.msg.inject(ChannelControl, "true")
	}()
	start := time.Now()
	assert.Equal(t, 1, f.exec.Spin(5*time.Second))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestExecutorPublishFailure(t *testing.T) {
	f := newExecutorFixture(t)
	f.msg.failPub = errors.New("agent gone")
	f.msg.inject(ChannelControl, "true")
	assert.Equal(t, 1, f.exec.Spin(10*time.Millisecond))
	assert.True(t, f.act.State())
	assert.Equal(t, 1, f.obs.pubErrors)
}

func TestExecutorInitialState(t *testing.T) {
	f := newExecutorFixture(t)
	f.exec.PublishState()
	assert.Equal(t, telemetry("false"), f.msg.Sent())
}

func TestNewExecutorErrors(t *testing.T) {
	act, _, _ := newTestActuator()
	msg := newFakeMessenger()
	_, err := NewExecutor(msg, act, ExecutorConfig{}, nil, nil)
	assert.ErrorIs(t, err, errNoSubscriptions)

	_, err = NewExecutor(msg, act, ExecutorConfig{}, nil, nil, Subscription{Channel: "x"})
	assert.Error(t, err)

	boom := errors.New("refused")
	msg.failSub = boom
	subs := StandardSubscriptions(act, DefaultTopics(), 0, 0, nil)
	_, err = NewExecutor(msg, act, ExecutorConfig{}, nil, nil, subs...)
	assert.ErrorIs(t, err, boom)
}
