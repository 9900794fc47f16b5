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
	"testing"

	"git.sr.ht/~moody/ninep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// build a test namespace
func newNamespace() (ns *Namespace, err error) {
	ns = NewNamespace("sys", "sys")
	if err = ns.NewFile("/readme", 0444, NewTextFile("Just a test...\n")); err != nil {
		return
	}
	if err = ns.NewDir("/led", 0555); err != nil {
		return
	}
	count := 0
	err = ns.NewFile("/led/count", 0444, NewFuncFile(
		func() ([]byte, error) {
			count++
			return []byte(strconv.Itoa(count)), nil
		},
	))
	return
}

func TestNamespaceNew(t *testing.T) {
	ns, err := newNamespace()
	require.NoError(t, err)

	root := ns.Root()
	require.NotNil(t, root)
	assert.True(t, root.IsDir())
	assert.Equal(t, "/", root.Name())

	e, err := ns.Get("/readme")
	require.NoError(t, err)
	assert.False(t, e.IsDir())
	data, err := e.File().Read()
	require.NoError(t, err)
	assert.Equal(t, "Just a test...\n", string(data))
	assert.Error(t, e.File().Write([]byte("x")))

	e, err = ns.Get("/led/count")
	require.NoError(t, err)
	e.File().Read()
	data, _ = e.File().Read()
	assert.Equal(t, "2", string(data))
}

func TestNamespaceErrors(t *testing.T) {
	ns, err := newNamespace()
	require.NoError(t, err)

	_, err = ns.Get("readme")
	assert.ErrorIs(t, err, errNoAbs)
	_, err = ns.Get("/nothing")
	assert.ErrorIs(t, err, errNoFile)
	_, err = ns.Get("/readme/deeper")
	assert.ErrorIs(t, err, errNoDir)

	assert.ErrorIs(t, ns.NewFile("/readme", 0444, nil), errExists)
	assert.ErrorIs(t, ns.NewDir("/readme/sub", 0555), errNoDir)
	assert.ErrorIs(t, ns.NewDir("/missing/sub", 0555), errNoFile)
}

func TestNamespaceWalk(t *testing.T) {
	ns, err := newNamespace()
	require.NoError(t, err)
	root := ns.Root()

	led := ns.Walk(&root.ref.Qid, "led")
	require.NotNil(t, led)
	assert.Equal(t, byte(ninep.QTDir), led.Type)
	count := ns.Walk(led, "count")
	require.NotNil(t, count)
	assert.Equal(t, byte(ninep.QTFile), count.Type)

	assert.Nil(t, ns.Walk(&root.ref.Qid, "missing"))
	assert.Nil(t, ns.Walk(count, "below-a-file"))
	assert.Nil(t, ns.Walk(&ninep.Qid{Path: 999}, "led"))
}

func TestNamespaceIDsPerInstance(t *testing.T) {
	a, err := newNamespace()
	require.NoError(t, err)
	b, err := newNamespace()
	require.NoError(t, err)
	ea, _ := a.Get("/led/count")
	eb, _ := b.Get("/led/count")
	assert.Equal(t, ea.ref.Path, eb.ref.Path)
	assert.Equal(t, uint64(0), b.Root().ref.Path)
}

func TestValueFile(t *testing.T) {
	f := NewValueFile("false")
	data, err := f.Read()
	require.NoError(t, err)
	assert.Equal(t, "false", string(data))
	data[0] = 'X'
	f.Set([]byte("true"))
	data, _ = f.Read()
	assert.Equal(t, "true", string(data))
	assert.ErrorIs(t, f.Write([]byte("x")), errReadOnly)
}
