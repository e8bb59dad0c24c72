// SPDX-License-Identifier: AGPL-3.0-or-later

/*
PDK - a local pipeline execution engine.

Copyright (C) 2025  PDK contributors

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.
*/

package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryManager_SetGetDelete(t *testing.T) {
	m := NewInMemoryManager()
	require.NoError(t, m.Set("TOKEN", "abc123"))

	v, err := m.Get("TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "abc123", v)

	ok, err := m.Exists("TOKEN")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, m.Delete("TOKEN"))
	_, err = m.Get("TOKEN")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryManager_ListAndGetAll(t *testing.T) {
	m := NewInMemoryManager()
	require.NoError(t, m.Set("B", "2"))
	require.NoError(t, m.Set("A", "1"))

	names, err := m.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, names)

	all, err := m.GetAll()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, all)
}

func TestInMemoryManager_DeleteMissing(t *testing.T) {
	m := NewInMemoryManager()
	err := m.Delete("NOPE")
	assert.ErrorIs(t, err, ErrNotFound)
}
