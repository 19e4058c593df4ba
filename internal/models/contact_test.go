// Copyright (C) 2020  Lukas Dietrich <lukas@lukasdietrich.com>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewContactValid(t *testing.T) {
	contact, err := NewContact("johndoe@example.com", "John Doe")
	require.NoError(t, err)

	assert.Equal(t, "johndoe@example.com", contact.Address().String())
	assert.Equal(t, "John Doe", contact.Name())
	assert.Equal(t, "example.com", contact.Domain())
	assert.False(t, contact.IsZero())
}

func TestNewContactInvalid(t *testing.T) {
	contact, err := NewContact("not a valid email", "John Doe")
	assert.ErrorIs(t, err, ErrInvalidAddressFormat)
	assert.True(t, contact.IsZero())
}

func TestContactString(t *testing.T) {
	withName, err := NewContact("johndoe@example.com", "John Doe")
	require.NoError(t, err)
	assert.Equal(t, `"John Doe" <johndoe@example.com>`, withName.String())

	withoutName, err := NewContact("johndoe@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, "johndoe@example.com", withoutName.String())
}

func TestParseContact(t *testing.T) {
	for raw, expected := range map[string]string{
		"bar@baz.com":                   "bar@baz.com",
		"Bar <bar@baz.com>":             `"Bar" <bar@baz.com>`,
		`"Baz, Bar" <bar@baz.com>`:      `"Baz, Bar" <bar@baz.com>`,
		"  spaced@example.com  ":        "spaced@example.com",
		"Charles <charles@example.org>": `"Charles" <charles@example.org>`,
	} {
		contact, err := ParseContact(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, expected, contact.String())
	}
}

func TestParseContacts(t *testing.T) {
	contacts, err := ParseContacts([]string{"a@example.com", "B <b@example.com>"})
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	assert.Equal(t, "b@example.com", contacts[1].Address().String())

	_, err = ParseContacts([]string{"a@example.com", "invalid"})
	assert.ErrorIs(t, err, ErrInvalidAddressFormat)
}
