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

package dns

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockResolver(t *testing.T) {
	resolver := NewMockResolver()
	resolver.TXT["example.com"] = []string{"v=spf1 -all"}
	resolver.IP["mail.example.com"] = []net.IP{net.ParseIP("192.0.2.25")}
	resolver.Failing["broken.example.com"] = true

	records, err := resolver.LookupTXT(context.TODO(), "Example.COM.")
	require.NoError(t, err)
	assert.Equal(t, []string{"v=spf1 -all"}, records)

	ips, err := resolver.LookupIP(context.TODO(), "mail.example.com")
	require.NoError(t, err)
	assert.Len(t, ips, 1)

	_, err = resolver.LookupMX(context.TODO(), "example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = resolver.LookupTXT(context.TODO(), "broken.example.com")
	assert.ErrorIs(t, err, ErrLookupFailed)

	assert.Equal(t, []string{"example.com", "mail.example.com", "example.com", "broken.example.com"}, resolver.Queries)
}
