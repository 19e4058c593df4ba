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
	"fmt"
	"net"
	"strings"
)

// MockResolver is a map backed Resolver for tests. Names are matched case-insensitively and
// without a trailing dot. Names listed in Failing answer with ErrLookupFailed.
type MockResolver struct {
	TXT     map[string][]string
	IP      map[string][]net.IP
	MX      map[string][]string
	Failing map[string]bool

	// Queries records every looked up name in order.
	Queries []string
}

func NewMockResolver() *MockResolver {
	return &MockResolver{
		TXT:     make(map[string][]string),
		IP:      make(map[string][]net.IP),
		MX:      make(map[string][]string),
		Failing: make(map[string]bool),
	}
}

func mockKey(name string) string {
	return strings.ToLower(strings.TrimSuffix(name, "."))
}

func (m *MockResolver) lookup(name string) (string, error) {
	key := mockKey(name)
	m.Queries = append(m.Queries, key)

	if m.Failing[key] {
		return key, fmt.Errorf("%w: %s: mocked failure", ErrLookupFailed, name)
	}

	return key, nil
}

func (m *MockResolver) LookupTXT(_ context.Context, name string) ([]string, error) {
	key, err := m.lookup(name)
	if err != nil {
		return nil, err
	}

	if records, ok := m.TXT[key]; ok && len(records) > 0 {
		return records, nil
	}

	return nil, fmt.Errorf("%w: no TXT record for %s", ErrNotFound, name)
}

func (m *MockResolver) LookupIP(_ context.Context, name string) ([]net.IP, error) {
	key, err := m.lookup(name)
	if err != nil {
		return nil, err
	}

	if ips, ok := m.IP[key]; ok && len(ips) > 0 {
		return ips, nil
	}

	return nil, fmt.Errorf("%w: no address for %s", ErrNotFound, name)
}

func (m *MockResolver) LookupMX(_ context.Context, name string) ([]string, error) {
	key, err := m.lookup(name)
	if err != nil {
		return nil, err
	}

	if hosts, ok := m.MX[key]; ok && len(hosts) > 0 {
		return hosts, nil
	}

	return nil, fmt.Errorf("%w: no MX record for %s", ErrNotFound, name)
}
