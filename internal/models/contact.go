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
	"fmt"
	"net/mail"
	"strings"
)

// Contact is a mailbox with an optional display name. It is used for the sender identity as well
// as for recipients. The zero value is not a valid contact.
type Contact struct {
	address Address
	name    string
}

// NewContact validates the address and pairs it with a display name.
func NewContact(address, name string) (Contact, error) {
	addr, err := Parse(strings.TrimSpace(address))
	if err != nil {
		return Contact{}, err
	}

	return Contact{address: addr, name: strings.TrimSpace(name)}, nil
}

// ParseContact accepts either a bare address or the "Name <address>" form.
func ParseContact(raw string) (Contact, error) {
	parsed, err := mail.ParseAddress(raw)
	if err != nil {
		return Contact{}, fmt.Errorf("%w: %q", ErrInvalidAddressFormat, raw)
	}

	return NewContact(parsed.Address, parsed.Name)
}

// ParseContacts parses every entry with ParseContact and stops at the first error.
func ParseContacts(raws []string) ([]Contact, error) {
	contacts := make([]Contact, 0, len(raws))

	for _, raw := range raws {
		contact, err := ParseContact(raw)
		if err != nil {
			return nil, err
		}

		contacts = append(contacts, contact)
	}

	return contacts, nil
}

func (c Contact) Address() Address {
	return c.address
}

func (c Contact) Name() string {
	return c.name
}

func (c Contact) Domain() string {
	return c.address.Domain()
}

// IsZero reports whether the contact was never constructed.
func (c Contact) IsZero() bool {
	return c.address == ZeroAddress
}

// String formats the contact for use in a mail header.
func (c Contact) String() string {
	if c.name == "" {
		return c.address.String()
	}

	return (&mail.Address{Name: c.name, Address: c.address.String()}).String()
}
