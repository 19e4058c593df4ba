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

package message

import (
	"context"
	"io"

	"github.com/lukasdietrich/briefsend/internal/models"
	"github.com/lukasdietrich/briefsend/internal/storage"
)

// Message is a rendered mail, ready to be transmitted. It has to be released after use.
type Message struct {
	// ID is the Message-ID without angle brackets.
	ID   string
	From models.Contact
	// Recipients are the envelope recipients including Bcc.
	Recipients []models.Contact

	entry storage.CacheEntry
}

// NewMessage wraps a rendered message stored in entry.
func NewMessage(id string, from models.Contact, recipients []models.Contact, entry storage.CacheEntry) *Message {
	return &Message{
		ID:         id,
		From:       from,
		Recipients: recipients,
		entry:      entry,
	}
}

// Reader returns the complete rfc5322 message. It can be called multiple times.
func (m *Message) Reader() (io.Reader, error) {
	return m.entry.Reader()
}

// Size returns the size of the rendered message in bytes.
func (m *Message) Size() int64 {
	return m.entry.Size()
}

// Release discards the rendered message.
func (m *Message) Release(ctx context.Context) error {
	return m.entry.Release(ctx)
}
