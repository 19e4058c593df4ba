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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukasdietrich/briefsend/internal/models"
)

func TestParseImageMode(t *testing.T) {
	for raw, expected := range map[string]ImageMode{
		"":         ImagesLinked,
		"cid":      ImagesCID,
		" CID ":    ImagesCID,
		"base64":   ImagesBase64,
		"Base64  ": ImagesBase64,
	} {
		actual, err := ParseImageMode(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, expected, actual, raw)
	}

	_, err := ParseImageMode("inline")
	assert.ErrorIs(t, err, ErrInvalidImageMode)
}

func TestDraftRecipients(t *testing.T) {
	contact := func(raw string) models.Contact {
		c, err := models.ParseContact(raw)
		require.NoError(t, err)
		return c
	}

	draft := Draft{
		To:      []models.Contact{contact("a@example.com")},
		Cc:      []models.Contact{contact("b@example.com"), contact("c@example.com")},
		Bcc:     []models.Contact{contact("d@example.com")},
		ReplyTo: []models.Contact{contact("e@example.com")},
	}

	var actual []string
	for _, recipient := range draft.Recipients() {
		actual = append(actual, recipient.Address().String())
	}

	assert.Equal(t, []string{"a@example.com", "b@example.com", "c@example.com", "d@example.com"}, actual)
}

func TestDraftValidateNormalizesImageMode(t *testing.T) {
	from, err := models.ParseContact("news@example.com")
	require.NoError(t, err)

	draft := Draft{
		From:    from,
		To:      []models.Contact{from},
		Subject: "hello",
		HTML:    "<p>hello</p>",
		Images:  " Base64 ",
	}

	require.NoError(t, draft.Validate())
	assert.Equal(t, ImagesBase64, draft.Images)

	draft.Images = "inline"
	assert.ErrorIs(t, draft.Validate(), ErrInvalidImageMode)
}
