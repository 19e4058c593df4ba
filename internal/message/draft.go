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
	"fmt"
	"strings"

	"github.com/lukasdietrich/briefsend/internal/models"
)

// ImageMode controls how remote images of the html body are embedded.
type ImageMode string

const (
	// ImagesLinked leaves images untouched.
	ImagesLinked ImageMode = ""
	// ImagesCID embeds images as related parts, referenced by content-id.
	ImagesCID ImageMode = "cid"
	// ImagesBase64 embeds images as data uris.
	ImagesBase64 ImageMode = "base64"
)

// ParseImageMode validates the name of an image mode.
func ParseImageMode(raw string) (ImageMode, error) {
	switch mode := ImageMode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case ImagesLinked, ImagesCID, ImagesBase64:
		return mode, nil
	default:
		return mode, fmt.Errorf("%w: %q", ErrInvalidImageMode, raw)
	}
}

// Attachment is a file to attach. Without ContentType, the type is guessed from the file.
type Attachment struct {
	Path        string
	ContentType string
}

// Draft is everything needed to build a message.
type Draft struct {
	From    models.Contact
	To      []models.Contact
	Cc      []models.Contact
	Bcc     []models.Contact
	ReplyTo []models.Contact
	Subject string

	// HTML is literal html content. It is mutually exclusive with Template.
	HTML string
	// Text is the plain text alternative. It is derived from the html if empty.
	Text string

	// Template is the name of an html template and Data is passed to it.
	Template string
	Data     map[string]interface{}

	Attachments []Attachment
	Images      ImageMode
}

// Recipients returns the envelope recipients, which include Bcc.
func (d *Draft) Recipients() []models.Contact {
	recipients := make([]models.Contact, 0, len(d.To)+len(d.Cc)+len(d.Bcc))
	recipients = append(recipients, d.To...)
	recipients = append(recipients, d.Cc...)
	recipients = append(recipients, d.Bcc...)

	return recipients
}

// Validate checks that the draft is complete before anything is rendered. The image mode is
// normalized in place.
func (d *Draft) Validate() error {
	switch {
	case d.HTML != "" && d.Template != "":
		return ErrAmbiguousContent
	case d.HTML == "" && d.Template == "":
		return ErrNoContent
	case d.From.IsZero():
		return ErrNoSender
	case len(d.Recipients()) == 0:
		return ErrNoRecipients
	case strings.TrimSpace(d.Subject) == "":
		return ErrNoSubject
	}

	mode, err := ParseImageMode(string(d.Images))
	if err != nil {
		return err
	}

	d.Images = mode
	return nil
}
