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
	"errors"
)

var (
	// ErrNoContent is returned when neither html nor a template is given.
	ErrNoContent = errors.New("message: either html or a template is required")
	// ErrAmbiguousContent is returned when both html and a template are given.
	ErrAmbiguousContent = errors.New("message: html and template are mutually exclusive")
	// ErrNoRecipients is returned for drafts without any To, Cc or Bcc recipient.
	ErrNoRecipients = errors.New("message: at least one recipient is required")
	// ErrNoSubject is returned for drafts with an empty subject.
	ErrNoSubject = errors.New("message: subject is required")
	// ErrNoSender is returned for drafts without sender.
	ErrNoSender = errors.New("message: sender is required")
	// ErrInvalidImageMode is returned for image modes other than cid and base64.
	ErrInvalidImageMode = errors.New("message: invalid inline image mode")
	// ErrAttachmentNotFound is returned when an attachment file does not exist.
	ErrAttachmentNotFound = errors.New("message: attachment not found")
	// ErrTemplateNotFound is returned when no template directory contains the template.
	ErrTemplateNotFound = errors.New("message: template not found")
	// ErrInvalidConversion is returned for invalid data-convert or data-format attributes.
	ErrInvalidConversion = errors.New("message: invalid image conversion")
	// ErrImageTooLarge is returned when a fetched image exceeds the configured size.
	ErrImageTooLarge = errors.New("message: image too large")
)
