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
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"sort"
)

const (
	encodingQuotedPrintable = "quoted-printable"
	encodingBase64          = "base64"

	base64LineLength = 76
)

// entity is a node of the mime tree. It is either a leaf with a body or a multipart container.
type entity struct {
	header   textproto.MIMEHeader
	body     []byte
	children []*entity
	boundary string
}

func newTextEntity(mediaType string, text string) *entity {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Type", mime.FormatMediaType(mediaType, map[string]string{"charset": "utf-8"}))
	header.Set("Content-Transfer-Encoding", encodingQuotedPrintable)

	return &entity{header: header, body: []byte(text)}
}

func newBinaryEntity(contentType string, data []byte) *entity {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Type", contentType)
	header.Set("Content-Transfer-Encoding", encodingBase64)

	return &entity{header: header, body: data}
}

func newMultipartEntity(mediaType string, children ...*entity) *entity {
	boundary := multipart.NewWriter(nil).Boundary()

	header := make(textproto.MIMEHeader)
	header.Set("Content-Type", mime.FormatMediaType(mediaType, map[string]string{"boundary": boundary}))

	return &entity{header: header, children: children, boundary: boundary}
}

// wrapMultipart puts children behind the entity into a container, unless there are none.
func wrapMultipart(mediaType string, first *entity, children []*entity) *entity {
	if len(children) == 0 {
		return first
	}

	return newMultipartEntity(mediaType, append([]*entity{first}, children...)...)
}

func (e *entity) writeBody(w io.Writer) error {
	if e.children != nil {
		return e.writeMultipart(w)
	}

	switch e.header.Get("Content-Transfer-Encoding") {
	case encodingBase64:
		enc := base64.NewEncoder(base64.StdEncoding, &lineWrapper{w: w, limit: base64LineLength})
		if _, err := enc.Write(e.body); err != nil {
			return err
		}

		return enc.Close()

	case encodingQuotedPrintable:
		qp := quotedprintable.NewWriter(w)
		if _, err := qp.Write(e.body); err != nil {
			return err
		}

		return qp.Close()

	default:
		_, err := w.Write(e.body)
		return err
	}
}

func (e *entity) writeMultipart(w io.Writer) error {
	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(e.boundary); err != nil {
		return err
	}

	for _, child := range e.children {
		pw, err := mw.CreatePart(child.header)
		if err != nil {
			return err
		}

		if err := child.writeBody(pw); err != nil {
			return err
		}
	}

	return mw.Close()
}

// headerField is a single, ordered top level header.
type headerField struct {
	key   string
	value string
}

// writeMessage writes the top level header fields, followed by the header and body of root.
func writeMessage(w io.Writer, fields []headerField, root *entity) error {
	for _, field := range fields {
		if _, err := fmt.Fprintf(w, "%s: %s\r\n", field.key, field.value); err != nil {
			return err
		}
	}

	keys := make([]string, 0, len(root.header))
	for key := range root.header {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		for _, value := range root.header[key] {
			if _, err := fmt.Fprintf(w, "%s: %s\r\n", key, value); err != nil {
				return err
			}
		}
	}

	if _, err := io.WriteString(w, "\r\n"); err != nil {
		return err
	}

	return root.writeBody(w)
}

// lineWrapper breaks the written stream into lines of at most limit bytes.
type lineWrapper struct {
	w     io.Writer
	limit int
	n     int
}

func (l *lineWrapper) Write(b []byte) (int, error) {
	var written int

	for len(b) > 0 {
		if l.n == l.limit {
			if _, err := io.WriteString(l.w, "\r\n"); err != nil {
				return written, err
			}

			l.n = 0
		}

		chunk := l.limit - l.n
		if chunk > len(b) {
			chunk = len(b)
		}

		n, err := l.w.Write(b[:chunk])
		written += n
		l.n += n

		if err != nil {
			return written, err
		}

		b = b[chunk:]
	}

	return written, nil
}
