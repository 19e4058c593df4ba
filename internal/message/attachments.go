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
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/spf13/afero"
)

type attachment struct {
	filename    string
	contentType string
	data        []byte
}

func (a attachment) entity() *entity {
	e := newBinaryEntity(a.contentType, a.data)
	e.header.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": a.filename,
	}))

	return e
}

func (b *Builder) loadAttachment(a Attachment) (*attachment, error) {
	data, err := afero.ReadFile(b.fs, a.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrAttachmentNotFound, a.Path)
		}

		return nil, err
	}

	filename := filepath.Base(a.Path)

	contentType := a.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(filename))
	}

	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	if _, _, err := mime.ParseMediaType(contentType); err != nil {
		return nil, fmt.Errorf("invalid content type %q of attachment %s: %w", contentType, a.Path, err)
	}

	return &attachment{
		filename:    filename,
		contentType: contentType,
		data:        data,
	}, nil
}
