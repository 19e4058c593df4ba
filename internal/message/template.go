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
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

const templateExtension = ".html"

// renderTemplate executes the named html template. The template is looked up in the configured
// directories in order, or in its own directory if none are configured. Sibling templates are
// parsed as well, so that templates can include each other.
func (b *Builder) renderTemplate(name string, data map[string]interface{}) (string, error) {
	directories := b.options.TemplateDirectories

	if len(directories) == 0 {
		directories = []string{filepath.Dir(name)}
		name = filepath.Base(name)
	}

	if filepath.Ext(name) == "" {
		name += templateExtension
	}

	name = filepath.ToSlash(name)

	for _, directory := range directories {
		fsys, err := b.templateFS(directory)
		if err != nil {
			return "", err
		}

		if _, err := fs.Stat(fsys, name); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}

			return "", err
		}

		tmpl, err := parseTemplate(fsys, name)
		if err != nil {
			return "", err
		}

		var buf bytes.Buffer
		if err := tmpl.ExecuteTemplate(&buf, path.Base(name), templateData(data, b.now())); err != nil {
			return "", err
		}

		return buf.String(), nil
	}

	return "", fmt.Errorf("%w: %q in %s", ErrTemplateNotFound, name, strings.Join(directories, ", "))
}

func (b *Builder) templateFS(directory string) (fs.FS, error) {
	abs, err := filepath.Abs(directory)
	if err != nil {
		return nil, err
	}

	return afero.NewIOFS(afero.NewBasePathFs(b.fs, abs)), nil
}

func parseTemplate(fsys fs.FS, name string) (*template.Template, error) {
	patterns := []string{path.Join(path.Dir(name), "*"+templateExtension)}

	if path.Ext(name) != templateExtension {
		patterns = append(patterns, name)
	}

	return template.ParseFS(fsys, patterns...)
}

// templateData copies data and provides the current time as "dated", unless it is set.
func templateData(data map[string]interface{}, now interface{}) map[string]interface{} {
	copied := make(map[string]interface{}, len(data)+1)

	for key, value := range data {
		copied[key] = value
	}

	if _, ok := copied["dated"]; !ok {
		copied["dated"] = now
	}

	return copied
}
