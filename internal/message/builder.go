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
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/lukasdietrich/briefsend/internal/crypto"
	"github.com/lukasdietrich/briefsend/internal/log"
	"github.com/lukasdietrich/briefsend/internal/models"
	"github.com/lukasdietrich/briefsend/internal/storage"
)

func init() {
	viper.SetDefault("template.directories", []string{})
	viper.SetDefault("images.timeout", "10s")
	viper.SetDefault("images.maxsize", "10mb")
}

// BuilderOptions configures template lookup and image fetching.
type BuilderOptions struct {
	TemplateDirectories []string
	ImageTimeout        time.Duration
	ImageMaxSize        int64
}

// BuilderOptionsFromViper reads the BuilderOptions from the global configuration.
func BuilderOptionsFromViper() BuilderOptions {
	return BuilderOptions{
		TemplateDirectories: viper.GetStringSlice("template.directories"),
		ImageTimeout:        viper.GetDuration("images.timeout"),
		ImageMaxSize:        int64(viper.GetSizeInBytes("images.maxsize")),
	}
}

// Builder renders drafts into mime messages.
type Builder struct {
	fs      afero.Fs
	cache   storage.Cache
	idGen   crypto.IDGenerator
	options BuilderOptions

	client *http.Client
	now    func() time.Time
}

func NewBuilder(fs afero.Fs, cache storage.Cache, idGen crypto.IDGenerator, options BuilderOptions) *Builder {
	return &Builder{
		fs:      fs,
		cache:   cache,
		idGen:   idGen,
		options: options,
		client:  http.DefaultClient,
		now:     time.Now,
	}
}

// Build validates and renders the draft. The structure of the result is
//
//	multipart/mixed            (only with attachments)
//	  multipart/related        (only with cid images)
//	    multipart/alternative
//	      text/plain
//	      text/html
//	    image/*
//	  attachments
func (b *Builder) Build(ctx context.Context, draft *Draft) (*Message, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	content := draft.HTML

	if draft.Template != "" {
		rendered, err := b.renderTemplate(draft.Template, draft.Data)
		if err != nil {
			return nil, err
		}

		content = rendered
	}

	text := draft.Text

	if text == "" {
		derived, err := PlainText(content)
		if err != nil {
			return nil, err
		}

		text = derived
	}

	var images []inlineImage

	if draft.Images != ImagesLinked {
		rewritten, inlined, err := b.inlineImages(ctx, content, draft.Images)
		if err != nil {
			return nil, err
		}

		content, images = rewritten, inlined
	}

	attachments := make([]*entity, 0, len(draft.Attachments))

	for _, a := range draft.Attachments {
		loaded, err := b.loadAttachment(a)
		if err != nil {
			return nil, err
		}

		attachments = append(attachments, loaded.entity())
	}

	uuid, err := b.idGen.GenerateID()
	if err != nil {
		return nil, err
	}

	domain, err := draft.From.Address().ASCIIDomain()
	if err != nil {
		return nil, err
	}

	id := uuid + "@" + domain
	ctx = log.WithMessage(ctx, id)

	root := newMultipartEntity("multipart/alternative",
		newTextEntity("text/plain", text),
		newTextEntity("text/html", content))

	root = wrapMultipart("multipart/related", root, imageEntities(images))
	root = wrapMultipart("multipart/mixed", root, attachments)

	w := b.cache.NewWriter(ctx)

	if err := writeMessage(w, b.headerFields(draft, id), root); err != nil {
		if entry, finishErr := w.Finish(); finishErr == nil {
			entry.Release(ctx) // nolint:errcheck
		}

		return nil, err
	}

	entry, err := w.Finish()
	if err != nil {
		return nil, err
	}

	log.DebugContext(ctx).
		Int64("size", entry.Size()).
		Int("images", len(images)).
		Int("attachments", len(attachments)).
		Msg("message built")

	return NewMessage(id, draft.From, draft.Recipients(), entry), nil
}

func (b *Builder) headerFields(draft *Draft, id string) []headerField {
	fields := []headerField{{"From", draft.From.String()}}

	if len(draft.To) > 0 {
		fields = append(fields, headerField{"To", joinContacts(draft.To)})
	} else {
		fields = append(fields, headerField{"To", "undisclosed-recipients:;"})
	}

	if len(draft.Cc) > 0 {
		fields = append(fields, headerField{"Cc", joinContacts(draft.Cc)})
	}

	if len(draft.ReplyTo) > 0 {
		fields = append(fields, headerField{"Reply-To", joinContacts(draft.ReplyTo)})
	}

	return append(fields,
		headerField{"Subject", mime.QEncoding.Encode("utf-8", draft.Subject)},
		headerField{"Date", b.now().Format(time.RFC1123Z)},
		headerField{"Message-ID", "<" + id + ">"},
		headerField{"MIME-Version", "1.0"},
	)
}

func joinContacts(contacts []models.Contact) string {
	formatted := make([]string, len(contacts))

	for i, contact := range contacts {
		formatted[i] = contact.String()
	}

	return strings.Join(formatted, ", ")
}
