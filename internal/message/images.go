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
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/lukasdietrich/briefsend/internal/log"
)

const inlinedAttribute = "data-inlined"

type inlineImage struct {
	cid         string
	contentType string
	data        []byte
}

func (i inlineImage) entity() *entity {
	e := newBinaryEntity(i.contentType, i.data)
	e.header.Set("Content-ID", "<"+i.cid+">")
	e.header.Set("Content-Disposition", "inline")

	return e
}

type fetchedImage struct {
	contentType string
	data        []byte
}

// inlineImages rewrites every img tag with a remote src according to mode. Only the rewritten
// tags change, the remaining html is copied as is. Images, that cannot be fetched, stay linked.
func (b *Builder) inlineImages(ctx context.Context, content string, mode ImageMode) (string, []inlineImage, error) {
	var (
		out     strings.Builder
		images  []inlineImage
		fetched = make(map[string]*fetchedImage)
		index   int
	)

	z := html.NewTokenizer(strings.NewReader(content))

	for {
		tt := z.Next()

		if tt == html.ErrorToken {
			if z.Err() == io.EOF {
				break
			}

			return "", nil, z.Err()
		}

		raw := string(z.Raw())

		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			out.WriteString(raw)
			continue
		}

		token := z.Token()
		if token.DataAtom != atom.Img {
			out.WriteString(raw)
			continue
		}

		idx := index
		index++

		src := attribute(token, "src")
		if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
			out.WriteString(raw)
			continue
		}

		convert, err := parseConversion(token)
		if err != nil {
			return "", nil, err
		}

		image, ok := fetched[src]
		if !ok {
			image, err = b.fetchImage(ctx, src)
			if err != nil {
				log.WarnContext(ctx).
					Str("src", src).
					Err(err).
					Msg("could not fetch image, leaving it linked")

				out.WriteString(raw)
				continue
			}

			fetched[src] = image
		}

		data, contentType, err := convert.apply(image.data, image.contentType)
		if err != nil {
			return "", nil, err
		}

		switch mode {
		case ImagesCID:
			sum := md5.Sum(data)
			cid := hex.EncodeToString(sum[:]) + strconv.Itoa(idx)

			images = append(images, inlineImage{cid: cid, contentType: contentType, data: data})
			setAttribute(&token, "src", "cid:"+cid)

		case ImagesBase64:
			setAttribute(&token, "src", "data:"+contentType+";base64,"+base64.StdEncoding.EncodeToString(data))

		default:
			return "", nil, fmt.Errorf("%w: %q", ErrInvalidImageMode, mode)
		}

		removeAttribute(&token, conversionAttribute)
		removeAttribute(&token, formatAttribute)
		setAttribute(&token, inlinedAttribute, "")

		out.WriteString(token.String())
	}

	return out.String(), images, nil
}

func (b *Builder) fetchImage(ctx context.Context, src string) (*fetchedImage, error) {
	if b.options.ImageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.options.ImageTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}

	res, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}

	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %q", res.Status)
	}

	var body io.Reader = res.Body
	if b.options.ImageMaxSize > 0 {
		body = io.LimitReader(res.Body, b.options.ImageMaxSize+1)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}

	if b.options.ImageMaxSize > 0 && int64(len(data)) > b.options.ImageMaxSize {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrImageTooLarge, b.options.ImageMaxSize)
	}

	log.DebugContext(ctx).
		Str("src", src).
		Int("size", len(data)).
		Msg("image fetched")

	return &fetchedImage{
		contentType: imageContentType(res.Header, src, data),
		data:        data,
	}, nil
}

// imageContentType prefers the announced type, then the extension of the url and finally sniffs
// the content.
func imageContentType(header http.Header, src string, data []byte) string {
	if mediaType, _, err := mime.ParseMediaType(header.Get("Content-Type")); err == nil &&
		strings.HasPrefix(mediaType, "image/") {
		return mediaType
	}

	if u, err := url.Parse(src); err == nil {
		if byExt := mime.TypeByExtension(path.Ext(u.Path)); strings.HasPrefix(byExt, "image/") {
			mediaType, _, _ := mime.ParseMediaType(byExt)
			return mediaType
		}
	}

	return http.DetectContentType(data)
}

func attribute(token html.Token, key string) string {
	for _, attr := range token.Attr {
		if attr.Namespace == "" && attr.Key == key {
			return attr.Val
		}
	}

	return ""
}

func hasAttribute(token html.Token, key string) bool {
	for _, attr := range token.Attr {
		if attr.Namespace == "" && attr.Key == key {
			return true
		}
	}

	return false
}

func setAttribute(token *html.Token, key, val string) {
	for i, attr := range token.Attr {
		if attr.Namespace == "" && attr.Key == key {
			token.Attr[i].Val = val
			return
		}
	}

	token.Attr = append(token.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttribute(token *html.Token, key string) {
	attrs := token.Attr[:0]

	for _, attr := range token.Attr {
		if attr.Namespace != "" || attr.Key != key {
			attrs = append(attrs, attr)
		}
	}

	token.Attr = attrs
}

// imageEntities turns inline images into related parts.
func imageEntities(images []inlineImage) []*entity {
	entities := make([]*entity, len(images))

	for i, image := range images {
		entities[i] = image.entity()
	}

	return entities
}
