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
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"

	"golang.org/x/net/html"
)

const (
	conversionAttribute = "data-convert"
	formatAttribute     = "data-format"
)

// conversion re-encodes an image into another format. Some mail clients show inline png images
// as unnamed attachments, which converting them to jpeg avoids.
type conversion struct {
	target string
	alpha  bool
}

// parseConversion reads the data-convert and data-format attributes of an img tag. A nil
// conversion is returned if the tag does not request one.
func parseConversion(token html.Token) (*conversion, error) {
	if !hasAttribute(token, conversionAttribute) {
		return nil, nil
	}

	var c conversion

	switch target := strings.ToLower(attribute(token, conversionAttribute)); target {
	case "png", "gif":
		c.target = target
	case "jpg", "jpeg":
		c.target = "jpeg"
	default:
		return nil, fmt.Errorf("%w: %s=%q", ErrInvalidConversion, conversionAttribute, target)
	}

	if hasAttribute(token, formatAttribute) {
		switch format := strings.ToLower(attribute(token, formatAttribute)); format {
		case "rgb":
		case "rgba":
			c.alpha = true
		default:
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidConversion, formatAttribute, format)
		}
	}

	return &c, nil
}

// apply converts data, unless it already has the target type.
func (c *conversion) apply(data []byte, contentType string) ([]byte, string, error) {
	if c == nil || contentType == "image/"+c.target {
		return data, contentType, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: could not decode %s: %v", ErrInvalidConversion, contentType, err)
	}

	dst := c.pixels(src)

	var buf bytes.Buffer

	switch c.target {
	case "png":
		err = png.Encode(&buf, dst)
	case "gif":
		err = gif.Encode(&buf, dst, nil)
	default:
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpeg.DefaultQuality})
	}

	if err != nil {
		return nil, "", err
	}

	return buf.Bytes(), "image/" + c.target, nil
}

// pixels copies src into an nrgba image. Without alpha, every pixel is made opaque.
func (c *conversion) pixels(src image.Image) *image.NRGBA {
	bounds := src.Bounds()
	dst := image.NewNRGBA(bounds)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			pixel := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)

			if !c.alpha {
				pixel.A = 0xff
			}

			dst.SetNRGBA(x, y, pixel)
		}
	}

	return dst
}
