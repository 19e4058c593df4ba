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

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/lukasdietrich/briefsend/internal/delivery"
	"github.com/lukasdietrich/briefsend/internal/message"
	"github.com/lukasdietrich/briefsend/internal/models"
)

type sendCommand struct {
	Mailman *delivery.Mailman
	Fs      afero.Fs
}

// sendFlags are the raw arguments of a single message.
type sendFlags struct {
	to             []string
	cc             []string
	bcc            []string
	replyTo        []string
	subject        string
	html           string
	htmlFile       string
	text           string
	template       string
	data           string
	vars           []string
	attachments    []string
	images         string
	skipValidation bool
}

func (f *sendFlags) register(flags *pflag.FlagSet) {
	flags.StringArrayVar(&f.to, "to", nil, "Recipient (repeatable)")
	flags.StringArrayVar(&f.cc, "cc", nil, "Carbon copy recipient (repeatable)")
	flags.StringArrayVar(&f.bcc, "bcc", nil, "Blind carbon copy recipient (repeatable)")
	flags.StringArrayVar(&f.replyTo, "reply-to", nil, "Reply-To address (repeatable)")
	flags.StringVarP(&f.subject, "subject", "s", "", "Subject")
	flags.StringVar(&f.html, "html", "", "Html content")
	flags.StringVar(&f.htmlFile, "html-file", "", "Read the html content from a file")
	flags.StringVar(&f.text, "text", "", "Plain text alternative (derived from html if empty)")
	flags.StringVarP(&f.template, "template", "t", "", "Name of a template to render")
	flags.StringVar(&f.data, "data", "", "Yaml file with template data")
	flags.StringArrayVar(&f.vars, "var", nil, "Template variable as key=value (repeatable)")
	flags.StringArrayVarP(&f.attachments, "attach", "a", nil, "File to attach as path[;content-type] (repeatable)")
	flags.StringVar(&f.images, "images", "", "Inline remote images (cid, base64)")
	flags.BoolVar(&f.skipValidation, "skip-validation", false, "Do not validate the sender domain")
}

func (s *sendCommand) run(ctx context.Context, args []string) error {
	var f sendFlags

	flags := pflag.NewFlagSet("send", pflag.ContinueOnError)
	f.register(flags)

	if err := flags.Parse(args); err != nil {
		return err
	}

	request, err := buildRequest(s.Fs, &f)
	if err != nil {
		return err
	}

	receipt, err := s.Mailman.Send(ctx, request)
	if err != nil {
		return err
	}

	printReceipt(os.Stdout, receipt)
	return nil
}

func printReceipt(w io.Writer, receipt *delivery.Receipt) {
	fmt.Fprintf(w, "\nMessage <%s> accepted for %d recipient(s):\n", receipt.MessageID, len(receipt.Recipients))

	for _, recipient := range receipt.Recipients {
		fmt.Fprintf(w, "  %s\n", recipient)
	}

	fmt.Fprintln(w)
}

func buildRequest(fs afero.Fs, f *sendFlags) (*delivery.Request, error) {
	var (
		draft message.Draft
		err   error
	)

	for _, field := range []struct {
		raws     []string
		contacts *[]models.Contact
	}{
		{f.to, &draft.To},
		{f.cc, &draft.Cc},
		{f.bcc, &draft.Bcc},
		{f.replyTo, &draft.ReplyTo},
	} {
		if *field.contacts, err = models.ParseContacts(field.raws); err != nil {
			return nil, err
		}
	}

	draft.Subject = f.subject
	draft.Text = f.text
	draft.Template = f.template
	draft.HTML = f.html

	if f.htmlFile != "" {
		if f.html != "" {
			return nil, fmt.Errorf("%w: --html and --html-file", message.ErrAmbiguousContent)
		}

		content, err := afero.ReadFile(fs, f.htmlFile)
		if err != nil {
			return nil, err
		}

		draft.HTML = string(content)
	}

	if draft.Data, err = templateData(fs, f.data, f.vars); err != nil {
		return nil, err
	}

	if draft.Images, err = message.ParseImageMode(f.images); err != nil {
		return nil, err
	}

	for _, raw := range f.attachments {
		draft.Attachments = append(draft.Attachments, parseAttachment(raw))
	}

	return &delivery.Request{
		Draft:          draft,
		SkipValidation: f.skipValidation,
	}, nil
}

// splitList splits comma separated answers of the shell.
func splitList(raws []string) []string {
	var list []string

	for _, raw := range raws {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				list = append(list, part)
			}
		}
	}

	return list
}

func parseAttachment(raw string) message.Attachment {
	if i := strings.LastIndexByte(raw, ';'); i >= 0 && strings.Contains(raw[i:], "/") {
		return message.Attachment{
			Path:        strings.TrimSpace(raw[:i]),
			ContentType: strings.TrimSpace(raw[i+1:]),
		}
	}

	return message.Attachment{Path: raw}
}

// templateData merges the yaml file with the variables given as key=value. Variables win.
func templateData(fs afero.Fs, filename string, vars []string) (map[string]interface{}, error) {
	data := make(map[string]interface{})

	if filename != "" {
		content, err := afero.ReadFile(fs, filename)
		if err != nil {
			return nil, err
		}

		if err := yaml.Unmarshal(content, &data); err != nil {
			return nil, fmt.Errorf("could not parse template data %q: %w", filename, err)
		}
	}

	for _, v := range vars {
		key, value, ok := strings.Cut(v, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid variable %q, expected key=value", v)
		}

		data[key] = value
	}

	return data, nil
}
