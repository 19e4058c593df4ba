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
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/abiosoft/ishell"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/lukasdietrich/briefsend/internal/delivery"
	"github.com/lukasdietrich/briefsend/internal/dnsauth"
	"github.com/lukasdietrich/briefsend/internal/log"
)

type shellCommand struct {
	Mailman   *delivery.Mailman
	Validator *dnsauth.Validator
	Fs        afero.Fs
}

func (s *shellCommand) run(ctx context.Context, args []string) error {
	shell := ishell.New()
	shell.Printf("briefsend %s, sending as %s\n", Version, s.Mailman.Sender())

	s.setupShell(ctx, shell)
	shell.Run()

	return nil
}

func (s *shellCommand) setupShell(ctx context.Context, shell *ishell.Shell) {
	shell.AddCmd(&ishell.Cmd{
		Name: "check",
		Help: "validate the records of a domain: check [DOMAIN] [SELECTOR]",
		Func: s.wrapShellFunc(ctx, s.check),
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "send",
		Help: "compose and send a message",
		Func: s.wrapShellFunc(ctx, s.send),
	})

	shell.AddCmd(composeShellCmd(
		ishell.Cmd{
			Name: "config",
			Help: "inspect the configuration",
		},
		[]*ishell.Cmd{
			{
				Name: "list",
				Help: "list all configuration keys",
				Func: s.wrapShellFunc(ctx, s.configList),
			},
			{
				Name: "get",
				Help: "show a single configuration key",
				Func: s.wrapShellFunc(ctx, s.configGet),
			},
		},
	))
}

func (s *shellCommand) check(ctx shellContext) error {
	if len(ctx.shell.Args) > 2 {
		return errors.New("Usage: check [DOMAIN] [SELECTOR]")
	}

	selector := viper.GetString("mail.dkim_selector")
	if len(ctx.shell.Args) == 2 {
		selector = ctx.arg(1)
	}

	var domain string
	if len(ctx.shell.Args) > 0 {
		domain = ctx.arg(0)
	} else {
		domain = s.Mailman.Sender().Domain()
	}

	report, err := checkDomain(ctx, s.Validator, domain, selector)
	if err != nil {
		return err
	}

	var b strings.Builder
	printReport(&b, report)
	ctx.printf("%s", b.String())

	return nil
}

func (s *shellCommand) send(ctx shellContext) error {
	if !ctx.checkArgs(0) {
		return errors.New("Usage: send")
	}

	var (
		f   sendFlags
		err error
	)

	if f.to, err = ctx.askList("To", true); err != nil {
		return err
	}

	if f.cc, err = ctx.askList("Cc", false); err != nil {
		return err
	}

	if f.bcc, err = ctx.askList("Bcc", false); err != nil {
		return err
	}

	if f.subject, err = ctx.ask("Subject", true); err != nil {
		return err
	}

	if f.template, err = ctx.ask("Template (empty for html)", false); err != nil {
		return err
	}

	if f.template == "" {
		if f.html, err = ctx.ask("Html", true); err != nil {
			return err
		}
	} else {
		if f.vars, err = ctx.askList("Variables (key=value)", false); err != nil {
			return err
		}
	}

	if f.attachments, err = ctx.askList("Attachments", false); err != nil {
		return err
	}

	if f.images, err = ctx.ask("Inline images (cid, base64, empty to link)", false); err != nil {
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

	var b strings.Builder
	printReceipt(&b, receipt)
	ctx.printf("%s", b.String())

	return nil
}

func (s *shellCommand) configList(ctx shellContext) error {
	if !ctx.checkArgs(0) {
		return errors.New("Usage: config list")
	}

	keys := viper.AllKeys()
	sort.Strings(keys)

	ctx.printf("\n")
	for _, key := range keys {
		ctx.printf("\t%s = %s\n", key, configValue(key))
	}
	ctx.printf("\n")

	return nil
}

func (s *shellCommand) configGet(ctx shellContext) error {
	if !ctx.checkArgs(1) {
		return errors.New("Usage: config get [KEY]")
	}

	key := strings.ToLower(ctx.arg(0))
	if !viper.IsSet(key) {
		return errors.New("unknown configuration key")
	}

	ctx.printf("\n\t%s = %s\n\n", key, configValue(key))
	return nil
}

// configValue formats a configuration value as json and hides passwords.
func configValue(key string) string {
	if strings.Contains(key, "password") && viper.GetString(key) != "" {
		return `"********"`
	}

	value, _ := json.Marshal(viper.Get(key))
	return string(value)
}

type shellContext struct {
	context.Context
	shell *ishell.Context
}

func (c *shellContext) checkArgs(n int) bool {
	return len(c.shell.Args) == n
}

func (c *shellContext) arg(i int) string {
	return c.shell.Args[i]
}

func (c *shellContext) printf(format string, v ...interface{}) {
	c.shell.Printf(format, v...)
}

func (c *shellContext) ask(prompt string, required bool) (string, error) {
	for {
		c.printf("%s: ", prompt)

		answer, err := c.shell.ReadLineErr()
		if err != nil {
			return "", err
		}

		if answer = strings.TrimSpace(answer); answer != "" || !required {
			return answer, nil
		}
	}
}

func (c *shellContext) askList(prompt string, required bool) ([]string, error) {
	answer, err := c.ask(prompt+" (comma separated)", required)
	if err != nil {
		return nil, err
	}

	return splitList([]string{answer}), nil
}

func composeShellCmd(cmd ishell.Cmd, children []*ishell.Cmd) *ishell.Cmd {
	for _, child := range children {
		cmd.AddCmd(child)
	}

	return &cmd
}

func (s *shellCommand) wrapShellFunc(ctx context.Context, fn func(shellContext) error) func(*ishell.Context) {
	return func(shell *ishell.Context) {
		cmdCtx := shellContext{
			Context: log.WithOrigin(ctx, "shell"),
			shell:   shell,
		}

		if err := fn(cmdCtx); err != nil {
			shell.Err(err)
		}
	}
}
