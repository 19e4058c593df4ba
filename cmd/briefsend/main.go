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
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/lukasdietrich/briefsend/internal/log"
)

const usageText = `
Usage:
  briefsend [OPTIONS] COMMAND [ARGS]

  Briefly send mail in the name of a domain, after checking that it
  authorizes your relay.

Version:
  %s

Commands:
  send      Render and send a message
  check     Validate the SPF, DKIM and DMARC records of a domain
  shell     Start an interactive shell

Options:
%s
`

var (
	// Version is set at compile-time.
	Version string
)

func init() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
}

func main() {
	var (
		configFilename string
		envFilename    string
	)

	flags := pflag.NewFlagSet("briefsend", pflag.ContinueOnError)
	flags.SetInterspersed(false)
	flags.StringVarP(&configFilename, "config", "c", "", "Path to a configuration file")
	flags.StringVar(&envFilename, "env-file", ".env", "Path to a dotenv file")
	flags.String("log-level", "", "Log level (trace, debug, info, warn, error)")
	flags.String("server", "", "Hostname of the smtp relay")
	flags.Int("port", 0, "Port of the smtp relay")
	flags.String("sender", "", "Address to send as")
	flags.String("validation", "", "Validation mode (enforce, warn, off)")
	flags.Usage = printUsage(flags)

	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}

		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	switch commandName := flags.Arg(0); commandName {
	case "send", "check", "shell":
		bindFlags(flags)

		if err := setupConfig(configFilename, envFilename); err != nil {
			log.Fatal().Err(err).Msg("could not load configuration")
		}

		setupLogger()
		printConfig()
		os.Exit(runCommand(commandName, flags.Args()[1:]))
	default:
		flags.Usage()
		os.Exit(2)
	}
}

type command interface {
	run(ctx context.Context, args []string) error
}

func runCommand(commandName string, args []string) int {
	var (
		cmd command
		err error
	)

	switch commandName {
	case "send":
		cmd, err = newSendCommand()
	case "check":
		cmd, err = newCheckCommand()
	case "shell":
		cmd, err = newShellCommand()
	}

	if err != nil {
		log.Error().Err(err).Msg("could not initialize the application")
		return 1
	}

	ctx, stop := signal.NotifyContext(commandContext(commandName), os.Interrupt)
	defer stop()

	if err := cmd.run(ctx, args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 2
		}

		log.ErrorContext(ctx).Err(err).Msg("command failed")
		return 1
	}

	return 0
}

func printUsage(flags *pflag.FlagSet) func() {
	return func() {
		fmt.Fprintf(os.Stderr, usageText,
			Version,
			flags.FlagUsages())
	}
}

// bindFlags lets explicit flags take precedence over every other configuration source.
func bindFlags(flags *pflag.FlagSet) {
	for key, name := range map[string]string{
		"log.level":       "log-level",
		"mail.server":     "server",
		"mail.port":       "port",
		"mail.sender":     "sender",
		"validation.mode": "validation",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			log.Fatal().Err(err).Str("flag", name).Msg("could not bind flag")
		}
	}
}

func setupConfig(configFilename, envFilename string) error {
	// variables already set in the environment are not overridden
	if err := godotenv.Load(envFilename); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("could not load %q: %w", envFilename, err)
	}

	viper.SetTypeByDefaultValue(true)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configFilename == "" {
		return nil
	}

	viper.SetConfigFile(configFilename)
	return viper.ReadInConfig()
}

func setupLogger() {
	options := log.Options{
		Level:  viper.GetString("log.level"),
		Format: viper.GetString("log.format"),
	}

	if err := log.Configure(os.Stderr, options); err != nil {
		log.Fatal().Err(err).Str("level", options.Level).Msg("unknown log level")
	}
}

func printConfig() {
	keys := viper.AllKeys()
	sort.Strings(keys)

	for _, key := range keys {
		value, _ := json.Marshal(viper.Get(key))

		if strings.Contains(key, "password") && viper.GetString(key) != "" {
			value = []byte(`"********"`)
		}

		log.Debug().RawJSON(key, value).Msg("config")
	}
}

func commandContext(commandName string) context.Context {
	ctx := log.WithOrigin(context.Background(), "cli")
	return log.WithCommand(ctx, commandName)
}
