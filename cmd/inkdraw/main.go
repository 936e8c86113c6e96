/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"inkdraw/internal/config"
	applog "inkdraw/internal/log"
	"inkdraw/internal/telemetry"
	"inkdraw/internal/version"
)

func usage(w io.Writer) {
	fmt.Fprintln(w, "inkdraw: drawing vault tools")
	fmt.Fprintf(w, "Version: %s\n", version.String())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  inkdraw version|-v|--version                 Show version")
	fmt.Fprintln(w, "  inkdraw new <vault>                          Create an empty drawing")
	fmt.Fprintln(w, "  inkdraw open <vault> <file>                  Print a summary of a drawing")
	fmt.Fprintln(w, "  inkdraw duplicate <vault> <file>             Copy a drawing or writing file")
	fmt.Fprintln(w, "  inkdraw convert <vault> <file.writing>       Convert a writing file to a drawing")
	fmt.Fprintln(w, "  inkdraw history <vault> <file> [n]           List the last n saves of a file")
	fmt.Fprintln(w, "  inkdraw export <vault> <file> --png|--pdf|--svg [--out path] [--scale n]")
	fmt.Fprintln(w, "  inkdraw export <vault> --preset web|print [--format png,svg,pdf,cbz]")
	fmt.Fprintln(w, "  inkdraw search <vault> <query> [--path prefix]")
	fmt.Fprintln(w, "  inkdraw reindex <vault>                      Rebuild the search index")
	fmt.Fprintln(w, "  inkdraw demo <vault>                         Scripted drawing session showing autosave")
	fmt.Fprintln(w, "  inkdraw serve                                Run the read API over the Postgres mirror")
	fmt.Fprintln(w, "  inkdraw remote list|latest <file>|search <q> Query a running read API")
	fmt.Fprintln(w, "  inkdraw ui [<vault> [<file>]]                Launch desktop UI (build with -tags fyne)")
}

// app carries what every command needs.
type app struct {
	cfg   config.AppConfig
	token string
	out   io.Writer
	log   *slog.Logger
}

func main() {
	cfg, token, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
	}
	applog.Init(cfg.Logging.LogOptions())
	telemetry.NewDefault(telemetry.FromEnv().WithOverrides(cfg.General.TelemetryOptIn, cfg.General.TelemetryURL))

	a := &app{cfg: cfg, token: token, out: os.Stdout, log: applog.WithComponent("cli")}
	code := a.run(os.Args[1:])
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	telemetry.Flush(ctx)
	cancel()
	os.Exit(code)
}

// run dispatches one command and returns the process exit code.
func (a *app) run(args []string) int {
	a.log.Debug("start", slog.Int("args", len(args)))
	if len(args) == 0 {
		usage(a.out)
		return 0
	}
	cmd, rest := args[0], args[1:]
	start := time.Now()
	var err error
	switch cmd {
	case "version", "--version", "-v":
		fmt.Fprintln(a.out, version.String())
		return 0
	case "help", "-h", "--help":
		usage(a.out)
		return 0
	case "new":
		err = a.cmdNew(rest)
	case "open":
		err = a.cmdOpen(rest)
	case "duplicate":
		err = a.cmdDuplicate(rest)
	case "convert":
		err = a.cmdConvert(rest)
	case "history":
		err = a.cmdHistory(rest)
	case "export":
		err = a.cmdExport(rest)
	case "search":
		err = a.cmdSearch(rest)
	case "reindex":
		err = a.cmdReindex(rest)
	case "demo":
		err = a.cmdDemo(rest)
	case "serve":
		err = a.cmdServe(rest)
	case "remote":
		err = a.cmdRemote(rest)
	case "ui":
		err = a.cmdUI(rest)
	default:
		fmt.Fprintf(a.out, "unknown command %q\n\n", cmd)
		usage(a.out)
		return 2
	}
	telemetry.CommandEvent(cmd, time.Since(start), err)
	if err == nil {
		return 0
	}
	if ue, ok := err.(usageError); ok {
		fmt.Fprintln(a.out, ue.Error())
		usage(a.out)
		return 2
	}
	a.log.Error(cmd+" failed", slog.Any("err", err))
	fmt.Fprintln(a.out, "Error:", err)
	return 1
}

type usageError string

func (e usageError) Error() string { return string(e) }
