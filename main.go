/*
 * subleq - Main process.
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package main

import (
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	getopt "github.com/pborman/getopt/v2"

	"github.com/go-subleq/subleq/internal/cell"
	"github.com/go-subleq/subleq/internal/image"
	"github.com/go-subleq/subleq/internal/ioport"
	"github.com/go-subleq/subleq/internal/optimizer"
	"github.com/go-subleq/subleq/internal/stats"
	"github.com/go-subleq/subleq/internal/vm"
	logger "github.com/go-subleq/subleq/util/logger"
)

var Logger *slog.Logger

func main() {
	optNoOptimize := getopt.BoolLong("no-optimize", 'O', "Disable the peephole optimizer; run raw SUBLEQ")
	optStats := getopt.BoolLong("stats", 's', "Print end-of-run statistics")
	optProfile := getopt.BoolLong("profile", 'p', "Print profiler summary and write profiler_report.txt")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	var logFile *os.File
	if *optLogFile != "" {
		var err error
		logFile, err = os.Create(*optLogFile)
		if err != nil {
			os.Stderr.WriteString("subleq: " + err.Error() + "\n")
			os.Exit(1)
		}
	}
	debug := false
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelInfo)
	Logger = slog.New(logger.NewHandler(logFile, &slog.HandlerOptions{Level: programLevel}, &debug))
	slog.SetDefault(Logger)

	args := getopt.Args()
	if len(args) < 1 {
		Logger.Error("missing image path")
		getopt.Usage()
		os.Exit(1)
	}
	if len(args) > 1 {
		Logger.Warn("ignoring extra arguments", "extra", args[1:])
	}

	words, err := image.Load(args[0])
	if err != nil {
		Logger.Error(err.Error())
		os.Exit(1)
	}
	Logger.Info("image loaded", "cells", len(words))

	var m cell.Array
	loadSize := m.Load(words)

	stream := ioport.Standard()
	machine := vm.New(&m, stream, stream)

	if !*optNoOptimize {
		optimizer.Optimize(machine, loadSize)
	}

	var sub [32]int
	if *optStats || *optProfile {
		sub = stats.SubstitutionCounts(machine, loadSize)
		recorder := stats.New()
		machine.SetCounters(recorder)
		runWithSignals(machine)
		stream.Flush()

		elapsed := machine.Elapsed()
		if *optStats {
			stats.WriteStats(os.Stderr, sub, recorder, elapsed)
		}
		if *optProfile {
			stats.WriteProfiler(os.Stderr, recorder, machine, elapsed)
			if err := stats.WriteProfileReport("profiler_report.txt", sub, recorder, machine); err != nil {
				Logger.Error(err.Error())
			}
		}
	} else {
		runWithSignals(machine)
		stream.Flush()
	}

	if err := machine.Err(); err != nil {
		Logger.Error(err.Error())
		os.Exit(1)
	}
}

// runWithSignals wires SIGINT/SIGTERM to the VM's cooperative interrupt
// flag so an interactive run can be stopped cleanly instead of killed,
// mirroring the teacher's signal-driven shutdown goroutine.
func runWithSignals(v *vm.VM) {
	var interrupted atomic.Bool
	v.SetInterruptFlag(&interrupted)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	done := make(chan struct{})
	go func() {
		select {
		case <-sigChan:
			interrupted.Store(true)
		case <-done:
		}
	}()

	start := time.Now()
	v.Run()
	v.SetElapsed(time.Since(start))
	close(done)
}
