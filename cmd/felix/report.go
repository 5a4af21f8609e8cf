package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/theckman/yacspin"
	"golang.org/x/time/rate"

	"github.jpl.nasa.gov/coyote/felix/fel"
	"github.jpl.nasa.gov/coyote/felix/util"
)

var (
	failMark = color.New(color.FgRed, color.Bold).Sprint("[FAIL]")
	okMark   = color.New(color.FgGreen, color.Bold).Sprint("[ OK ]")
)

// newCLIReporter builds the fel.Reporter felix wires into every long-running
// Session call. It drives a terminal spinner and throttles updates to 10Hz
// so a MaxChunk-sized transfer doesn't flood the terminal with one line per
// 64KiB chunk. When verbose is set, every chunk is additionally logged at
// full detail through the standard log writer, raised above the spinner's
// throttled summary.
func newCLIReporter(noColor, verbose bool) (fel.Reporter, func(err error)) {
	if noColor {
		color.NoColor = true
	}
	cfg := yacspin.Config{
		Frequency:       100 * time.Millisecond,
		CharSet:         yacspin.CharSets[9],
		Suffix:          " transferring",
		SuffixAutoColon: true,
		StopCharacter:   "✓",
		StopColors:      []string{"fgGreen"},
	}
	spinner, err := yacspin.New(cfg)
	if err != nil {
		// Spinner setup failure must never block the transfer itself.
		base := fel.Reporter(func(op string, done, total int) {
			fmt.Printf("\r%s %d/%d bytes", op, done, total)
		})
		return verboseReporter(base, verbose), func(error) {}
	}
	spinner.Start()

	base := fel.Reporter(func(op string, done, total int) {
		spinner.Message(fmt.Sprintf("%s %d/%d bytes", op, done, total))
	})
	reporter := verboseReporter(base, verbose)

	finish := func(err error) {
		if err != nil {
			spinner.StopFailCharacter("✗")
			spinner.StopFailMessage(err.Error())
			spinner.StopFail()
			fmt.Println(failMark, err)
			return
		}
		spinner.StopMessage("done")
		spinner.Stop()
		fmt.Println(okMark)
	}
	return reporter, finish
}

// verboseReporter wraps base with 10Hz throttling for its normal output,
// and, when verbose is set, additionally logs every single chunk
// unthrottled through the standard log writer (the raised per-chunk
// detail --verbose promises).
func verboseReporter(base fel.Reporter, verbose bool) fel.Reporter {
	throttled := fel.RateLimited(base, rate.NewLimiter(rate.Every(100*time.Millisecond), 1))
	if !verbose {
		return throttled
	}
	return func(op string, done, total int) {
		throttled(op, done, total)
		log.Printf("%s: %d/%d bytes", op, done, total)
	}
}

// traceFrame hex-dumps a wire frame to stderr. Every felix action that
// exchanges a meaningful payload calls this around the raw bytes it reads or
// writes when the verbose setting is on.
func traceFrame(label string, b []byte) {
	fmt.Fprintf(os.Stderr, "%s\n%s", label, util.HexDump(b))
}
