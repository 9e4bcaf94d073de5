// Command oscfx runs OSC-controlled audio effects.
//
// Usage:
//
//	oscfx serve   [--effect filter] [--port 9001] [--mqtt] [--metrics] [--monitor]
//	oscfx render  in.wav out.wav [--script events.yaml]
//	oscfx send    /filter/active LPF 1
//	oscfx analyze in.wav [--band 200:2000] [--tone 440]
//	oscfx stages
//
// Settings come from defaults, an optional --config YAML file, OSCFX_*
// environment variables and flags, in increasing order of precedence.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "oscfx:", err)
		os.Exit(1)
	}
}
