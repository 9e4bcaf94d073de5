package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-oscfx/dsp/level"
	"github.com/cwbudde/algo-oscfx/dsp/spectrum"
	"github.com/cwbudde/algo-oscfx/internal/host"
)

type band struct {
	name   string
	lo, hi float64
}

var defaultBands = []band{
	{"low", 20, 200},
	{"mid", 200, 2000},
	{"high", 2000, 20000},
}

func newAnalyzeCommand() *cobra.Command {
	var (
		bandSpecs   []string
		tones       []float64
		fundamental float64
	)

	cmd := &cobra.Command{
		Use:   "analyze <file.wav>",
		Short: "Print per-channel levels, band energy, tone amplitudes and distortion of a WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bands := defaultBands
			if len(bandSpecs) > 0 {
				var err error
				if bands, err = parseBands(bandSpecs); err != nil {
					return err
				}
			}

			in, err := host.ReadWAVFile(args[0])
			if err != nil {
				return err
			}
			sr := float64(in.SampleRate)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "%s: %d Hz, %d bit, %d ch, %.3f s\n\n",
				args[0], in.SampleRate, in.BitDepth, len(in.Channels), in.Duration())
			fmt.Fprintln(w, "CH\tRMS (dBFS)\tPEAK (dBFS)\tCREST (dB)\tDC")
			for ch, buf := range in.Channels {
				st := level.Measure(buf)
				fmt.Fprintf(w, "%d\t%.2f\t%.2f\t%.2f\t%.6f\n", ch, st.RMSdB(), st.PeakdB(), st.CrestFactordB(), st.DC)
			}

			fmt.Fprintln(w)
			fmt.Fprintln(w, "CH\tBAND\tRANGE (Hz)\tENERGY\tRATIO")

			for ch, buf := range in.Channels {
				for _, b := range bands {
					hi := min(b.hi, sr/2)
					energy, err := spectrum.BandEnergy(buf, sr, b.lo, hi)
					if err != nil {
						return fmt.Errorf("band %s: %w", b.name, err)
					}
					ratio, err := spectrum.BandRatio(buf, sr, b.lo, hi)
					if err != nil {
						return fmt.Errorf("band %s: %w", b.name, err)
					}
					fmt.Fprintf(w, "%d\t%s\t%g-%g\t%.6g\t%.4f\n", ch, b.name, b.lo, hi, energy, ratio)
				}
			}

			if len(tones) > 0 {
				fmt.Fprintln(w)
				fmt.Fprintln(w, "CH\tTONE (Hz)\tAMPLITUDE")
				for ch, buf := range in.Channels {
					for _, hz := range tones {
						amp, err := spectrum.ToneAmplitude(buf, hz, sr)
						if err != nil {
							return fmt.Errorf("tone %g: %w", hz, err)
						}
						fmt.Fprintf(w, "%d\t%g\t%.6f\n", ch, hz, amp)
					}
				}
			}

			if cmd.Flags().Changed("thd") {
				fmt.Fprintln(w)
				fmt.Fprintln(w, "CH\tFUNDAMENTAL (Hz)\tTHD (dB)\tTHD+N (dB)\tODD\tEVEN")
				for ch, buf := range in.Channels {
					res, err := spectrum.Distortion(buf, sr, fundamental, 0)
					if err != nil {
						return fmt.Errorf("distortion ch %d: %w", ch, err)
					}
					fmt.Fprintf(w, "%d\t%.1f\t%.2f\t%.2f\t%.5f\t%.5f\n",
						ch, res.FundamentalHz, res.THDdB(), res.THDNdB(), res.OddHD, res.EvenHD)
				}
			}

			return w.Flush()
		},
	}

	cmd.Flags().StringArrayVar(&bandSpecs, "band", nil, "band as lo:hi in Hz (repeatable)")
	cmd.Flags().Float64SliceVar(&tones, "tone", nil, "measure the amplitude at these frequencies")
	cmd.Flags().Float64Var(&fundamental, "thd", 0, "measure harmonic distortion at this fundamental (0 finds the strongest tone)")

	return cmd
}

func parseBands(specs []string) ([]band, error) {
	out := make([]band, 0, len(specs))
	for _, arg := range specs {
		loStr, hiStr, ok := strings.Cut(arg, ":")
		if !ok {
			return nil, fmt.Errorf("band %q: want lo:hi", arg)
		}
		lo, err := strconv.ParseFloat(loStr, 64)
		if err != nil {
			return nil, fmt.Errorf("band %q: %w", arg, err)
		}
		hi, err := strconv.ParseFloat(hiStr, 64)
		if err != nil {
			return nil, fmt.Errorf("band %q: %w", arg, err)
		}
		if lo < 0 || hi <= lo {
			return nil, fmt.Errorf("band %q: need 0 <= lo < hi", arg)
		}
		out = append(out, band{name: arg, lo: lo, hi: hi})
	}
	return out, nil
}
