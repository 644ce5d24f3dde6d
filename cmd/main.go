// Command iabmxf inspects IAB-in-MXF clip files: frame count, header
// metadata, and (optionally) one decoded frame's byte length.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/cinelabs/iabmxf"
)

// Config holds the parsed command-line flags.
type Config struct {
	Path  string
	Frame int
	Show  bool
}

func parseFlags(args []string) (*Config, error) {
	fs := flag.NewFlagSet("iabmxf", flag.ContinueOnError)
	cfg := &Config{Frame: -1}
	fs.StringVar(&cfg.Path, "file", "", "path to an IAB-in-MXF clip file")
	fs.IntVar(&cfg.Frame, "frame", -1, "frame number to report the length of (-1 for none)")
	fs.BoolVar(&cfg.Show, "show", false, "print header metadata object names")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("-file is required")
	}
	return cfg, nil
}

func view(cfg *Config) error {
	f, err := iabmxf.OpenFileForRead(cfg.Path)
	if err != nil {
		return err
	}
	r := iabmxf.NewReader(f, nil)
	if err := r.OpenRead(); err != nil {
		r.Close()
		return err
	}
	defer r.Close()

	count, err := r.GetFrameCount()
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d frames\n", cfg.Path, count)

	if cfg.Frame >= 0 {
		buf, err := r.ReadFrame(cfg.Frame)
		if err != nil {
			return err
		}
		preamble, frame, err := iabmxf.DecodeIABFrame(buf)
		if err != nil {
			return err
		}
		fmt.Printf("frame %d: preamble %d bytes, frame %d bytes\n", cfg.Frame, len(preamble), len(frame))
	}

	if cfg.Show {
		for _, o := range r.Metadata().Objects {
			fmt.Printf("  %-36s %s\n", o.Name, o.InstanceUID)
		}
	}
	return nil
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := view(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "iabmxf:", err)
		os.Exit(1)
	}
}
