package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-replication/pkg/replication"
)

func runConfig(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	file := fs.String("file", "", "Session configuration file (YAML)")
	quiet := fs.Bool("quiet", false, "Only report errors")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return errors.New("-file is required")
	}

	cfg, err := replication.LoadSessionConfig(*file)
	if err != nil {
		return err
	}
	if _, err := cfg.SocketFactory(); err != nil {
		return err
	}
	if *quiet {
		return nil
	}

	fmt.Fprintf(stdout, "# %s: valid, offering %s over %s\n", *file, cfg.Version(), cfg.Transport)
	enc := yaml.NewEncoder(stdout)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("print config: %w", err)
	}
	return enc.Close()
}
