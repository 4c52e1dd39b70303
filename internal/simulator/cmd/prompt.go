package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/regador/esp32-simulator/internal/simulator"
)

type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

// ask returns the trimmed answer, or "" on EOF.
func (p *prompter) ask(question string) string {
	fmt.Fprint(p.out, question)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return ""
	}
	return strings.TrimSpace(line)
}

// configure asks for the three session settings, keeping cfg's values as
// defaults. An unparseable duration keeps the default.
func (p *prompter) configure(cfg simulator.Config) simulator.Config {
	if v := p.ask(fmt.Sprintf("API URL (default: %s): ", cfg.BaseURL)); v != "" {
		cfg.BaseURL = v
	}
	if v := p.ask(fmt.Sprintf("Device ID (default: %s): ", cfg.DeviceID)); v != "" {
		cfg.DeviceID = v
	}
	minutes := int(cfg.Duration / time.Minute)
	if v := p.ask(fmt.Sprintf("Duration in minutes (default: %d): ", minutes)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			fmt.Fprintf(p.out, "invalid duration %q, using %d minutes\n", v, minutes)
		} else {
			cfg.Duration = time.Duration(n) * time.Minute
		}
	}
	return cfg
}

// confirm accepts s, sim, y and yes (any case); anything else is no.
func (p *prompter) confirm(question string) bool {
	switch strings.ToLower(p.ask(question + " (y/N): ")) {
	case "s", "sim", "y", "yes":
		return true
	}
	return false
}
