package main

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	defaultLocation = "London"
	defaultSteps    = 20
	defaultDelay    = 200 * time.Millisecond

	maxDelaySeconds = 3600
)

// runInput is what the user chose at the prompts.
type runInput struct {
	Location string
	Steps    int
	Delay    time.Duration
}

// prompter reads answers line by line. A closed input yields empty answers,
// which fall back to defaults.
type prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewScanner(in), out: out}
}

func (p *prompter) ask(question string) string {
	fmt.Fprint(p.out, question)
	if !p.in.Scan() {
		return ""
	}
	return strings.TrimSpace(p.in.Text())
}

func (p *prompter) collect() runInput {
	return runInput{
		Location: parseLocation(p.ask("Enter location name: ")),
		Steps:    parseSteps(p.ask(fmt.Sprintf("Enter number of steps [%d]: ", defaultSteps))),
		Delay:    parseDelay(p.ask(fmt.Sprintf("Enter delay between steps in seconds [%g]: ", defaultDelay.Seconds()))),
	}
}

func parseLocation(s string) string {
	if s == "" {
		return defaultLocation
	}
	return s
}

// parseSteps returns defaultSteps for anything that is not a non-negative integer.
func parseSteps(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return defaultSteps
	}
	return n
}

// parseDelay reads seconds as a float and returns defaultDelay for anything
// that is not a number of seconds in [0, maxDelaySeconds].
func parseDelay(s string) time.Duration {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || f < 0 || f > maxDelaySeconds {
		return defaultDelay
	}
	return time.Duration(f * float64(time.Second))
}
