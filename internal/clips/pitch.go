package clips

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ErrUnavailable reports that no pitch summary could be computed for a clip.
// Pitch is a supplementary analytic; callers store the absence and move on.
var ErrUnavailable = errors.New("clips: pitch unavailable")

// Summary is the pitch summary for one clip, in Hz.
type Summary struct {
	Min  float64
	Max  float64
	Mean float64
}

// Range returns max-min.
func (s Summary) Range() float64 {
	return s.Max - s.Min
}

// Estimator computes a pitch summary for a WAV clip. Implementations return
// ErrUnavailable when the clip has no voiced frames or the tool fails.
type Estimator interface {
	Estimate(ctx context.Context, clip []byte) (Summary, error)
}

// EstimatorFunc adapts a function to the Estimator interface.
type EstimatorFunc func(ctx context.Context, clip []byte) (Summary, error)

func (f EstimatorFunc) Estimate(ctx context.Context, clip []byte) (Summary, error) {
	return f(ctx, clip)
}

// defaultEstimateTimeout bounds one external estimator invocation.
const defaultEstimateTimeout = 30 * time.Second

// ExecEstimator shells out to an external pitch tool. The tool reads a WAV
// file on stdin and prints "<min> <max> <mean>" in Hz on stdout, or the word
// "unvoiced" when no voiced frames exist.
type ExecEstimator struct {
	Command string
	Args    []string
	Timeout time.Duration
}

func (e *ExecEstimator) Estimate(ctx context.Context, clip []byte) (Summary, error) {
	if e.Command == "" {
		return Summary{}, fmt.Errorf("clips: estimator command not configured: %w", ErrUnavailable)
	}

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = defaultEstimateTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.Command, e.Args...)
	cmd.Stdin = bytes.NewReader(clip)

	out, err := cmd.Output()
	if err != nil {
		return Summary{}, fmt.Errorf("clips: run %s: %v: %w", e.Command, err, ErrUnavailable)
	}
	return parseSummary(string(out))
}

func parseSummary(out string) (Summary, error) {
	text := strings.TrimSpace(out)
	if strings.EqualFold(text, "unvoiced") {
		return Summary{}, ErrUnavailable
	}

	fields := strings.Fields(text)
	if len(fields) != 3 {
		return Summary{}, fmt.Errorf("clips: estimator output %q: %w", text, ErrUnavailable)
	}

	vals := make([]float64, 3)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return Summary{}, fmt.Errorf("clips: estimator output %q: %w", text, ErrUnavailable)
		}
		vals[i] = v
	}

	s := Summary{Min: vals[0], Max: vals[1], Mean: vals[2]}
	if s.Min <= 0 || s.Max < s.Min || s.Mean < s.Min || s.Mean > s.Max {
		return Summary{}, fmt.Errorf("clips: implausible summary %+v: %w", s, ErrUnavailable)
	}
	return s, nil
}
