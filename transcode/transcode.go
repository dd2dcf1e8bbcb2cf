package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Output is one image written by a transcode.
type Output struct {
	Path string
	// Longest side in pixels. Zero keeps the input dimensions, larger
	// images are never enlarged.
	MaxDimension int
	// JPEG quality, zero leaves the tool default.
	Quality int
}

type Transcoder interface {
	Transcode(ctx context.Context, input string, outputs ...Output) error
}

// Error is a failed transcoder invocation.
type Error struct {
	Input   string
	Command []string
	Output  string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("could not transcode %s: %v", e.Input, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CommandLine is the invocation as it would be typed in a shell.
func (e *Error) CommandLine() string {
	quoted := make([]string, len(e.Command))
	for i, arg := range e.Command {
		if strings.ContainsAny(arg, " \t\"'") {
			arg = strconv.Quote(arg)
		}
		quoted[i] = arg
	}
	return strings.Join(quoted, " ")
}

// ImageMagick runs the convert tool, writing every output in a single
// invocation.
type ImageMagick struct {
	command []string
	logger  zerolog.Logger
}

// NewImageMagick takes the command as configured, e.g. "convert" or
// "magick convert".
func NewImageMagick(command string, logger zerolog.Logger) *ImageMagick {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		fields = []string{"convert"}
	}
	return &ImageMagick{command: fields, logger: logger}
}

// Args builds the argument list: every output but the last is emitted with
// -write so the decoded input is resized step by step.
func (im *ImageMagick) Args(input string, outputs []Output) []string {
	args := append([]string{}, im.command[1:]...)
	args = append(args, input)
	for i, out := range outputs {
		if out.MaxDimension > 0 {
			args = append(args, "-resize", fmt.Sprintf("%dx%d>", out.MaxDimension, out.MaxDimension))
		}
		if out.Quality > 0 {
			args = append(args, "-quality", strconv.Itoa(out.Quality))
		}
		if i < len(outputs)-1 {
			args = append(args, "-write")
		}
		args = append(args, out.Path)
	}
	return args
}

func (im *ImageMagick) Transcode(ctx context.Context, input string, outputs ...Output) error {
	if len(outputs) == 0 {
		return errors.New("no transcode outputs")
	}
	for _, out := range outputs {
		if err := os.Remove(out.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}

	args := im.Args(input, outputs)
	cmd := exec.CommandContext(ctx, im.command[0], args...)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	start := time.Now()
	err := cmd.Run()
	logger := im.logger.With().Str("input", input).Int("outputs", len(outputs)).Logger()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Only a tool that ran and failed is a problem of the input.
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return fmt.Errorf("could not run %s: %w", im.command[0], err)
		}
		return &Error{
			Input:   input,
			Command: append([]string{im.command[0]}, args...),
			Output:  strings.TrimSpace(output.String()),
			Err:     err,
		}
	}
	logger.Debug().Float64("seconds", time.Since(start).Seconds()).Msg("transcoded")
	return nil
}
