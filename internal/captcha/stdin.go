package captcha

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// StdinSolver asks the operator of the CLI. The image is written to a
// temporary PNG whose path is printed before the prompt.
type StdinSolver struct {
	Out io.Writer
	// Dir is where images are written; empty means os.TempDir.
	Dir string
	// Keep leaves the image on disk after the answer.
	Keep bool

	mu     sync.Mutex
	reader *bufio.Reader
}

// NewStdinSolver reads answers from in and prompts on out.
func NewStdinSolver(in io.Reader, out io.Writer) *StdinSolver {
	return &StdinSolver{Out: out, reader: bufio.NewReader(in)}
}

type lineResult struct {
	line string
	err  error
}

// SolveCaptcha saves image, prompts and reads one line.
func (s *StdinSolver) SolveCaptcha(ctx context.Context, image []byte) (string, error) {
	if len(image) > 0 {
		f, err := os.CreateTemp(s.Dir, "adres-captcha-*.png")
		if err != nil {
			return "", fmt.Errorf("create captcha file: %w", err)
		}
		path := f.Name()
		if _, err := f.Write(image); err != nil {
			f.Close()
			return "", fmt.Errorf("write captcha file: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("close captcha file: %w", err)
		}
		if !s.Keep {
			defer os.Remove(path)
		}
		fmt.Fprintf(s.Out, "Captcha guardado en %s\n", path)
	} else {
		fmt.Fprintln(s.Out, "No se pudo capturar la imagen del captcha; revise la ventana del navegador.")
	}
	fmt.Fprint(s.Out, "Ingrese el texto del captcha: ")

	result := make(chan lineResult, 1)
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		line, err := s.reader.ReadString('\n')
		result <- lineResult{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-result:
		answer := strings.TrimSpace(r.line)
		if r.err != nil && (!errors.Is(r.err, io.EOF) || answer == "") {
			return "", fmt.Errorf("read captcha answer: %w", r.err)
		}
		if answer == "" {
			return "", ErrEmptyAnswer
		}
		return answer, nil
	}
}
