package deps

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

type answer struct {
	text string
	err  error
}

// StdinConfirm returns a [Y/n] prompt reading answers from in. An empty
// answer, "y" or "yes" consents; anything else, end of input or a cancelled
// ctx declines.
func StdinConfirm(in io.Reader, out io.Writer) func(ctx context.Context, prompt string) bool {
	reader := bufio.NewReader(in)
	// A read left pending by a cancelled prompt answers the next one.
	var pending chan answer

	return func(ctx context.Context, prompt string) bool {
		fmt.Fprintf(out, "%s [Y/n] ", prompt)

		if pending == nil {
			pending = make(chan answer, 1)
			go func(ch chan<- answer) {
				text, err := reader.ReadString('\n')
				ch <- answer{text, err}
			}(pending)
		}

		var a answer
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return false
		case a = <-pending:
			pending = nil
		}

		if a.err != nil && (!errors.Is(a.err, io.EOF) || a.text == "") {
			// Ctrl+D or a closed stdin
			fmt.Fprintln(out)
			return false
		}

		switch strings.ToLower(strings.TrimSpace(a.text)) {
		case "", "y", "yes":
			return true
		}
		return false
	}
}
