package analyst

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

const replPrompt = "portfolio> "

// turnFunc envía una pregunta a la sesión y devuelve la respuesta.
type turnFunc func(ctx context.Context, message string) (string, error)

// repl lee preguntas de in hasta "bye" o EOF y escribe cada respuesta en out.
func repl(ctx context.Context, in io.Reader, out io.Writer, send turnFunc) error {
	r := bufio.NewReader(in)
	fmt.Fprintln(out, "Ask about your portfolio. Type 'bye' to exit.")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(out, replPrompt)

		line, err := r.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		input := strings.TrimSpace(line)
		if input == "bye" {
			return nil
		}
		if input != "" {
			reply, sendErr := send(ctx, input)
			if sendErr != nil {
				return sendErr
			}
			fmt.Fprintln(out, reply)
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(out)
			return nil
		}
	}
}
