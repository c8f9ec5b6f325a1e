/*
Package cmds has the command objects of the CLI. A command is validated
first, and only after that executed. That way cobra commands stay thin and the
commands can be used from the tests and other programs as well.
*/
package cmds

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/findy-network/findy-common-go/dto"
	"github.com/lainio/err2/try"
)

var ErrInvalid = errors.New("invalid command, check arguments")

type Result interface {
	JSON() ([]byte, error)
}

type Command interface {
	Validate() error
	Exec(w io.Writer) (r Result, err error)
}

// JSONResult is the Result of any value that can be marshalled to JSON.
type JSONResult struct {
	Value interface{}
}

func (r JSONResult) JSON() ([]byte, error) {
	return dto.ToJSONBytes(r.Value), nil
}

// ValidateURL checks that the address is absolute URL with the host.
func ValidateURL(addr string) error {
	if addr == "" {
		return fmt.Errorf("%w: server address cannot be empty", ErrInvalid)
	}
	u, err := url.Parse(addr)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: server address %q", ErrInvalid, addr)
	}
	return nil
}

func ValidatePort(name string, port uint) error {
	if port == 0 || port > 65535 {
		return fmt.Errorf("%w: %s port %d", ErrInvalid, name, port)
	}
	return nil
}

// ValidateKey checks the hex encoded AES key. Empty key is allowed.
func ValidateKey(k string) error {
	if k != "" && len(k) != 64 {
		return fmt.Errorf("%w: key must be empty or 64 hex chars", ErrInvalid)
	}
	return nil
}

// Fprintln is fmt.Fprintln but it allows writer to be nil. Note! it throws an
// error.
func Fprintln(w io.Writer, a ...interface{}) {
	if w != nil {
		try.To1(fmt.Fprintln(w, a...))
	}
}

// Fprintf is fmt.Fprintf but it allows writer to be nil. Note! it throws an
// error.
func Fprintf(w io.Writer, format string, a ...interface{}) {
	if w != nil {
		try.To1(fmt.Fprintf(w, format, a...))
	}
}

// Fprint is fmt.Fprint but it allows writer to be nil. Note! it throws an
// error.
func Fprint(w io.Writer, a ...interface{}) {
	if w != nil {
		try.To1(fmt.Fprint(w, a...))
	}
}

// Progress prints dots to w until the returned channel is closed.
func Progress(w io.Writer) chan<- struct{} {
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-time.After(300 * time.Millisecond):
				if w != nil {
					_, _ = fmt.Fprint(w, ".")
				}
			}
		}
	}()
	return done
}
