// Package sealtool prints the sealed hidden inputs a guest entry form needs.
// Templates that cannot call the server render these values once and embed
// them verbatim.
package sealtool

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"html"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/duncanmcclean/guest-entries/internal/cryptox"
	"github.com/duncanmcclean/guest-entries/internal/server/guestentries"
	"golang.org/x/term"
)

// readPassword and isTerminal are test seams for golang.org/x/term.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

var errNoCollection = errors.New("collection is required (-collection)")

type options struct {
	secret   string
	params   guestentries.FormParams
	insecure bool
	html     bool
}

func parse(args []string, stderr io.Writer) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet("seal", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.secret, "s", "", "seal secret (prompted when empty)")
	fs.StringVar(&o.params.Collection, "collection", "", "collection handle")
	fs.StringVar(&o.params.ID, "id", "", "entry id for update and delete forms")
	fs.StringVar(&o.params.Redirect, "redirect", "", "redirect after success")
	fs.StringVar(&o.params.ErrorRedirect, "error-redirect", "", "redirect after a validation failure")
	fs.StringVar(&o.params.Request, "request", "", "custom validator name")
	fs.BoolVar(&o.insecure, "insecure", false, "emit values in clear text")
	fs.BoolVar(&o.html, "html", false, "print <input type=\"hidden\"> tags")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.params.Collection == "" {
		return nil, errNoCollection
	}
	return o, nil
}

// secret returns the configured secret, prompting without echo on a
// terminal and reading one line otherwise.
func secret(o *options, stdin *os.File, stderr io.Writer) (string, error) {
	if o.secret != "" || o.insecure {
		return o.secret, nil
	}
	fd := int(stdin.Fd())
	if isTerminal(fd) {
		fmt.Fprint(stderr, "Seal secret: ")
		b, err := readPassword(fd)
		fmt.Fprintln(stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Render seals p with s and writes one hidden field per line, sorted by name.
func Render(w io.Writer, s guestentries.Sealer, p guestentries.FormParams, insecure, asHTML bool) error {
	fields, err := guestentries.SealFormParams(s, p, insecure)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(fields))
	for n := range fields {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, n := range names {
		if asHTML {
			_, err = fmt.Fprintf(w, "<input type=\"hidden\" name=\"%s\" value=\"%s\">\n", html.EscapeString(n), html.EscapeString(fields[n]))
		} else {
			_, err = fmt.Fprintf(w, "%s=%s\n", n, fields[n])
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Main runs the tool and returns the process exit code.
func Main(args []string, stdin *os.File, stdout, stderr io.Writer) int {
	o, err := parse(args, stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(stderr, err)
		}
		return 2
	}

	var sealer guestentries.Sealer = clearText{}
	if !o.insecure {
		sec, err := secret(o, stdin, stderr)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		s, err := cryptox.NewSealer([]byte(sec))
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		sealer = s
	}

	if err := Render(stdout, sealer, o.params, o.insecure, o.html); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

// clearText is used with -insecure, where no secret is needed.
type clearText struct{}

func (clearText) Seal(v string) (string, error) { return v, nil }
