package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/uparkt/parkadmin/internal/app"
	"github.com/uparkt/parkadmin/internal/common/apperrors"
	"github.com/uparkt/parkadmin/internal/guard"
	"github.com/uparkt/parkadmin/internal/query"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"sigs.k8s.io/yaml"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var titleCaser = cases.Title(language.English)

var amountPrinter = message.NewPrinter(language.English)

// formatAmount renders money with two decimals and digit grouping.
func formatAmount(v float64) string {
	return amountPrinter.Sprintf("%.2f", v)
}

// printJSON is a helper function to print JSON output
func printJSON(w io.Writer, data any) error {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Fprintln(w, string(out))
	return nil
}

// printValue prints data as a JSON result or as YAML for humans.
func printValue(w io.Writer, data any) error {
	if jsonOutput {
		return printJSON(w, map[string]any{"result": 1, "value": data})
	}
	out, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to render output: %w", err)
	}
	_, err = w.Write(out)
	return err
}

// printDone reports a successful mutation.
func printDone(w io.Writer, msg string) {
	if jsonOutput {
		printJSON(w, map[string]any{"result": 1, "message": msg})
		return
	}
	okLabel.Fprint(w, "✓ ")
	fmt.Fprintln(w, msg)
}

// printHeading prints a list title with the page position.
func printHeading(w io.Writer, kind string, f query.PageFilters, pages, count int) {
	fmt.Fprintf(w, "%s (page %d of %d, %d total)\n", titleCaser.String(kind), f.Page, max(pages, 1), count)
}

// userError presents a failure in the words shown to staff while keeping the
// cause available to errors.Is.
type userError struct {
	err error
}

func (e userError) Error() string { return apperrors.UserMessage(e.err) }
func (e userError) Unwrap() error { return e.err }

func userFacing(err error) error {
	if err == nil {
		return nil
	}
	log.Debug().Err(err).Msg("command failed")
	return userError{err}
}

// enter runs the route guard for path and returns the runtime once the view
// may be shown. q is prefetched as part of the navigation when non-nil.
func enter[T any](cmd *cobra.Command, path string, q *query.Query[T]) (*app.Runtime, error) {
	rt, err := runtimeFor(cmd)
	if err != nil {
		return nil, err
	}
	d, err := app.Enter(ctxOf(cmd), rt, path, q)
	switch d {
	case guard.Allowed:
		return rt, nil
	case guard.Redirecting:
		return nil, ErrAlreadyHandled
	default:
		return nil, userFacing(err)
	}
}

// protected guards a command without a query to prefetch.
func protected(cmd *cobra.Command, path string) (*app.Runtime, error) {
	return enter[struct{}](cmd, path, nil)
}

func ctxOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func parseID(arg, what string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.ErrValidation.Msg(fmt.Sprintf("invalid %s id %q", what, arg))
	}
	return id, nil
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
