package analyses

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// All runs every registered analysis. The long-format files are generated
// first because the bootstrap reads them; the remaining analyses run
// concurrently. Reports are written to w in registry order, and a failing
// analysis does not stop the others.
func All(ctx context.Context, env *Env, w io.Writer) error {
	if _, err := env.Survey(ctx); err != nil {
		return err
	}

	reports := make([]bytes.Buffer, len(Registry))
	errs := make([]error, len(Registry))

	first := Registry[0]
	errs[0] = runInto(ctx, env, first, &reports[0])
	if errs[0] != nil {
		return errs[0]
	}

	g := new(errgroup.Group)
	g.SetLimit(runtime.NumCPU())
	for i := 1; i < len(Registry); i++ {
		g.Go(func() error {
			errs[i] = runInto(ctx, env, Registry[i], &reports[i])
			return nil
		})
	}
	g.Wait()

	for i, a := range Registry {
		fmt.Fprintf(w, "==== %s ====\n", a.Name)
		if errs[i] != nil {
			fmt.Fprintf(w, "failed: %v\n\n", errs[i])
			continue
		}
		if _, err := reports[i].WriteTo(w); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}
	return errors.Join(errs...)
}

func runInto(ctx context.Context, env *Env, a Analysis, buf *bytes.Buffer) error {
	report, err := a.Execute(ctx, env)
	if err != nil {
		return err
	}
	if err := report.Render(buf); err != nil {
		return fmt.Errorf("%s: render: %w", a.Name, err)
	}
	return nil
}
