package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/born-ml/lower/internal/envconfig"
	"github.com/born-ml/lower/lower"
	"github.com/born-ml/lower/tensor"
)

type compileOutput struct {
	name    string
	text    string
	results []*tensor.RawTensor
}

func newCompileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile GRAPH.yaml...",
		Short: "Translate graph descriptions and print the computations",
		Args:  cobra.MinimumNArgs(1),
		RunE:  compileHandler,
	}
	cmd.Flags().String("out", "", "Write each computation to DIR/NAME.hlo instead of stdout (default $LOWER_OUTPUT_DIR)")
	cmd.Flags().Bool("run", false, "Execute each computation with ramp inputs and print the results")
	return cmd
}

func compileHandler(cmd *cobra.Command, args []string) error {
	outDir, _ := cmd.Flags().GetString("out")
	if outDir == "" {
		outDir = envconfig.OutputDir()
	}
	run, _ := cmd.Flags().GetBool("run")
	cfg := lower.ConfigFromEnv()

	outputs := make([]compileOutput, len(args))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(max(1, int(envconfig.Parallel())))
	for i, path := range args {
		g.Go(func() error {
			p, err := lower.LoadGraph(path)
			if err != nil {
				return err
			}
			compiled, err := lower.Compile(p.Graph, p.Params, p.Sizes, cfg)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			defer compiled.Close()
			slog.Debug("translated graph", "path", path, "name", p.Graph.Name(), "ops", len(compiled.Computation.Ops()))

			out := compileOutput{name: p.Graph.Name(), text: compiled.Computation.String()}
			if run {
				inputs, err := rampInputs(p.Params)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				if out.results, err = compiled.Run(ctx, inputs...); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
			}
			outputs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	for _, out := range outputs {
		if outDir != "" {
			path, err := writeComputation(outDir, out)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s: wrote %s\n", out.name, path)
		} else {
			fmt.Fprint(w, out.text)
		}
		printResults(w, out)
	}
	return nil
}

// rampInputs fills every graph-input parameter with 0, 1, 2, ... in its dtype.
func rampInputs(params []lower.ParameterShape) ([]*tensor.RawTensor, error) {
	var inputs []*tensor.RawTensor
	for _, p := range params {
		if p.Kind != lower.GraphInput {
			continue
		}
		shape := tensor.Shape(p.Shape.Dims)
		data := make([]float64, shape.NumElements())
		for i := range data {
			data[i] = float64(i)
		}
		raw, err := tensor.FromFloat64s(data, shape, p.Shape.DType)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, raw)
	}
	return inputs, nil
}

func writeComputation(dir string, out compileOutput) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, out.name+".hlo")
	if err := os.WriteFile(path, []byte(out.text), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func printResults(w io.Writer, out compileOutput) {
	for i, r := range out.results {
		fmt.Fprintf(w, "%s result %d: %s\n", out.name, i, r)
	}
}
