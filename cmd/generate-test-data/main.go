package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/nutrigood/internal/testutil"
)

// variant is one rendering of every fixture.
type variant struct {
	dir  string
	opts func(testutil.LabelOptions) testutil.LabelOptions
}

func labelVariants(skew float64) []variant {
	return []variant{
		{dir: "clean", opts: func(o testutil.LabelOptions) testutil.LabelOptions { return o }},
		{dir: "skewed", opts: func(o testutil.LabelOptions) testutil.LabelOptions {
			o.Rotation = skew
			return o
		}},
		{dir: "noisy", opts: func(o testutil.LabelOptions) testutil.LabelOptions {
			o.Noise = 0.01
			return o
		}},
	}
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		generateImages   = flag.Bool("images", true, "Generate synthetic label images")
		generateFixtures = flag.Bool("fixtures", true, "Generate expected-result fixtures")
		outDir           = flag.String("out", "", "Output directory (default <project root>/testdata)")
		skew             = flag.Float64("skew", 4, "Rotation in degrees for the skewed variant")
		help             = flag.Bool("h", false, "Show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate synthetic nutrition label test data.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s                    # Generate all test data\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -fixtures=false    # Generate only images\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -skew 7 -out /tmp  # Stronger skew, custom directory\n", os.Args[0])
	}
	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	dir := *outDir
	if dir == "" {
		root, err := testutil.GetProjectRoot()
		if err != nil {
			slog.Error("Failed to find project root", "error", err)
			os.Exit(1)
		}
		dir = filepath.Join(root, "testdata")
	}

	fixtures := testutil.SampleFixtures()
	if *generateImages {
		n, err := generateLabelImages(filepath.Join(dir, "labels"), fixtures, labelVariants(*skew))
		if err != nil {
			slog.Error("Failed to generate label images", "error", err)
			os.Exit(1)
		}
		slog.Info("Generated label images", "count", n)
	}
	if *generateFixtures {
		if err := testutil.WriteFixtures(filepath.Join(dir, "fixtures"), fixtures); err != nil {
			slog.Error("Failed to generate fixtures", "error", err)
			os.Exit(1)
		}
		slog.Info("Generated fixtures", "count", len(fixtures))
	}
	slog.Info("Test data generation completed", "dir", dir)
}

// generateLabelImages renders every fixture in every variant as
// <dir>/<variant>/<fixture>.png.
func generateLabelImages(dir string, fixtures []testutil.LabelFixture, variants []variant) (int, error) {
	count := 0
	for _, v := range variants {
		vdir := filepath.Join(dir, v.dir)
		if err := testutil.EnsureDir(vdir); err != nil {
			return count, fmt.Errorf("failed to create %s: %w", vdir, err)
		}
		for _, f := range fixtures {
			if len(f.Lines) == 0 {
				continue
			}
			img := testutil.RenderLabel(f.Lines, v.opts(testutil.DefaultLabelOptions()))
			if err := savePNG(filepath.Join(vdir, f.Name+".png"), img); err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}

func savePNG(path string, img image.Image) error {
	file, err := os.Create(path) //nolint:gosec // G304: Test data generation uses controlled paths
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	if err := png.Encode(file, img); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return file.Close()
}
