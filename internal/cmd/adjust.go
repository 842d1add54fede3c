package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/colorboost/internal/adjust"
	"github.com/MeKo-Tech/colorboost/internal/imageio"
	"github.com/MeKo-Tech/colorboost/internal/intensity"
	"github.com/MeKo-Tech/colorboost/internal/worker"
)

const outputSuffix = "_boosted"

// errOutputCollision is returned when two inputs would write the same file.
var errOutputCollision = errors.New("output path collision")

var adjustCmd = &cobra.Command{
	Use:   "adjust",
	Short: "Boost saturation and brightness of images",
	Long: `Adjust a single image (--input/--output) or every image in a directory
(--input-dir/--output-dir) at the given intensity level.`,
	RunE: runAdjust,
}

func init() {
	rootCmd.AddCommand(adjustCmd)

	// Single image flags
	adjustCmd.Flags().StringP("input", "i", "", "Input image path")
	adjustCmd.Flags().StringP("output", "o", "", "Output image path (default: <input>_boosted.<ext>)")

	// Batch flags
	adjustCmd.Flags().String("input-dir", "", "Directory of images to adjust (recursive)")
	adjustCmd.Flags().String("output-dir", "", "Directory for adjusted images, mirroring --input-dir")
	adjustCmd.Flags().IntP("workers", "w", 0, "Number of parallel workers (default: number of CPUs)")
	adjustCmd.Flags().Bool("progress", true, "Show progress bar during batch adjustment")
	adjustCmd.Flags().Bool("allow-failures", false, "Exit successfully even if some images fail")

	// Common flags
	adjustCmd.Flags().Float64("intensity", 50, "Intensity level in [0,100]")
	adjustCmd.Flags().Int("max-size", 0, "Downscale so neither side exceeds this many pixels (0 keeps size)")
	adjustCmd.Flags().String("png-compression", "default", "PNG compression (default, speed, best, none)")
	adjustCmd.Flags().Int("jpeg-quality", imageio.DefaultOptions().JPEGQuality, "JPEG quality (1-100)")
	adjustCmd.Flags().Bool("force", false, "Overwrite outputs that already exist")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"adjust.input", "input"},
		{"adjust.output", "output"},
		{"adjust.input_dir", "input-dir"},
		{"adjust.output_dir", "output-dir"},
		{"adjust.workers", "workers"},
		{"adjust.progress", "progress"},
		{"adjust.allow_failures", "allow-failures"},
		{"adjust.intensity", "intensity"},
		{"adjust.max_size", "max-size"},
		{"adjust.png_compression", "png-compression"},
		{"adjust.jpeg_quality", "jpeg-quality"},
		{"adjust.force", "force"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, adjustCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runAdjust(cmd *cobra.Command, args []string) error {
	input := viper.GetString("adjust.input")
	output := viper.GetString("adjust.output")
	inputDir := viper.GetString("adjust.input_dir")
	outputDir := viper.GetString("adjust.output_dir")
	workers := viper.GetInt("adjust.workers")
	showProgress := viper.GetBool("adjust.progress")
	allowFailures := viper.GetBool("adjust.allow_failures")
	force := viper.GetBool("adjust.force")

	if logger == nil {
		initLogging()
	}

	level, err := intensity.ParseLevel(viper.GetFloat64("adjust.intensity"))
	if err != nil {
		return fmt.Errorf("invalid --intensity: %w", err)
	}

	compression, err := imageio.ParseCompression(viper.GetString("adjust.png_compression"))
	if err != nil {
		return err
	}
	opts := imageio.DefaultOptions()
	opts.PNGCompression = compression
	opts.JPEGQuality = viper.GetInt("adjust.jpeg_quality")
	if opts.JPEGQuality < 1 || opts.JPEGQuality > 100 {
		return fmt.Errorf("--jpeg-quality must be within [1,100], got %d", opts.JPEGQuality)
	}

	maxSize := viper.GetInt("adjust.max_size")
	if maxSize < 0 {
		return fmt.Errorf("--max-size must not be negative")
	}

	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	switch {
	case inputDir != "" && input != "":
		return fmt.Errorf("--input and --input-dir are mutually exclusive")
	case inputDir != "":
		if outputDir == "" {
			return fmt.Errorf("--output-dir is required with --input-dir")
		}
		// Images are spread over the pool; each one is adjusted on a single goroutine.
		proc := &imageAdjuster{level: level, maxSize: maxSize, workers: 1, opts: opts}
		return runBatchAdjust(proc, inputDir, outputDir, workers, showProgress, force, allowFailures)
	case input != "":
		proc := &imageAdjuster{level: level, maxSize: maxSize, workers: workers, opts: opts}
		return runSingleAdjust(proc, input, output, force)
	default:
		return fmt.Errorf("either --input or --input-dir is required")
	}
}

func runSingleAdjust(proc *imageAdjuster, input, output string, force bool) error {
	if output == "" {
		output = defaultOutputPath(input)
	}

	logger.Info("Adjusting image",
		"input", input,
		"output", output,
		"intensity", float64(proc.level),
		"factor", float32(proc.level.Factor()),
	)

	path, err := proc.Process(context.Background(), worker.Task{Input: input, Output: output, Force: force})
	if err != nil {
		return err
	}

	logger.Info("Image adjusted", "path", path)
	return nil
}

func runBatchAdjust(proc *imageAdjuster, inputDir, outputDir string, workers int, showProgress, force, allowFailures bool) error {
	tasks, err := collectTasks(inputDir, outputDir, force)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		logger.Warn("No images found", "input_dir", inputDir)
		return nil
	}

	logger.Info("Starting batch adjustment",
		"input_dir", inputDir,
		"output_dir", outputDir,
		"images", len(tasks),
		"workers", workers,
		"intensity", float64(proc.level),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	progress := worker.NewProgress(len(tasks), showProgress)

	pool := worker.New(worker.Config{
		Workers:    workers,
		Processor:  proc,
		OnProgress: progress.Callback(),
	})

	results := pool.Run(ctx, tasks)
	progress.Done()

	var failedCount int
	for _, r := range results {
		if r.Err != nil {
			failedCount++
			logger.Error("Image adjustment failed", "input", r.Task.Input, "error", r.Err)
			continue
		}
		logger.Debug("Image adjusted", "input", r.Task.Input, "path", r.Path, "elapsed", r.Elapsed)
	}

	logger.Info(progress.Summary())

	if ctx.Err() != nil {
		return fmt.Errorf("batch adjustment interrupted: %w", ctx.Err())
	}
	if failedCount > 0 {
		if allowFailures {
			logger.Warn("Some images failed to adjust, but continuing due to --allow-failures flag", "failed_count", failedCount)
			return nil
		}
		return fmt.Errorf("%d of %d images failed to adjust", failedCount, len(tasks))
	}
	return nil
}

// imageAdjuster loads, adjusts and saves one image per task.
type imageAdjuster struct {
	level   intensity.Level
	maxSize int
	workers int
	opts    imageio.Options
}

func (a *imageAdjuster) Process(ctx context.Context, task worker.Task) (string, error) {
	if !task.Force && fileExists(task.Output) {
		logger.Debug("Output exists, skipping", "path", task.Output)
		return task.Output, nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	img, _, err := imageio.Load(task.Input)
	if err != nil {
		return "", err
	}
	img = imageio.Fit(img, a.maxSize)

	if err := adjust.AdjustImageParallel(img, a.level.Factor(), a.workers); err != nil {
		return "", fmt.Errorf("adjust %s: %w", task.Input, err)
	}

	if err := imageio.Save(task.Output, img, a.opts); err != nil {
		return "", err
	}
	return task.Output, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// defaultOutputPath places the result next to the input: photo.jpg becomes
// photo_boosted.jpg.
func defaultOutputPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + outputSuffix + ext
}

// collectTasks walks inputDir for supported images and mirrors each relative
// path under outputDir. Unsupported output formats are written as PNG, so
// a.gif next to a.png would collide; such pairs are reported as an error.
func collectTasks(inputDir, outputDir string, force bool) ([]worker.Task, error) {
	info, err := os.Stat(inputDir)
	if err != nil {
		return nil, fmt.Errorf("input dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input dir %s is not a directory", inputDir)
	}

	var tasks []worker.Task
	owners := make(map[string]string)
	err = filepath.WalkDir(inputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !imageio.IsImagePath(path) {
			return nil
		}

		rel, err := filepath.Rel(inputDir, path)
		if err != nil {
			return err
		}
		out := filepath.Join(outputDir, rel)
		if _, err := imageio.FormatForPath(out); errors.Is(err, imageio.ErrUnsupportedFormat) {
			out = strings.TrimSuffix(out, filepath.Ext(out)) + ".png"
		}

		if prev, ok := owners[out]; ok {
			return fmt.Errorf("%w: %s and %s both write %s", errOutputCollision, prev, path, out)
		}
		owners[out] = path

		tasks = append(tasks, worker.Task{Input: path, Output: out, Force: force})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", inputDir, err)
	}
	return tasks, nil
}
