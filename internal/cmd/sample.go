package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/colorboost/internal/adjust"
	"github.com/MeKo-Tech/colorboost/internal/imageio"
	"github.com/MeKo-Tech/colorboost/internal/intensity"
	"github.com/MeKo-Tech/colorboost/internal/sample"
)

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Generate a synthetic test image",
	Long: `Generate a deterministic hue/saturation sweep with Perlin-modulated
brightness. Useful for inspecting how an intensity level affects the full
range of colors.`,
	RunE: runSample,
}

func init() {
	rootCmd.AddCommand(sampleCmd)

	sampleCmd.Flags().StringP("output", "o", "sample.png", "Output image path")
	sampleCmd.Flags().Int("size", 512, "Image size in pixels (square)")
	sampleCmd.Flags().Int64("seed", 1337, "Deterministic seed for the noise field")
	sampleCmd.Flags().Float64("noise-scale", 48, "Noise feature size in pixels")
	sampleCmd.Flags().Float64("noise-strength", 0.6, "How strongly noise darkens the image (0..1)")
	sampleCmd.Flags().Bool("alpha-ramp", false, "Fade alpha from top to bottom")
	sampleCmd.Flags().Float64("intensity", -1, "Also write an adjusted copy at this level (negative disables)")
	sampleCmd.Flags().Bool("force", false, "Overwrite existing output")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"sample.output", "output"},
		{"sample.size", "size"},
		{"sample.seed", "seed"},
		{"sample.noise_scale", "noise-scale"},
		{"sample.noise_strength", "noise-strength"},
		{"sample.alpha_ramp", "alpha-ramp"},
		{"sample.intensity", "intensity"},
		{"sample.force", "force"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, sampleCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runSample(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	output := viper.GetString("sample.output")
	size := viper.GetInt("sample.size")
	force := viper.GetBool("sample.force")
	raw := viper.GetFloat64("sample.intensity")

	p := sample.DefaultParams(size, viper.GetInt64("sample.seed"))
	p.NoiseScale = viper.GetFloat64("sample.noise_scale")
	p.NoiseStrength = viper.GetFloat64("sample.noise_strength")
	p.AlphaRamp = viper.GetBool("sample.alpha_ramp")

	written, err := writeSample(p, output, raw, force)
	if err != nil {
		return err
	}

	logger.Info("Sample generation complete",
		"size", size,
		"seed", p.Seed,
		"written", written,
	)
	return nil
}

// writeSample renders p to output and, for a non-negative level, an adjusted
// copy next to it. It returns the paths written.
func writeSample(p sample.Params, output string, raw float64, force bool) ([]string, error) {
	var level intensity.Level
	adjusted := raw >= 0
	if adjusted {
		var err error
		if level, err = intensity.ParseLevel(raw); err != nil {
			return nil, fmt.Errorf("invalid --intensity: %w", err)
		}
	}

	if !force && fileExists(output) {
		return nil, fmt.Errorf("%s already exists (use --force to overwrite)", output)
	}

	img, err := sample.Generate(p)
	if err != nil {
		return nil, err
	}

	opts := imageio.DefaultOptions()
	if err := imageio.Save(output, img, opts); err != nil {
		return nil, err
	}
	written := []string{output}

	if adjusted {
		if err := adjust.AdjustImageParallel(img, level.Factor(), 0); err != nil {
			return written, err
		}
		boosted := defaultOutputPath(output)
		if err := imageio.Save(boosted, img, opts); err != nil {
			return written, err
		}
		written = append(written, boosted)
	}

	return written, nil
}
