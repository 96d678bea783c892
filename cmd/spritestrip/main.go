package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/schollz/progressbar/v3"

	"github.com/setanarut/spritestrip"
	"github.com/setanarut/spritestrip/utils"
)

const desc = `Crops every frame of an animation to one shared rectangle and lays the frames out left to right in a single PNG sprite sheet.`

var ErrUsage = errors.New("usage: spritestrip <input> <output>")

type CLI struct {
	Input  string `arg:"" help:"Animation to read (GIF, WebP, or a still PNG/JPEG)."`
	Output string `arg:"" help:"PNG file to write the sheet to. Overwritten if it exists."`

	IgnoreBlank bool   `help:"Leave fully transparent frames out of the crop computation."`
	Cumulative  bool   `help:"Render GIF frames as they play, applying disposal methods."`
	Workers     int    `default:"0" help:"Goroutines used for scanning and cropping (0 = GOMAXPROCS)."`
	Scale       int    `default:"1" help:"Integer nearest-neighbour upscale factor."`
	Colors      int    `default:"0" help:"Quantize to N colors and write an indexed PNG (0 = RGBA)."`
	Palette     string `default:"kmeans" enum:"kmeans,dominantcolor" help:"Palette extraction method (${enum})."`
	PaletteOut  string `help:"Write the palette swatches to this PNG."`
	Index       string `help:"Write a JSON index of frame rectangles to this file."`
	FramesDir   string `help:"Also write each cropped frame as a PNG into this directory."`
	Progress    bool   `help:"Show a progress bar while cropping."`
	Verbose     bool   `short:"v" help:"Log per-frame edges and crop details."`
}

func (c *CLI) Validate() error {
	if c.Input == "" || c.Output == "" {
		return ErrUsage
	}
	return nil
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("spritestrip"),
		kong.Description(desc),
		kong.UsageOnError(),
	)
	if err := run(context.Background(), &cli, os.Stderr); err != nil {
		spritestrip.Logger().Error("spritestrip failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cli *CLI, stderr io.Writer) error {
	level := slog.LevelInfo
	if cli.Verbose {
		level = slog.LevelDebug
	}
	spritestrip.SetLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))

	if err := cli.Validate(); err != nil {
		return err
	}
	method, err := utils.ParsePaletteMethod(cli.Palette)
	if err != nil {
		return err
	}

	imgs, err := utils.ReadFrames(cli.Input, utils.DecodeOptions{Cumulative: cli.Cumulative})
	if err != nil {
		return fmt.Errorf("%s: %w", cli.Input, err)
	}
	spritestrip.Logger().Debug("decoded", "input", cli.Input, "frames", len(imgs))

	opt := spritestrip.DefaultOptions()
	opt.IgnoreBlank = cli.IgnoreBlank
	if cli.Workers > 0 {
		opt.Workers = cli.Workers
	}
	if cli.Progress {
		bar := progressbar.NewOptions(len(imgs),
			progressbar.OptionSetWriter(stderr),
			progressbar.OptionSetDescription("cropping"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		opt.OnCrop = func(int) { bar.Add(1) }
		defer bar.Finish()
	}

	sheet, err := spritestrip.Assemble(ctx, spritestrip.NewFrames(imgs), opt)
	if err != nil {
		return err
	}

	palette, err := utils.SaveSheet(sheet, cli.Output, utils.SaveOptions{
		Scale:  cli.Scale,
		Colors: cli.Colors,
		Method: method,
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", cli.Output, err)
	}
	if cli.PaletteOut != "" && len(palette) > 0 {
		if err := utils.SavePalette(palette, 32, cli.PaletteOut); err != nil {
			return fmt.Errorf("write %s: %w", cli.PaletteOut, err)
		}
	}
	if cli.Index != "" {
		idx := utils.NewIndex(sheet, filepath.Base(cli.Output), cli.Scale)
		if err := utils.SaveIndex(idx, cli.Index); err != nil {
			return fmt.Errorf("write %s: %w", cli.Index, err)
		}
	}
	if cli.FramesDir != "" {
		if err := utils.SaveFrames(sheet, cli.FramesDir); err != nil {
			return fmt.Errorf("write frames: %w", err)
		}
	}
	return nil
}
