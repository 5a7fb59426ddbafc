package media

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"tgblog/internal/constants"
	"tgblog/internal/errors"
)

// DefaultStickerConverter renders Lottie JSON into an animated PNG.
const DefaultStickerConverter = "puppeteer-lottie"

// Converter turns an animated sticker into a format browsers can display.
type Converter interface {
	// Convert returns the path of the converted file.
	Convert(ctx context.Context, path string) (string, error)
}

// CommandConverter converts .tgs stickers by decompressing them to Lottie
// JSON and running an external renderer as
// `Command Args... -i <json> -o <apng>`.
type CommandConverter struct {
	Command string
	Args    []string
	Timeout time.Duration
}

// NewCommandConverter creates a converter, falling back to the default
// renderer and timeout.
func NewCommandConverter(command string, args []string, timeout time.Duration) *CommandConverter {
	if command == "" {
		command = DefaultStickerConverter
	}
	if timeout <= 0 {
		timeout = time.Duration(constants.DefaultConvertTimeoutSec) * time.Second
	}
	return &CommandConverter{Command: command, Args: args, Timeout: timeout}
}

// Convert writes <name>.apng next to the sticker. An existing output is reused.
func (c *CommandConverter) Convert(ctx context.Context, path string) (string, error) {
	out := strings.TrimSuffix(path, filepath.Ext(path)) + ".apng"
	if _, err := os.Stat(out); err == nil {
		return out, nil
	}

	jsonPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".json"
	if err := decompress(path, jsonPath); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeStickerConvert, "failed to decompress sticker").
			WithContext("path", path)
	}
	defer os.Remove(jsonPath)

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	args := append(append([]string{}, c.Args...), "-i", jsonPath, "-o", out)
	cmd := exec.CommandContext(ctx, c.Command, args...)
	cmd.WaitDelay = time.Second
	if output, err := cmd.CombinedOutput(); err != nil {
		_ = os.Remove(out)
		if ctx.Err() == context.DeadlineExceeded {
			return "", errors.NewTimeoutError("sticker conversion", c.Timeout.String())
		}
		return "", errors.Wrap(err, errors.ErrCodeStickerConvert, "sticker renderer failed").
			WithContext("path", path).
			WithContext("output", strings.TrimSpace(string(output)))
	}

	if _, err := os.Stat(out); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeStickerConvert, "sticker renderer produced no output").
			WithContext("path", path)
	}
	return out, nil
}

func decompress(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	zr, err := gzip.NewReader(in)
	if err != nil {
		return fmt.Errorf("not a gzip stream: %w", err)
	}
	defer zr.Close()

	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, constants.DefaultFilePermissions)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, zr); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
