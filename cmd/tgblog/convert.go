package main

import (
	"fmt"

	"tgblog/internal/pipeline"
	"tgblog/internal/validation"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newConvertCmd(a *app) *cobra.Command {
	var (
		output    string
		indent    bool
		dbPath    string
		windowSec int
		converter string
	)

	cmd := &cobra.Command{
		Use:   "convert [export-dir]",
		Short: "Convert result.json into posts.json",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := a.exportDir(args)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("output") {
				a.cfg.Output.PostsFile = output
			}
			if flags.Changed("indent") {
				a.cfg.Output.Indent = indent
			}
			if flags.Changed("db") {
				a.cfg.Output.DatabasePath = dbPath
			}
			if flags.Changed("window") {
				if err := validation.ValidatePositive(windowSec, "--window"); err != nil {
					return err
				}
				a.cfg.Grouping.WindowSec = windowSec
			}
			if flags.Changed("sticker-converter") {
				a.cfg.Media.StickerConverter = converter
			}

			ctx := cmd.Context()
			defer a.startTracing(ctx)()

			var opts []pipeline.Option
			archive, err := a.openArchive(ctx)
			if err != nil {
				return err
			}
			if archive != nil {
				defer archive.Close()
				opts = append(opts, pipeline.WithArchive(archive))
			}

			res, err := pipeline.NewConverter(a.cfg, a.logger, opts...).Convert(ctx, dir)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d posts to %s (%d messages, %d groups, %d media files, %s, %d media failures, %d dangling replies)\n",
				len(res.Posts), res.OutputPath, res.Messages, res.Groups,
				res.Export.MediaItems, humanize.Bytes(uint64(max(res.Export.MediaBytes, 0))),
				res.Export.MediaFailures, res.Assembly.DanglingReplies)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "posts file name inside the export (default posts.json)")
	cmd.Flags().BoolVar(&indent, "indent", false, "indent the JSON output")
	cmd.Flags().StringVar(&dbPath, "db", "", "also store posts in this SQLite archive")
	cmd.Flags().IntVar(&windowSec, "window", 0, "media group window in seconds")
	cmd.Flags().StringVar(&converter, "sticker-converter", "", "command that renders Lottie JSON to APNG")

	return cmd
}
