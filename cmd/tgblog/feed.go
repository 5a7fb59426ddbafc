package main

import (
	"fmt"
	"path/filepath"

	"tgblog/internal/feed"
	"tgblog/internal/pipeline"
	"tgblog/internal/validation"

	"github.com/spf13/cobra"
)

func newFeedCmd(a *app) *cobra.Command {
	var (
		title       string
		link        string
		description string
		language    string
		image       string
		limit       int
		outDir      string
	)

	cmd := &cobra.Command{
		Use:   "feed [export-dir]",
		Short: "Build rss.xml and atom.xml from posts.json",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := a.exportDir(args)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			fc := a.cfg.Feed
			if flags.Changed("title") {
				fc.Title = title
			}
			if flags.Changed("link") {
				fc.Link = link
			}
			if flags.Changed("description") {
				fc.Description = description
			}
			if flags.Changed("language") {
				fc.Language = language
			}
			if flags.Changed("image") {
				fc.ImageURL = image
			}
			if err := validation.ValidateNonNegative(limit, "--limit"); err != nil {
				return err
			}
			if outDir == "" {
				outDir = dir
			}

			postsPath := filepath.Join(dir, a.cfg.Output.PostsFile)
			posts, err := pipeline.ReadPosts(postsPath)
			if err != nil {
				return err
			}

			f, err := feed.Build(posts, fc, feed.Options{Limit: limit})
			if err != nil {
				return err
			}
			if err := feed.WriteFiles(outDir, f, fc.Language); err != nil {
				return err
			}

			a.logger.WithField("items", len(f.Items)).Info("Feeds written")
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d items to %s\n", len(f.Items), outDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "feed title")
	cmd.Flags().StringVar(&link, "link", "", "absolute URL of the blog")
	cmd.Flags().StringVar(&description, "description", "", "feed description")
	cmd.Flags().StringVar(&language, "language", "", "feed language (default en)")
	cmd.Flags().StringVar(&image, "image", "", "feed image URL")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of items, newest first")
	cmd.Flags().StringVar(&outDir, "out", "", "directory for the feed files (default the export directory)")

	return cmd
}
