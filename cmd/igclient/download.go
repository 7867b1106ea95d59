package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"igclient/pkg/download"
	"igclient/pkg/instagram"
	"igclient/pkg/media"
	"igclient/pkg/ratelimit"
	"igclient/pkg/retry"
)

var flagMaxPosts int

var postCmd = &cobra.Command{
	Use:   "post <url>",
	Short: "Download a single post or reel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		descriptors, err := a.fetch.Post(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return a.downloadAll(cmd.Context(), descriptors, args[0])
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile <username>",
	Short: "Download a user's posts and profile picture",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		username, err := instagram.ExtractUsername(args[0])
		if err != nil {
			return err
		}

		limit := flagMaxPosts
		if limit == 0 {
			limit = a.cfg.Download.MaxPosts
		}

		descriptors, err := a.fetch.UserPosts(cmd.Context(), username, limit)
		if err != nil {
			return err
		}
		if pic, err := a.fetch.ProfilePicture(cmd.Context(), username); err == nil {
			descriptors = append(descriptors, pic)
		}
		return a.downloadAll(cmd.Context(), descriptors, instagram.ProfilePageURL(username))
	},
}

var storiesCmd = &cobra.Command{
	Use:   "stories <url-or-username>",
	Short: "Download a user's active stories",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		target := args[0]
		if !strings.Contains(target, "instagram.com/stories/") {
			username, err := instagram.ExtractUsername(target)
			if err != nil {
				return err
			}
			target = fmt.Sprintf("%s/stories/%s/", instagram.BaseURL, username)
		}

		descriptors, err := a.fetch.Stories(cmd.Context(), target)
		if err != nil {
			return err
		}
		return a.downloadAll(cmd.Context(), descriptors, target)
	},
}

var highlightsCmd = &cobra.Command{
	Use:   "highlights <username>",
	Short: "Download all highlight reels of a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		username, err := instagram.ExtractUsername(args[0])
		if err != nil {
			return err
		}

		highlights, err := a.fetch.Highlights(cmd.Context(), username)
		if err != nil {
			return err
		}

		var descriptors []media.Descriptor
		for _, h := range highlights {
			descriptors = append(descriptors, h.Items...)
		}
		return a.downloadAll(cmd.Context(), descriptors, instagram.ProfilePageURL(username))
	},
}

var infoCmd = &cobra.Command{
	Use:   "info <username>",
	Short: "Show a user's profile info",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		username, err := instagram.ExtractUsername(args[0])
		if err != nil {
			return err
		}

		profile, err := a.fetch.Profile(cmd.Context(), username)
		if err != nil {
			return err
		}

		fmt.Printf("Username:   %s\n", profile.Username)
		fmt.Printf("Full name:  %s\n", profile.FullName)
		fmt.Printf("ID:         %s\n", profile.ID)
		fmt.Printf("Private:    %v\n", profile.IsPrivate)
		fmt.Printf("Verified:   %v\n", profile.IsVerified)
		fmt.Printf("Followers:  %d\n", profile.FollowerCount)
		fmt.Printf("Posts:      %d\n", profile.MediaCount)
		if profile.Biography != "" {
			fmt.Printf("Bio:        %s\n", profile.Biography)
		}
		return nil
	},
}

func init() {
	profileCmd.Flags().IntVar(&flagMaxPosts, "max", 0, "maximum number of posts to download (0 = config default)")
	rootCmd.AddCommand(postCmd, profileCmd, storiesCmd, highlightsCmd, infoCmd)
}

// downloadAll stores descriptors sequentially, pacing each download with a
// jittered delay and retrying transient failures.
func (a *app) downloadAll(ctx context.Context, descriptors []media.Descriptor, referer string) error {
	if len(descriptors) == 0 {
		fmt.Println("Nothing to download")
		return nil
	}

	dir := a.cfg.Output.BaseDirectory
	if a.cfg.Output.CreateUserFolders && descriptors[0].Username != "" {
		dir = filepath.Join(dir, descriptors[0].Username)
	}
	sink, err := download.NewDirSink(dir)
	if err != nil {
		return err
	}

	retryCfg := &retry.Config{
		MaxAttempts: a.cfg.Download.RetryAttempts,
		Backoff:     retry.NewExponentialBackoff(),
		Logger:      a.log,
	}

	stored, skipped := 0, 0
	for i, d := range descriptors {
		if !a.cfg.Output.OverwriteExisting && sink.Exists(d) {
			skipped++
			continue
		}
		if i > 0 {
			if err := ratelimit.Sleep(ctx, a.cfg.RateLimit.DownloadDelayMin, a.cfg.RateLimit.DownloadDelayMax); err != nil {
				return err
			}
		}

		d := d
		err := retry.Do(ctx, retryCfg, "download "+d.ContentID, func() error {
			body, _, err := a.session.Stream(ctx, d.URL, referer)
			if err != nil {
				return err
			}
			defer body.Close()

			path, written, err := sink.Store(d, body)
			if err != nil {
				return err
			}
			a.log.DebugWithFields("stored media", map[string]interface{}{
				"path":  path,
				"bytes": written,
			})
			return nil
		})
		if err != nil {
			a.log.WithError(err).WithField("content_id", d.ContentID).Error("download failed")
			continue
		}
		stored++
	}

	fmt.Printf("Downloaded %d item(s) to %s", stored, dir)
	if skipped > 0 {
		fmt.Printf(" (%d already present)", skipped)
	}
	fmt.Println()
	return nil
}
