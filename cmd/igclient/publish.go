package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	flagCaption   string
	flagThumbnail string
	flagLatest    string
)

var uploadCmd = &cobra.Command{
	Use:   "upload <image-path>",
	Short: "Publish a photo as a feed post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		upload, err := a.publish.UploadPhoto(cmd.Context(), args[0], flagCaption)
		if err != nil {
			if upload != nil {
				a.log.WithField("phase", string(upload.Phase)).Error("photo publish failed")
			}
			return err
		}
		fmt.Printf("Photo published (upload id %s)\n", upload.ID)
		return nil
	},
}

var reelCmd = &cobra.Command{
	Use:   "reel <video-path>",
	Short: "Publish a video as a reel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		upload, err := a.publish.UploadReel(cmd.Context(), args[0], flagCaption, flagThumbnail)
		if err != nil {
			if upload != nil {
				a.log.WithField("phase", string(upload.Phase)).Error("reel publish failed")
			}
			return err
		}
		fmt.Printf("Reel published (upload id %s)\n", upload.ID)
		return nil
	},
}

var commentCmd = &cobra.Command{
	Use:   "comment [post-url] <text>",
	Short: "Comment on a post, or with --latest on a user's newest post",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		if flagLatest != "" {
			if len(args) != 1 {
				return fmt.Errorf("with --latest, pass only the comment text")
			}
			if err := a.publish.CommentOnLatest(cmd.Context(), flagLatest, args[0]); err != nil {
				return err
			}
		} else {
			if len(args) != 2 {
				return fmt.Errorf("usage: igclient comment <post-url> <text>")
			}
			if err := a.publish.Comment(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
		}
		fmt.Println("Comment posted")
		return nil
	},
}

var likeCmd = &cobra.Command{
	Use:   "like <post-url>",
	Short: "Like a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.publish.Like(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println("Liked")
		return nil
	},
}

var unlikeCmd = &cobra.Command{
	Use:   "unlike <post-url>",
	Short: "Remove a like from a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.publish.Unlike(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println("Unliked")
		return nil
	},
}

func init() {
	uploadCmd.Flags().StringVar(&flagCaption, "caption", "", "caption text")
	reelCmd.Flags().StringVar(&flagCaption, "caption", "", "caption text")
	reelCmd.Flags().StringVar(&flagThumbnail, "thumbnail", "", "cover image path (default: first video frame)")
	commentCmd.Flags().StringVar(&flagLatest, "latest", "", "comment on this user's newest post instead of a URL")
	rootCmd.AddCommand(uploadCmd, reelCmd, commentCmd, likeCmd, unlikeCmd)
}
