package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newRefreshPostsCommand() *cobra.Command {
	var (
		userID    string
		projectID string
		hashtagID string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "refresh-posts",
		Short: "Re-fetch post metadata and re-run hashtag reconciliation",
		Long: `Re-fetches oEmbed metadata for stored posts and re-runs caption
hashtag reconciliation on the fresh captions.

Scope the run with either --project (with --user) or --hashtag.`,
		Example: `  # Refresh all posts under a hashtag
  veyl refresh-posts --hashtag 1234567890

  # Refresh a project's creator posts
  veyl refresh-posts --user 42 --project 98765`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if hashtagID == "" && projectID == "" {
				return fmt.Errorf("either --hashtag or --project is required")
			}
			if projectID != "" && userID == "" {
				return fmt.Errorf("--project requires --user (projects are user-scoped)")
			}

			cliCtx, err := setup()
			if err != nil {
				return err
			}
			defer cliCtx.Close()

			ctx := context.Background()
			if hashtagID != "" {
				stats, err := cliCtx.posts.RefreshHashtagPosts(ctx, hashtagID, limit)
				if err != nil {
					return err
				}
				fmt.Printf("Scanned %d posts: %d refreshed, %d failed\n",
					stats.Scanned, stats.Refreshed, stats.Failed)
				return nil
			}

			stats, err := cliCtx.posts.RefreshProjectPosts(ctx, userID, projectID, limit)
			if err != nil {
				return err
			}
			fmt.Printf("Scanned %d posts: %d refreshed, %d failed\n",
				stats.Scanned, stats.Refreshed, stats.Failed)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "Owning user id (required with --project)")
	cmd.Flags().StringVar(&projectID, "project", "", "Project id to refresh")
	cmd.Flags().StringVar(&hashtagID, "hashtag", "", "Hashtag id to refresh")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum posts to refresh")

	return cmd
}
