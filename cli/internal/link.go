package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veylhq/veyl/internal/pkg/textutil"
)

func newLinkHashtagCommand() *cobra.Command {
	var (
		hashtagID string
		tag       string
		platform  string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "link-hashtag",
		Short: "Backfill post links for a hashtag from stored captions",
		Long: `Scans stored post captions on the hashtag's platform and links every
post whose caption carries the exact tag. Safe to re-run; existing links
are left untouched.`,
		Example: `  # Backfill by hashtag id
  veyl link-hashtag --id 1234567890

  # Backfill by tag name
  veyl link-hashtag --tag fashion --platform instagram`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if hashtagID == "" && tag == "" {
				return fmt.Errorf("either --id or --tag is required")
			}

			cliCtx, err := setup()
			if err != nil {
				return err
			}
			defer cliCtx.Close()

			ctx := context.Background()
			if hashtagID == "" {
				name := textutil.NormalizeHashtag(tag)
				plat, err := cliCtx.platforms.GetByName(ctx, platform)
				if err != nil {
					return fmt.Errorf("failed to look up platform: %w", err)
				}
				if plat == nil {
					return fmt.Errorf("unknown platform %q", platform)
				}
				hashtag, err := cliCtx.hashtags.GetByNameAndPlatform(ctx, name, plat.ID)
				if err != nil {
					return fmt.Errorf("failed to look up hashtag: %w", err)
				}
				if hashtag == nil {
					return fmt.Errorf("hashtag %q not found on %s", name, platform)
				}
				hashtagID = hashtag.ID
			}

			linked, err := cliCtx.reconcile.BackfillHashtagLinks(ctx, hashtagID, limit)
			if err != nil {
				return err
			}
			fmt.Printf("Linked %d posts\n", linked)
			return nil
		},
	}

	cmd.Flags().StringVar(&hashtagID, "id", "", "Hashtag id")
	cmd.Flags().StringVar(&tag, "tag", "", "Hashtag name (alternative to --id)")
	cmd.Flags().StringVar(&platform, "platform", "instagram", "Platform the tag lives on (with --tag)")
	cmd.Flags().IntVar(&limit, "limit", 500, "Maximum posts to scan")

	return cmd
}
