package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/banchi-geo/banchi/pkg/geocoder"
)

func RunSearch(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)

	tree, err := openTree(cmd)
	if err != nil {
		return err
	}
	defer tree.Close()

	cfg := tree.Config()
	if area, _ := cmd.Flags().GetString("area"); area != "" {
		cfg.TargetArea = strings.Split(area, ",")
	}
	if on, _ := cmd.Flags().GetBool("force-aza-skip"); on {
		cfg.AzaSkip = geocoder.AzaSkipOn
	}
	if off, _ := cmd.Flags().GetBool("disable-aza-skip"); off {
		cfg.AzaSkip = geocoder.AzaSkipOff
	}
	if err := tree.SetConfig(cfg); err != nil {
		return err
	}

	groups, err := geocoder.Search(cmd.Context(), tree, args[0])
	if err != nil {
		return err
	}

	// Under best_only the result is the single group itself, matching
	// the shape servers return.
	if tree.Config().BestOnly {
		return printJSON(cmd.OutOrStdout(), groups[0])
	}
	return printJSON(cmd.OutOrStdout(), groups)
}
