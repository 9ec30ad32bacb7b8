package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/banchi-geo/banchi/pkg/address"
)

func RunReverse(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)

	x, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("longitude %q is not a number", args[0])
	}
	y, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("latitude %q is not a number", args[1])
	}
	lv, _ := cmd.Flags().GetInt("level")
	level, err := address.ParseLevel(lv)
	if err != nil {
		return err
	}

	tree, err := openTree(cmd)
	if err != nil {
		return err
	}
	defer tree.Close()

	results, err := tree.Reverse(cmd.Context(), x, y, level)
	if err != nil {
		return err
	}
	if results == nil {
		results = []address.ReverseResult{}
	}
	return printJSON(cmd.OutOrStdout(), results)
}
