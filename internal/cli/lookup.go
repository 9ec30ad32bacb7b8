package cli

import (
	"github.com/spf13/cobra"

	"github.com/banchi-geo/banchi/pkg/address"
)

func RunLookup(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)

	tree, err := openTree(cmd)
	if err != nil {
		return err
	}
	defer tree.Close()

	ctx := cmd.Context()
	code := args[0]

	// The machiaza master lookup returns one record, every other mode
	// a list of nodes.
	if ok, _ := cmd.Flags().GetBool("aza-code"); ok {
		rec, err := tree.AzaRecordByCode(ctx, code)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), rec)
	}

	var nodes []address.Node
	switch {
	case flagSet(cmd, "postcode"):
		nodes, err = tree.SearchByPostcode(ctx, code)
	case flagSet(cmd, "prefcode"):
		nodes, err = tree.SearchByPrefcode(ctx, code)
	case flagSet(cmd, "citycode"):
		nodes, err = tree.SearchByCitycode(ctx, code)
	case flagSet(cmd, "machiaza-id"):
		nodes, err = tree.SearchByMachiazaID(ctx, code)
	}
	if err != nil {
		return err
	}
	if nodes == nil {
		nodes = []address.Node{}
	}
	return printJSON(cmd.OutOrStdout(), nodes)
}

func flagSet(cmd *cobra.Command, name string) bool {
	v, _ := cmd.Flags().GetBool(name)
	return v
}
