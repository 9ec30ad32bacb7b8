package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banchi-geo/banchi/pkg/geocoder"
)

func RunGetDBDir(cmd *cobra.Command, args []string) error {
	dbDir, _ := cmd.Flags().GetString("db-dir")
	dir, err := geocoder.DBDir(dbDir)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), dir)
	return nil
}
