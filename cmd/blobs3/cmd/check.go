package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/galxe/blobs3/cmd/blobs3/app"
	"github.com/galxe/blobs3/pkg/access"
	"github.com/galxe/blobs3/pkg/types"
)

var (
	checkUser   string
	checkAccess string
)

var checkCmd = &cobra.Command{
	Use:   "check <path>",
	Short: "Evaluate one authorization request",
	Long: `Dial the configured chains, probe them once and print whether the
user may perform the access on the path.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVar(&checkUser, "user", "", "wallet address (anonymous when empty)")
	checkCmd.Flags().StringVar(&checkAccess, "access", string(access.AccessRead), "CREATE, READ or UPDATE")
}

func runCheck(cmd *cobra.Command, args []string) error {
	accessType, err := access.ParseAccessType(checkAccess)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	application := app.New(cmd.Context(), cfg)
	defer application.Shutdown()
	if err := application.InitAuthorizer(); err != nil {
		return err
	}
	if err := application.StartMonitor(); err != nil {
		return err
	}

	rule, ok, err := application.Engine().Authorize(cmd.Context(), checkUser, accessType, args[0])
	if err != nil {
		return err
	}
	resp := types.AuthorizeResponse{Authorized: ok}
	if ok {
		resp.Rule = &rule
	}
	return printJSON(cmd, resp)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
