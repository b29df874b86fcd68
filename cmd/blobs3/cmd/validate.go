package cmd

import (
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/galxe/blobs3/pkg/access"
	"github.com/galxe/blobs3/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate chain definitions and access rules",
	Long: `Load the chain definitions and access rules without dialing any chain
and print the rules in evaluation order.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

type validateOutput struct {
	Chains []string      `json:"chains"`
	Rules  []access.Rule `json:"rules"`
	// UnknownChains are referenced by token rules but not defined; those rules never grant
	UnknownChains []string `json:"unknown_chains,omitempty"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defs, err := config.LoadChainDefinitions(cfg.BlockchainConfig)
	if err != nil {
		return err
	}
	rules, err := access.LoadRulesFile(cfg.AccessConfig)
	if err != nil {
		return err
	}

	out := validateOutput{Rules: rules.Rules()}
	defined := make(map[string]bool, len(defs))
	for _, d := range defs {
		defined[d.Name] = true
		out.Chains = append(out.Chains, d.Name)
	}
	unknown := make(map[string]bool)
	for _, r := range out.Rules {
		spec := r.Authorization
		if spec.AuthorizationType != access.AuthorizationPublic && !defined[spec.Blockchain] && !unknown[spec.Blockchain] {
			unknown[spec.Blockchain] = true
			out.UnknownChains = append(out.UnknownChains, spec.Blockchain)
			log.Warn().Str("chain", spec.Blockchain).Msg("Rule references an undefined chain")
		}
	}
	sort.Strings(out.UnknownChains)
	return printJSON(cmd, out)
}
