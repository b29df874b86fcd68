package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/galxe/blobs3/cmd/blobs3/app"
	"github.com/galxe/blobs3/pkg/metadata"
)

var (
	metadataFile      string
	metadataName      string
	traitType         string
	traitValue        string
	traitExpectUnique bool
)

var metadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "Edit token metadata documents in the object store",
}

var metadataGetCmd = &cobra.Command{
	Use:   "get <s3-uri>",
	Short: "Print a metadata document",
	Args:  cobra.ExactArgs(1),
	RunE: withMetadata(func(cmd *cobra.Command, c *metadata.Client, uri string) error {
		md, err := c.Get(cmd.Context(), uri)
		if err != nil {
			return err
		}
		return printJSON(cmd, md)
	}),
}

var metadataUpdateCmd = &cobra.Command{
	Use:   "update <s3-uri>",
	Short: "Replace a metadata document with the contents of a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: withMetadata(func(cmd *cobra.Command, c *metadata.Client, uri string) error {
		data, err := os.ReadFile(metadataFile)
		if err != nil {
			return fmt.Errorf("failed to read metadata file: %w", err)
		}
		var md metadata.Metadata
		if err := json.Unmarshal(data, &md); err != nil {
			return fmt.Errorf("failed to parse metadata file: %w", err)
		}
		if err := c.Update(cmd.Context(), uri, md); err != nil {
			return err
		}
		return printJSON(cmd, md)
	}),
}

var metadataChangeNameCmd = &cobra.Command{
	Use:   "change-name <s3-uri>",
	Short: "Set the name of a metadata document",
	Args:  cobra.ExactArgs(1),
	RunE: withMetadata(func(cmd *cobra.Command, c *metadata.Client, uri string) error {
		changed, err := c.ChangeName(cmd.Context(), uri, metadataName)
		if err != nil {
			return err
		}
		if !changed {
			return printJSON(cmd, metadata.Metadata{})
		}
		md, err := c.Get(cmd.Context(), uri)
		if err != nil {
			return err
		}
		return printJSON(cmd, md)
	}),
}

var metadataAddTraitCmd = &cobra.Command{
	Use:   "add-trait <s3-uri>",
	Short: "Append a trait to the attributes of a metadata document",
	Args:  cobra.ExactArgs(1),
	RunE: withMetadata(func(cmd *cobra.Command, c *metadata.Client, uri string) error {
		if err := c.AddTrait(cmd.Context(), uri, traitType, traitValue, traitExpectUnique); err != nil {
			return err
		}
		md, err := c.Get(cmd.Context(), uri)
		if err != nil {
			return err
		}
		return printJSON(cmd, md)
	}),
}

func init() {
	rootCmd.AddCommand(metadataCmd)
	metadataCmd.AddCommand(metadataGetCmd, metadataUpdateCmd, metadataChangeNameCmd, metadataAddTraitCmd)

	metadataUpdateCmd.Flags().StringVarP(&metadataFile, "metadata", "d", "", "JSON file with the new metadata")
	_ = metadataUpdateCmd.MarkFlagRequired("metadata")

	metadataChangeNameCmd.Flags().StringVarP(&metadataName, "name", "n", "", "new name")
	_ = metadataChangeNameCmd.MarkFlagRequired("name")

	metadataAddTraitCmd.Flags().StringVarP(&traitType, "trait-type", "t", "", "trait type")
	metadataAddTraitCmd.Flags().StringVarP(&traitValue, "value", "v", "", "trait value")
	metadataAddTraitCmd.Flags().BoolVar(&traitExpectUnique, "expect-unique", false, "fail if the trait type is already present")
	_ = metadataAddTraitCmd.MarkFlagRequired("trait-type")
	_ = metadataAddTraitCmd.MarkFlagRequired("value")
}

// withMetadata builds a metadata client over the configured store
func withMetadata(run func(cmd *cobra.Command, c *metadata.Client, uri string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if _, _, err := metadata.SplitURI(args[0]); err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		application := app.New(cmd.Context(), cfg)
		if err := application.InitStorage(); err != nil {
			return err
		}
		c, err := metadata.NewClient(application.Store())
		if err != nil {
			return err
		}
		return run(cmd, c, args[0])
	}
}
