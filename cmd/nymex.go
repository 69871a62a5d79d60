package cmd

import (
	"fmt"

	"github.com/lorenzosyku/heating-oil-price-tracker/pipeline"
	"github.com/spf13/cobra"
)

func newNymexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "nymex",
		Short: "Updates the latest NY Harbor heating oil spot price from the EIA API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := initializeConfigAndLogger()
			if err != nil {
				return err
			}

			p, err := pipeline.NewNymexPipeline(cmd.Context(), cfg, log)
			if err != nil {
				log.Error(fmt.Sprintf("Error creating pipeline: %v", err))
				return err
			}
			defer p.Close()

			if err := p.Nymex(cmd.Context()); err != nil {
				log.Error(fmt.Sprintf("Error running pipeline: %v", err))
				return err
			}
			log.Info("Batch job completed without errors")
			return nil
		},
	}
}
