package cmd

import (
	"fmt"

	"github.com/lorenzosyku/heating-oil-price-tracker/pipeline"
	"github.com/spf13/cobra"
)

func newHeatingOilCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "heatingoil",
		Short: "Syncs the NYSERDA weekly heating oil prices into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := initializeConfigAndLogger()
			if err != nil {
				return err
			}

			p, err := pipeline.NewHeatingOilPipeline(cmd.Context(), cfg, log)
			if err != nil {
				log.Error(fmt.Sprintf("Error creating pipeline: %v", err))
				return err
			}
			defer p.Close()

			nRows, err := p.HeatingOil(cmd.Context())
			if err != nil {
				if nRows > 0 {
					log.Error(fmt.Sprintf("Error running pipeline: %v. Upserted %d rows before failing", err, nRows))
				} else {
					log.Error(fmt.Sprintf("Error running pipeline: %v", err))
				}
				return err
			}
			log.Info(fmt.Sprintf("Batch job completed without errors. Upserted %d rows", nRows))
			return nil
		},
	}
}
