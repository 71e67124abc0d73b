package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shelfsense/shelfsense/pkg/config"
	"github.com/shelfsense/shelfsense/pkg/engine"
	"github.com/shelfsense/shelfsense/pkg/errors"
	"github.com/shelfsense/shelfsense/pkg/playbook"
	"github.com/shelfsense/shelfsense/pkg/scoring"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		productPath string
		objective   string
		imageDesc   string
		skipACE     bool
		skipAgents  bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a product against a business objective",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			product, err := readProduct(productPath)
			if err != nil {
				return err
			}

			llm, err := buildLLM(ctx, cfg)
			if err != nil {
				return err
			}

			store, err := playbook.Open(cfg.Playbook.Path)
			if err != nil {
				return err
			}

			opts := engine.Options{
				Objectives: cfg.ObjectiveCatalog(),
				Retry:      cfg.Retry.Policy(),
			}
			if retriever, index, err := openRAG(ctx, cfg, llm); err != nil {
				// Retrieval is optional; the engine degrades without it.
				fmt.Fprintf(os.Stderr, "warning: retrieval unavailable: %v\n", err)
			} else if retriever != nil {
				defer index.Close()
				opts.Retriever = retriever
			}

			resp, err := engine.New(llm, store, opts).Analyze(ctx, engine.Request{
				Product:          product,
				ImageDescription: imageDesc,
				ObjectiveKey:     objective,
				RunACE:           !skipACE,
				RunSpecialists:   !skipAgents,
			})
			if err != nil {
				return err
			}

			return printJSON(cmd, resp)
		},
	}

	cmd.Flags().StringVarP(&productPath, "product", "p", "", "path to a product facts JSON file")
	cmd.Flags().StringVarP(&objective, "objective", "o", "balanced_growth", "objective key from the catalog")
	cmd.Flags().StringVar(&imageDesc, "image-description", "", "free-text description of the packaging image")
	cmd.Flags().BoolVar(&skipACE, "skip-ace", false, "skip the ACE analysis pipeline")
	cmd.Flags().BoolVar(&skipAgents, "skip-specialists", false, "skip the specialist-agent pipeline")
	_ = cmd.MarkFlagRequired("product")

	return cmd
}

func readProduct(path string) (scoring.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return scoring.Product{}, errors.Wrap(err, errors.InvalidInput, "failed to read product file")
	}
	var product scoring.Product
	if err := json.Unmarshal(data, &product); err != nil {
		return scoring.Product{}, errors.Wrap(err, errors.InvalidInput, "failed to parse product file")
	}
	return product, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
	return nil
}
