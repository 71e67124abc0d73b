package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/shelfsense/shelfsense/pkg/config"
	"github.com/shelfsense/shelfsense/pkg/errors"
	"github.com/shelfsense/shelfsense/pkg/rag"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the retrieval index",
	}
	cmd.AddCommand(newIndexBuildCmd())
	cmd.AddCommand(newIndexQueryCmd())
	return cmd
}

func newIndexBuildCmd() *cobra.Command {
	var docsPath string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Chunk, embed, and persist source documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cfg.RAG.IndexPath == "" {
				return errors.New(errors.ConfigurationError, "rag.index_path is not configured")
			}

			docs, err := readDocuments(docsPath)
			if err != nil {
				return err
			}

			llm, err := buildLLM(ctx, cfg)
			if err != nil {
				return err
			}
			embedder, err := buildEmbedder(ctx, cfg, llm)
			if err != nil {
				return err
			}

			index, err := rag.OpenIndex(cfg.RAG.IndexPath)
			if err != nil {
				return err
			}
			defer index.Close()

			if err := index.Build(ctx, docs, cfg.RAG.Chunker, embedder); err != nil {
				return err
			}

			cmd.Printf("indexed %d chunks from %d documents\n", index.Len(), len(docs))
			return nil
		},
	}

	cmd.Flags().StringVarP(&docsPath, "docs", "d", "", "path to a JSON file of source documents")
	_ = cmd.MarkFlagRequired("docs")
	return cmd
}

func newIndexQueryCmd() *cobra.Command {
	var (
		queryContext string
		useCache     bool
	)

	cmd := &cobra.Command{
		Use:   "query [question]",
		Short: "Ask a question against the retrieval index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			llm, err := buildLLM(ctx, cfg)
			if err != nil {
				return err
			}

			retriever, index, err := openRAG(ctx, cfg, llm)
			if err != nil {
				return err
			}
			if retriever == nil {
				return errors.New(errors.ConfigurationError, "rag.index_path is not configured")
			}
			defer index.Close()

			var opts []rag.QueryOption
			if useCache {
				opts = append(opts, rag.WithCache(queryContext))
			}

			answer, err := retriever.Query(ctx, args[0], opts...)
			if err != nil {
				return err
			}
			return printJSON(cmd, answer)
		},
	}

	cmd.Flags().StringVar(&queryContext, "context", "", "context string scoping the cache key")
	cmd.Flags().BoolVar(&useCache, "cache", false, "serve and store cached answers")
	return cmd
}

func readDocuments(path string) ([]rag.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.InvalidInput, "failed to read documents file")
	}
	var docs []rag.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, errors.Wrap(err, errors.InvalidInput, "failed to parse documents file")
	}
	return docs, nil
}
