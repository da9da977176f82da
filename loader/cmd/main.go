package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"livestock/loader/internal"
	"livestock/loader/service"
	"livestock/model"
	"livestock/store"
	"livestock/types"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func init() {
	loadEnvVariables()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "loader",
	Short:         "Load documents into the livestock knowledge store",
	SilenceUsage:  true,
	SilenceErrors: false,
}

var seedCmd = &cobra.Command{
	Use:   "seed [path]",
	Short: "Load the system knowledge base if it is not stored yet",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd.Context(), func(cfg types.Config, docs *service.Service) error {
			if len(args) == 1 {
				cfg.KnowledgeBase = args[0]
			}
			ok, err := service.NewBootstrapper(docs, cfg.KnowledgeBase, cfg.KBEmbedDelay).Initialize(cmd.Context())
			if err != nil {
				return err
			}
			log.Printf("Knowledge base ready: %v", ok)
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the system knowledge base is loaded",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withService(cmd.Context(), func(cfg types.Config, docs *service.Service) error {
			loaded, err := service.NewBootstrapper(docs, cfg.KnowledgeBase, cfg.KBEmbedDelay).IsLoaded(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "knowledge base loaded: %v\n", loaded)
			return nil
		})
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file.pdf>",
	Short: "Ingest a PDF on behalf of a farmer",
	Long: `Ingest a PDF on behalf of a farmer.

Examples:
  loader ingest ./mastitis.pdf --owner 3f1c... --description "Mastitis field guide"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ownerRaw, _ := cmd.Flags().GetString("owner")
		description, _ := cmd.Flags().GetString("description")

		ownerID, err := uuid.Parse(ownerRaw)
		if err != nil {
			return fmt.Errorf("--owner must be a farmer id: %w", err)
		}

		return withService(cmd.Context(), func(_ types.Config, docs *service.Service) error {
			res, err := docs.IngestFile(cmd.Context(), service.IngestRequest{
				Path:         args[0],
				Filename:     filepath.Base(args[0]),
				OriginalName: filepath.Base(args[0]),
				Description:  ingestDescription(description, args[0]),
				Owner:        types.UserOwner(ownerID),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "document %s: %d chunks (%d failed)\n",
				res.Document.ID, res.Document.TotalChunks, res.ChunksFailed)
			return nil
		})
	},
}

func init() {
	ingestCmd.Flags().String("owner", "", "id of the farmer who owns the document")
	ingestCmd.Flags().String("description", "", "short description of the document (defaults to a title built from the file name)")
	_ = ingestCmd.MarkFlagRequired("owner")

	rootCmd.AddCommand(seedCmd, statusCmd, ingestCmd)
}

func ingestDescription(description, path string) string {
	if description != "" {
		return description
	}
	return internal.GenerateTitle(path)
}

func withService(ctx context.Context, fn func(types.Config, *service.Service) error) error {
	cfg, err := types.LoadConfig()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	st, err := store.Open(ctx, cfg.PostgresDSN(), cfg.EmbeddingDimLen)
	if err != nil {
		return fmt.Errorf("error to connect to Postgres database: %w", err)
	}
	defer st.Close()

	embedder := model.NewEmbedder(model.NewHFClient(cfg.Inference))
	docs, err := service.New(st, embedder, cfg.ChunkSize, cfg.ChunkOverlap, cfg.EmbedDelay)
	if err != nil {
		return err
	}
	return fn(cfg, docs)
}

func loadEnvVariables() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using process environment")
	}
}
