package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/manjuraavi/auto-responder/internal/agent"
	"github.com/manjuraavi/auto-responder/internal/config"
	"github.com/manjuraavi/auto-responder/internal/embedding"
	"github.com/manjuraavi/auto-responder/internal/llm"
	"github.com/manjuraavi/auto-responder/internal/logging"
	"github.com/manjuraavi/auto-responder/internal/responder"
	"github.com/manjuraavi/auto-responder/internal/store"
)

var (
	// Global flags
	configPath string
	verbose    bool
	subject    string
	sender     string
	intent     string
	source     string

	// Loaded configuration
	cfg *config.Config

	// Logger
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "responder",
	Short: "auto-responder - intent-aware email reply generation",
	Long: `auto-responder classifies inbound email, retrieves relevant knowledge
from a local vector store, and drafts a reply in the appropriate tone.

Messages flow through classification, multi-query retrieval, and template-guided
generation. The respond command runs the iterative reasoning loop instead, letting
the model decide when to search.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		opts := logging.Options{
			DebugMode:  cfg.Logging.DebugMode || verbose,
			Level:      cfg.Logging.Level,
			Categories: cfg.Logging.Categories,
		}
		if err := logging.Initialize(filepath.Dir(cfg.Store.DatabasePath), opts); err != nil {
			logger.Warn("Debug logging unavailable", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config already exists: %s", configPath)
		}
		if err := config.DefaultConfig().Save(configPath); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", configPath)
		return nil
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Add knowledge passages to the vector store",
	Long: `Reads each file (or stdin when no files are given) and stores its
content as a searchable passage. Embeddings are computed at write time when an
embedding engine is configured; otherwise search falls back to keyword matching.`,
	RunE: runIngest,
}

var classifyCmd = &cobra.Command{
	Use:   "classify [content]",
	Short: "Classify the intent of a message",
	RunE:  runClassify,
}

var retrieveCmd = &cobra.Command{
	Use:   "retrieve [content]",
	Short: "Retrieve stored context relevant to a message",
	RunE:  runRetrieve,
}

var processCmd = &cobra.Command{
	Use:   "process [content]",
	Short: "Run the full chain: classify, retrieve, generate",
	RunE:  runProcess,
}

var respondCmd = &cobra.Command{
	Use:   "respond [content]",
	Short: "Draft a reply through the iterative reasoning loop",
	Long: `Instead of the fixed classify/retrieve/generate chain, the reasoning
loop lets the model decide when to search the knowledge base before answering.`,
	RunE: runRespond,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "responder.yaml", "Configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	for _, cmd := range []*cobra.Command{classifyCmd, retrieveCmd, processCmd, respondCmd} {
		cmd.Flags().StringVar(&subject, "subject", "", "Message subject")
		cmd.Flags().StringVar(&sender, "sender", "", "Message sender")
	}
	retrieveCmd.Flags().StringVar(&intent, "intent", "", "Known intent used as a metadata filter")
	ingestCmd.Flags().StringVar(&intent, "intent", "", "Intent tag stored with each passage")
	ingestCmd.Flags().StringVar(&source, "source", "", "Source label stored with each passage")

	rootCmd.AddCommand(initCmd, ingestCmd, classifyCmd, retrieveCmd, processCmd, respondCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// openStore opens the configured vector store and attaches the embedding
// engine when one can be built. A missing engine is not fatal; search degrades
// to keyword matching.
func openStore() (*store.Store, error) {
	st, err := store.Open(cfg.Store.DatabasePath)
	if err != nil {
		return nil, err
	}

	engine, err := embedding.NewEngine(cfg.Embedding)
	if err != nil {
		logger.Warn("Embedding engine unavailable, using keyword search", zap.Error(err))
		return st, nil
	}
	st.SetEmbeddingEngine(engine)
	logger.Debug("Embedding engine ready", zap.String("engine", engine.Name()))
	return st, nil
}

// buildService wires the responder service over the store.
func buildService() (*responder.Service, *store.Store, error) {
	client, err := llm.NewClient(cfg)
	if err != nil {
		return nil, nil, err
	}

	st, err := openStore()
	if err != nil {
		return nil, nil, err
	}

	svc, err := responder.NewService(client, &responder.StoreSearcher{Store: st}, cfg)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return svc, st, nil
}

// readContent takes message content from args or stdin.
func readContent(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}

	var b strings.Builder
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}

	content := strings.TrimSpace(b.String())
	if content == "" {
		return "", fmt.Errorf("no message content provided")
	}
	return content, nil
}

func messageFromArgs(args []string) (agent.Message, error) {
	content, err := readContent(args)
	if err != nil {
		return agent.Message{}, err
	}
	return agent.Message{
		Content: content,
		Subject: subject,
		Sender:  sender,
	}, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	metadata := map[string]string{}
	if intent != "" {
		metadata["intent"] = intent
	}

	if len(args) == 0 {
		content, err := readContent(nil)
		if err != nil {
			return err
		}
		if source != "" {
			metadata["source"] = source
		}
		id := uuid.NewString()
		if err := st.Add(ctx, id, content, metadata); err != nil {
			return err
		}
		fmt.Printf("Ingested %s\n", id)
		return nil
	}

	passages := make([]store.Passage, 0, len(args))
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		meta := map[string]string{"source": filepath.Base(path)}
		if source != "" {
			meta["source"] = source
		}
		for k, v := range metadata {
			if k != "source" {
				meta[k] = v
			}
		}

		passages = append(passages, store.Passage{
			ID:       uuid.NewString(),
			Content:  strings.TrimSpace(string(data)),
			Metadata: meta,
		})
	}

	if err := st.AddBatch(ctx, passages); err != nil {
		return err
	}
	for _, p := range passages {
		fmt.Printf("Ingested %s\n", p.Metadata["source"])
	}

	count, err := st.Count(ctx)
	if err == nil {
		fmt.Printf("Store now holds %d passages\n", count)
	}
	return nil
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	svc, st, err := buildService()
	if err != nil {
		return err
	}
	defer st.Close()

	msg, err := messageFromArgs(args)
	if err != nil {
		return err
	}

	classification, err := svc.Classify(ctx, msg)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(classification, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	svc, st, err := buildService()
	if err != nil {
		return err
	}
	defer st.Close()

	msg, err := messageFromArgs(args)
	if err != nil {
		return err
	}
	msg.Intent = intent

	bundle, err := svc.Retrieve(ctx, msg)
	if err != nil {
		return err
	}

	fmt.Printf("Primary query: %s\n", bundle.PrimaryQuery)
	fmt.Printf("Expanded queries: %s\n", strings.Join(bundle.ExpandedQueries, " | "))
	fmt.Printf("Stats: retrieved=%d deduped=%d filtered=%d final=%d avg=%.1f\n\n",
		bundle.Stats.TotalRetrieved, bundle.Stats.AfterDeduplication,
		bundle.Stats.AfterFiltering, bundle.Stats.FinalCount, bundle.Stats.AverageScore)

	for i, c := range bundle.Contexts {
		fmt.Printf("%d. [%.1f] (%s) %s\n", i+1, c.Score, c.SourceID, c.Text)
	}
	return nil
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	svc, st, err := buildService()
	if err != nil {
		return err
	}
	defer st.Close()

	msg, err := messageFromArgs(args)
	if err != nil {
		return err
	}

	outcome, err := svc.ProcessMessage(ctx, msg)
	if err != nil {
		return err
	}

	fmt.Printf("Intent:   %s (%.2f, %s)\n", outcome.Classification.Intent,
		outcome.Classification.Confidence, outcome.Classification.Method)
	fmt.Printf("Template: %s\n", outcome.TemplateKey)
	fmt.Printf("Tone:     %s\n", outcome.Tone)
	fmt.Printf("Contexts: %d (avg score %.1f)\n\n", outcome.Stats.FinalCount, outcome.Stats.AverageScore)
	fmt.Println(outcome.Response)
	return nil
}

func runRespond(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	svc, st, err := buildService()
	if err != nil {
		return err
	}
	defer st.Close()

	msg, err := messageFromArgs(args)
	if err != nil {
		return err
	}

	result := svc.RunLoop(ctx, msg)
	if !result.Success {
		return fmt.Errorf("reasoning loop failed: %s", result.Err)
	}

	if steps, ok := result.Metadata["steps_taken"].(int); ok && verbose {
		tools, _ := result.Metadata["tools_used"].([]string)
		logger.Debug("Loop finished",
			zap.Int("steps", steps),
			zap.Strings("tools", tools))
	}
	fmt.Println(result.Data["response"])
	return nil
}
