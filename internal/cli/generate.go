package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/synthgen/internal/generate"
	"github.com/kiranshivaraju/synthgen/internal/retrieval"
	"github.com/kiranshivaraju/synthgen/internal/schema"
)

type generateOptions struct {
	columns string // comma separated column names
	prompt  string // free-text schema prompt or description
	rows    int
	format  string
	domain  string
	out     string // output path, stdout when empty
	noCache bool
}

func registerGenerateCmd(parent *cobra.Command, env *Env) {
	opts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a dataset",
		Long: `Generate a synthetic dataset from a column list or a free-text prompt.
Simple columns (name, age, city, email, phone) are filled locally; every
other column is filled by the configured AI provider.`,
		Example: `  # CSV to stdout
  datagen generate --columns name,age,city --rows 100

  # NDJSON to a file, bypassing the dataset cache
  datagen generate --prompt "product, price and rating" --rows 5000 \
    --format json --out products.json --no-cache`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd, env, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.columns, "columns", "c", "", "Comma separated column names")
	cmd.Flags().StringVarP(&opts.prompt, "prompt", "p", "", "Schema prompt, or the description when --columns is set")
	cmd.Flags().IntVarP(&opts.rows, "rows", "n", 0, "Number of rows (default GEN_DEFAULT_ROWS)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "csv", "Output format: csv or json")
	cmd.Flags().StringVar(&opts.domain, "domain", "", "Domain hint for the model (default GEN_DOMAIN)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Output file (default stdout)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "Neither read nor write the dataset cache")

	parent.AddCommand(cmd)
}

func runGenerate(cmd *cobra.Command, env *Env, opts *generateOptions) error {
	ctx := cmd.Context()

	cfg, err := env.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	columns, description, err := resolveSchema(opts, cfg.Generation.MaxPromptChars)
	if err != nil {
		return err
	}

	format, err := generate.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	rows := opts.rows
	if rows == 0 {
		rows = cfg.Generation.DefaultRows
	}
	domain := opts.domain
	if domain == "" {
		domain = cfg.Generation.Domain
	}

	retriever := retrieval.NewRetriever(retrieval.NewMemoryStore(), nil, cfg.Generation.ContextTopK, domain)
	similar, err := retriever.SimilarContext(ctx, columns, description)
	if err != nil {
		return err
	}

	job, err := generate.NewJob(generate.JobParams{
		Columns:           columns,
		Description:       description,
		Domain:            domain,
		Context:           similar,
		Rows:              rows,
		Format:            format,
		MaxRows:           cfg.Generation.MaxRows,
		CacheRowThreshold: cfg.Generation.CacheRowThreshold,
	})
	if err != nil {
		return err
	}

	provider, err := env.NewProvider(cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI provider: %w", err)
	}

	var datasets generate.Store
	if !opts.noCache {
		c, closeCache, err := env.OpenCache(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer closeCache()
		datasets = c
	}

	gen := generate.NewBatchGenerator(provider, cfg.Generation.BatchSize, cfg.AI.InferenceTimeout, nil)
	stream := generate.NewAssembler(datasets, gen, cfg.Generation.CacheTTL, nil).Open(ctx, job)

	var out io.Writer = env.Stdout
	var file *os.File
	if opts.out != "" {
		file, err = os.Create(opts.out)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		out = file
	}

	// The anonymous struct hides bufio's Flush so rows are batched by the
	// buffer instead of flushed one at a time.
	bw := bufio.NewWriter(out)
	res, err := stream.Emit(ctx, struct{ io.Writer }{bw})
	if ferr := bw.Flush(); err == nil && ferr != nil {
		err = fmt.Errorf("flush output: %w", ferr)
	}
	if file != nil {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close output file: %w", cerr)
		}
		// Nothing was written: leave no empty file behind.
		var se *generate.StreamError
		if errors.As(err, &se) && !se.Started {
			_ = os.Remove(opts.out)
		}
	}
	if err != nil {
		return err
	}

	source := "generated"
	if res.CacheHit {
		source = "from cache"
	}
	dest := opts.out
	if dest == "" {
		dest = "stdout"
	}
	fmt.Fprintf(env.Stderr, "wrote %d rows (%s) to %s\n", res.Rows, source, dest)
	return nil
}

// resolveSchema prefers --columns and falls back to parsing --prompt.
func resolveSchema(opts *generateOptions, maxPromptChars int) ([]string, string, error) {
	prompt, err := schema.SanitizePrompt(opts.prompt, maxPromptChars)
	if err != nil {
		return nil, "", err
	}

	if strings.TrimSpace(opts.columns) != "" {
		columns, description, err := schema.Resolve(opts.columns, true)
		if err != nil {
			return nil, "", err
		}
		if prompt != "" {
			description = prompt
		}
		return columns, description, nil
	}

	if prompt == "" {
		return nil, "", fmt.Errorf("one of --columns or --prompt is required")
	}
	return schema.Resolve(prompt, false)
}
