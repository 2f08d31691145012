package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sphllzulu/QuickPactv2/config"
	"github.com/sphllzulu/QuickPactv2/model"
	"github.com/sphllzulu/QuickPactv2/pkg/logger"
	"github.com/sphllzulu/QuickPactv2/service"
)

// fieldFlags maps CLI flags to contract field names
var fieldFlags = []struct {
	flag  string
	field string
	usage string
}{
	{"party1", model.FieldParty1, "first party name"},
	{"party2", model.FieldParty2, "second party name"},
	{"amount", model.FieldAmount, "amount in rand, without the R"},
	{"start-date", model.FieldStartDate, "start date, e.g. \"January 1, 2026\""},
	{"address", model.FieldAddress, "property or business address"},
	{"term", model.FieldTerm, "term in months"},
	{"notice", model.FieldNotice, "notice period in days"},
	{"roommates", model.FieldRoommateCount, "number of roommates (roommate agreements only)"},
}

type generateOptions struct {
	configPath   string
	contractType string
	summary      string
	out          string
	mode         string
	preview      bool
	fields       map[string]*string
}

func newGenerateCmd() *cobra.Command {
	opts := &generateOptions{fields: make(map[string]*string)}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a contract from a summary",
		Long: "Generate runs one contract generation. When any field flag is given the\n" +
			"document is regenerated with those values, as the Regenerate button does.",
		Example: `  quickpact generate --type roommate --summary "Roommate agreement between John Smith and Jane Doe, rent R1500 starting January 1, 2026"
  quickpact generate --type rental --summary "Flat in Durban" --term 24 --out contract.pdf --mode print`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.configPath, _ = cmd.Flags().GetString("config")
			changed := make(map[string]string)
			for _, f := range fieldFlags {
				if cmd.Flags().Changed(f.flag) {
					changed[f.field] = *opts.fields[f.field]
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runGenerate(ctx, opts, changed, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.contractType, "type", "t", "", "contract type id (see the list below)")
	cmd.Flags().StringVarP(&opts.summary, "summary", "s", "", "plain-language description of the agreement")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "write a PDF to this file or directory")
	cmd.Flags().StringVar(&opts.mode, "mode", string(service.ExportRaster), "PDF mode: raster or print")
	cmd.Flags().BoolVar(&opts.preview, "preview", false, "render the document for the terminal instead of printing markdown")
	for _, f := range fieldFlags {
		opts.fields[f.field] = cmd.Flags().String(f.flag, "", f.usage)
	}
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("summary")

	ids := make([]string, 0, len(model.ContractTypes()))
	for _, ct := range model.ContractTypes() {
		ids = append(ids, ct.ID)
	}
	cmd.Long += "\n\nContract types: " + strings.Join(ids, ", ")

	return cmd
}

func runGenerate(ctx context.Context, opts *generateOptions, fields map[string]string, stdout io.Writer) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger.Init(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: os.Stderr})
	if err := cfg.Validate(); err != nil {
		return err
	}

	mode, err := service.ParseExportMode(opts.mode)
	if err != nil {
		return err
	}

	gen := service.NewOpenAIService(&cfg.OpenAI)
	sess := service.NewSession(uuid.New().String(), time.Now())

	if err := sess.Submit(ctx, gen, opts.contractType, opts.summary); err != nil {
		return fmt.Errorf("generation failed: %s", service.UserMessage(err))
	}
	if len(fields) > 0 {
		if err := sess.UpdateFields(fields); err != nil {
			return err
		}
		if err := sess.Regenerate(ctx, gen); err != nil {
			return fmt.Errorf("regeneration failed: %s", service.UserMessage(err))
		}
	}

	view := sess.View()
	ct, _ := sess.ContractType()

	if opts.preview {
		if err := previewDocument(stdout, view.Document); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(stdout, view.Document)
	}

	if opts.out == "" {
		return nil
	}
	return exportDocument(ctx, cfg, view, ct.Label, mode, opts.out)
}

func previewDocument(w io.Writer, markdown string) error {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return fmt.Errorf("failed to create terminal renderer: %w", err)
	}
	out, err := r.Render(markdown)
	if err != nil {
		return fmt.Errorf("failed to render preview: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}

func exportDocument(ctx context.Context, cfg *config.Config, view model.SessionView, label string, mode service.ExportMode, out string) error {
	page, err := service.NewRenderer(cfg.Theme, cfg.Render, cfg.PDF.ViewportWidth).Render(label, view.Document, view.Fields)
	if err != nil {
		return err
	}

	pdfSvc := service.NewPDFService(&cfg.PDF)
	defer pdfSvc.Close()

	data, err := pdfSvc.Export(ctx, page, mode)
	if err != nil {
		return errors.New(service.UserMessage(err))
	}

	path := out
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		path = filepath.Join(out, service.ExportFilename(label))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(os.Stderr, "PDF saved to %s\n", path)
	return nil
}
