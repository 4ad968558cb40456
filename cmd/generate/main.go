package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/timmy/thumbcraft/internal/app"
	"github.com/timmy/thumbcraft/internal/config"
	"github.com/timmy/thumbcraft/internal/library"
	"github.com/timmy/thumbcraft/internal/logger"
	"github.com/timmy/thumbcraft/internal/service"
)

type options struct {
	userID     string
	avatarID   string
	photoID    string
	photoIndex int
	textIdea   string
	additional string
	refs       string
	list       bool
	deleteID   string
	importDir  string
	limit      int
	configPath string
}

func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "thumbcraft-generate",
	})
	logger.SetDefaultLogger(appLogger)

	var opts options
	flag.StringVar(&opts.userID, "user", "", "Owner user ID (required)")
	flag.StringVar(&opts.avatarID, "avatar", "", "Avatar ID to generate with")
	flag.StringVar(&opts.photoID, "photo", "", "Avatar photo ID (optional)")
	flag.IntVar(&opts.photoIndex, "index", -1, "Avatar photo index (optional, ignored when -photo is set)")
	flag.StringVar(&opts.textIdea, "text", "", "Thumbnail text idea")
	flag.StringVar(&opts.additional, "additional", "", "Additional instructions")
	flag.StringVar(&opts.refs, "refs", "", "Comma-separated reference IDs")
	flag.BoolVar(&opts.list, "list", false, "List the user's thumbnail history instead of generating")
	flag.StringVar(&opts.deleteID, "delete", "", "Delete a thumbnail history record by ID")
	flag.StringVar(&opts.importDir, "import", "", "Import avatars and references from a directory with manifest.jsonl and images/")
	flag.IntVar(&opts.limit, "limit", 20, "Page size for -list")
	flag.StringVar(&opts.configPath, "config", "", "Path to config file")
	flag.Parse()

	code := run(opts, appLogger)
	_ = logger.Sync()
	os.Exit(code)
}

// run executes one CLI command and returns the process exit code.
// Deferred cleanup always runs before main exits.
func run(opts options, appLogger *logger.Logger) int {
	if opts.userID == "" {
		appLogger.Error("-user is required")
		return 2
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		appLogger.WithError(err).Error("Failed to load config")
		return 1
	}
	// Objects in the memory backend vanish when this process exits, so
	// every URL the CLI printed would dangle.
	if cfg.Storage.Type == "memory" || cfg.Database.Driver == "memory" {
		appLogger.WithFields(logger.Fields{
			"storage":  cfg.Storage.Type,
			"database": cfg.Database.Driver,
		}).Error("The CLI needs persistent storage and database; configure storage.type and database.driver")
		return 2
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldComponent: "cli",
		logger.FieldUserID:    opts.userID,
	})

	components, err := app.New(ctx, cfg)
	if err != nil {
		appLogger.WithError(err).Error("Failed to initialize components")
		return 1
	}
	defer components.Close()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			appLogger.Info("Received shutdown signal, canceling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	switch {
	case opts.list:
		thumbs, total, err := components.Thumbnails.ListHistory(ctx, opts.userID, opts.limit, 0)
		if err != nil {
			appLogger.WithError(err).Error("Failed to list history")
			return 1
		}
		for _, t := range thumbs {
			fmt.Printf("%s\t%s\t%s\t%s\n", t.ID, t.CreatedAt.Format("2006-01-02 15:04"), t.TextIdea, t.ImageURL)
		}
		appLogger.WithField("total", total).Info("History listed")

	case opts.importDir != "":
		importer := library.NewImporter(components.Avatars, components.References)
		stats, err := importer.Import(ctx, opts.importDir, opts.userID)
		if err != nil {
			appLogger.WithError(err).Error("Import failed")
			return 1
		}
		appLogger.WithFields(logger.Fields{
			"total":      stats.TotalItems,
			"avatars":    stats.AvatarsAdded,
			"references": stats.ReferencesAdd,
			"failed":     stats.FailedItems,
		}).Info("Import completed")
		if stats.FailedItems > 0 {
			return 1
		}

	case opts.deleteID != "":
		if err := components.Thumbnails.DeleteHistory(ctx, opts.userID, opts.deleteID); err != nil {
			appLogger.WithError(err).Error("Failed to delete thumbnail")
			return 1
		}
		appLogger.WithField(logger.FieldThumbnailID, opts.deleteID).Info("Thumbnail deleted")

	default:
		req := service.GenerationRequest{
			UserID:           opts.userID,
			AvatarID:         opts.avatarID,
			AvatarPhotoID:    opts.photoID,
			TextIdea:         opts.textIdea,
			AdditionalPrompt: opts.additional,
			References:       splitIDs(opts.refs),
		}
		if opts.photoIndex >= 0 {
			idx := opts.photoIndex
			req.AvatarPhotoIndex = &idx
		}

		result, err := components.Thumbnails.Generate(ctx, req)
		if err != nil {
			appLogger.WithFields(logger.Fields{
				"kind": string(service.KindOf(err)),
			}).WithError(err).Error(service.UserMessage(err))
			return 1
		}

		fmt.Println(result.ThumbnailURL)
		appLogger.WithFields(logger.Fields{
			"history_recorded": result.HistoryRecorded,
			"provider_url":     result.UsedProviderURL,
		}).Info("Generation completed")
	}
	return 0
}

func splitIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
