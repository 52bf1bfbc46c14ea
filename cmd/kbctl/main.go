package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"ai-support-be/internal/bootstrap"
	"ai-support-be/internal/config"
	"ai-support-be/internal/constant"
	"ai-support-be/internal/model"
	"ai-support-be/internal/pkg/logger"
	"ai-support-be/pkg/database"
	"ai-support-be/pkg/ingest"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
)

func main() {
	orgFlag := &cli.StringFlag{
		Name:     "org",
		Aliases:  []string{"o"},
		Usage:    "Organization id owning the knowledge base",
		Required: true,
		EnvVars:  []string{"KBCTL_ORG"},
	}
	nameFlag := &cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Display name of the document"}
	waitFlag := &cli.DurationFlag{
		Name:  "wait",
		Usage: "How long to wait for processing to finish (0 returns right after queueing)",
		Value: 5 * time.Minute,
	}

	app := &cli.App{
		Name:  "kbctl",
		Usage: "Operate the support knowledge base",
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Create or update the database schema",
				Action: migrateCommand,
			},
			{
				Name:      "submit-text",
				Usage:     "Ingest a block of text",
				ArgsUsage: "<text>",
				Flags:     []cli.Flag{orgFlag, nameFlag, waitFlag},
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("exactly one text argument is required", 2)
					}
					return submit(c, constant.SourceTypeText, ingest.Payload{Name: c.String("name"), Text: c.Args().First()})
				},
			},
			{
				Name:      "submit-url",
				Usage:     "Crawl a website and ingest it",
				ArgsUsage: "<url>",
				Flags:     []cli.Flag{orgFlag, nameFlag, waitFlag},
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("exactly one url argument is required", 2)
					}
					return submit(c, constant.SourceTypeUrl, ingest.Payload{Name: c.String("name"), URL: c.Args().First()})
				},
			},
			{
				Name:      "submit-file",
				Usage:     "Ingest a PDF or plain text file",
				ArgsUsage: "<path>",
				Flags:     []cli.Flag{orgFlag, nameFlag, waitFlag},
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("exactly one file path is required", 2)
					}
					path := c.Args().First()
					data, err := os.ReadFile(path)
					if err != nil {
						return fmt.Errorf("read %s: %w", path, err)
					}
					return submit(c, constant.SourceTypeDocument, ingest.Payload{
						Name:     c.String("name"),
						Data:     data,
						Filename: filepath.Base(path),
					})
				},
			},
			{
				Name:      "search",
				Usage:     "Query the knowledge base",
				ArgsUsage: "<query>",
				Flags: []cli.Flag{
					orgFlag,
					&cli.IntFlag{Name: "top", Aliases: []string{"k"}, Usage: "Number of snippets", Value: 5},
				},
				Action: searchCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func migrateCommand(c *cli.Context) error {
	cfg := config.Load()
	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, false)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if err := database.Migrate(db, model.All()...); err != nil {
		return err
	}
	color.Green("Schema is up to date")
	return nil
}

func newContainer() (*bootstrap.Container, error) {
	cfg := config.Load()
	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, false)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return bootstrap.NewContainer(db, cfg, logger.NewIsolatedLogger(cfg.App.LogFilePath))
}

func organization(c *cli.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.String("org"))
	if err != nil {
		return uuid.Nil, cli.Exit("--org must be a uuid", 2)
	}
	return id, nil
}

func submit(c *cli.Context, sourceType string, payload ingest.Payload) error {
	orgID, err := organization(c)
	if err != nil {
		return err
	}

	container, err := newContainer()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(c.Context)
	defer func() {
		cancel()
		container.Close()
	}()
	container.Start(ctx)

	// Subscribe first: status events are not replayed
	statuses, err := container.IngestService.SubscribeIngestStatus(ctx, orgID)
	if err != nil {
		return err
	}

	doc, err := container.IngestService.EnqueueIngest(ctx, orgID, sourceType, payload)
	if err != nil {
		return err
	}
	color.Cyan("Queued %s (%s) as %s", doc.Name, doc.SourceType, doc.Id)

	wait := c.Duration("wait")
	if wait <= 0 {
		return nil
	}
	timeout := time.After(wait)
	for {
		select {
		case ev, ok := <-statuses:
			if !ok {
				return cli.Exit("status stream closed", 1)
			}
			if ev.DocumentID != doc.Id {
				continue
			}
			switch ev.Status {
			case constant.IngestStatusCompleted:
				color.Green("%s: %s", doc.Id, ev.Status)
				return nil
			case constant.IngestStatusFailed:
				color.Red("%s: %s: %s", doc.Id, ev.Status, ev.Error)
				return cli.Exit("", 1)
			default:
				color.Yellow("%s: %s", doc.Id, ev.Status)
			}
		case <-timeout:
			color.Yellow("Still processing after %s; check again later", wait)
			return nil
		}
	}
}

func searchCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("exactly one query argument is required", 2)
	}
	orgID, err := organization(c)
	if err != nil {
		return err
	}

	container, err := newContainer()
	if err != nil {
		return err
	}
	defer container.Close()

	snippets, err := container.VectorIndex.Search(c.Context, orgID, c.Args().First(), c.Int("top"))
	if err != nil {
		return err
	}
	if len(snippets) == 0 {
		color.Yellow("No results")
		return nil
	}
	for i, s := range snippets {
		color.Cyan("[%d] %s (distance %.3f)", i+1, s.Source, s.Distance)
		fmt.Println(s.Content)
		fmt.Println()
	}
	return nil
}
