package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/base43/calicanto/internal/db"
	"github.com/base43/calicanto/pkg/config"
)

type seedOptions struct {
	DatabasePath string
	DryRun       bool
}

type seedChannel struct {
	Name        string
	Description string
}

// defaultChannels are the channels every fresh installation starts with.
var defaultChannels = []seedChannel{
	{"general", "Canal general de la cooperativa"},
	{"anuncios", "Anuncios y comunicados oficiales"},
	{"convivencia", "Convivencia, actividades y vida en común"},
	{"mantenimiento", "Incidencias y mantenimiento del edificio"},
}

func parseSeedArgs(cfg *config.Config, args []string) (seedOptions, error) {
	opts := seedOptions{DatabasePath: cfg.DatabasePath}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--dry-run":
			opts.DryRun = true
		case "--database":
			i++
			if i >= len(args) || strings.TrimSpace(args[i]) == "" {
				return opts, fmt.Errorf("--database requires a path")
			}
			opts.DatabasePath = args[i]
		default:
			return opts, fmt.Errorf("unknown seed flag: %s", args[i])
		}
	}

	if strings.TrimSpace(opts.DatabasePath) == "" {
		return opts, fmt.Errorf("database path cannot be empty")
	}

	return opts, nil
}

func runSeed(cfg *config.Config, out io.Writer, args []string) error {
	opts, err := parseSeedArgs(cfg, args)
	if err != nil {
		return err
	}

	database, err := db.New(opts.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	conn := database.GetConn()

	created := 0
	for _, ch := range defaultChannels {
		var exists bool
		if err := conn.QueryRow(
			"SELECT EXISTS(SELECT 1 FROM channels WHERE name = ?)", ch.Name,
		).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check channel %q: %w", ch.Name, err)
		}

		if exists {
			fmt.Fprintf(out, "channel %q already exists, skipping\n", ch.Name)
			continue
		}

		if opts.DryRun {
			fmt.Fprintf(out, "would create channel %q\n", ch.Name)
			created++
			continue
		}

		if _, err := conn.Exec(
			"INSERT INTO channels (name, description, is_active) VALUES (?, ?, 1)",
			ch.Name, ch.Description,
		); err != nil {
			return fmt.Errorf("failed to create channel %q: %w", ch.Name, err)
		}
		fmt.Fprintf(out, "created channel %q\n", ch.Name)
		created++
	}

	if opts.DryRun {
		fmt.Fprintf(out, "dry run: %d channel(s) would be created\n", created)
	} else {
		fmt.Fprintf(out, "done: %d channel(s) created\n", created)
	}
	return nil
}
