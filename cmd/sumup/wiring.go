package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/h0rv/sumup/internal/config"
	"github.com/h0rv/sumup/internal/domain"
	"github.com/h0rv/sumup/internal/gh"
	"github.com/h0rv/sumup/internal/host"
	"github.com/h0rv/sumup/internal/powerup"
	"github.com/h0rv/sumup/internal/refresh"
	"github.com/h0rv/sumup/internal/storage/memory"
	"github.com/h0rv/sumup/internal/storage/s3store"
	"github.com/h0rv/sumup/internal/storage/sqlite"
	"github.com/h0rv/sumup/internal/store"
)

var errNoBoard = errors.New("no board selected: set --board or board in the config")

// openStorage opens the configured storage driver.
func (c *cli) openStorage(ctx context.Context) (host.Storage, error) {
	switch c.cfg.Storage.Driver {
	case config.StorageSQLite:
		db, err := sqlite.Open(c.cfg.Storage.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite storage: %w", err)
		}
		c.closers = append(c.closers, db.Close)
		return db, nil

	case config.StorageS3:
		s3cfg := s3store.Config{
			Endpoint:     c.cfg.Storage.S3.Endpoint,
			Bucket:       c.cfg.Storage.S3.Bucket,
			Region:       c.cfg.Storage.S3.Region,
			AccessKey:    c.cfg.Storage.S3.AccessKey,
			SecretKey:    c.cfg.Storage.S3.SecretKey,
			Prefix:       c.cfg.Storage.S3.Prefix,
			UsePathStyle: c.cfg.Storage.S3.UsePathStyle,
		}
		client, err := s3store.NewClient(ctx, s3cfg)
		if err != nil {
			return nil, err
		}
		st, err := s3store.New(client, s3cfg)
		if err != nil {
			return nil, err
		}
		if c.cfg.Storage.S3.CreateBucket {
			if err := st.EnsureBucket(ctx); err != nil {
				return nil, err
			}
		}
		return st, nil

	default:
		c.logger.Warn("Using in-memory storage, fields and values are lost on exit")
		return memory.New(), nil
	}
}

// board is a resolved board: where its cards come from and what it is called.
type board struct {
	id    string
	title string
	cards host.CardSource // nil when the host supplies cards per request
}

// openBoard resolves the configured card source and board.
func (c *cli) openBoard(ctx context.Context) (board, error) {
	src := c.cfg.Source
	switch src.Kind {
	case config.SourceLocal:
		s, err := store.LoadFile(src.BoardFile)
		if err != nil {
			return board{}, err
		}
		b := s.GetBoard()
		if c.cfg.Board != "" && c.cfg.Board != b.ID {
			return board{}, fmt.Errorf("board %s is not in %s (found %s)", c.cfg.Board, src.BoardFile, b.ID)
		}
		return board{id: b.ID, title: b.Name, cards: s}, nil

	case config.SourceGitHub:
		client, err := gh.NewFromAuth(src.GitHub.Token)
		if err != nil {
			return board{}, fmt.Errorf("failed to create GitHub client: %w\n\nPlease authenticate using:\n  gh auth login\nor set the GITHUB_TOKEN environment variable", err)
		}
		source := gh.NewSource(client, gh.SourceConfig{
			Owner:      src.GitHub.Owner,
			Number:     src.GitHub.Project,
			GroupField: src.GitHub.GroupField,
			BoardID:    c.cfg.Board,
			MaxAge:     src.GitHub.MaxAge,
		}, c.logger.Named("github"))
		b, err := source.Board(ctx)
		if err != nil {
			return board{}, err
		}
		return board{id: b.ID, title: b.Name, cards: source}, nil

	default:
		if c.cfg.Board == "" {
			return board{}, errNoBoard
		}
		return board{id: c.cfg.Board, title: c.cfg.Board}, nil
	}
}

// session opens storage and the board and returns the session commands run in.
func (c *cli) session(ctx context.Context) (host.Session, board, error) {
	storage, err := c.openStorage(ctx)
	if err != nil {
		return host.Session{}, board{}, err
	}
	b, err := c.openBoard(ctx)
	if err != nil {
		return host.Session{}, board{}, err
	}
	sess := host.Session{
		Storage: storage,
		Cards:   b.cards,
		Context: host.Context{Board: b.id},
	}
	return sess, b, nil
}

func (c *cli) powerUp() *powerup.PowerUp {
	return powerup.New(policyFor(c.cfg.Badges), c.logger.Named("powerup"))
}

func policyFor(b config.BadgesConfig) powerup.Policy {
	return powerup.Policy{
		ValueColor:          domain.Color(b.ValueColor),
		SumColor:            domain.Color(b.SumColor),
		ShowFirstCardValues: b.ShowFirstCardValues,
		Budget:              b.Budget,
		Icon:                b.Icon,
		Concurrency:         b.Concurrency,
	}
}

func (c *cli) refreshConfig() refresh.Config {
	return refresh.Config{
		Interval: c.cfg.Refresh.Interval,
		Debounce: c.cfg.Refresh.Debounce,
	}
}
