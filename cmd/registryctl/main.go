package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/docopt/docopt-go"

	"giftregistry/api/internal/auth"
	"giftregistry/api/internal/client"
	"giftregistry/api/internal/logger"
	"giftregistry/api/internal/registry"
	"giftregistry/api/internal/undoring"
)

const RegistryCtlVersion = "0.1.0"

func main() {
	usage := `Registry control.

Every command loads the current bundle first, so writes always expect the
pointers the server holds at that moment. The write token defaults to
$REGISTRY_WRITE_TOKEN.

Usage:
    registryctl bundle [--url=<url>]
    registryctl version [--url=<url>]
    registryctl save-draft <payload.json> [--url=<url>] [--token=<token>] [--undo-file=<path>]
    registryctl publish <payload.json> [--url=<url>] [--token=<token>] [--undo-file=<path>]
    registryctl undo-publish [--url=<url>] [--token=<token>]
    registryctl undo-local [--undo-file=<path>]
    registryctl export [--format=<format>] [--out=<path>] [--url=<url>]
    registryctl hash-token <token>
    registryctl -h | --help
    registryctl --version

Options:
    -h --help           Show this screen.
    --version           Show version.
    --url=<url>         Registry API base url [default: http://localhost:8787].
    --token=<token>     Write token.
    --undo-file=<path>  Local undo ring [default: .registry-undo.json].
    --format=<format>   Export format, pdf or html [default: pdf].
    --out=<path>        Write the export to a file instead of stdout.`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], RegistryCtlVersion)
	if err != nil {
		fail(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if bundle_, _ := opts.Bool("bundle"); bundle_ {
		err = showBundle(ctx, opts)
	} else if version_, _ := opts.Bool("version"); version_ {
		err = showVersion(ctx, opts)
	} else if saveDraft_, _ := opts.Bool("save-draft"); saveDraft_ {
		err = write(ctx, opts, registry.ModeSaveDraft)
	} else if publish_, _ := opts.Bool("publish"); publish_ {
		err = write(ctx, opts, registry.ModePublishLive)
	} else if undoPublish_, _ := opts.Bool("undo-publish"); undoPublish_ {
		err = undoPublish(ctx, opts)
	} else if undoLocal_, _ := opts.Bool("undo-local"); undoLocal_ {
		err = undoLocal(opts)
	} else if export_, _ := opts.Bool("export"); export_ {
		err = exportList(ctx, opts)
	} else if hashToken_, _ := opts.Bool("hash-token"); hashToken_ {
		err = hashToken(opts)
	}
	if err != nil {
		fail(err)
	}
}

func newClient(opts docopt.Opts) *client.Client {
	url, _ := opts.String("--url")
	token, _ := opts.String("--token")
	if token == "" {
		token = os.Getenv("REGISTRY_WRITE_TOKEN")
	}
	log := logger.New(logger.Config{Level: "warn", Pretty: true, Output: os.Stderr})

	clientOpts := []client.Option{client.WithToken(token), client.WithLogger(log)}
	if path, _ := opts.String("--undo-file"); path != "" {
		ringStore := undoring.FileStore{Path: path, Log: log}
		clientOpts = append(clientOpts, client.WithRing(ringStore.Load(undoring.DefaultCapacity), ringStore))
	}
	return client.New(url, clientOpts...)
}

func showBundle(ctx context.Context, opts docopt.Opts) error {
	view, err := newClient(opts).Load(ctx)
	if err != nil {
		return err
	}
	return printJSON(view)
}

func showVersion(ctx context.Context, opts docopt.Opts) error {
	version, err := newClient(opts).PublishedVersion(ctx)
	if err != nil {
		return err
	}
	fmt.Println(version)
	return nil
}

func write(ctx context.Context, opts docopt.Opts, mode registry.Mode) error {
	path, _ := opts.String("<payload.json>")
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var payload registry.Bundle
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	c := newClient(opts)
	if _, err := c.Load(ctx); err != nil {
		return err
	}
	c.SetWorking(payload)
	meta, err := c.Save(ctx, mode)
	if err != nil {
		return err
	}
	return printJSON(meta)
}

func undoPublish(ctx context.Context, opts docopt.Opts) error {
	meta, err := newClient(opts).UndoPublish(ctx)
	if err != nil {
		return err
	}
	return printJSON(meta)
}

// undoLocal prints the newest local snapshot, ready to be saved again.
func undoLocal(opts docopt.Opts) error {
	restored, err := newClient(opts).UndoLocal()
	if err != nil {
		return err
	}
	return printJSON(restored)
}

func exportList(ctx context.Context, opts docopt.Opts) error {
	format, _ := opts.String("--format")
	data, err := newClient(opts).Export(ctx, format)
	if err != nil {
		return err
	}
	if out, _ := opts.String("--out"); out != "" {
		return os.WriteFile(out, data, 0o644)
	}
	_, err = os.Stdout.Write(data)
	return err
}

func hashToken(opts docopt.Opts) error {
	token, _ := opts.String("<token>")
	hash, err := auth.HashToken(token)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "registryctl: %v\n", err)
	os.Exit(1)
}
