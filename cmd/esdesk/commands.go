package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	httphandler "github.com/ericfisherdev/esdesk/internal/adapter/driving/http"
	"github.com/ericfisherdev/esdesk/internal/application"
	"github.com/ericfisherdev/esdesk/internal/domain/model"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the JSON API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "Listen address (overrides ESDESK_LISTEN_ADDR)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withApp(ctx, cmd, serve)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	h := httphandler.NewHandler(a.endpoints, a.console, a.logger)

	srv := &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(h, a.logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Console calls may take as long as the remote timeout.
		WriteTimeout: a.cfg.RequestTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server starting", "addr", a.cfg.ListenAddr, "data_dir", a.layout.Dir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", "error", err)
	}

	a.logger.Info("shutdown complete")
	return nil
}

func endpointCommand() *cli.Command {
	return &cli.Command{
		Name:  "endpoint",
		Usage: "Manage registered clusters",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Register a cluster",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "url", Required: true},
					&cli.StringFlag{Name: "username"},
					&cli.StringFlag{Name: "password", Sources: cli.EnvVars("ESDESK_ENDPOINT_PASSWORD")},
					&cli.BoolFlag{Name: "insecure", Usage: "Skip TLS certificate verification"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					in := model.EndpointInput{
						Name:     cmd.String("name"),
						URL:      cmd.String("url"),
						Username: cmd.String("username"),
						Insecure: cmd.Bool("insecure"),
					}
					if cmd.IsSet("password") {
						pw := cmd.String("password")
						in.Password = &pw
					}
					return withApp(ctx, cmd, func(ctx context.Context, a *app) error {
						ep, err := a.endpoints.Create(ctx, in)
						if err != nil {
							return err
						}
						fmt.Fprintf(os.Stdout, "added endpoint %d (%s)\n", ep.ID, ep.Name)
						return nil
					})
				},
			},
			{
				Name:  "list",
				Usage: "List registered clusters",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withApp(ctx, cmd, func(ctx context.Context, a *app) error {
						endpoints, err := a.endpoints.List(ctx)
						if err != nil {
							return err
						}
						return printEndpoints(os.Stdout, endpoints)
					})
				},
			},
			{
				Name:      "remove",
				Usage:     "Remove a cluster",
				ArgsUsage: "<id>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id, err := endpointArg(cmd)
					if err != nil {
						return err
					}
					return withApp(ctx, cmd, func(ctx context.Context, a *app) error {
						return a.endpoints.Delete(ctx, id)
					})
				},
			},
			{
				Name:      "test",
				Usage:     "Test the connection to a cluster",
				ArgsUsage: "<id>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id, err := endpointArg(cmd)
					if err != nil {
						return err
					}
					return withApp(ctx, cmd, func(ctx context.Context, a *app) error {
						report, err := a.endpoints.TestConnection(ctx, id)
						if err != nil {
							return err
						}
						if !report.Success {
							return fmt.Errorf("connection failed: %s", report.Message)
						}
						fmt.Fprintf(os.Stdout, "connected, Elasticsearch %s\n", report.Version)
						return nil
					})
				},
			},
		},
	}
}

func consoleCommand() *cli.Command {
	return &cli.Command{
		Name:      "console",
		Usage:     "Send a raw request to a cluster",
		ArgsUsage: "<id> <method> <path>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "body", Aliases: []string{"d"}, Usage: "Request body for POST and PUT"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 3 {
				return errors.New("usage: console <id> <method> <path>")
			}
			id, err := endpointArg(cmd)
			if err != nil {
				return err
			}
			req := application.ConsoleRequest{
				Method: cmd.Args().Get(1),
				Path:   cmd.Args().Get(2),
				Body:   cmd.String("body"),
			}
			return withApp(ctx, cmd, func(ctx context.Context, a *app) error {
				resp, err := a.console.Execute(ctx, id, req)
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "HTTP %d\n", resp.StatusCode)
				fmt.Fprintln(os.Stdout, resp.Body)
				return nil
			})
		},
	}
}

func indicesCommand() *cli.Command {
	return &cli.Command{
		Name:      "indices",
		Usage:     "List the indices of a cluster",
		ArgsUsage: "<id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id, err := endpointArg(cmd)
			if err != nil {
				return err
			}
			return withApp(ctx, cmd, func(ctx context.Context, a *app) error {
				indices, err := a.console.Indices(ctx, id)
				if err != nil {
					return err
				}
				return printIndices(os.Stdout, indices)
			})
		},
	}
}

func sqlCommand() *cli.Command {
	return &cli.Command{
		Name:      "sql",
		Usage:     "Run an SQL query (Elasticsearch 7.0+)",
		ArgsUsage: "<id> <query>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 2 {
				return errors.New("usage: sql <id> <query>")
			}
			id, err := endpointArg(cmd)
			if err != nil {
				return err
			}
			return withApp(ctx, cmd, func(ctx context.Context, a *app) error {
				out, err := a.console.SQL(ctx, id, cmd.Args().Get(1))
				if err != nil {
					return err
				}
				var buf bytes.Buffer
				if err := json.Indent(&buf, out, "", "  "); err != nil {
					return err
				}
				fmt.Fprintln(os.Stdout, buf.String())
				return nil
			})
		},
	}
}

func probeCommand() *cli.Command {
	return &cli.Command{
		Name:  "probe",
		Usage: "Test every registered cluster",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withApp(ctx, cmd, func(ctx context.Context, a *app) error {
				results, err := a.endpoints.ProbeAll(ctx)
				if err != nil {
					return err
				}
				return printProbe(os.Stdout, results)
			})
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply schema and legacy password migrations, then exit",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withApp(ctx, cmd, func(_ context.Context, a *app) error {
				r := a.migration
				if r.Skipped {
					fmt.Fprintln(os.Stdout, "schema is current")
					return nil
				}
				fmt.Fprintf(os.Stdout, "migrated %d legacy passwords, %d could not be recovered\n", r.Migrated, r.Lost)
				return nil
			})
		},
	}
}

func endpointArg(cmd *cli.Command) (int64, error) {
	raw := cmd.Args().First()
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid endpoint id %q", raw)
	}
	return id, nil
}

func printEndpoints(w io.Writer, endpoints []model.Endpoint) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tURL\tUSER\tPASSWORD\tINSECURE")
	for _, ep := range endpoints {
		password := "-"
		if ep.HasStoredPassword() {
			password = "stored"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%t\n", ep.ID, ep.Name, ep.URL, ep.Username, password, ep.Insecure)
	}
	return tw.Flush()
}

func printIndices(w io.Writer, indices []model.IndexInfo) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "HEALTH\tSTATUS\tINDEX\tDOCS\tSIZE")
	for _, idx := range indices {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", idx.Health, idx.Status, idx.Index, idx.DocsCount, idx.StoreSize)
	}
	return tw.Flush()
}

func printProbe(w io.Writer, results []model.ProbeResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tDETAIL")
	for _, r := range results {
		if r.OK() {
			fmt.Fprintf(tw, "%d\t%s\tok\t%s\n", r.EndpointID, r.EndpointName, r.Version)
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\tfailed\t%v\n", r.EndpointID, r.EndpointName, r.Err)
	}
	return tw.Flush()
}
