package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"

	"github.com/wesleyorama2/kvlunge/internal/config"
	"github.com/wesleyorama2/kvlunge/internal/kv"
	"github.com/wesleyorama2/kvlunge/internal/output"
)

// kvOptions are shared by the kv subcommands.
type kvOptions struct {
	baseURL string
	timeout time.Duration
	headers []string
	format  string
	verbose bool
}

func newKVCmd(global *globalOptions) *cobra.Command {
	opts := &kvOptions{}

	cmd := &cobra.Command{
		Use:   "kv",
		Short: "Issue single requests against the service",
		Long: `Send one request to the key-value service and print the response.

The base URL defaults to $BASE_URL, then http://localhost:8089.`,
	}

	baseURL := config.DefaultBaseURL
	if v, ok := os.LookupEnv(config.EnvBaseURL); ok && v != "" {
		baseURL = v
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.baseURL, "base-url", baseURL, "Base URL of the service")
	pf.DurationVarP(&opts.timeout, "timeout", "t", config.DefaultTimeout, "Request timeout")
	pf.StringArrayVarP(&opts.headers, "header", "H", nil, "Extra request header (key:value), repeatable")
	pf.StringVarP(&opts.format, "format", "f", "text", "Output format (text, json, yaml)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Show timing and headers")

	var ttl int
	putCmd := &cobra.Command{
		Use:   "put KEY VALUE",
		Short: "Store VALUE under KEY",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return doKV(cmd, global, opts, func(ctx context.Context, c *kv.Client) (*kv.Response, error) {
				return c.Put(ctx, args[0], args[1], ttl)
			}, http.StatusNoContent)
		},
	}
	putCmd.Flags().IntVar(&ttl, "ttl", 0, "Expiry in seconds (0 = none)")

	getCmd := &cobra.Command{
		Use:   "get KEY",
		Short: "Read KEY",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return doKV(cmd, global, opts, func(ctx context.Context, c *kv.Client) (*kv.Response, error) {
				return c.Get(ctx, args[0])
			}, http.StatusOK, http.StatusNotFound)
		},
	}

	mgetCmd := &cobra.Command{
		Use:   "mget KEY...",
		Short: "Read several keys in one request",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return doKV(cmd, global, opts, func(ctx context.Context, c *kv.Client) (*kv.Response, error) {
				return c.MGet(ctx, splitKeys(args)...)
			}, http.StatusOK)
		},
	}

	deleteCmd := &cobra.Command{
		Use:     "delete KEY",
		Aliases: []string{"del", "rm"},
		Short:   "Delete KEY",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return doKV(cmd, global, opts, func(ctx context.Context, c *kv.Client) (*kv.Response, error) {
				return c.Delete(ctx, args[0])
			}, http.StatusNoContent)
		},
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the service statistics document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newKVClient(global, opts)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			body, err := client.Stats(ctx)
			if err != nil {
				return err
			}
			body = pretty.Pretty(body)
			if !global.noColor && opts.format == "text" {
				body = pretty.Color(body, nil)
			}
			_, err = cmd.OutOrStdout().Write(body)
			return err
		},
	}

	cmd.AddCommand(putCmd, getCmd, mgetCmd, deleteCmd, statsCmd)
	return cmd
}

type kvCall func(ctx context.Context, c *kv.Client) (*kv.Response, error)

// doKV runs one call, prints the response and turns an unexpected status
// into a StatusError.
func doKV(cmd *cobra.Command, global *globalOptions, opts *kvOptions, call kvCall, expected ...int) error {
	format, err := output.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	client, err := newKVClient(global, opts)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	resp, err := call(ctx, client)
	if err != nil {
		return err
	}

	formatter := output.GetFormatter(format, opts.verbose, global.noColor)
	fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(formatter.FormatResponse(resp), "\n"))

	for _, status := range expected {
		if resp.StatusCode == status {
			return nil
		}
	}
	return &kv.StatusError{Method: resp.Method, Path: resp.URL, StatusCode: resp.StatusCode, Body: resp.Body}
}

func newKVClient(global *globalOptions, opts *kvOptions) (*kv.Client, error) {
	headers, err := parseHeaders(opts.headers)
	if err != nil {
		return nil, err
	}

	clientOpts := []kv.ClientOption{
		kv.WithBaseURL(strings.TrimRight(opts.baseURL, "/")),
		kv.WithTimeout(opts.timeout),
	}
	if global.logger != nil {
		clientOpts = append(clientOpts, kv.WithLogger(global.logger))
	}
	for k, v := range headers {
		clientOpts = append(clientOpts, kv.WithHeader(k, v))
	}
	return kv.NewClient(clientOpts...), nil
}

// splitKeys accepts keys as separate arguments or comma-separated.
func splitKeys(args []string) []string {
	var keys []string
	for _, arg := range args {
		for _, k := range strings.Split(arg, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
	}
	return keys
}
