package pushcmder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/dialogue/cmd/dialogue/cliconfig"
	"github.com/papercomputeco/dialogue/pkg/config"
	"github.com/papercomputeco/dialogue/pkg/transcript"
	"github.com/papercomputeco/dialogue/server"
)

const pushLongDesc string = `Push local transcripts to a remote dialogue server.

Reads all nodes from the local transcript database and POSTs them
to the remote server's /transcripts/nodes endpoint. Content-addressing
ensures duplicates are skipped on the server side.

Examples:
  dialogue transcript push http://192.168.1.42:8080
  dialogue transcript push --sqlite ~/.dialogue/transcripts.db http://localhost:8080`

const pushShortDesc string = "Push transcripts to a remote dialogue server"

type pushCommander struct {
	sqlitePath string
	batchSize  int
}

func NewPushCmd() *cobra.Command {
	cmder := &pushCommander{}

	cmd := &cobra.Command{
		Use:   "push <server-url>",
		Short: pushShortDesc,
		Long:  pushLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args[0])
		},
	}

	cmd.Flags().StringVarP(&cmder.sqlitePath, "sqlite", "s", "", "Path to local transcript database")
	cmd.Flags().IntVar(&cmder.batchSize, "batch-size", 500, "Nodes per HTTP request")

	return cmd
}

func (c *pushCommander) run(ctx context.Context, cmd *cobra.Command, serverURL string) error {
	serverURL = strings.TrimRight(serverURL, "/")
	if c.batchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.batchSize)
	}

	cfg, err := cliconfig.Load(cmd)
	if err != nil {
		return err
	}

	dbPath, err := config.ResolveTranscriptPath(c.sqlitePath, cfg)
	if err != nil {
		return fmt.Errorf("could not resolve local database: %w", err)
	}

	storer, err := transcript.NewSQLiteStorer(dbPath)
	if err != nil {
		return fmt.Errorf("could not open local database %s: %w", dbPath, err)
	}
	defer storer.Close()

	nodes, err := storer.List(ctx)
	if err != nil {
		return fmt.Errorf("could not list local nodes: %w", err)
	}

	if len(nodes) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No local nodes to push.")
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Pushing %d nodes from %s to %s\n", len(nodes), dbPath, serverURL)

	var (
		total   server.IngestResponse
		failed  []error
		batches int
	)

	for i := 0; i < len(nodes); i += c.batchSize {
		end := min(i+c.batchSize, len(nodes))
		batches++

		resp, err := c.postBatch(ctx, serverURL, nodes[i:end])
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("push interrupted on batch %d-%d: %w", i, end-1, ctx.Err())
			}
			err = fmt.Errorf("batch %d-%d: %w", i, end-1, err)
			fmt.Fprintf(cmd.ErrOrStderr(), "Failed %v\n", err)
			failed = append(failed, err)
			continue
		}

		total.New += resp.New
		total.Duplicate += resp.Duplicate
		total.Errors += resp.Errors
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Pushed %d new nodes (%d already existed, %d errors)\n",
		total.New, total.Duplicate, total.Errors)

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d batches failed: %w", len(failed), batches, errors.Join(failed...))
	}
	return nil
}

func (c *pushCommander) postBatch(ctx context.Context, serverURL string, nodes []*transcript.Node) (*server.IngestResponse, error) {
	body, err := json.Marshal(nodes)
	if err != nil {
		return nil, fmt.Errorf("could not marshal nodes: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL+"/transcripts/nodes", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("could not build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result server.IngestResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("could not decode response: %w", err)
	}

	return &result, nil
}
