// lecturectl is a small operator CLI for poking a running Lecturecast server.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var serverURL string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "lecturectl: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "lecturectl",
		Short:        "Lecturecast operator CLI",
		Long:         `lecturectl talks to a running Lecturecast server: check health, inspect the upload ledger and dashboard metrics, or submit a video for summarization.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:3000", "Base URL of the Lecturecast server")
	cmd.AddCommand(
		newHealthCmd(),
		newMetricsCmd(),
		newHistoryCmd(),
		newSummarizeCmd(),
	)
	return cmd
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server and database status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON(cmd.Context(), "/api/health", cmd.OutOrStdout())
		},
	}
}

func newMetricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Show dashboard metrics (total/processed/skipped)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON(cmd.Context(), "/api/metrics", cmd.OutOrStdout())
		},
	}
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List the global upload ledger, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON(cmd.Context(), "/api/history", cmd.OutOrStdout())
		},
	}
}

func newSummarizeCmd() *cobra.Command {
	var modelSize string
	var token string
	cmd := &cobra.Command{
		Use:   "summarize <video>",
		Short: "Upload a lecture video and print the summary bullets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return summarize(cmd.Context(), args[0], modelSize, token, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&modelSize, "model-size", "", "Transcription model size (tiny|base|small|medium|large-v3)")
	cmd.Flags().StringVar(&token, "token", "", "Bearer token to attach the upload to an account")
	return cmd
}

func summarize(ctx context.Context, path, modelSize, token string, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("video", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return err
	}
	if modelSize != "" {
		if err := mw.WriteField("modelSize", modelSize); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL+"/api/summarize", &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	// Summarization is synchronous server-side; allow a long wait.
	client := &http.Client{Timeout: time.Hour}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %s: %s", resp.Status, bytes.TrimSpace(detail))
	}

	var result struct {
		Bullets []string `json:"bullets"`
		DocxURL string   `json:"docxUrl"`
		TexURL  string   `json:"texUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return err
	}
	for _, bullet := range result.Bullets {
		fmt.Fprintf(out, "- %s\n", bullet)
	}
	fmt.Fprintf(out, "docx: %s%s\n", serverURL, result.DocxURL)
	fmt.Fprintf(out, "tex:  %s%s\n", serverURL, result.TexURL)
	return nil
}

func getJSON(ctx context.Context, path string, out io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serverURL+path, nil)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s", resp.Status)
	}

	var payload any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return err
	}
	pretty, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(pretty))
	return nil
}
