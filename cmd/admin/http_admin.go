package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newFurnacesCmd() *cobra.Command {
	var baseURL, actor string
	cmd := &cobra.Command{
		Use:   "furnaces",
		Short: "Inspect or edit the server's furnace registry over the admin HTTP API",
	}
	cmd.PersistentFlags().StringVar(&baseURL, "url", "http://127.0.0.1:8080", "server base url")

	list := &cobra.Command{
		Use:   "list",
		Short: "Print the authoritative furnace registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return doAdmin(cmd.OutOrStdout(), http.MethodGet, baseURL, nil)
		},
	}
	edit := func(use string, remove bool) *cobra.Command {
		c := &cobra.Command{
			Use:   use + " X Y Z",
			Short: use + " a furnace at X Y Z",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				pos, err := parsePos(args)
				if err != nil {
					return err
				}
				body, _ := json.Marshal(map[string]any{"pos": pos, "actor": actor, "remove": remove})
				return doAdmin(cmd.OutOrStdout(), http.MethodPost, baseURL, body)
			},
		}
		c.Flags().StringVar(&actor, "actor", "", "agent id credited with the change (empty: not replicated live)")
		return c
	}
	cmd.AddCommand(list, edit("add", false), edit("remove", true))
	return cmd
}

func parsePos(args []string) ([3]int32, error) {
	var pos [3]int32
	for i, a := range args {
		var v int32
		if _, err := fmt.Sscanf(strings.TrimSpace(a), "%d", &v); err != nil {
			return pos, fmt.Errorf("bad coordinate %q: %w", a, err)
		}
		pos[i] = v
	}
	return pos, nil
}

func doAdmin(out io.Writer, method, baseURL string, body []byte) error {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/") + "/admin/furnaces"
	req, err := http.NewRequest(method, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Fprintln(out, strings.TrimSpace(string(b)))
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%s %s: %s", method, u, resp.Status)
	}
	return nil
}
