package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"procodus.dev/telemetry-store/internal/api"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Retrieve and print stored records",
	Long: `Fetch stored records from a running record store server and
print them to stdout, newest first.`,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	// Fetch-specific flags
	fetchCmd.Flags().String("server-url", "http://localhost:2612", "record store server base URL")
	fetchCmd.Flags().String("api-key", "telemetry-dev-key", "shared-secret API key")
	fetchCmd.Flags().String("project", "", "optional project filter")
	fetchCmd.Flags().Int("limit", 0, "optional cap on the number of records")

	// Bind flags to viper
	_ = viper.BindPFlag("fetch.server_url", fetchCmd.Flags().Lookup("server-url"))
	_ = viper.BindPFlag("fetch.api_key", fetchCmd.Flags().Lookup("api-key"))
	_ = viper.BindPFlag("fetch.project", fetchCmd.Flags().Lookup("project"))
	_ = viper.BindPFlag("fetch.limit", fetchCmd.Flags().Lookup("limit"))
}

// fetchedRecord mirrors the record object returned by GET /records.
type fetchedRecord struct {
	ID        uint   `json:"id"`
	Timestamp string `json:"timestamp"`
	Project   string `json:"project"`
	Data      string `json:"data"`
}

func runFetch(_ *cobra.Command, _ []string) error {
	base := viper.GetString("fetch.server_url")

	endpoint, err := url.Parse(base + "/records")
	if err != nil {
		return fmt.Errorf("invalid server URL %q: %w", base, err)
	}

	query := endpoint.Query()
	if project := viper.GetString("fetch.project"); project != "" {
		query.Set("project", project)
	}
	if limit := viper.GetInt("fetch.limit"); limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequest(http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set(api.APIKeyHeader, viper.GetString("fetch.api_key"))

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %s: %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("server returned %s", resp.Status)
	}

	var records []fetchedRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("no records found")
		return nil
	}

	for _, record := range records {
		fmt.Printf("id: %d\n", record.ID)
		fmt.Printf("timestamp: %s\n", record.Timestamp)
		fmt.Printf("project: %s\n", record.Project)

		// Pretty-print the payload when it is JSON; print verbatim otherwise.
		var payload any
		if err := json.Unmarshal([]byte(record.Data), &payload); err == nil {
			if pretty, err := json.MarshalIndent(payload, "", "  "); err == nil {
				fmt.Printf("data: %s\n\n", pretty)
				continue
			}
		}
		fmt.Printf("data: %s\n\n", record.Data)
	}

	return nil
}
