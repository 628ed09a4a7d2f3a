package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/iho/cashdesk/internal/infrastructure/postgres"
)

var (
	baseURL string
	timeout time.Duration

	databaseURL    string
	migrationsPath string

	apiToken  string
	listLimit int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cashdesk-cli",
		Short: "Cashdesk CLI tool",
		Long:  `A command line interface for operating a cashdesk deployment.`,
	}

	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8080", "Base URL of the cashdesk API")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")

	// Migration commands
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migrations",
	}
	migrateCmd.PersistentFlags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "Postgres connection string")
	migrateCmd.PersistentFlags().StringVar(&migrationsPath, "path", "migrations", "Path to migration files")

	migrateUpCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Run: func(cmd *cobra.Command, args []string) {
			if err := postgres.RunMigrations(databaseURL, migrationsPath); err != nil {
				fmt.Printf("Migration failed: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("Migrations applied")
		},
	}

	migrateDownCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the last migration",
		Run: func(cmd *cobra.Command, args []string) {
			if err := postgres.RunMigrationsDown(databaseURL, migrationsPath); err != nil {
				fmt.Printf("Rollback failed: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("Migration rolled back")
		},
	}

	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)
	rootCmd.AddCommand(migrateCmd)

	// Health command
	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		Run: func(cmd *cobra.Command, args []string) {
			checkHealth()
		},
	}
	rootCmd.AddCommand(healthCmd)

	// Transaction commands
	transactionsCmd := &cobra.Command{
		Use:   "transactions",
		Short: "Inspect transactions",
	}
	transactionsCmd.PersistentFlags().StringVar(&apiToken, "token", os.Getenv("CASHDESK_TOKEN"), "Admin bearer token")
	transactionsCmd.PersistentFlags().IntVar(&listLimit, "limit", 50, "Maximum rows to list")

	pendingCmd := &cobra.Command{
		Use:   "pending",
		Short: "List transactions waiting on admin review",
		Run: func(cmd *cobra.Command, args []string) {
			listOpenForReview()
		},
	}
	transactionsCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(transactionsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func checkHealth() {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(baseURL + "/ready")
	if err != nil {
		fmt.Printf("Error making request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Health check FAILED (Status: %d)\nResponse: %s\n", resp.StatusCode, string(body))
		os.Exit(1)
	}

	var result map[string]any
	if err := json.Unmarshal(body, &result); err != nil {
		fmt.Printf("Failed to parse response: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Health check PASSED\n")
	fmt.Printf("Status: %s\n", result["status"])
}

func listOpenForReview() {
	url := fmt.Sprintf("%s/api/v1/admin/transactions/open-for-review?limit=%d", baseURL, listLimit)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		fmt.Printf("Error building request: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("Authorization", "Bearer "+apiToken)

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error making request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Request failed (Status: %d)\nResponse: %s\n", resp.StatusCode, string(body))
		os.Exit(1)
	}

	var result struct {
		Items []struct {
			ID        string `json:"id"`
			Reference string `json:"reference"`
			Category  string `json:"category"`
			State     string `json:"state"`
			PlayerID  string `json:"player_id"`
			Amount    int64  `json:"amount"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		fmt.Printf("Failed to parse response: %v\n", err)
		os.Exit(1)
	}

	if len(result.Items) == 0 {
		fmt.Println("No transactions waiting on review")
		return
	}

	fmt.Printf("%-28s %-32s %-12s %-22s %-28s %-12s\n", "ID", "REFERENCE", "CATEGORY", "STATE", "PLAYER", "AMOUNT")
	for _, txn := range result.Items {
		fmt.Printf("%-28s %-32s %-12s %-22s %-28s %-12d\n", txn.ID, txn.Reference, txn.Category, txn.State, txn.PlayerID, txn.Amount)
	}
}
