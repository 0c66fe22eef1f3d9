package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	internal_http "github.com/nself-org/flowcore/internal/http"
	"github.com/nself-org/flowcore/internal/log"
	"github.com/nself-org/flowcore/internal/service"
	internal_storage "github.com/nself-org/flowcore/internal/storage"
	"github.com/nself-org/flowcore/pkg/models"
	"github.com/nself-org/flowcore/pkg/storage"
	"github.com/spf13/cobra"
)

func SetupCLI(rootCmd *cobra.Command) {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the workflow server",
		Run: func(cmd *cobra.Command, args []string) {
			port, _ := cmd.Flags().GetString("port")
			workflowsFile, _ := cmd.Flags().GetString("workflows")
			dbConnStr := dbFlag(cmd)

			var archive storage.Archive
			if dbConnStr != "" {
				archive = initArchive(dbConnStr)
			}
			svc := service.NewWorkflowService(archive)
			defer svc.Stop()

			if workflowsFile != "" {
				registerFromFile(svc, workflowsFile)
			}
			svc.StartScheduler()

			if err := internal_http.StartServer(port, svc); err != nil {
				log.GetLogger().Errorf("Server stopped: %v", err)
				os.Exit(1)
			}
		},
	}
	serveCmd.Flags().String("port", "8080", "HTTP port to listen on")
	serveCmd.Flags().String("workflows", "", "Path to a JSON file with workflow definitions to register at startup")

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List archived workflow runs",
		Run: func(cmd *cobra.Command, args []string) {
			workflowID, _ := cmd.Flags().GetString("workflow")
			limit, _ := cmd.Flags().GetInt("limit")
			archive := initArchive(requireDB(cmd))
			defer archive.Close()

			runs, err := archive.ListRuns(workflowID, limit)
			if err != nil {
				log.GetLogger().Errorf("Failed to list runs: %v", err)
				fmt.Fprintf(os.Stderr, "Error: failed to list runs: %v\n", err)
				os.Exit(1)
			}
			if len(runs) == 0 {
				fmt.Fprintf(os.Stdout, "No runs found.\n")
				return
			}
			for _, run := range runs {
				fmt.Fprintf(os.Stdout, "- ID: %s, Workflow: %s, Status: %s, Started: %s\n",
					run.ID, run.WorkflowID, run.Status, run.StartedAt.Format(time.RFC3339))
			}
		},
	}
	runsCmd.Flags().String("workflow", "", "Filter by workflow id")
	runsCmd.Flags().Int("limit", 20, "Maximum number of runs to list")

	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "List archived audit entries",
		Run: func(cmd *cobra.Command, args []string) {
			workflowID, _ := cmd.Flags().GetString("workflow")
			limit, _ := cmd.Flags().GetInt("limit")
			archive := initArchive(requireDB(cmd))
			defer archive.Close()

			entries, err := archive.ListAuditEntries(workflowID, limit)
			if err != nil {
				log.GetLogger().Errorf("Failed to list audit entries: %v", err)
				fmt.Fprintf(os.Stderr, "Error: failed to list audit entries: %v\n", err)
				os.Exit(1)
			}
			if len(entries) == 0 {
				fmt.Fprintf(os.Stdout, "No audit entries found.\n")
				return
			}
			for _, entry := range entries {
				fmt.Fprintf(os.Stdout, "- %s %s workflow=%s run=%s %s\n",
					entry.Timestamp.Format(time.RFC3339), entry.EventType, entry.WorkflowID, entry.RunID, entry.Description)
			}
		},
	}
	auditCmd.Flags().String("workflow", "", "Filter by workflow id")
	auditCmd.Flags().Int("limit", 50, "Maximum number of entries to list")

	rootCmd.AddCommand(serveCmd, runsCmd, auditCmd)
}

func dbFlag(cmd *cobra.Command) string {
	dbConnStr, err := cmd.Flags().GetString("db")
	if err != nil {
		log.GetLogger().Errorf("Error retrieving db flag: %v", err)
		os.Exit(1)
	}
	return dbConnStr
}

func requireDB(cmd *cobra.Command) string {
	dbConnStr := dbFlag(cmd)
	if dbConnStr == "" {
		fmt.Fprintln(os.Stderr, "Error: --db flag is required")
		os.Exit(1)
	}
	return dbConnStr
}

func registerFromFile(svc *service.WorkflowService, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.GetLogger().Errorf("Failed to read workflows file: %v", err)
		os.Exit(1)
	}
	var workflows []models.WorkflowDefinition
	if err := json.Unmarshal(data, &workflows); err != nil {
		log.GetLogger().Errorf("Failed to parse workflows file: %v", err)
		os.Exit(1)
	}
	for i := range workflows {
		if err := svc.RegisterWorkflow(&workflows[i]); err != nil {
			log.GetLogger().Errorf("Failed to register workflow %s: %v", workflows[i].ID, err)
			os.Exit(1)
		}
	}
	log.GetLogger().Infof("Registered %d workflow(s) from %s", len(workflows), path)
}

func initArchive(dbConnStr string) *internal_storage.PostgresArchive {
	archive, err := internal_storage.InitArchive(dbConnStr)
	if err != nil {
		log.GetLogger().Errorf("Failed to initialize archive: %v", err)
		os.Exit(1)
	}
	return archive
}
