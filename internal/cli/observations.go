package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vulnwatch/vulnwatch-client/apiclient"
	"github.com/vulnwatch/vulnwatch-client/internal/cli/output"
	"github.com/vulnwatch/vulnwatch-client/resources"
)

var (
	observationProduct  int64
	observationSeverity string
	observationStatus   string
	observationSearch   string
	observationPage     int
	observationSize     int
	observationSort     string

	assessSeverity string
	assessStatus   string
	assessComment  string
)

var observationsCmd = &cobra.Command{
	Use:   "observations",
	Short: "Work with observations",
}

var observationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List observations",
	RunE:  runWithStack(runObservationsList),
}

var observationsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one observation",
	Args:  cobra.ExactArgs(1),
	RunE:  runWithStack(runObservationsShow),
}

var observationsAssessCmd = &cobra.Command{
	Use:   "assess <id>",
	Short: "Record an assessment on an observation",
	Long: `Record a reviewer decision on an observation, overriding the severity
or status reported by the scanner. A comment is required.`,
	Args: cobra.ExactArgs(1),
	RunE: runWithStack(runObservationsAssess),
}

func init() {
	observationsListCmd.Flags().Int64Var(&observationProduct, "product", 0, "limit to one product")
	observationsListCmd.Flags().StringVar(&observationSeverity, "severity", "", "filter by current severity")
	observationsListCmd.Flags().StringVar(&observationStatus, "status", "", "filter by current status")
	observationsListCmd.Flags().StringVar(&observationSearch, "search", "", "full text search")
	observationsListCmd.Flags().IntVar(&observationPage, "page", 1, "page number")
	observationsListCmd.Flags().IntVar(&observationSize, "size", 25, "page size")
	observationsListCmd.Flags().StringVar(&observationSort, "sort", "-current_severity", "sort field, prefix with - for descending")

	observationsAssessCmd.Flags().StringVar(&assessSeverity, "severity", "", "assessed severity")
	observationsAssessCmd.Flags().StringVar(&assessStatus, "status", "", "assessed status")
	observationsAssessCmd.Flags().StringVar(&assessComment, "comment", "", "assessment comment")
	_ = observationsAssessCmd.MarkFlagRequired("comment")

	observationsCmd.AddCommand(observationsListCmd)
	observationsCmd.AddCommand(observationsShowCmd)
	observationsCmd.AddCommand(observationsAssessCmd)
	rootCmd.AddCommand(observationsCmd)
}

func runObservationsList(cmd *cobra.Command, client *stack, args []string) error {
	filter := map[string]any{}
	if observationSeverity != "" {
		filter["current_severity"] = observationSeverity
	}
	if observationStatus != "" {
		filter["current_status"] = observationStatus
	}
	if observationSearch != "" {
		filter["q"] = observationSearch
	}

	params := apiclient.ListParams{
		Filter:     filter,
		Sort:       sortFromFlag(observationSort),
		Pagination: apiclient.Pagination{Page: observationPage, PerPage: observationSize},
	}

	var (
		observations []resources.Observation
		total        int
		err          error
	)
	if observationProduct > 0 {
		observations, total, err = client.resources.Observations.ListReferencing(cmd.Context(), apiclient.GetManyReferenceParams{
			Target:     "product",
			ID:         observationProduct,
			Filter:     filter,
			Sort:       params.Sort,
			Pagination: params.Pagination,
		})
	} else {
		observations, total, err = client.resources.Observations.List(cmd.Context(), params)
	}
	if err != nil {
		return err
	}

	table := output.NewTable([]string{"ID", "Severity", "Status", "Title", "Product"})
	for _, observation := range observations {
		table.AddRow([]string{
			strconv.FormatInt(observation.ID, 10),
			observation.CurrentSeverity,
			observation.CurrentStatus,
			observation.Title,
			strconv.FormatInt(observation.Product, 10),
		})
	}
	table.Render()
	printer.Printf("\n%d of %d observations\n", len(observations), total)
	return nil
}

func runObservationsShow(cmd *cobra.Command, client *stack, args []string) error {
	observation, err := client.resources.Observations.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	printer.Header(observation.Title)
	printer.Printf("ID:        %d\n", observation.ID)
	printer.Printf("Product:   %d\n", observation.Product)
	printer.Printf("Severity:  %s\n", observation.CurrentSeverity)
	printer.Printf("Status:    %s\n", observation.CurrentStatus)
	if observation.VulnerabilityID != "" {
		printer.Printf("Vulnerability: %s\n", observation.VulnerabilityID)
	}
	if observation.Scanner != "" {
		printer.Printf("Scanner:   %s\n", observation.Scanner)
	}
	if observation.Description != "" {
		printer.Println()
		printer.Println(observation.Description)
	}
	return nil
}

func runObservationsAssess(cmd *cobra.Command, client *stack, args []string) error {
	updated, err := client.resources.Observations.Assess(cmd.Context(), args[0], resources.ObservationAssessment{
		Severity: assessSeverity,
		Status:   assessStatus,
		Comment:  assessComment,
	})
	if err != nil {
		return err
	}

	printer.Success("Observation %d assessed: severity %s, status %s", updated.ID, updated.CurrentSeverity, updated.CurrentStatus)
	return nil
}
