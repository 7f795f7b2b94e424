package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vulnwatch/vulnwatch-client/apiclient"
	"github.com/vulnwatch/vulnwatch-client/internal/cli/output"
	"github.com/vulnwatch/vulnwatch-client/internal/utils"
)

var (
	productSearch string
	productPage   int
	productSize   int
	productSort   string
)

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "Work with products",
}

var productsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List products",
	RunE:  runWithStack(runProductsList),
}

var productsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one product",
	Args:  cobra.ExactArgs(1),
	RunE:  runWithStack(runProductsShow),
}

func init() {
	productsListCmd.Flags().StringVar(&productSearch, "search", "", "full text search")
	productsListCmd.Flags().IntVar(&productPage, "page", 1, "page number")
	productsListCmd.Flags().IntVar(&productSize, "size", 25, "page size")
	productsListCmd.Flags().StringVar(&productSort, "sort", "name", "sort field, prefix with - for descending")

	productsCmd.AddCommand(productsListCmd)
	productsCmd.AddCommand(productsShowCmd)
	rootCmd.AddCommand(productsCmd)
}

func runProductsList(cmd *cobra.Command, client *stack, args []string) error {
	params := apiclient.ListParams{
		Sort:       sortFromFlag(productSort),
		Pagination: apiclient.Pagination{Page: productPage, PerPage: productSize},
	}
	if productSearch != "" {
		params.Filter = map[string]any{"q": productSearch}
	}

	products, total, err := client.resources.Products.List(cmd.Context(), params)
	if err != nil {
		return err
	}

	table := output.NewTable([]string{"ID", "Name", "Gate", "Critical", "High", "Medium", "Low"})
	for _, product := range products {
		gate := ""
		if product.SecurityGatePassed != nil {
			if utils.Value(product.SecurityGatePassed) {
				gate = "passed"
			} else {
				gate = "failed"
			}
		}
		table.AddRow([]string{
			strconv.FormatInt(product.ID, 10),
			product.Name,
			gate,
			strconv.Itoa(product.OpenCriticalObservationCount),
			strconv.Itoa(product.OpenHighObservationCount),
			strconv.Itoa(product.OpenMediumObservationCount),
			strconv.Itoa(product.OpenLowObservationCount),
		})
	}
	table.Render()
	printer.Printf("\n%d of %d products\n", len(products), total)
	return nil
}

func runProductsShow(cmd *cobra.Command, client *stack, args []string) error {
	product, err := client.resources.Products.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	printer.Header(product.Name)
	printer.Printf("ID:          %d\n", product.ID)
	if product.Description != "" {
		printer.Printf("Description: %s\n", product.Description)
	}
	if product.PURL != "" {
		printer.Printf("PURL:        %s\n", product.PURL)
	}
	printer.Printf("Open observations: %d critical, %d high, %d medium, %d low\n",
		product.OpenCriticalObservationCount,
		product.OpenHighObservationCount,
		product.OpenMediumObservationCount,
		product.OpenLowObservationCount)
	return nil
}

// sortFromFlag parses the CLI sort flag, where a leading minus selects
// descending order.
func sortFromFlag(flag string) apiclient.Sort {
	if flag == "" {
		return apiclient.Sort{}
	}
	if flag[0] == '-' {
		return apiclient.Sort{Field: flag[1:], Order: "DESC"}
	}
	return apiclient.Sort{Field: flag, Order: "ASC"}
}
