package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Rohianon/folio/cmd/folio/internal/client"
	"github.com/Rohianon/folio/cmd/folio/internal/output"
	apperrors "github.com/Rohianon/folio/pkg/errors"
	"github.com/Rohianon/folio/pkg/format"
)

var errHolderRequired = apperrors.ErrValidation.
	WithMessage("--holder is required").
	WithDetails(map[string]string{"holder": "select a holder first"})

var holdersCmd = &cobra.Command{
	Use:   "holders",
	Short: "Portfolio holder commands",
	Long:  "List and add portfolio holders.",
}

var holdersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List holders",
	Long:  "List every portfolio holder known to the backend.",
	RunE:  runHoldersList,
}

var holdersAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a holder",
	Long:  "Add a portfolio holder. Missing fields are prompted for on a terminal.",
	RunE:  runHoldersAdd,
}

var holdingsCmd = &cobra.Command{
	Use:   "holdings",
	Short: "Holding commands",
	Long:  "List and add a holder's positions.",
}

var holdingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a holder's holdings",
	Long:  "List the raw holdings of a holder as stored by the backend.",
	RunE:  runHoldingsList,
}

var holdingsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a holding",
	Long: `Add a position to a holder's portfolio.

Example:
  folio holdings add --holder 1 --symbol AAPL --qty 10 --price 150`,
	RunE: runHoldingsAdd,
}

var (
	nameFlag   string
	emailFlag  string
	holderFlag int64
	symbolFlag string
	qtyFlag    int
	priceFlag  float64
)

func init() {
	rootCmd.AddCommand(holdersCmd)
	holdersCmd.AddCommand(holdersListCmd)
	holdersCmd.AddCommand(holdersAddCmd)

	rootCmd.AddCommand(holdingsCmd)
	holdingsCmd.AddCommand(holdingsListCmd)
	holdingsCmd.AddCommand(holdingsAddCmd)

	holdersAddCmd.Flags().StringVarP(&nameFlag, "name", "n", "", "holder name")
	holdersAddCmd.Flags().StringVarP(&emailFlag, "email", "e", "", "holder email (optional)")

	holdingsListCmd.Flags().Int64Var(&holderFlag, "holder", 0, "holder ID")
	holdingsAddCmd.Flags().Int64Var(&holderFlag, "holder", 0, "holder ID")
	holdingsAddCmd.Flags().StringVarP(&symbolFlag, "symbol", "s", "", "stock symbol")
	holdingsAddCmd.Flags().IntVarP(&qtyFlag, "qty", "q", 0, "quantity (whole shares)")
	holdingsAddCmd.Flags().Float64VarP(&priceFlag, "price", "p", 0, "average purchase price")
}

func runHoldersList(cmd *cobra.Command, args []string) error {
	holders, err := newAPI().Holders(cmd.Context())
	if err != nil {
		return err
	}

	if isJSON() {
		return output.JSON(holders)
	}

	if len(holders) == 0 {
		output.Info("No holders yet. Run 'folio holders add' to create one.")
		return nil
	}

	rows := make([][]string, 0, len(holders))
	for _, h := range holders {
		rows = append(rows, []string{strconv.FormatInt(h.ID, 10), h.Name, orDash(h.Email)})
	}
	output.Table([]string{"ID", "Name", "Email"}, rows)
	return nil
}

func runHoldersAdd(cmd *cobra.Command, args []string) error {
	in := newPrompter(cmd)

	name := nameFlag
	if name == "" {
		name = in.ask("Name")
	}
	email := emailFlag
	if email == "" && nameFlag == "" {
		email = in.ask("Email (optional)")
	}

	// Validation runs before anything is sent.
	if err := client.ValidateHolder(name, email); err != nil {
		return err
	}

	holder, err := newAPI().AddHolder(cmd.Context(), name, email)
	if err != nil {
		return err
	}

	if isJSON() {
		return output.JSON(holder)
	}

	output.Success(fmt.Sprintf("Added holder %s (ID %d)", holder.Name, holder.ID))
	return nil
}

func runHoldingsList(cmd *cobra.Command, args []string) error {
	if holderFlag <= 0 {
		return errHolderRequired
	}

	holdings, err := newAPI().Holdings(cmd.Context(), holderFlag)
	if err != nil {
		return err
	}

	if isJSON() {
		return output.JSON(holdings)
	}

	if len(holdings) == 0 {
		output.Info("No holdings for this holder.")
		return nil
	}

	rows := make([][]string, 0, len(holdings))
	for _, h := range holdings {
		rows = append(rows, []string{
			strconv.FormatInt(h.ID, 10),
			h.StockSymbol,
			strconv.Itoa(h.Quantity),
			format.Currency(h.AvgPrice),
		})
	}
	output.Table([]string{"ID", "Symbol", "Qty", "Avg Price"}, rows)
	return nil
}

func runHoldingsAdd(cmd *cobra.Command, args []string) error {
	in := newPrompter(cmd)

	symbol := symbolFlag
	if symbol == "" {
		symbol = in.ask("Symbol")
	}
	qty := qtyFlag
	if qty == 0 {
		qty, _ = strconv.Atoi(in.ask("Quantity"))
	}
	price := priceFlag
	if price == 0 {
		price, _ = strconv.ParseFloat(in.ask("Average price"), 64)
	}

	if err := client.ValidateHolding(holderFlag, symbol, qty, price); err != nil {
		return err
	}

	holding, err := newAPI().AddHolding(cmd.Context(), holderFlag, symbol, qty, price)
	if err != nil {
		return err
	}

	if isJSON() {
		return output.JSON(holding)
	}

	output.Success(fmt.Sprintf("Added %d × %s at %s", holding.Quantity, holding.StockSymbol, format.Currency(holding.AvgPrice)))
	return nil
}

// =============================================================================
// Prompting
// =============================================================================

// prompter asks for missing form fields. Off a terminal it never blocks
// and returns empty answers, which validation then rejects.
type prompter struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool
}

func newPrompter(cmd *cobra.Command) *prompter {
	p := &prompter{in: bufio.NewReader(cmd.InOrStdin()), out: cmd.OutOrStdout()}
	if f, ok := cmd.InOrStdin().(interface{ Fd() uintptr }); ok {
		p.interactive = term.IsTerminal(int(f.Fd()))
	}
	return p
}

func (p *prompter) ask(label string) string {
	if !p.interactive {
		return ""
	}
	fmt.Fprintf(p.out, "%s: ", label)
	text, _ := p.in.ReadString('\n')
	return strings.TrimSpace(text)
}

func orDash(s string) string {
	if s == "" {
		return format.Missing
	}
	return s
}
