package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"washdesk/internal/model"
	"washdesk/internal/service"
)

func newAssignmentsCmd(a *app) *cobra.Command {
	var orderID int64

	cmd := &cobra.Command{
		Use:   "assignments --order <id>",
		Short: "List the services assigned on an order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			assigned, err := a.client().AssignedServices(cmd.Context(), orderID)
			if err != nil {
				return err
			}
			printAssigned(cmd.OutOrStdout(), assigned)
			return nil
		},
	}

	cmd.Flags().Int64Var(&orderID, "order", 0, "wash order id")
	_ = cmd.MarkFlagRequired("order")
	return cmd
}

type assignOptions struct {
	OrderID   int64
	ServiceID int64
	UserID    string
	Price     float64
	Rate      string
}

func newAssignCmd(a *app) *cobra.Command {
	var opts assignOptions

	cmd := &cobra.Command{
		Use:   "assign --order <id> --service <id> --user <id> [--price <amount>] [--rate <rate>]",
		Short: "Assign a service to an employee, asking for a salary rate when none is set",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			rec, err := a.screen(ctx, opts.OrderID)
			if err != nil {
				return err
			}
			defer rec.Close()

			svc, err := rec.Service(opts.ServiceID)
			if err != nil {
				return err
			}
			user, err := rec.User(model.UserID(opts.UserID))
			if err != nil {
				return err
			}

			rec.SelectService(svc)
			if cmd.Flags().Changed("price") {
				if err := rec.SetPrice(decimal.NewFromFloat(opts.Price)); err != nil {
					return err
				}
			}

			outcome, err := rec.SelectUser(ctx, user)
			if err != nil {
				return err
			}
			if outcome == service.OutcomeRuleRequired {
				fmt.Fprintf(out, "%s has no salary rule for %q.\n", user.FullName(), svc.Name)
				rate, err := rateFor(opts.Rate, cmd.InOrStdin(), out, rec.PreviewPayout)
				if err != nil {
					return err
				}
				if _, err := rec.CreateSalaryRule(ctx, rate); err != nil {
					return err
				}
			}

			rec.Wait()
			fmt.Fprintf(out, "Assigned %q to %s.\n", svc.Name, user.FullName())
			printAssigned(out, rec.Assigned())
			return nil
		},
	}

	cmd.Flags().Int64Var(&opts.OrderID, "order", 0, "wash order id")
	cmd.Flags().Int64Var(&opts.ServiceID, "service", 0, "service id from the catalog")
	cmd.Flags().StringVar(&opts.UserID, "user", "", "employee id from the directory")
	cmd.Flags().Float64Var(&opts.Price, "price", 0, "price to charge instead of the catalog price")
	cmd.Flags().StringVar(&opts.Rate, "rate", "", "salary rate to store when the employee has none for the service")
	_ = cmd.MarkFlagRequired("order")
	_ = cmd.MarkFlagRequired("service")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// rateFor returns the given rate, or prompts on in until a valid one is
// entered. Each accepted rate is echoed with the payout it yields.
func rateFor(given string, in io.Reader, out io.Writer, preview func(decimal.Decimal) (decimal.Decimal, error)) (decimal.Decimal, error) {
	if given != "" {
		rate, err := service.ParseRate(given)
		if err != nil {
			return decimal.Zero, err
		}
		return rate, showPayout(out, rate, preview)
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "Rate (below 100 is a percent of the price, otherwise a fixed amount): ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return decimal.Zero, err
			}
			return decimal.Zero, errors.New("no rate entered")
		}
		rate, err := service.ParseRate(strings.TrimSpace(scanner.Text()))
		if err != nil {
			fmt.Fprintln(out, service.UserMessage(err))
			continue
		}
		return rate, showPayout(out, rate, preview)
	}
}

func showPayout(out io.Writer, rate decimal.Decimal, preview func(decimal.Decimal) (decimal.Decimal, error)) error {
	payout, err := preview(rate)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Payout: %s\n", payout.StringFixed(2))
	return nil
}

func newUnassignCmd(a *app) *cobra.Command {
	var orderID, id int64

	cmd := &cobra.Command{
		Use:   "unassign --order <id> --id <assignment id>",
		Short: "Remove an assigned service from an order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rec, err := a.screen(cmd.Context(), orderID)
			if err != nil {
				return err
			}
			defer rec.Close()

			if err := rec.RemoveAssignment(cmd.Context(), id); err != nil {
				return err
			}
			rec.Wait()
			printAssigned(cmd.OutOrStdout(), rec.Assigned())
			return nil
		},
	}

	cmd.Flags().Int64Var(&orderID, "order", 0, "wash order id")
	cmd.Flags().Int64Var(&id, "id", 0, "assignment id")
	_ = cmd.MarkFlagRequired("order")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newDetailCmd(a *app) *cobra.Command {
	var id int64

	cmd := &cobra.Command{
		Use:   "detail --id <assignment id>",
		Short: "Show one assignment with its service, order and employee",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := a.client().WashServiceDetail(cmd.Context(), id)
			if err != nil {
				return err
			}
			printDetail(cmd.OutOrStdout(), d)
			return nil
		},
	}

	cmd.Flags().Int64Var(&id, "id", 0, "assignment id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func printDetail(w io.Writer, d *model.AssignedServiceDetail) {
	fmt.Fprintf(w, "Assignment %d: %s\n", d.ID, d.ServiceName)
	fmt.Fprintf(w, "  price   %s\n", d.Price.StringFixed(2))
	fmt.Fprintf(w, "  salary  %s\n", d.Salary.StringFixed(2))
	fmt.Fprintf(w, "  done    %t\n", d.Completed)
	if d.Service != nil {
		fmt.Fprintf(w, "  catalog %s (%s)\n", d.Service.Name, d.Service.Price.StringFixed(2))
	}
	if d.WashOrder != nil {
		o := d.WashOrder
		fmt.Fprintf(w, "  order   %d %s %s %s\n", o.ID, o.CarNumber, o.CarBrand, o.CarModel)
	}
	if d.User != nil {
		fmt.Fprintf(w, "  worker  %s\n", d.User.FullName())
	} else {
		fmt.Fprintf(w, "  worker  %s\n", d.UserID)
	}
}
