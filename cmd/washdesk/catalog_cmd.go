package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"washdesk/internal/model"
	"washdesk/internal/service"
)

func newServicesCmd(a *app) *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:   "services [-q <text>]",
		Short: "List the service catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			services, err := a.client().Services(cmd.Context())
			if err != nil {
				return err
			}
			printServices(cmd.OutOrStdout(), service.FilterServices(services, query))
			return nil
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "show only services whose name contains the text")
	return cmd
}

func newUsersCmd(a *app) *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:   "users [-q <text>]",
		Short: "List the employee directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			users, err := a.client().Users(cmd.Context())
			if err != nil {
				return err
			}
			printUsers(cmd.OutOrStdout(), service.FilterUsers(users, query))
			return nil
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "show only employees whose full name contains the text")
	return cmd
}

func printServices(w io.Writer, services []model.Service) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE")
	for _, s := range services {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", s.ID, s.Name, s.Price.StringFixed(2))
	}
	tw.Flush()
}

func printUsers(w io.Writer, users []model.User) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPHONE")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", u.ID, u.FullName(), u.PhoneNumber)
	}
	tw.Flush()
}

func printAssigned(w io.Writer, assigned []model.AssignedService) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSERVICE\tEMPLOYEE\tPRICE\tSALARY\tDONE")
	for _, a := range assigned {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%t\n",
			a.ID, a.ServiceName, a.UserID, a.Price.StringFixed(2), a.Salary.StringFixed(2), a.Completed)
	}
	tw.Flush()
}
