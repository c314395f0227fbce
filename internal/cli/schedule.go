package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"rota-planner/backend/internal/dto"
)

// NewAutoAssignCommand 对当前财年草稿执行自动排班
func NewAutoAssignCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "auto-assign",
		Short: "对当前财年草稿执行自动排班",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(rootOpts, true)
			if err != nil {
				return err
			}
			defer rt.close()

			resp, err := rt.services().Calendar.AutoAssign(cmd.Context(), adminActor())
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), rootOpts.Format, resp, func(w io.Writer) {
				printAutoAssign(w, resp)
			})
		},
	}
}

func printAutoAssign(w io.Writer, resp *dto.AutoAssignResponse) {
	fmt.Fprintf(w, "assigned: %d  unstaffed: %d  version: %d\n",
		resp.AssignedCount, resp.RemainingUnstaffedCount, resp.Version)
	for _, warn := range resp.Warnings {
		fmt.Fprintf(w, "  [%s] %s\n", warn.Code, warn.Message)
	}
}

// NewTransitionCommand 推进财年状态
func NewTransitionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "transition <fiscal-year-id> <status>",
		Short: "推进财年状态 (setup→collecting→building→published→archived)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(rootOpts, true)
			if err != nil {
				return err
			}
			defer rt.close()

			fy, err := rt.services().FiscalYear.Transition(cmd.Context(), adminActor(), args[0], args[1])
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), rootOpts.Format, fy, func(w io.Writer) {
				fmt.Fprintf(w, "%s (%s): %s, version %d\n", fy.Label, fy.ID, fy.Status, fy.Version)
			})
		},
	}
}
