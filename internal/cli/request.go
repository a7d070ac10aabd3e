package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// NewRequestCmd создаёт группу команд для заявок на членство.
func NewRequestCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Manage membership requests",
	}

	cmd.AddCommand(
		newRequestAddCmd(clientFn, outputFn),
		newRequestStatusCmd(clientFn, outputFn),
		newRequestVerifyCmd(clientFn, outputFn),
	)

	return cmd
}

var statusHeaders = []string{"STATUS", "COMPLETED", "SUCCESSFUL", "PROJECT", "USER", "MESSAGE"}

func statusRow(s *StatusResponse) []string {
	return []string{
		s.Status,
		strconv.FormatBool(s.Completed),
		strconv.FormatBool(s.Successful),
		s.Project,
		s.User,
		s.Message,
	}
}

func newRequestAddCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var req AddMemberRequest

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Request adding a user to a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			started, err := client.AddMember(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Request submitted, workflow job %s", started.JobID))
			out.Print(
				[]string{"REQUEST ID", "JOB", "REFERENCE", "EXPIRES"},
				[][]string{{started.RequestID, started.JobID, started.Reference, started.ExpiresAt}},
				started,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.ProjectKey, "project", "", "Project key (required)")
	cmd.Flags().StringVar(&req.User, "user", "", "User to add (required)")
	cmd.Flags().StringVar(&req.Role, "role", "", "Role in the project (required)")
	cmd.Flags().StringVar(&req.Environment, "env", "", "Target environment")
	cmd.Flags().StringVar(&req.Comment, "comment", "", "Free-form comment")
	cmd.Flags().StringVar(&req.Initiator, "initiator", "", "Who initiated the request")
	cmd.MarkFlagRequired("project")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("role")

	return cmd
}

func newRequestStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var (
		watch    bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "status <request-id>",
		Short: "Show the reconciled status of a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			for {
				status, err := client.GetStatus(args[0])
				if err != nil {
					return err
				}

				if !watch || status.Completed {
					out.Print(statusHeaders, [][]string{statusRow(status)}, status)
					if status.ErrorDetails != "" && !out.JSONMode() {
						out.Error(status.ErrorDetails)
					}
					return nil
				}

				out.Success(fmt.Sprintf("%s: %s", status.Status, status.Message))

				select {
				case <-cmd.Context().Done():
					return cmd.Context().Err()
				case <-time.After(interval):
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Poll until the request completes")
	cmd.Flags().DurationVar(&interval, "interval", 10*time.Second, "Poll interval for --watch")

	return cmd
}

func newRequestVerifyCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var project, user string

	cmd := &cobra.Command{
		Use:   "verify <request-id>",
		Short: "Check that a request id was issued for project and user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			valid, err := client.Verify(args[0], project, user)
			if err != nil {
				return err
			}

			out.Print(
				[]string{"PROJECT", "USER", "VALID"},
				[][]string{{project, user, strconv.FormatBool(valid)}},
				map[string]bool{"valid": valid},
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "Project key (required)")
	cmd.Flags().StringVar(&user, "user", "", "User (required)")
	cmd.MarkFlagRequired("project")
	cmd.MarkFlagRequired("user")

	return cmd
}
