package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// NewCommandCmd создаёт группу команд для прямого вызова команд backend'ов.
func NewCommandCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "command",
		Short: "List and execute backend commands",
	}

	cmd.AddCommand(
		newCommandListCmd(clientFn, outputFn),
		newCommandExecCmd(clientFn, outputFn),
	)

	return cmd
}

func newCommandListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			commands, err := client.ListCommands()
			if err != nil {
				return err
			}

			headers := []string{"SERVICE", "COMMAND"}
			rows := make([][]string, len(commands))
			for i, c := range commands {
				rows[i] = []string{c.Service, c.Command}
			}

			out.Print(headers, rows, commands)
			return nil
		},
	}
}

func newCommandExecCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var (
		data      string
		file      string
		instance  string
		timeoutMs int64
		retries   int
		async     bool
	)

	cmd := &cobra.Command{
		Use:   "exec <service> <command>",
		Short: "Execute a command with a JSON request",
		Long: `Execute a registered command. The request is read from --data,
from --file, or from stdin when --file is "-".`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			request, err := readRequest(data, file, cmd.InOrStdin())
			if err != nil {
				return err
			}

			cc := &CommandContext{
				Instance:  instance,
				TimeoutMs: timeoutMs,
				Async:     async,
			}
			if cmd.Flags().Changed("retries") {
				cc.RetryAttempts = &retries
			}

			result, err := client.ExecuteCommand(args[0], args[1], request, cc)
			if err != nil {
				return err
			}

			if async && result.ServiceName != "" && result.ErrorCode == "" {
				out.Success(fmt.Sprintf("Command %s/%s accepted", args[0], args[1]))
				return nil
			}

			out.Print(
				[]string{"SUCCESS", "CODE", "TIME MS", "ATTEMPTS", "MESSAGE"},
				[][]string{{
					strconv.FormatBool(result.Success),
					result.ErrorCode,
					strconv.FormatInt(result.ExecutionTimeMs, 10),
					fmt.Sprint(result.Metadata["attempts"]),
					result.ErrorMessage,
				}},
				result,
			)
			if result.Success && !out.JSONMode() && len(result.Data) > 0 {
				out.JSON(result.Data)
			}
			if !result.Success {
				return fmt.Errorf("%s: %s", result.ErrorCode, result.ErrorMessage)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "Request JSON")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read request JSON from file (- for stdin)")
	cmd.Flags().StringVar(&instance, "instance", "", "Backend instance name")
	cmd.Flags().Int64Var(&timeoutMs, "timeout-ms", 0, "Per-attempt timeout in milliseconds (0 = server default, negative = none)")
	cmd.Flags().IntVar(&retries, "retries", 0, "Retry attempts after the first one")
	cmd.Flags().BoolVar(&async, "async", false, "Execute asynchronously")

	return cmd
}

// readRequest возвращает JSON запроса из --data, файла или stdin.
func readRequest(data, file string, stdin io.Reader) (json.RawMessage, error) {
	var raw []byte
	switch {
	case data != "" && file != "":
		return nil, fmt.Errorf("use either --data or --file, not both")
	case data != "":
		raw = []byte(data)
	case file == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		raw = b
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read request file: %w", err)
		}
		raw = b
	default:
		return nil, nil
	}

	if !json.Valid(raw) {
		return nil, fmt.Errorf("request is not valid JSON")
	}
	return raw, nil
}
