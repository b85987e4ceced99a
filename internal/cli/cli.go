package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/Additional-Code/subext/internal/app"
	"github.com/Additional-Code/subext/internal/dto"
	"github.com/Additional-Code/subext/internal/entity"
	"github.com/Additional-Code/subext/internal/messaging"
	"github.com/Additional-Code/subext/internal/migration"
	ordersvc "github.com/Additional-Code/subext/internal/service/order"
	"github.com/Additional-Code/subext/pkg/errorbank"
)

const stopTimeout = 10 * time.Second

// NewRootCommand builds the root subext CLI command.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "subext",
		Short:         "Order extension that registers subscriptions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newStartCmd())
	root.AddCommand(newWorkerCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newHandleCmd())
	root.AddCommand(newEnqueueCmd())

	return root
}

// Execute runs the subext CLI until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	return nil
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "start",
		Aliases: []string{"run"},
		Short:   "Run the HTTP extension endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUntilDone(cmd.Context(), app.Module)
		},
	}
}

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Manage background workers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Consume queued extension payloads",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUntilDone(cmd.Context(), app.Worker)
		},
	})
	return cmd
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run dispatch log migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			var mig *migration.Migrator
			opts := fx.Options(app.Core, migration.Module, fx.Populate(&mig))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := mig.Up(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			all, _ := cmd.Flags().GetBool("all")
			var mig *migration.Migrator
			opts := fx.Options(app.Core, migration.Module, fx.Populate(&mig))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := mig.Down(ctx, steps, all); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations rolled back")
				return nil
			})
		},
	}
	downCmd.Flags().Int("steps", 1, "Number of migration steps to rollback")
	downCmd.Flags().Bool("all", false, "Rollback all applied migrations")

	cmd.AddCommand(upCmd, downCmd)
	return cmd
}

func newHandleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "handle",
		Short: "Run one extension payload and print the extension response",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("file")
			action, _ := cmd.Flags().GetString("action")

			req, err := readPayload(cmd.InOrStdin(), path)
			if err != nil {
				return err
			}
			if action != "" {
				req.Action = action
			}

			var svc *ordersvc.Service
			opts := fx.Options(app.Core, fx.Populate(&svc))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				result, err := svc.Handle(ctx, req.Action, req.Resource)
				return writeResult(cmd.OutOrStdout(), result.Actions, err)
			})
		},
	}
	cmd.Flags().StringP("file", "f", "-", "Extension payload file ({action, resource}); - reads stdin")
	cmd.Flags().String("action", "", "Override the payload action")
	return cmd
}

func newEnqueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Publish an extension payload for the worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("file")

			req, err := readPayload(cmd.InOrStdin(), path)
			if err != nil {
				return err
			}
			value, err := json.Marshal(req)
			if err != nil {
				return err
			}

			var client messaging.Client
			opts := fx.Options(app.Core, fx.Populate(&client))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				msg := messaging.Message{
					Key:     []byte(req.Resource.ID),
					Value:   value,
					Headers: map[string]string{"action": req.Action},
				}
				if err := client.Publish(ctx, msg); err != nil {
					return fmt.Errorf("publish to %s: %w", client.Topic(), err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "enqueued order %s on %s\n", req.Resource.ID, client.Topic())
				return nil
			})
		},
	}
	cmd.Flags().StringP("file", "f", "-", "Extension payload file ({action, resource}); - reads stdin")
	return cmd
}

func readPayload(stdin io.Reader, path string) (dto.ExtensionRequest, error) {
	var (
		body []byte
		err  error
	)
	if path == "" || path == "-" {
		body, err = io.ReadAll(stdin)
	} else {
		body, err = os.ReadFile(path)
	}
	if err != nil {
		return dto.ExtensionRequest{}, fmt.Errorf("read payload: %w", err)
	}
	return dto.DecodeExtensionRequest(body)
}

// writeResult prints the extension response body. An error is printed in the
// extension error shape and also returned so the exit status is non-zero.
func writeResult(w io.Writer, actions []entity.UpdateAction, err error) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err != nil {
		appErr := errorbank.From(err)
		if encErr := enc.Encode(dto.ExtensionErrorResponse{Errors: []dto.ExtensionError{{
			Code:    string(appErr.Kind()),
			Message: appErr.Message(),
			Details: appErr.Details(),
		}}}); encErr != nil {
			return encErr
		}
		return fmt.Errorf("extension responded %d", appErr.StatusCode())
	}

	if actions == nil {
		actions = []entity.UpdateAction{}
	}
	return enc.Encode(dto.ExtensionResponse{Actions: actions})
}

func runUntilDone(ctx context.Context, opts fx.Option) error {
	application := fx.New(opts)
	if err := application.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return application.Stop(stopCtx)
}

func runWithApp(ctx context.Context, opts fx.Option, fn func(context.Context) error) error {
	application := fx.New(opts, fx.NopLogger)
	if err := application.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		_ = application.Stop(stopCtx)
	}()
	return fn(ctx)
}
