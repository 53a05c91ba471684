package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"factortrader/api"
	"factortrader/cmd"
	"factortrader/internal/app"
	"factortrader/internal/logger"
	"factortrader/internal/util"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "factortrader",
		Short:         "Trading command interpreter and factor allocator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newExecCmd())
	rootCmd.AddCommand(newFactorsCmd())
	rootCmd.AddCommand(newServeCmd())

	return rootCmd
}

// withDependencies wires everything, runs fn and closes the db.
func withDependencies(fn func(ctx context.Context, apiHandler *api.ApiHandler, port int) error) error {
	apiHandler, secrets, err := cmd.InitializeDependencies()
	if err != nil {
		return err
	}
	defer cmd.CloseDependencies(apiHandler)

	ctx := logger.WithLogger(context.Background(), logger.New())
	return fn(ctx, apiHandler, secrets.Port)
}

func newExecCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exec <command text...>",
		Short: "Run one command and print the response",
		Long: `Run one command through the dispatcher, exactly as POST /command would.
Example: factortrader exec allocate 25% to tech`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return withDependencies(func(ctx context.Context, apiHandler *api.ApiHandler, _ int) error {
				resp := apiHandler.CommandApp.Execute(ctx, strings.Join(args, " "))
				util.Pprint(resp)
				if resp.Status >= 400 {
					return fmt.Errorf("%s failed with status %d", resp.Type, resp.Status)
				}
				return nil
			})
		},
	}
}

func newFactorsCmd() *cobra.Command {
	factorsCmd := &cobra.Command{
		Use:   "factors",
		Short: "Factor management",
	}

	importCmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Create a factor from a symbol,weight,type csv",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			name, _ := c.Flags().GetString("name")
			color, _ := c.Flags().GetString("color")

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer f.Close()

			return withDependencies(func(ctx context.Context, apiHandler *api.ApiHandler, _ int) error {
				factor, err := app.ImportFactor(ctx, apiHandler.FactorService, name, color, f)
				if err != nil {
					return err
				}
				fmt.Printf("created factor %s (%s) with %d assets\n", factor.Name, factor.ID, len(factor.Assets))
				return nil
			})
		},
	}
	importCmd.Flags().String("name", "", "factor name")
	importCmd.Flags().String("color", "", "display color, e.g. #6366f1")
	_ = importCmd.MarkFlagRequired("name")

	factorsCmd.AddCommand(importCmd)
	return factorsCmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP api",
		RunE: func(c *cobra.Command, args []string) error {
			return withDependencies(func(ctx context.Context, apiHandler *api.ApiHandler, port int) error {
				logger.FromContext(ctx).Infof("listening on :%d", port)
				return apiHandler.StartApi(port)
			})
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
