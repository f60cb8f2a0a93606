// Package main 是医院助手控制台的入口点。
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hospital-console-go/pkg/hash"
)

// 构建时通过 -ldflags 注入。
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const defaultConfigPath = "./configs/config.yaml"

func main() {
	os.Exit(execute(newRootCmd()))
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "hospital-console",
		Short:         "Role-gated console for the hospital assistant backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().String("config", defaultConfigPath, "path to the YAML config file (empty: defaults + HOSPITAL_* env)")

	cmd.AddCommand(
		newServeCmd(),
		newProbeCmd(),
		newVersionCmd(),
		newHashPasswordCmd(),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hospital-console %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

// newHashPasswordCmd 为 auth.operators 生成 bcrypt 哈希。
func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print a bcrypt hash for an operator password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == "" {
				return errors.New("password cannot be empty")
			}
			hashed, err := hash.HashPassword(args[0])
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), hashed)
			return nil
		},
	}
}

func configPathFlag(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	return path
}
