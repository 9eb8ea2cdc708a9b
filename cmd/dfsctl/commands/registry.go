package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/dfs/internal/cli/output"
	"github.com/marmos91/dfs/internal/registry"
	registryremote "github.com/marmos91/dfs/internal/registry/remote"
)

var (
	registryServerURL string
	registryOutput    string
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Inspect and manage a Directory Registry",
}

func init() {
	registryCmd.PersistentFlags().StringVar(&registryServerURL, "server", "http://localhost:7000", "Directory Registry base URL")
	registryListCmd.Flags().StringVarP(&registryOutput, "output", "o", "table", "output format (table, yaml)")
	registryCmd.AddCommand(registryListCmd, registryLookupCmd, registryRegisterCmd, registryDeregisterCmd)
}

type dirEntryList []registry.DirEntry

func (l dirEntryList) Headers() []string { return []string{"DIRECTORY", "ENDPOINT"} }

func (l dirEntryList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, e := range l {
		rows = append(rows, []string{e.Directory, e.Endpoint.String()})
	}
	return rows
}

var registryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every registered directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		client := registryremote.New(registryServerURL)
		entries, err := client.List(ctx)
		if err != nil {
			return fmt.Errorf("list: %w", err)
		}
		if registryOutput == "yaml" {
			mappings := make(map[string]string, len(entries))
			for _, e := range entries {
				mappings[e.Directory] = e.Endpoint.String()
			}
			return output.PrintYAML(os.Stdout, mappings)
		}
		output.PrintTable(os.Stdout, dirEntryList(entries))
		return nil
	},
}

var registryLookupCmd = &cobra.Command{
	Use:   "lookup <file-path>",
	Short: "Resolve the storage endpoint serving a file path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		client := registryremote.New(registryServerURL)
		ep, err := client.Lookup(ctx, args[0])
		if err != nil {
			return fmt.Errorf("lookup: %w", err)
		}
		fmt.Println(ep.String())
		return nil
	},
}

var registryRegisterCmd = &cobra.Command{
	Use:   "register <directory> <host:port>",
	Short: "Register a directory against a storage endpoint",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		ep, err := registry.ParseEndpoint(args[1])
		if err != nil {
			return err
		}
		client := registryremote.New(registryServerURL)
		if err := client.Register(ctx, args[0], ep); err != nil {
			return fmt.Errorf("register: %w", err)
		}
		fmt.Println("OK")
		return nil
	},
}

var registryDeregisterCmd = &cobra.Command{
	Use:   "deregister <directory> <host:port>",
	Short: "Remove a directory's registration",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		ep, err := registry.ParseEndpoint(args[1])
		if err != nil {
			return err
		}
		client := registryremote.New(registryServerURL)
		if err := client.Deregister(ctx, args[0], ep); err != nil {
			return fmt.Errorf("deregister: %w", err)
		}
		fmt.Println("OK")
		return nil
	},
}
