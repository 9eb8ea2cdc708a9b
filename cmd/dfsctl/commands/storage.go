package commands

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var storageServerURL string

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Read and write files directly against a Storage Node",
}

func init() {
	storageCmd.PersistentFlags().StringVar(&storageServerURL, "server", "http://localhost:7002", "Storage Node base URL")
	storageCmd.AddCommand(storageGetCmd, storagePutCmd, storageDeleteCmd)
}

func storageHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

var storageGetCmd = &cobra.Command{
	Use:   "get <file-path>",
	Short: "Fetch a file's contents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := storageHTTPClient().Get(storageServerURL + args[0])
		if err != nil {
			return fmt.Errorf("get: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("get %s: status %d", args[0], resp.StatusCode)
		}
		_, err = io.Copy(os.Stdout, resp.Body)
		return err
	},
}

var storagePutCmd = &cobra.Command{
	Use:   "put <file-path> <local-file>",
	Short: "Upload a local file's contents",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer f.Close()

		req, err := http.NewRequest(http.MethodPut, storageServerURL+args[0], f)
		if err != nil {
			return err
		}
		resp, err := storageHTTPClient().Do(req)
		if err != nil {
			return fmt.Errorf("put: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("put %s: status %d", args[0], resp.StatusCode)
		}
		fmt.Println("Last-Modified:", resp.Header.Get("Last-Modified"))
		return nil
	},
}

var storageDeleteCmd = &cobra.Command{
	Use:   "delete <file-path>",
	Short: "Delete a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := http.NewRequest(http.MethodDelete, storageServerURL+args[0], nil)
		if err != nil {
			return err
		}
		resp, err := storageHTTPClient().Do(req)
		if err != nil {
			return fmt.Errorf("delete: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("delete %s: status %d", args[0], resp.StatusCode)
		}
		body, _ := io.ReadAll(resp.Body)
		fmt.Println(strings.TrimSpace(string(body)))
		return nil
	},
}
